// Package httpapi serves the panel design operations over JSON HTTP.
package httpapi

import (
	"encoding/json"
	"expvar"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

// maxBodyBytes bounds request payloads; a full project file is far smaller.
const maxBodyBytes = 4 << 20

// Server routes HTTP requests to a core.Service.
type Server struct {
	svc         *core.Service
	exports     export.Scheduler
	logger      core.Logger
	gatherer    prometheus.Gatherer
	corsOrigins []string

	planDefaults core.PlanParams
}

// Option configures a Server.
type Option func(*Server)

// WithExports enables the export endpoints.
func WithExports(s export.Scheduler) Option {
	return func(srv *Server) { srv.exports = s }
}

// WithLogger sets the request logger.
func WithLogger(logger core.Logger) Option {
	return func(srv *Server) {
		if logger != nil {
			srv.logger = logger
		}
	}
}

// WithGatherer selects the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(srv *Server) {
		if g != nil {
			srv.gatherer = g
		}
	}
}

// WithCORSOrigins sets the allowed CORS origins. The default allows any.
func WithCORSOrigins(origins []string) Option {
	return func(srv *Server) {
		if len(origins) > 0 {
			srv.corsOrigins = append([]string(nil), origins...)
		}
	}
}

// WithPlanDefaults sets the plan parameters used for fields a request
// leaves out.
func WithPlanDefaults(params core.PlanParams) Option {
	return func(srv *Server) { srv.planDefaults = params }
}

// New constructs a server for svc.
func New(svc *core.Service, opts ...Option) *Server {
	srv := &Server{
		svc:         svc,
		logger:      core.NewZapLogger(nil),
		gatherer:    prometheus.DefaultGatherer,
		corsOrigins: []string{"*"},
		planDefaults: core.PlanParams{
			Groups:     core.DefaultGroups(),
			Replicates: core.DefaultReplicates,
		},
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

// Handler returns the routed, CORS wrapped handler.
func (s *Server) Handler() http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept"},
		MaxAge:         300,
	}).Handler(s.Router())
}

// Router returns the bare route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter().UseEncodedPath()
	r.Use(s.logRequests)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/openapi.yaml", handleOpenAPI).Methods(http.MethodGet)
	api.HandleFunc("/project", s.handleGetProject).Methods(http.MethodGet)
	api.HandleFunc("/project", s.handleImportProject).Methods(http.MethodPut)
	api.HandleFunc("/project/name", s.handleRenameProject).Methods(http.MethodPut)
	api.HandleFunc("/project/volumes", s.handleSetVolumes).Methods(http.MethodPut)
	api.HandleFunc("/check", s.handleCheck).Methods(http.MethodGet)

	api.HandleFunc("/reagents", s.handleListReagents).Methods(http.MethodGet)
	api.HandleFunc("/reagents/standard", s.handleLoadStandardReagents).Methods(http.MethodPost)
	api.HandleFunc("/reagents/{name}", s.handlePutReagent).Methods(http.MethodPut)
	api.HandleFunc("/reagents/{name}", s.handleDeleteReagent).Methods(http.MethodDelete)

	api.HandleFunc("/tubes", s.handleListTubes).Methods(http.MethodGet)
	api.HandleFunc("/tubes/standard", s.handleLoadStandardTubes).Methods(http.MethodPost)
	api.HandleFunc("/tubes/{name}", s.handlePutTube).Methods(http.MethodPut)
	api.HandleFunc("/tubes/{name}", s.handleDeleteTube).Methods(http.MethodDelete)
	api.HandleFunc("/tubes/{name}/reagents/{reagent}", s.handleAddTubeReagent).Methods(http.MethodPut)
	api.HandleFunc("/tubes/{name}/reagents/{reagent}", s.handleRemoveTubeReagent).Methods(http.MethodDelete)

	api.HandleFunc("/matrix", s.handleMatrix).Methods(http.MethodGet)
	api.HandleFunc("/mastermix", s.handleMasterMix).Methods(http.MethodPost)
	api.HandleFunc("/plan", s.handlePlan).Methods(http.MethodPost)
	api.HandleFunc("/protocol", s.handleProtocol).Methods(http.MethodGet)

	api.HandleFunc("/exports", s.handleCreateExport).Methods(http.MethodPost)
	api.HandleFunc("/exports/{id}", s.handleGetExport).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "duration", time.Since(start))
	})
}

// decodeBody decodes an optional JSON body. It reports false when the body
// is empty. Typed engine errors raised by field decoders pass through;
// anything else is reported as a malformed body.
func decodeBody(r *http.Request, dst any) (bool, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		if core.ErrorKind(err) != core.KindInternal {
			return false, err
		}
		return false, domain.ValidationError{Entity: "request", Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return true, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
