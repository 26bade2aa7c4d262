package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

// mutationResponse carries the stored record with any warnings the rules
// engine raised on commit.
type mutationResponse struct {
	Reagent    *core.Reagent      `json:"reagent,omitempty"`
	Tube       *core.Tube         `json:"tube,omitempty"`
	Reagents   []core.Reagent     `json:"reagents,omitempty"`
	Tubes      []core.Tube        `json:"tubes,omitempty"`
	Volumes    *core.Volumes      `json:"volumes,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.svc.ExportProject(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (s *Server) handleImportProject(w http.ResponseWriter, r *http.Request) {
	var project core.Project
	ok, err := decodeBody(r, &project)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, domain.ValidationError{Entity: domain.EntityProject, Field: "body", Message: "project body required"})
		return
	}
	res, err := s.svc.ImportProject(r.Context(), project)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Violations: res.Violations})
}

func (s *Server) handleRenameProject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if _, err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.svc.RenameProject(r.Context(), body.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Violations: res.Violations})
}

func (s *Server) handleSetVolumes(w http.ResponseWriter, r *http.Request) {
	project, err := s.svc.Project(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Keys absent from the body keep their current values.
	volumes := project.Volumes
	if _, err := decodeBody(r, &volumes); err != nil {
		s.writeError(w, err)
		return
	}
	stored, res, err := s.svc.SetVolumes(r.Context(), volumes)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Volumes: &stored, Violations: res.Violations})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Check(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"blocking":   res.HasBlocking(),
		"violations": nonNil(res.Violations),
	})
}

func (s *Server) handleListReagents(w http.ResponseWriter, r *http.Request) {
	project, err := s.svc.Project(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reagents": nonNil(project.Reagents.List())})
}

func (s *Server) handlePutReagent(w http.ResponseWriter, r *http.Request) {
	name := pathVar(r, "name")
	var reagent core.Reagent
	if _, err := decodeBody(r, &reagent); err != nil {
		s.writeError(w, err)
		return
	}
	if err := matchPathName(domain.EntityReagent, name, &reagent.Name); err != nil {
		s.writeError(w, err)
		return
	}
	stored, res, err := s.svc.UpsertReagent(r.Context(), reagent)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Reagent: &stored, Violations: res.Violations})
}

func (s *Server) handleDeleteReagent(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DeleteReagent(r.Context(), pathVar(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Violations: res.Violations})
}

func (s *Server) handleLoadStandardReagents(w http.ResponseWriter, r *http.Request) {
	loaded, res, err := s.svc.LoadStandardReagents(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Reagents: loaded, Violations: res.Violations})
}

func (s *Server) handleListTubes(w http.ResponseWriter, r *http.Request) {
	project, err := s.svc.Project(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tubes": nonNil(project.Tubes.List())})
}

func (s *Server) handlePutTube(w http.ResponseWriter, r *http.Request) {
	name := pathVar(r, "name")
	var tube core.Tube
	if _, err := decodeBody(r, &tube); err != nil {
		s.writeError(w, err)
		return
	}
	if err := matchPathName(domain.EntityTube, name, &tube.Name); err != nil {
		s.writeError(w, err)
		return
	}
	stored, res, err := s.svc.UpsertTube(r.Context(), tube)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Tube: &stored, Violations: res.Violations})
}

func (s *Server) handleDeleteTube(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.DeleteTube(r.Context(), pathVar(r, "name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Violations: res.Violations})
}

func (s *Server) handleAddTubeReagent(w http.ResponseWriter, r *http.Request) {
	tube, res, err := s.svc.AddTubeReagent(r.Context(), pathVar(r, "name"), pathVar(r, "reagent"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Tube: &tube, Violations: res.Violations})
}

func (s *Server) handleRemoveTubeReagent(w http.ResponseWriter, r *http.Request) {
	tube, res, err := s.svc.RemoveTubeReagent(r.Context(), pathVar(r, "name"), pathVar(r, "reagent"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Tube: &tube, Violations: res.Violations})
}

func (s *Server) handleLoadStandardTubes(w http.ResponseWriter, r *http.Request) {
	tubes, res, err := s.svc.LoadStandardTubes(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mutationResponse{Tubes: tubes, Violations: res.Violations})
}

func (s *Server) handleMatrix(w http.ResponseWriter, r *http.Request) {
	matrix, err := s.svc.BuildMatrix(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if wantsCSV(r) {
		s.writeCSV(w, matrix.Header(), matrix.Records())
		return
	}
	writeJSON(w, http.StatusOK, matrix)
}

func (s *Server) handleMasterMix(w http.ResponseWriter, r *http.Request) {
	project, err := s.svc.Project(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	// Keys absent from the body fall back to the project volumes.
	params := core.ParamsFromVolumes(project.Volumes)
	if _, err := decodeBody(r, &params); err != nil {
		s.writeError(w, err)
		return
	}
	result, err := s.svc.ComputeMasterMix(r.Context(), &params)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// planRequest leaves unset fields to the server defaults.
type planRequest struct {
	Groups     []string `json:"groups"`
	Replicates *int     `json:"replicates"`
	Randomize  *bool    `json:"randomize"`
	Seed       *uint64  `json:"seed"`
}

func (s *Server) planParams(req planRequest) core.PlanParams {
	params := s.planDefaults
	params.Groups = append([]string(nil), s.planDefaults.Groups...)
	if req.Groups != nil {
		params.Groups = req.Groups
	}
	if req.Replicates != nil {
		params.Replicates = *req.Replicates
	}
	if req.Randomize != nil {
		params.Randomize = *req.Randomize
	}
	if req.Seed != nil {
		params.Seed = req.Seed
	}
	return params
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if _, err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	plan, err := s.svc.GeneratePlan(r.Context(), s.planParams(req))
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "csv":
		s.writeCSV(w, plan.Header(), plan.Records())
	case "run_order":
		s.writeCSV(w, plan.RunOrderHeader(), plan.RunOrderRecords())
	default:
		writeJSON(w, http.StatusOK, plan)
	}
}

func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	includeMix := false
	if raw := r.URL.Query().Get("mix"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, domain.InvalidNumericInputError{Field: "mix", Value: raw, Reason: "not a boolean"})
			return
		}
		includeMix = v
	}
	protocol, err := s.svc.Protocol(r.Context(), includeMix)
	if err != nil {
		s.writeError(w, err)
		return
	}
	switch r.URL.Query().Get("format") {
	case "text":
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(protocol.Text()))
	case "pdf":
		body, err := export.RenderProtocolPDF(protocol)
		if err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", export.FormatProtocolPDF.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	default:
		writeJSON(w, http.StatusOK, protocol)
	}
}

// exportRequest mirrors export.Request with server plan defaults.
type exportRequest struct {
	Formats    []export.Format `json:"formats"`
	Plan       planRequest     `json:"plan"`
	IncludeMix bool            `json:"include_mix"`
}

func (s *Server) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "exports are not configured"})
		return
	}
	var req exportRequest
	if _, err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.exports.Enqueue(r.Context(), export.Request{
		Formats:    req.Formats,
		Plan:       s.planParams(req.Plan),
		IncludeMix: req.IncludeMix,
	})
	if errors.Is(err, export.ErrQueueFull) {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (s *Server) handleGetExport(w http.ResponseWriter, r *http.Request) {
	if s.exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "exports are not configured"})
		return
	}
	id := pathVar(r, "id")
	record, ok := s.exports.Get(id)
	if !ok {
		s.writeError(w, domain.NotFoundError{Entity: "export", Name: id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (s *Server) writeCSV(w http.ResponseWriter, header []string, records [][]string) {
	body, err := export.WriteCSV(header, records)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// pathVar returns a decoded route variable. Routes match on the encoded path
// so reagent names such as "anti-mouse CD16/32" can be addressed as %2F.
func pathVar(r *http.Request, key string) string {
	raw := mux.Vars(r)[key]
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func wantsCSV(r *http.Request) bool {
	if r.URL.Query().Get("format") == "csv" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/csv")
}

// matchPathName fills an empty body name from the path and rejects a body
// naming a different record.
func matchPathName(entity domain.EntityType, path string, name *string) error {
	if strings.TrimSpace(*name) == "" {
		*name = path
		return nil
	}
	if strings.TrimSpace(*name) != strings.TrimSpace(path) {
		return domain.ValidationError{Entity: entity, Field: "name", Message: "body name " + strconv.Quote(*name) + " does not match path " + strconv.Quote(path)}
	}
	return nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
