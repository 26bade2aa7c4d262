// Package export renders a project's sheets and protocol into artifacts and
// stores them in a blob store.
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"flowpanel/internal/blob"
	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

// Format identifies one export artifact.
type Format string

const (
	FormatMatrixCSV     Format = "matrix"
	FormatPlanCSV       Format = "plan"
	FormatRunOrderCSV   Format = "run_order"
	FormatMasterMixJSON Format = "mastermix"
	FormatProtocolText  Format = "protocol_text"
	FormatProtocolPDF   Format = "protocol_pdf"
	FormatProjectJSON   Format = "project_json"
	FormatProjectYAML   Format = "project_yaml"
)

// AllFormats lists every format in the order artifacts are written.
func AllFormats() []Format {
	return []Format{
		FormatMatrixCSV, FormatPlanCSV, FormatRunOrderCSV, FormatMasterMixJSON,
		FormatProtocolText, FormatProtocolPDF, FormatProjectJSON, FormatProjectYAML,
	}
}

// ParseFormat resolves a format name.
func ParseFormat(name string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := formatFiles[f]; !ok {
		return "", domain.UnknownVariantError{Kind: "export format", Label: name}
	}
	return f, nil
}

var formatFiles = map[Format]struct{ file, contentType string }{
	FormatMatrixCSV:     {"matrix.csv", "text/csv; charset=utf-8"},
	FormatPlanCSV:       {"plan.csv", "text/csv; charset=utf-8"},
	FormatRunOrderCSV:   {"run_order.csv", "text/csv; charset=utf-8"},
	FormatMasterMixJSON: {"mastermix.json", "application/json"},
	FormatProtocolText:  {"protocol.txt", "text/plain; charset=utf-8"},
	FormatProtocolPDF:   {"protocol.pdf", "application/pdf"},
	FormatProjectJSON:   {"project.json", "application/json"},
	FormatProjectYAML:   {"project.yaml", "application/yaml"},
}

// FileName returns the object name the format is stored under.
func (f Format) FileName() string { return formatFiles[f].file }

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string { return formatFiles[f].contentType }

// Status describes the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// OpExport is the audit operation recorded for exports.
const OpExport = "export"

// ActionExport is the audit action recorded for exports.
const ActionExport core.Action = "export"

// Artifact is one stored export file.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ETag        string    `json:"etag,omitempty"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export and the artifacts it produced.
type Record struct {
	ID          string     `json:"id"`
	Project     string     `json:"project"`
	Prefix      string     `json:"prefix"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	return dup
}

// Request selects what an export renders. Empty Formats means all formats.
// Plan defaults to the default groups and replicate count.
type Request struct {
	Formats    []Format        `json:"formats,omitempty"`
	Plan       core.PlanParams `json:"plan"`
	IncludeMix bool            `json:"include_mix"`
}

// Source is the project data an export reads. *core.Service satisfies it.
type Source interface {
	ExportProject(ctx context.Context) (domain.Project, error)
	BuildMatrix(ctx context.Context) (core.Matrix, error)
	ComputeMasterMix(ctx context.Context, params *core.MasterMixParams) (core.MasterMixResult, error)
	GeneratePlan(ctx context.Context, params core.PlanParams) (core.Plan, error)
	Protocol(ctx context.Context, includeMix bool) (core.Protocol, error)
}

// Exporter renders and stores export artifacts.
type Exporter struct {
	source Source
	store  blob.Store
	logger core.Logger
	audit  core.AuditRecorder
	clock  core.Clock
	newID  func() string
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the exporter logger.
func WithLogger(logger core.Logger) Option {
	return func(e *Exporter) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithAuditRecorder records one audit entry per export. The default writes
// audit lines to the exporter logger.
func WithAuditRecorder(rec core.AuditRecorder) Option {
	return func(e *Exporter) {
		if rec != nil {
			e.audit = rec
		}
	}
}

// WithClock overrides the time source.
func WithClock(clock core.Clock) Option {
	return func(e *Exporter) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithIDGenerator overrides the export id source.
func WithIDGenerator(fn func() string) Option {
	return func(e *Exporter) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewExporter constructs an exporter reading from source and writing to store.
func NewExporter(source Source, store blob.Store, opts ...Option) *Exporter {
	e := &Exporter{
		source: source,
		store:  store,
		logger: core.NewZapLogger(nil),
		clock:  core.ClockFunc(nil),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.audit == nil {
		e.audit = core.LoggerAuditRecorder{Logger: e.logger}
	}
	return e
}

// Store returns the artifact store.
func (e *Exporter) Store() blob.Store { return e.store }

// Export renders every requested format and stores it under
// <project>/<id>/<file>. On failure the record lists the artifacts written
// before the error.
func (e *Exporter) Export(ctx context.Context, req Request) (Record, error) {
	return e.run(ctx, e.newID(), req)
}

func (e *Exporter) run(ctx context.Context, id string, req Request) (Record, error) {
	start := e.clock.Now()
	formats, err := normalizeFormats(req.Formats)
	if err != nil {
		return Record{}, err
	}
	record := Record{ID: id, Formats: formats, Status: StatusRunning, CreatedAt: start, UpdatedAt: start}

	err = e.export(ctx, &record, req)
	now := e.clock.Now()
	record.UpdatedAt = now
	record.CompletedAt = &now
	if err != nil {
		record.Status = StatusFailed
		record.Error = err.Error()
		e.logger.Warn("export failed", "id", id, "project", record.Project, "error", err)
	} else {
		record.Status = StatusSucceeded
		e.logger.Info("export completed", "id", id, "project", record.Project, "artifacts", len(record.Artifacts))
	}
	e.recordAudit(ctx, record, now.Sub(start), err)
	return record, err
}

func (e *Exporter) export(ctx context.Context, record *Record, req Request) error {
	project, err := e.source.ExportProject(ctx)
	if err != nil {
		return fmt.Errorf("load project: %w", err)
	}
	record.Project = project.Name
	record.Prefix = KeyPrefix(project.Name, record.ID)

	r := renderer{source: e.source, project: project, req: req}
	for _, format := range record.Formats {
		payload, err := r.render(ctx, format)
		if err != nil {
			return fmt.Errorf("render %s: %w", format, err)
		}
		artifact, err := e.put(ctx, record, format, payload)
		if err != nil {
			return fmt.Errorf("store %s: %w", format, err)
		}
		record.Artifacts = append(record.Artifacts, artifact)
	}
	return nil
}

func (e *Exporter) put(ctx context.Context, record *Record, format Format, payload []byte) (Artifact, error) {
	key := record.Prefix + "/" + format.FileName()
	info, err := e.store.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: format.ContentType(),
		Metadata: map[string]string{
			"export-id": record.ID,
			"format":    string(format),
		},
	})
	if err != nil {
		return Artifact{}, err
	}
	artifact := Artifact{
		Key:         info.Key,
		Format:      format,
		ContentType: format.ContentType(),
		SizeBytes:   info.Size,
		ETag:        info.ETag,
		CreatedAt:   info.LastModified,
	}
	if url, err := e.store.PresignURL(ctx, key, blob.SignedURLOptions{}); err == nil {
		artifact.URL = url
	}
	return artifact, nil
}

func (e *Exporter) recordAudit(ctx context.Context, record Record, duration time.Duration, err error) {
	entry := core.AuditEntry{
		Operation: OpExport,
		Entity:    core.EntityProject,
		Action:    ActionExport,
		EntityID:  record.Project,
		Status:    core.AuditStatusSuccess,
		Duration:  duration,
		Timestamp: e.clock.Now(),
	}
	if err != nil {
		entry.Status = core.AuditStatusError
		entry.Error = err.Error()
	}
	e.audit.Record(ctx, entry)
}

// KeyPrefix returns the object prefix of one export of project.
func KeyPrefix(project, id string) string {
	return sanitizeSegment(project) + "/" + id
}

// sanitizeSegment keeps letters, digits and -_. so a project name is a
// single safe key segment.
func sanitizeSegment(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "project"
	}
	return out
}

func normalizeFormats(in []Format) ([]Format, error) {
	if len(in) == 0 {
		return AllFormats(), nil
	}
	out := make([]Format, 0, len(in))
	seen := make(map[Format]struct{}, len(in))
	for _, f := range in {
		if _, ok := formatFiles[f]; !ok {
			return nil, domain.UnknownVariantError{Kind: "export format", Label: string(f)}
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}
