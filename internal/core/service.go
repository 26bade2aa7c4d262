package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"flowpanel/internal/infra/persistence/memory"
	"flowpanel/pkg/domain"
)

// Service exposes the panel design operations over a transactional store.
// Every call is logged, timed, traced and, when it mutates the project,
// audited.
type Service struct {
	store   PersistentStore
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		logger:  noopLogger{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		audit:   noopAuditRecorder{},
		clock:   ClockFunc(nil),
	}
}

// WithLogger sets the service logger. nil keeps the no-op logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics recorder.
func WithMetricsRecorder(rec MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if rec != nil {
			o.metrics = rec
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit recorder.
func WithAuditRecorder(rec AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if rec != nil {
			o.audit = rec
		}
	}
}

// WithClock sets the time source used for audit timestamps, protocol
// headers and save times.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Service{
		store:   store,
		logger:  cfg.logger,
		metrics: cfg.metrics,
		tracer:  cfg.tracer,
		audit:   cfg.audit,
		clock:   cfg.clock,
	}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// Operation names used for metrics, spans and audit entries.
const (
	OpProject              = "project"
	OpRenameProject        = "rename_project"
	OpUpsertReagent        = "upsert_reagent"
	OpDeleteReagent        = "delete_reagent"
	OpLoadStandardReagents = "load_standard_reagents"
	OpUpsertTube           = "upsert_tube"
	OpDeleteTube           = "delete_tube"
	OpAddTubeReagent       = "add_tube_reagent"
	OpRemoveTubeReagent    = "remove_tube_reagent"
	OpLoadStandardTubes    = "load_standard_tubes"
	OpSetVolumes           = "set_volumes"
	OpBuildMatrix          = "build_matrix"
	OpComputeMasterMix     = "compute_master_mix"
	OpGeneratePlan         = "generate_plan"
	OpProtocol             = "protocol"
	OpImportProject        = "import_project"
	OpExportProject        = "export_project"
	OpCheck                = "check"
)

type auditMeta struct {
	entity EntityType
	action Action
}

// auditedOperations lists the mutating operations and what they touch.
var auditedOperations = map[string]auditMeta{
	OpRenameProject:        {EntityProject, ActionUpdate},
	OpUpsertReagent:        {EntityReagent, ActionUpdate},
	OpDeleteReagent:        {EntityReagent, ActionDelete},
	OpLoadStandardReagents: {EntityReagent, ActionReplace},
	OpUpsertTube:           {EntityTube, ActionUpdate},
	OpDeleteTube:           {EntityTube, ActionDelete},
	OpAddTubeReagent:       {EntityTube, ActionUpdate},
	OpRemoveTubeReagent:    {EntityTube, ActionUpdate},
	OpLoadStandardTubes:    {EntityTube, ActionReplace},
	OpSetVolumes:           {EntityProject, ActionUpdate},
	OpImportProject:        {EntityProject, ActionReplace},
}

// observe runs fn inside a span and reports its outcome to the logger,
// metrics recorder and audit recorder.
func (s *Service) observe(ctx context.Context, op, entityID string, fn func(context.Context) error) error {
	start := s.clock.Now()
	ctx, span := s.tracer.Start(ctx, op)
	err := fn(ctx)
	duration := s.clock.Now().Sub(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)
	if err != nil {
		s.logger.Warn("operation failed", "operation", op, "name", entityID, "kind", ErrorKind(err), "error", err)
		s.recordAuditError(ctx, op, entityID, duration, err)
		return err
	}
	s.logger.Debug("operation completed", "operation", op, "name", entityID, "duration", duration)
	s.recordAuditSuccess(ctx, op, entityID, duration)
	return nil
}

func (s *Service) recordAuditSuccess(ctx context.Context, op, entityID string, duration time.Duration) {
	s.recordAudit(ctx, op, entityID, duration, nil)
}

func (s *Service) recordAuditError(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	s.recordAudit(ctx, op, entityID, duration, err)
}

func (s *Service) recordAudit(ctx context.Context, op, entityID string, duration time.Duration, err error) {
	meta, ok := auditedOperations[op]
	if !ok {
		return
	}
	entry := AuditEntry{
		Operation: op,
		Entity:    meta.entity,
		Action:    meta.action,
		EntityID:  entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.clock.Now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)
}

// logViolations reports advisory rule findings.
func (s *Service) logViolations(op string, res Result) {
	for _, v := range res.Violations {
		s.logger.Info("rule finding", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "name", v.Name, "message", v.Message)
	}
}

// mutate runs fn in a store transaction under observe.
func (s *Service) mutate(ctx context.Context, op, entityID string, fn func(Transaction) error) (Result, error) {
	var res Result
	err := s.observe(ctx, op, entityID, func(ctx context.Context) error {
		var err error
		res, err = s.store.RunInTransaction(ctx, fn)
		return err
	})
	s.logViolations(op, res)
	return res, err
}

// Project returns the committed project.
func (s *Service) Project(ctx context.Context) (Project, error) {
	var project Project
	err := s.observe(ctx, OpProject, "", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			project = view.Project()
			return nil
		})
	})
	return project, err
}

// RenameProject sets the project name.
func (s *Service) RenameProject(ctx context.Context, name string) (Result, error) {
	return s.mutate(ctx, OpRenameProject, name, func(tx Transaction) error {
		return tx.RenameProject(name)
	})
}

// UpsertReagent inserts or replaces a reagent by name.
func (s *Service) UpsertReagent(ctx context.Context, reagent Reagent) (Reagent, Result, error) {
	var stored Reagent
	res, err := s.mutate(ctx, OpUpsertReagent, reagent.Name, func(tx Transaction) error {
		var err error
		stored, err = tx.UpsertReagent(reagent)
		return err
	})
	return stored, res, err
}

// DeleteReagent removes a reagent. Tubes keep their references.
func (s *Service) DeleteReagent(ctx context.Context, name string) (Result, error) {
	return s.mutate(ctx, OpDeleteReagent, name, func(tx Transaction) error {
		return tx.DeleteReagent(name)
	})
}

// LoadStandardReagents merges the standard panel into the catalog. Entries
// with a standard name are overwritten; other reagents are kept.
func (s *Service) LoadStandardReagents(ctx context.Context) ([]Reagent, Result, error) {
	var loaded []Reagent
	res, err := s.mutate(ctx, OpLoadStandardReagents, "", func(tx Transaction) error {
		loaded = loaded[:0]
		for _, r := range domain.StandardReagents() {
			stored, err := tx.UpsertReagent(r)
			if err != nil {
				return err
			}
			loaded = append(loaded, stored)
		}
		return nil
	})
	return loaded, res, err
}

// UpsertTube inserts or replaces a tube by name.
func (s *Service) UpsertTube(ctx context.Context, tube Tube) (Tube, Result, error) {
	var stored Tube
	res, err := s.mutate(ctx, OpUpsertTube, tube.Name, func(tx Transaction) error {
		var err error
		stored, err = tx.UpsertTube(tube)
		return err
	})
	return stored, res, err
}

// DeleteTube removes a tube.
func (s *Service) DeleteTube(ctx context.Context, name string) (Result, error) {
	return s.mutate(ctx, OpDeleteTube, name, func(tx Transaction) error {
		return tx.DeleteTube(name)
	})
}

// AddTubeReagent appends a reagent reference to a tube. The reagent does not
// have to exist in the catalog.
func (s *Service) AddTubeReagent(ctx context.Context, tube, reagent string) (Tube, Result, error) {
	var updated Tube
	res, err := s.mutate(ctx, OpAddTubeReagent, tube, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateTube(tube, func(t *Tube) error {
			if strings.TrimSpace(reagent) == "" {
				return domain.ValidationError{Entity: EntityTube, Field: "antibodies", Message: "reagent name must not be empty"}
			}
			t.AddReagent(reagent)
			return nil
		})
		return err
	})
	return updated, res, err
}

// RemoveTubeReagent drops a reagent reference from a tube.
func (s *Service) RemoveTubeReagent(ctx context.Context, tube, reagent string) (Tube, Result, error) {
	var updated Tube
	res, err := s.mutate(ctx, OpRemoveTubeReagent, tube, func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateTube(tube, func(t *Tube) error {
			t.RemoveReagent(reagent)
			return nil
		})
		return err
	})
	return updated, res, err
}

// LoadStandardTubes replaces the tube set with the standard layout.
func (s *Service) LoadStandardTubes(ctx context.Context) ([]Tube, Result, error) {
	tubes := domain.StandardTubes()
	res, err := s.mutate(ctx, OpLoadStandardTubes, "", func(tx Transaction) error {
		return tx.ReplaceTubes(tubes)
	})
	if err != nil {
		return nil, res, err
	}
	return tubes, res, nil
}

// SetVolumes replaces the project volume parameters.
func (s *Service) SetVolumes(ctx context.Context, volumes Volumes) (Volumes, Result, error) {
	var stored Volumes
	res, err := s.mutate(ctx, OpSetVolumes, "", func(tx Transaction) error {
		var err error
		stored, err = tx.SetVolumes(volumes)
		return err
	})
	return stored, res, err
}

// BuildMatrix returns the tube × reagent matrix of the project.
func (s *Service) BuildMatrix(ctx context.Context) (Matrix, error) {
	var matrix Matrix
	err := s.observe(ctx, OpBuildMatrix, "", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			var err error
			matrix, err = BuildMatrix(view.Catalog(), view.Tubes())
			return err
		})
	})
	return matrix, err
}

// ComputeMasterMix computes the master mixes. A nil params uses the project
// volumes.
func (s *Service) ComputeMasterMix(ctx context.Context, params *MasterMixParams) (MasterMixResult, error) {
	var result MasterMixResult
	err := s.observe(ctx, OpComputeMasterMix, "", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			p := ParamsFromVolumes(view.Volumes())
			if params != nil {
				p = *params
			}
			var err error
			result, err = ComputeMasterMix(view.Catalog(), view.Tubes(), p)
			return err
		})
	})
	for _, block := range result.Blocks() {
		for _, dose := range block.Unavailable() {
			s.logger.Warn("dose unavailable", "mix", string(block.Kind), "reagent", dose.Reagent, "error", dose.Err)
		}
	}
	return result, err
}

// GeneratePlan expands the experiment plan over the project's tubes.
func (s *Service) GeneratePlan(ctx context.Context, params PlanParams) (Plan, error) {
	var plan Plan
	err := s.observe(ctx, OpGeneratePlan, "", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			var err error
			plan, err = GeneratePlan(view.Catalog(), view.Tubes(), params)
			return err
		})
	})
	return plan, err
}

// Protocol renders the staining protocol. With includeMix the master-mix
// recipes computed from the project volumes are appended.
func (s *Service) Protocol(ctx context.Context, includeMix bool) (Protocol, error) {
	var protocol Protocol
	err := s.observe(ctx, OpProtocol, "", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			project := view.Project()
			var mix *MasterMixResult
			if includeMix {
				res, err := ComputeMasterMix(project.Reagents, project.Tubes, ParamsFromVolumes(project.Volumes))
				if err != nil {
					return fmt.Errorf("master mix: %w", err)
				}
				mix = &res
			}
			protocol = RenderProtocol(project, mix, s.clock.Now())
			return nil
		})
	})
	return protocol, err
}

// ImportProject replaces the stored project. A blank name keeps the current one.
func (s *Service) ImportProject(ctx context.Context, project Project) (Result, error) {
	return s.mutate(ctx, OpImportProject, project.Name, func(tx Transaction) error {
		return tx.ReplaceProject(project)
	})
}

// ExportProject returns the project stamped with the current time as its
// save time.
func (s *Service) ExportProject(ctx context.Context) (Project, error) {
	var project Project
	err := s.observe(ctx, OpExportProject, "", func(ctx context.Context) error {
		return s.store.View(ctx, func(view TransactionView) error {
			project = view.Project()
			project.SavedAt = s.clock.Now()
			return nil
		})
	})
	return project, err
}

// Check evaluates the registered rules against the committed project.
func (s *Service) Check(ctx context.Context) (Result, error) {
	var res Result
	err := s.observe(ctx, OpCheck, "", func(ctx context.Context) error {
		engine := s.store.RulesEngine()
		if engine == nil {
			return nil
		}
		return s.store.View(ctx, func(view TransactionView) error {
			var err error
			res, err = engine.Evaluate(ctx, view, nil)
			return err
		})
	})
	return res, err
}
