// Package memory provides an in-memory implementation of the project store
// used for tests, ephemeral sessions and as the transactional core of the
// snapshotting backends.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"flowpanel/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Project aliases domain.Project.
	Project = domain.Project
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// Snapshot captures a point-in-time clone of the store state.
type Snapshot = domain.Project

// Store provides an in-memory transactional store for a single project.
type Store struct {
	mu     sync.RWMutex
	state  Project
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
// The project starts empty, named from the current time.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	nowFn := func() time.Time { return time.Now().UTC() }
	return &Store{
		state:  domain.NewProject(domain.DefaultProjectName(nowFn())),
		engine: engine,
		nowFn:  nowFn,
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// ImportState replaces the store state with the provided snapshot. An empty
// snapshot name keeps the current project name.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := snapshot.Clone()
	if strings.TrimSpace(next.Name) == "" {
		next.Name = s.state.Name
	}
	s.state = next
}

// Project returns a copy of the committed project.
func (s *Store) Project() Project {
	return s.ExportState()
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// RunInTransaction runs fn against a private copy of the state. The copy is
// committed when fn succeeds and no rule reports a blocking violation.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.Clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, transactionView{state: &tx.state}, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.Clone()
	s.mu.RUnlock()
	return fn(transactionView{state: &snapshot})
}
