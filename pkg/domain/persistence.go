package domain

import "context"

// TransactionView provides read-only access to snapshot data.
type TransactionView interface {
	RuleView
	ProjectName() string
	// Project returns a deep copy of the whole project.
	Project() Project
}

// Transaction exposes the project mutations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	RenameProject(name string) error
	SetVolumes(Volumes) (Volumes, error)
	UpsertReagent(Reagent) (Reagent, error)
	DeleteReagent(name string) error
	UpsertTube(Tube) (Tube, error)
	UpdateTube(name string, mutator func(*Tube) error) (Tube, error)
	DeleteTube(name string) error
	// ReplaceTubes swaps the whole tube set, keeping the given order.
	ReplaceTubes(tubes []Tube) error
	// ReplaceProject swaps every collection and the metadata at once.
	ReplaceProject(Project) error
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	Project() Project
	RulesEngine() *RulesEngine
}
