package memory

import (
	"strings"
	"time"

	"flowpanel/pkg/domain"
)

type transaction struct {
	state   Project
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *Project
}

func (v transactionView) Catalog() *domain.Catalog { return v.state.Reagents.Clone() }
func (v transactionView) Tubes() *domain.TubeSet   { return v.state.Tubes.Clone() }
func (v transactionView) Volumes() domain.Volumes  { return v.state.Volumes }
func (v transactionView) ProjectName() string      { return v.state.Name }
func (v transactionView) Project() Project         { return v.state.Clone() }

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return transactionView{state: &tx.state}
}

// RenameProject sets the project name.
func (tx *transaction) RenameProject(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.ValidationError{Entity: domain.EntityProject, Field: "name", Message: "must not be empty"}
	}
	before := tx.state.Name
	tx.state.Name = name
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Name: name, Before: before, After: name})
	return nil
}

// SetVolumes validates and stores the volume parameters.
func (tx *transaction) SetVolumes(v domain.Volumes) (domain.Volumes, error) {
	if err := v.Validate(); err != nil {
		return domain.Volumes{}, err
	}
	before := tx.state.Volumes
	tx.state.Volumes = v
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionUpdate, Name: tx.state.Name, Before: before, After: v})
	return v, nil
}

// UpsertReagent creates or overwrites a catalog entry.
func (tx *transaction) UpsertReagent(r domain.Reagent) (domain.Reagent, error) {
	before, existed := tx.state.Reagents.Get(r.Name)
	stored, err := tx.state.Reagents.Upsert(r)
	if err != nil {
		return domain.Reagent{}, err
	}
	change := Change{Entity: domain.EntityReagent, Action: domain.ActionCreate, Name: stored.Name, After: stored}
	if existed {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.recordChange(change)
	return stored, nil
}

// DeleteReagent removes a catalog entry. Tube references to it are kept and
// become dangling.
func (tx *transaction) DeleteReagent(name string) error {
	before, ok := tx.state.Reagents.Get(name)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityReagent, Name: name}
	}
	tx.state.Reagents.Delete(name)
	tx.recordChange(Change{Entity: domain.EntityReagent, Action: domain.ActionDelete, Name: name, Before: before})
	return nil
}

// UpsertTube creates or overwrites a tube configuration.
func (tx *transaction) UpsertTube(t domain.Tube) (domain.Tube, error) {
	before, existed := tx.state.Tubes.Get(t.Name)
	stored, err := tx.state.Tubes.Upsert(t)
	if err != nil {
		return domain.Tube{}, err
	}
	change := Change{Entity: domain.EntityTube, Action: domain.ActionCreate, Name: stored.Name, After: stored}
	if existed {
		change.Action = domain.ActionUpdate
		change.Before = before
	}
	tx.recordChange(change)
	return stored, nil
}

// UpdateTube mutates a tube using the provided mutator function.
func (tx *transaction) UpdateTube(name string, mutator func(*domain.Tube) error) (domain.Tube, error) {
	before, _ := tx.state.Tubes.Get(name)
	updated, err := tx.state.Tubes.Update(name, mutator)
	if err != nil {
		return domain.Tube{}, err
	}
	tx.recordChange(Change{Entity: domain.EntityTube, Action: domain.ActionUpdate, Name: name, Before: before, After: updated})
	return updated, nil
}

// DeleteTube removes a tube configuration.
func (tx *transaction) DeleteTube(name string) error {
	before, ok := tx.state.Tubes.Get(name)
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTube, Name: name}
	}
	tx.state.Tubes.Delete(name)
	tx.recordChange(Change{Entity: domain.EntityTube, Action: domain.ActionDelete, Name: name, Before: before})
	return nil
}

// ReplaceTubes swaps the tube set.
func (tx *transaction) ReplaceTubes(tubes []domain.Tube) error {
	next, err := domain.NewTubeSet(tubes...)
	if err != nil {
		return err
	}
	before := tx.state.Tubes.List()
	tx.state.Tubes = next
	tx.recordChange(Change{Entity: domain.EntityTube, Action: domain.ActionReplace, Before: before, After: next.List()})
	return nil
}

// ReplaceProject swaps the whole project. An empty name keeps the current one.
func (tx *transaction) ReplaceProject(p Project) error {
	if err := p.Volumes.Validate(); err != nil {
		return err
	}
	next := p.Clone()
	if strings.TrimSpace(next.Name) == "" {
		next.Name = tx.state.Name
	}
	tx.recordChange(Change{Entity: domain.EntityProject, Action: domain.ActionReplace, Name: next.Name, Before: tx.state.Name, After: next.Name})
	tx.state = next
	return nil
}
