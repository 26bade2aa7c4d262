package domain

// TubeSet holds tube configurations keyed by name, in insertion order.
// Insertion order drives matrix row order and plan iteration order.
type TubeSet struct {
	entries orderedMap[Tube]
}

// NewTubeSet builds a tube set from tubes in the given order.
func NewTubeSet(tubes ...Tube) (*TubeSet, error) {
	s := &TubeSet{entries: newOrderedMap[Tube]()}
	for _, t := range tubes {
		if _, err := s.Upsert(t); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Upsert validates and stores the tube, replacing an existing entry in place.
func (s *TubeSet) Upsert(t Tube) (Tube, error) {
	t = cloneTube(t)
	t.Normalize()
	if err := t.Validate(); err != nil {
		return Tube{}, err
	}
	s.entries.set(t.Name, t)
	return cloneTube(t), nil
}

// Get returns a copy of the tube stored under name.
func (s *TubeSet) Get(name string) (Tube, bool) {
	if s == nil {
		return Tube{}, false
	}
	t, ok := s.entries.get(name)
	if !ok {
		return Tube{}, false
	}
	return cloneTube(t), true
}

// Delete removes name, reporting whether it was present.
func (s *TubeSet) Delete(name string) bool {
	if s == nil {
		return false
	}
	return s.entries.remove(name)
}

// Update applies mutator to the named tube and stores the result. The tube
// name cannot be changed through Update.
func (s *TubeSet) Update(name string, mutator func(*Tube) error) (Tube, error) {
	current, ok := s.Get(name)
	if !ok {
		return Tube{}, NotFoundError{Entity: EntityTube, Name: name}
	}
	if err := mutator(&current); err != nil {
		return Tube{}, err
	}
	current.Name = name
	return s.Upsert(current)
}

// AddReagent adds a reagent reference to the named tube. Adding a name that
// is already referenced leaves the tube unchanged.
func (s *TubeSet) AddReagent(tube, reagent string) (Tube, error) {
	return s.Update(tube, func(t *Tube) error {
		t.AddReagent(reagent)
		return nil
	})
}

// RemoveReagent drops a reagent reference from the named tube. Removing an
// absent reference is a no-op.
func (s *TubeSet) RemoveReagent(tube, reagent string) (Tube, error) {
	return s.Update(tube, func(t *Tube) error {
		t.RemoveReagent(reagent)
		return nil
	})
}

// Names returns tube names in insertion order.
func (s *TubeSet) Names() []string {
	if s == nil {
		return nil
	}
	return s.entries.names()
}

// List returns copies of the tubes in insertion order.
func (s *TubeSet) List() []Tube {
	if s == nil {
		return nil
	}
	return s.entries.values(cloneTube)
}

// Len returns the number of tubes.
func (s *TubeSet) Len() int {
	if s == nil {
		return 0
	}
	return s.entries.len()
}

// Clone returns a deep copy. Cloning nil yields an empty set.
func (s *TubeSet) Clone() *TubeSet {
	if s == nil {
		return &TubeSet{entries: newOrderedMap[Tube]()}
	}
	return &TubeSet{entries: s.entries.clone(cloneTube)}
}
