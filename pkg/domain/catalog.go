package domain

// Catalog holds the reagents of a project keyed by name, in insertion order.
// Insertion order drives matrix column order.
type Catalog struct {
	entries orderedMap[Reagent]
}

// NewCatalog builds a catalog from reagents in the given order.
func NewCatalog(reagents ...Reagent) (*Catalog, error) {
	c := &Catalog{entries: newOrderedMap[Reagent]()}
	for _, r := range reagents {
		if _, err := c.Upsert(r); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Upsert validates and stores the reagent. Re-adding a name overwrites the
// prior entry in place. The stored (normalized) reagent is returned.
func (c *Catalog) Upsert(r Reagent) (Reagent, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return Reagent{}, err
	}
	c.entries.set(r.Name, r)
	return r, nil
}

// Get returns the reagent stored under name.
func (c *Catalog) Get(name string) (Reagent, bool) {
	if c == nil {
		return Reagent{}, false
	}
	return c.entries.get(name)
}

// Has reports whether name is present in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Delete removes name, reporting whether it was present.
func (c *Catalog) Delete(name string) bool {
	if c == nil {
		return false
	}
	return c.entries.remove(name)
}

// Names returns reagent names in insertion order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	return c.entries.names()
}

// List returns copies of the reagents in insertion order.
func (c *Catalog) List() []Reagent {
	if c == nil {
		return nil
	}
	return c.entries.values(cloneReagent)
}

// Len returns the number of reagents.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.len()
}

// Clone returns a deep copy. Cloning nil yields an empty catalog.
func (c *Catalog) Clone() *Catalog {
	if c == nil {
		return &Catalog{entries: newOrderedMap[Reagent]()}
	}
	return &Catalog{entries: c.entries.clone(cloneReagent)}
}
