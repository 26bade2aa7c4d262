package domain

import "slices"

// orderedMap is a name keyed map that remembers insertion order. Replacing
// an existing key keeps its position.
type orderedMap[V any] struct {
	keys  []string
	items map[string]V
}

func newOrderedMap[V any]() orderedMap[V] {
	return orderedMap[V]{items: make(map[string]V)}
}

func (m *orderedMap[V]) set(key string, value V) (replaced bool) {
	if m.items == nil {
		m.items = make(map[string]V)
	}
	if _, ok := m.items[key]; ok {
		m.items[key] = value
		return true
	}
	m.keys = append(m.keys, key)
	m.items[key] = value
	return false
}

func (m *orderedMap[V]) get(key string) (V, bool) {
	v, ok := m.items[key]
	return v, ok
}

func (m *orderedMap[V]) remove(key string) bool {
	if _, ok := m.items[key]; !ok {
		return false
	}
	delete(m.items, key)
	if i := slices.Index(m.keys, key); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
	return true
}

func (m *orderedMap[V]) len() int { return len(m.keys) }

func (m *orderedMap[V]) names() []string { return slices.Clone(m.keys) }

func (m *orderedMap[V]) values(clone func(V) V) []V {
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, clone(m.items[k]))
	}
	return out
}

func (m *orderedMap[V]) clone(cloneValue func(V) V) orderedMap[V] {
	cp := orderedMap[V]{
		keys:  slices.Clone(m.keys),
		items: make(map[string]V, len(m.items)),
	}
	for k, v := range m.items {
		cp.items[k] = cloneValue(v)
	}
	return cp
}
