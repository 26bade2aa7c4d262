package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Catalogs and tube sets serialize as objects keyed by name. Object member
// order is insertion order so a save/load round trip keeps matrix column and
// row order stable.

// MarshalJSON encodes the catalog as a name keyed object in insertion order.
func (c *Catalog) MarshalJSON() ([]byte, error) {
	if c == nil {
		return []byte("{}"), nil
	}
	return marshalOrdered(c.entries.names(), func(name string) any {
		r, _ := c.entries.get(name)
		return r
	})
}

// UnmarshalJSON decodes a name keyed object, keeping member order.
func (c *Catalog) UnmarshalJSON(data []byte) error {
	out := &Catalog{entries: newOrderedMap[Reagent]()}
	err := unmarshalOrdered(data, func(key string, dec *json.Decoder) error {
		var r Reagent
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("reagent %q: %w", key, err)
		}
		if err := reconcileName(EntityReagent, key, &r.Name); err != nil {
			return err
		}
		_, err := out.Upsert(r)
		return err
	})
	if err != nil {
		return err
	}
	*c = *out
	return nil
}

// MarshalJSON encodes the tube set as a name keyed object in insertion order.
func (s *TubeSet) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return marshalOrdered(s.entries.names(), func(name string) any {
		t, _ := s.entries.get(name)
		if t.ReagentRefs == nil {
			t.ReagentRefs = []string{}
		}
		return t
	})
}

// UnmarshalJSON decodes a name keyed object, keeping member order.
func (s *TubeSet) UnmarshalJSON(data []byte) error {
	out := &TubeSet{entries: newOrderedMap[Tube]()}
	err := unmarshalOrdered(data, func(key string, dec *json.Decoder) error {
		var t Tube
		if err := dec.Decode(&t); err != nil {
			return fmt.Errorf("tube %q: %w", key, err)
		}
		if err := reconcileName(EntityTube, key, &t.Name); err != nil {
			return err
		}
		_, err := out.Upsert(t)
		return err
	})
	if err != nil {
		return err
	}
	*s = *out
	return nil
}

// MarshalYAML encodes the catalog as an ordered mapping.
func (c *Catalog) MarshalYAML() (any, error) {
	if c == nil {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	return yamlMapping(c.entries.names(), func(name string) any {
		r, _ := c.entries.get(name)
		return r
	})
}

// UnmarshalYAML decodes an ordered mapping of reagents.
func (c *Catalog) UnmarshalYAML(node *yaml.Node) error {
	out := &Catalog{entries: newOrderedMap[Reagent]()}
	err := walkMapping(node, func(key string, value *yaml.Node) error {
		var r Reagent
		if err := value.Decode(&r); err != nil {
			return fmt.Errorf("reagent %q: %w", key, err)
		}
		if err := reconcileName(EntityReagent, key, &r.Name); err != nil {
			return err
		}
		_, err := out.Upsert(r)
		return err
	})
	if err != nil {
		return err
	}
	*c = *out
	return nil
}

// MarshalYAML encodes the tube set as an ordered mapping.
func (s *TubeSet) MarshalYAML() (any, error) {
	if s == nil {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	return yamlMapping(s.entries.names(), func(name string) any {
		t, _ := s.entries.get(name)
		if t.ReagentRefs == nil {
			t.ReagentRefs = []string{}
		}
		return t
	})
}

// UnmarshalYAML decodes an ordered mapping of tubes.
func (s *TubeSet) UnmarshalYAML(node *yaml.Node) error {
	out := &TubeSet{entries: newOrderedMap[Tube]()}
	err := walkMapping(node, func(key string, value *yaml.Node) error {
		var t Tube
		if err := value.Decode(&t); err != nil {
			return fmt.Errorf("tube %q: %w", key, err)
		}
		if err := reconcileName(EntityTube, key, &t.Name); err != nil {
			return err
		}
		_, err := out.Upsert(t)
		return err
	})
	if err != nil {
		return err
	}
	*s = *out
	return nil
}

// MarshalYAML encodes the project file shape.
func (p Project) MarshalYAML() (any, error) {
	return p.record(), nil
}

// UnmarshalYAML decodes the project file shape. Missing volume keys keep
// their defaults.
func (p *Project) UnmarshalYAML(node *yaml.Node) error {
	vol := DefaultVolumes()
	rec := projectRecord{Volumes: &vol}
	if err := node.Decode(&rec); err != nil {
		return err
	}
	return p.fromRecord(rec)
}

// reconcileName fills an empty record name from its object key and rejects
// records whose name disagrees with the key.
func reconcileName(entity EntityType, key string, name *string) error {
	if *name == "" {
		*name = key
		return nil
	}
	if *name != key {
		return ValidationError{Entity: entity, Field: "name", Message: fmt.Sprintf("%q does not match key %q", *name, key)}
	}
	return nil
}

func marshalOrdered(names []string, value func(string) any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		body, err := json.Marshal(value(name))
		if err != nil {
			return nil, err
		}
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func unmarshalOrdered(data []byte, member func(key string, dec *json.Decoder) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := member(key, dec); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

func yamlMapping(names []string, value func(string) any) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, name := range names {
		var body yaml.Node
		if err := body.Encode(value(name)); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
			&body,
		)
	}
	return node, nil
}

func walkMapping(node *yaml.Node, member func(key string, value *yaml.Node) error) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := member(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
