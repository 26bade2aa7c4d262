// Package domain defines the reagent and tube records, the ordered
// collections holding them, and the rule evaluation primitives used by
// flowpanel.
package domain

import (
	"strings"
	"unicode"
)

// EntityType identifies the type of record stored in a project.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityReagent identifies an antibody or dye record in the catalog.
	EntityReagent EntityType = "reagent"
	// EntityTube identifies a tube configuration record.
	EntityTube EntityType = "tube"
	// EntityProject identifies project level metadata (name, volumes).
	EntityProject EntityType = "project"
)

// DefaultStorage is the storage note carried by newly entered reagents.
const DefaultStorage = "4°C, protect from light"

// shortNamePrefix bounds the derived short name of single-word reagent names.
const shortNamePrefix = 10

// Reagent is an antibody or dye entry of the catalog. Name is the join key
// used by every downstream computation.
type Reagent struct {
	Name           string      `json:"name" yaml:"name"`
	ShortName      string      `json:"short_name" yaml:"short_name"`
	Fluorochrome   string      `json:"fluorochrome" yaml:"fluorochrome"`
	Target         string      `json:"target" yaml:"target"`
	Clone          string      `json:"clone" yaml:"clone"`
	Concentration  float64     `json:"concentration" yaml:"concentration"`     // μg/mL, 0 means unset
	RecommendedUse float64     `json:"recommended_use" yaml:"recommended_use"` // μg per 10⁶ cells
	Type           ReagentType `json:"type" yaml:"type"`
	CatalogNumber  string      `json:"catalog_number" yaml:"catalog_number"`
	LotNumber      string      `json:"lot_number" yaml:"lot_number"`
	Storage        string      `json:"storage" yaml:"storage"`
	Notes          string      `json:"notes" yaml:"notes"`
}

// DeriveShortName returns the display alias used when none is supplied: the
// last whitespace separated token of name, or its first ten characters when
// name is a single word.
func DeriveShortName(name string) string {
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		fields := strings.Fields(name)
		if len(fields) == 0 {
			return ""
		}
		return fields[len(fields)-1]
	}
	runes := []rune(name)
	if len(runes) > shortNamePrefix {
		runes = runes[:shortNamePrefix]
	}
	return string(runes)
}

// Normalize fills derived fields.
func (r *Reagent) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if strings.TrimSpace(r.ShortName) == "" {
		r.ShortName = DeriveShortName(r.Name)
	}
}

// Validate checks the reagent against the catalog invariants.
func (r Reagent) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ValidationError{Entity: EntityReagent, Field: "name", Message: "must not be empty"}
	}
	if err := RequireNonNegative("concentration", r.Concentration); err != nil {
		return err
	}
	if err := RequireNonNegative("recommended_use", r.RecommendedUse); err != nil {
		return err
	}
	if !r.Type.Valid() {
		return UnknownVariantError{Kind: "reagent type", Label: r.Type.String()}
	}
	return nil
}

// Mix reports which master mix the reagent is dosed through.
func (r Reagent) Mix() MixKind {
	return r.Type.Mix()
}

// Tube is a sample tube configuration. ReagentRefs are weak references by
// reagent name and may point at names absent from the catalog.
type Tube struct {
	Name          string      `json:"name" yaml:"name"`
	Description   string      `json:"description" yaml:"description"`
	ReagentRefs   []string    `json:"antibodies" yaml:"antibodies"`
	NeedsFixation bool        `json:"needs_fixation" yaml:"needs_fixation"`
	IsControl     bool        `json:"is_control" yaml:"is_control"`
	ControlType   ControlType `json:"control_type" yaml:"control_type"`
}

// ExperimentalLabel is the classification shown for non-control tubes.
const ExperimentalLabel = "Experimental"

// AddReagent appends name to the tube's references unless already present.
func (t *Tube) AddReagent(name string) bool {
	if t.HasReagent(name) {
		return false
	}
	t.ReagentRefs = append(t.ReagentRefs, name)
	return true
}

// RemoveReagent drops name from the references. Removing an absent name is a no-op.
func (t *Tube) RemoveReagent(name string) bool {
	for i, ref := range t.ReagentRefs {
		if ref == name {
			t.ReagentRefs = append(t.ReagentRefs[:i:i], t.ReagentRefs[i+1:]...)
			return true
		}
	}
	return false
}

// HasReagent reports whether name is referenced by the tube.
func (t Tube) HasReagent(name string) bool {
	for _, ref := range t.ReagentRefs {
		if ref == name {
			return true
		}
	}
	return false
}

// ControlLabel returns the control classification, or ExperimentalLabel for
// experimental tubes.
func (t Tube) ControlLabel() string {
	if !t.IsControl {
		return ExperimentalLabel
	}
	return t.ControlType.String()
}

// Normalize trims the name and removes duplicate references keeping the
// first occurrence.
func (t *Tube) Normalize() {
	t.Name = strings.TrimSpace(t.Name)
	if len(t.ReagentRefs) == 0 {
		t.ReagentRefs = nil
		return
	}
	seen := make(map[string]struct{}, len(t.ReagentRefs))
	refs := make([]string, 0, len(t.ReagentRefs))
	for _, ref := range t.ReagentRefs {
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	t.ReagentRefs = refs
}

// Validate checks the tube against the tube set invariants.
func (t Tube) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ValidationError{Entity: EntityTube, Field: "name", Message: "must not be empty"}
	}
	if !t.ControlType.Valid() {
		return UnknownVariantError{Kind: "control type", Label: t.ControlType.String()}
	}
	return nil
}

func cloneTube(t Tube) Tube {
	cp := t
	cp.ReagentRefs = append([]string(nil), t.ReagentRefs...)
	if len(cp.ReagentRefs) == 0 {
		cp.ReagentRefs = nil
	}
	return cp
}

func cloneReagent(r Reagent) Reagent { return r }

// Change describes a mutation recorded during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Name   string
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured in the audit trail.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	// ActionReplace indicates a whole collection was swapped (standard sets, imports).
	ActionReplace Action = "replace"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string     `json:"rule"`
	Severity Severity   `json:"severity"`
	Message  string     `json:"message"`
	Entity   EntityType `json:"entity"`
	Name     string     `json:"name,omitempty"`
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
