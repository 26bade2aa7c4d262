package domain

import (
	"fmt"
	"strings"
)

// ReagentType classifies a reagent and decides which master mix doses it.
type ReagentType uint8

// Closed set of reagent types. The zero value is ReagentSurface.
const (
	ReagentSurface ReagentType = iota
	ReagentIntracellular
	ReagentViability
	ReagentFcBlock
	ReagentOther
)

var reagentTypeLabels = map[ReagentType]string{
	ReagentSurface:       "Surface",
	ReagentIntracellular: "Intracellular",
	ReagentViability:     "Viability",
	ReagentFcBlock:       "FcBlock",
	ReagentOther:         "Other",
}

// legacyReagentTypeLabels maps the labels found in older project files.
var legacyReagentTypeLabels = map[string]ReagentType{
	"表面抗体":       ReagentSurface,
	"胞内抗体":       ReagentIntracellular,
	"死活染料":       ReagentViability,
	"Fc阻断剂":     ReagentFcBlock,
	"其他":           ReagentOther,
	"fc block": ReagentFcBlock,
}

var reagentTypeByLabel = invertLabels(reagentTypeLabels)

// ReagentTypes lists every variant in declaration order.
func ReagentTypes() []ReagentType {
	return []ReagentType{ReagentSurface, ReagentIntracellular, ReagentViability, ReagentFcBlock, ReagentOther}
}

// ParseReagentType resolves a label (case-insensitive, legacy labels
// accepted) to its variant.
func ParseReagentType(label string) (ReagentType, error) {
	key := strings.ToLower(strings.TrimSpace(label))
	if t, ok := reagentTypeByLabel[key]; ok {
		return t, nil
	}
	if t, ok := legacyReagentTypeLabels[key]; ok {
		return t, nil
	}
	if t, ok := legacyReagentTypeLabels[strings.TrimSpace(label)]; ok {
		return t, nil
	}
	return 0, UnknownVariantError{Kind: "reagent type", Label: label}
}

// Valid reports whether t is a declared variant.
func (t ReagentType) Valid() bool {
	_, ok := reagentTypeLabels[t]
	return ok
}

func (t ReagentType) String() string {
	if label, ok := reagentTypeLabels[t]; ok {
		return label
	}
	return fmt.Sprintf("ReagentType(%d)", uint8(t))
}

// MarshalText encodes the canonical label.
func (t ReagentType) MarshalText() ([]byte, error) {
	label, ok := reagentTypeLabels[t]
	if !ok {
		return nil, UnknownVariantError{Kind: "reagent type", Label: t.String()}
	}
	return []byte(label), nil
}

// UnmarshalText decodes a label, failing on unknown labels.
func (t *ReagentType) UnmarshalText(text []byte) error {
	parsed, err := ParseReagentType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MixKind names the master mix a reagent type is dosed through.
type MixKind string

// Mix kinds. MixNone reagents appear in the matrix and plan but never in a volume computation.
const (
	MixSurface       MixKind = "surface"
	MixIntracellular MixKind = "intracellular"
	MixNone          MixKind = "none"
)

// Mix reports the mix the type belongs to.
func (t ReagentType) Mix() MixKind {
	switch t {
	case ReagentSurface, ReagentViability, ReagentFcBlock:
		return MixSurface
	case ReagentIntracellular:
		return MixIntracellular
	default:
		return MixNone
	}
}

// ControlType classifies a control tube.
type ControlType uint8

// Control tube classifications. ControlNone serializes as the empty label.
const (
	ControlNone ControlType = iota
	ControlFMO
	ControlIsotype
	ControlSingle
	ControlBlank
)

var controlTypeLabels = map[ControlType]string{
	ControlNone:    "",
	ControlFMO:     "FMO",
	ControlIsotype: "Isotype",
	ControlSingle:  "Single",
	ControlBlank:   "Blank",
}

var controlTypeByLabel = invertLabels(controlTypeLabels)

// ControlTypes lists every control classification except ControlNone.
func ControlTypes() []ControlType {
	return []ControlType{ControlFMO, ControlIsotype, ControlSingle, ControlBlank}
}

// ParseControlType resolves a label (case-insensitive) to its variant.
func ParseControlType(label string) (ControlType, error) {
	if c, ok := controlTypeByLabel[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c, nil
	}
	return 0, UnknownVariantError{Kind: "control type", Label: label}
}

// Valid reports whether c is a declared variant.
func (c ControlType) Valid() bool {
	_, ok := controlTypeLabels[c]
	return ok
}

func (c ControlType) String() string {
	if label, ok := controlTypeLabels[c]; ok {
		return label
	}
	return fmt.Sprintf("ControlType(%d)", uint8(c))
}

// MarshalText encodes the canonical label.
func (c ControlType) MarshalText() ([]byte, error) {
	label, ok := controlTypeLabels[c]
	if !ok {
		return nil, UnknownVariantError{Kind: "control type", Label: c.String()}
	}
	return []byte(label), nil
}

// UnmarshalText decodes a label, failing on unknown labels.
func (c *ControlType) UnmarshalText(text []byte) error {
	parsed, err := ParseControlType(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func invertLabels[T comparable](labels map[T]string) map[string]T {
	out := make(map[string]T, len(labels))
	for v, label := range labels {
		out[strings.ToLower(label)] = v
	}
	return out
}
