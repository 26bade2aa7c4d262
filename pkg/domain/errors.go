package domain

import (
	"fmt"
	"strings"
)

// EmptyInputError is returned when an operation needs a non-empty catalog
// and/or tube set.
type EmptyInputError struct {
	Catalog bool // catalog was empty
	Tubes   bool // tube set was empty
}

func (e EmptyInputError) Error() string {
	var missing []string
	if e.Catalog {
		missing = append(missing, "reagent catalog")
	}
	if e.Tubes {
		missing = append(missing, "tube set")
	}
	if len(missing) == 0 {
		return "empty input"
	}
	return fmt.Sprintf("empty input: configure the %s first", strings.Join(missing, " and "))
}

// DivisionByZeroError marks a dose that cannot be computed because the
// reagent concentration is zero.
type DivisionByZeroError struct {
	Reagent string
}

func (e DivisionByZeroError) Error() string {
	return fmt.Sprintf("reagent %s has zero concentration: dose unavailable", e.Reagent)
}

// InvalidNumericInputError reports a numeric parameter that is not a number
// or lies outside its declared domain.
type InvalidNumericInputError struct {
	Field  string
	Value  string
	Reason string
}

func (e InvalidNumericInputError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// EmptyGroupsError is returned when a plan is requested without groups.
type EmptyGroupsError struct{}

func (EmptyGroupsError) Error() string { return "experiment plan needs at least one group" }

// InvalidReplicateCountError is returned when replicates < 1.
type InvalidReplicateCountError struct {
	Value int
}

func (e InvalidReplicateCountError) Error() string {
	return fmt.Sprintf("replicate count must be at least 1, got %d", e.Value)
}

// UnknownVariantError is returned when an enumeration label is not recognised.
type UnknownVariantError struct {
	Kind  string
	Label string
}

func (e UnknownVariantError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Label)
}

// NotFoundError is returned when a name keyed mutation targets an absent entry.
type NotFoundError struct {
	Entity EntityType
	Name   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Name)
}

// ValidationError reports a malformed record.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s %s", e.Entity, e.Field, e.Message)
}
