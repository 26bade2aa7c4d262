package core

import (
	"errors"

	"flowpanel/pkg/domain"
)

// Error kinds reported in traces and API responses.
const (
	KindEmptyInput       = "empty_input"
	KindDivisionByZero   = "division_by_zero"
	KindInvalidNumeric   = "invalid_numeric_input"
	KindEmptyGroups      = "empty_groups"
	KindInvalidReplicate = "invalid_replicate_count"
	KindUnknownVariant   = "unknown_variant"
	KindNotFound         = "not_found"
	KindValidation       = "validation"
	KindRuleViolation    = "rule_violation"
	KindInternal         = "internal"
)

// ErrorKind classifies err by the typed engine error it wraps. It returns ""
// for nil.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	var (
		emptyInput domain.EmptyInputError
		divZero    domain.DivisionByZeroError
		numeric    domain.InvalidNumericInputError
		groups     domain.EmptyGroupsError
		replicates domain.InvalidReplicateCountError
		variant    domain.UnknownVariantError
		notFound   domain.NotFoundError
		validation domain.ValidationError
		violation  domain.RuleViolationError
	)
	switch {
	case errors.As(err, &emptyInput):
		return KindEmptyInput
	case errors.As(err, &divZero):
		return KindDivisionByZero
	case errors.As(err, &numeric):
		return KindInvalidNumeric
	case errors.As(err, &groups):
		return KindEmptyGroups
	case errors.As(err, &replicates):
		return KindInvalidReplicate
	case errors.As(err, &variant):
		return KindUnknownVariant
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &validation):
		return KindValidation
	case errors.As(err, &violation):
		return KindRuleViolation
	default:
		return KindInternal
	}
}
