package domain

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber converts shell input into a float. Non-numeric text is
// rejected instead of falling back to a default.
func ParseNumber(field, text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, InvalidNumericInputError{Field: field, Value: text, Reason: "not a number"}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, InvalidNumericInputError{Field: field, Value: text, Reason: "not a finite number"}
	}
	return v, nil
}

// ParseCount converts shell input into an integer count.
func ParseCount(field, text string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, InvalidNumericInputError{Field: field, Value: text, Reason: "not an integer"}
	}
	return v, nil
}

// RequireNonNegative rejects NaN, infinities and negative values.
func RequireNonNegative(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return InvalidNumericInputError{Field: field, Value: formatFloat(v), Reason: "not a finite number"}
	}
	if v < 0 {
		return InvalidNumericInputError{Field: field, Value: formatFloat(v), Reason: "must not be negative"}
	}
	return nil
}

// RequirePositive rejects values RequireNonNegative rejects, and zero.
func RequirePositive(field string, v float64) error {
	if err := RequireNonNegative(field, v); err != nil {
		return err
	}
	if v == 0 {
		return InvalidNumericInputError{Field: field, Value: formatFloat(v), Reason: "must be greater than zero"}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
