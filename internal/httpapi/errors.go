package httpapi

import (
	"errors"
	"net/http"

	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

type errorResponse struct {
	Error      string             `json:"error"`
	Kind       string             `json:"kind,omitempty"`
	Violations []domain.Violation `json:"violations,omitempty"`
}

// statusFor maps an engine error kind onto an HTTP status. Malformed input
// is a 400; well formed requests the engine cannot satisfy are a 422.
func statusFor(kind string) int {
	switch kind {
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindInvalidNumeric, core.KindUnknownVariant, core.KindValidation:
		return http.StatusBadRequest
	case core.KindEmptyInput, core.KindDivisionByZero, core.KindEmptyGroups, core.KindInvalidReplicate, core.KindRuleViolation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := core.ErrorKind(err)
	status := statusFor(kind)
	resp := errorResponse{Error: err.Error(), Kind: kind}
	var ruleErr domain.RuleViolationError
	if errors.As(err, &ruleErr) {
		resp.Violations = ruleErr.Result.Violations
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, resp)
}
