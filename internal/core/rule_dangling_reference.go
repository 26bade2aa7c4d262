package core

import (
	"context"
	"fmt"

	"flowpanel/pkg/domain"
)

// NewDanglingReferenceRule reports tube references to reagents missing from
// the catalog. Such references are valid and only logged.
func NewDanglingReferenceRule() domain.Rule {
	return danglingReferenceRule{}
}

type danglingReferenceRule struct{}

func (danglingReferenceRule) Name() string { return "dangling_reference" }

func (danglingReferenceRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	catalog := view.Catalog()
	res := domain.Result{}
	for _, tube := range view.Tubes().List() {
		for _, ref := range tube.ReagentRefs {
			if catalog.Has(ref) {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "dangling_reference",
				Severity: domain.SeverityLog,
				Message:  fmt.Sprintf("tube %s references %q which is not in the catalog", tube.Name, ref),
				Entity:   domain.EntityTube,
				Name:     tube.Name,
			})
		}
	}
	return res, nil
}
