package core

import (
	"context"
	"fmt"

	"flowpanel/pkg/domain"
)

// NewZeroConcentrationRule warns about referenced reagents whose
// concentration is unset, since their dose cannot be computed.
func NewZeroConcentrationRule() domain.Rule {
	return zeroConcentrationRule{}
}

type zeroConcentrationRule struct{}

func (zeroConcentrationRule) Name() string { return "zero_concentration" }

func (zeroConcentrationRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	referenced := make(map[string]struct{})
	for _, tube := range view.Tubes().List() {
		for _, ref := range tube.ReagentRefs {
			referenced[ref] = struct{}{}
		}
	}
	res := domain.Result{}
	for _, reagent := range view.Catalog().List() {
		if _, ok := referenced[reagent.Name]; !ok || reagent.Concentration != 0 || reagent.Mix() == domain.MixNone {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "zero_concentration",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("reagent %s has no concentration; its dose will be unavailable", reagent.Name),
			Entity:   domain.EntityReagent,
			Name:     reagent.Name,
		})
	}
	return res, nil
}
