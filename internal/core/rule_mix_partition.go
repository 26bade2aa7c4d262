package core

import (
	"context"
	"fmt"

	"flowpanel/pkg/domain"
)

// NewMixPartitionRule warns about reagents that the master mix calculation
// will not dose for a tube: mixes are chosen per tube from its fixation flag,
// so a surface reagent in a fixed tube or an intracellular reagent in an
// unfixed tube is left out of both mixes.
func NewMixPartitionRule() domain.Rule {
	return mixPartitionRule{}
}

type mixPartitionRule struct{}

func (mixPartitionRule) Name() string { return "mix_partition" }

func (mixPartitionRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	catalog := view.Catalog()
	res := domain.Result{}
	for _, tube := range view.Tubes().List() {
		want := domain.MixSurface
		if tube.NeedsFixation {
			want = domain.MixIntracellular
		}
		for _, ref := range tube.ReagentRefs {
			reagent, ok := catalog.Get(ref)
			if !ok {
				continue
			}
			mix := reagent.Mix()
			if mix == domain.MixNone || mix == want {
				continue
			}
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "mix_partition",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%s reagent %s in tube %s is not dosed by the %s mix", reagent.Type, reagent.Name, tube.Name, want),
				Entity:   domain.EntityTube,
				Name:     tube.Name,
			})
		}
	}
	return res, nil
}
