package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"flowpanel/pkg/domain"

	"github.com/google/go-cmp/cmp"
)

func defaultParams() MasterMixParams {
	return ParamsFromVolumes(domain.DefaultVolumes())
}

func TestComputeMasterMixSingleReagent(t *testing.T) {
	catalog := mustCatalog(t, domain.Reagent{Name: "CD45", Concentration: 200, RecommendedUse: 0.25})
	tubes := mustTubes(t, domain.Tube{Name: "T1", ReagentRefs: []string{"CD45"}})

	res, err := ComputeMasterMix(catalog, tubes, defaultParams())
	if err != nil {
		t.Fatalf("ComputeMasterMix: %v", err)
	}
	if res.Intracellular != nil {
		t.Fatalf("expected no intracellular block, got %+v", res.Intracellular)
	}
	block := res.Surface
	if block == nil || block.TubeCount != 1 || block.TotalTubes != 3 {
		t.Fatalf("unexpected surface block %+v", block)
	}
	if !approx(block.TotalVolume, 300) {
		t.Fatalf("expected 300 μL total, got %v", block.TotalVolume)
	}
	if len(block.Doses) != 1 {
		t.Fatalf("expected one dose, got %d", len(block.Doses))
	}
	dose := block.Doses[0]
	if !dose.Available || !approx(dose.PerTube, 0.00125) || !approx(dose.Total, 0.00375) {
		t.Fatalf("unexpected dose %+v", dose)
	}
	if !approx(block.DiluentVolume, 300-0.00375) {
		t.Fatalf("unexpected diluent %v", block.DiluentVolume)
	}
}

func TestComputeMasterMixStandardPanel(t *testing.T) {
	res, err := ComputeMasterMix(standardCatalog(t), standardTubes(t), defaultParams())
	if err != nil {
		t.Fatalf("ComputeMasterMix: %v", err)
	}
	if diff := cmp.Diff([]string{"FcX_Only", "Live_Only", "CD45_Only", "FMO_αSMA"}, res.Surface.Tubes); diff != "" {
		t.Fatalf("surface tubes mismatch (-want +got):\n%s", diff)
	}
	if res.Surface.TotalTubes != 6 {
		t.Fatalf("expected 6 surface tubes incl. extras, got %d", res.Surface.TotalTubes)
	}
	var names []string
	for _, d := range res.Surface.Doses {
		names = append(names, d.Reagent)
	}
	if diff := cmp.Diff([]string{domain.StandardFcBlock, domain.StandardViability, domain.StandardCD45}, names); diff != "" {
		t.Fatalf("surface doses must be deduplicated in first-seen order (-want +got):\n%s", diff)
	}
	intra := res.Intracellular
	if intra == nil || intra.TubeCount != 2 || intra.TotalTubes != 4 || !approx(intra.TotalVolume, 200) {
		t.Fatalf("unexpected intracellular block %+v", intra)
	}
	if len(intra.Doses) != 1 || intra.Doses[0].Reagent != domain.StandardAlphaSMA {
		t.Fatalf("intracellular mix must dose only intracellular reagents, got %+v", intra.Doses)
	}
	if !approx(intra.Doses[0].PerTube, 0.0025) || !approx(intra.Doses[0].Total, 0.01) {
		t.Fatalf("unexpected α-SMA dose %+v", intra.Doses[0])
	}
	if got := len(res.Blocks()); got != 2 {
		t.Fatalf("expected two blocks, got %d", got)
	}
}

func TestComputeMasterMixZeroConcentration(t *testing.T) {
	catalog := mustCatalog(t,
		domain.Reagent{Name: "Unset", RecommendedUse: 1},
		domain.Reagent{Name: "CD45", Concentration: 200, RecommendedUse: 0.25},
	)
	tubes := mustTubes(t, domain.Tube{Name: "T1", ReagentRefs: []string{"Unset", "CD45"}})
	res, err := ComputeMasterMix(catalog, tubes, defaultParams())
	if err != nil {
		t.Fatalf("zero concentration must not fail the computation: %v", err)
	}
	unavailable := res.Surface.Unavailable()
	if len(unavailable) != 1 || unavailable[0].Reagent != "Unset" {
		t.Fatalf("expected Unset to be unavailable, got %+v", unavailable)
	}
	if !IsDoseUnavailable(unavailable[0].Err) {
		t.Fatalf("expected DivisionByZeroError, got %v", unavailable[0].Err)
	}
	if !res.Surface.Doses[1].Available {
		t.Fatalf("other reagents must still be dosed")
	}
	if !approx(res.Surface.DiluentVolume, 300-0.00375) {
		t.Fatalf("unavailable doses must not count toward the reagent total, got %v", res.Surface.DiluentVolume)
	}

	data, err := json.Marshal(res.Surface.Doses[0])
	if err != nil {
		t.Fatalf("marshal dose: %v", err)
	}
	if !strings.Contains(string(data), `"per_tube_ul":null`) || !strings.Contains(string(data), `"available":false`) {
		t.Fatalf("unexpected dose json %s", data)
	}
	if !strings.Contains(formatDose(res.Surface.Doses[0]), "unavailable") {
		t.Fatalf("expected unavailable rendering")
	}
}

func TestComputeMasterMixSkipsOtherMixAndDangling(t *testing.T) {
	catalog := mustCatalog(t,
		domain.Reagent{Name: "Surface", Concentration: 100, RecommendedUse: 1},
		domain.Reagent{Name: "Intra", Concentration: 100, RecommendedUse: 1, Type: domain.ReagentIntracellular},
		domain.Reagent{Name: "Misc", Concentration: 100, RecommendedUse: 1, Type: domain.ReagentOther},
	)
	tubes := mustTubes(t,
		domain.Tube{Name: "Blank"},
		domain.Tube{Name: "Fixed", ReagentRefs: []string{"Surface", "Intra", "Misc", "Ghost"}, NeedsFixation: true},
	)
	res, err := ComputeMasterMix(catalog, tubes, defaultParams())
	if err != nil {
		t.Fatalf("ComputeMasterMix: %v", err)
	}
	if res.Surface != nil {
		t.Fatalf("tubes without references or fixation are excluded, got %+v", res.Surface)
	}
	if len(res.Intracellular.Doses) != 1 || res.Intracellular.Doses[0].Reagent != "Intra" {
		t.Fatalf("unexpected intracellular doses %+v", res.Intracellular.Doses)
	}
}

func TestComputeMasterMixRejectsInvalidParams(t *testing.T) {
	tubes := mustTubes(t, domain.Tube{Name: "T1", ReagentRefs: []string{"A"}})
	params := defaultParams()
	params.CellCount = 0
	_, err := ComputeMasterMix(mustCatalog(t), tubes, params)
	var numeric domain.InvalidNumericInputError
	if !errors.As(err, &numeric) || numeric.Field != "cell_count" {
		t.Fatalf("expected invalid cell_count, got %v", err)
	}
	params = defaultParams()
	params.ExtraTubes = -1
	if _, err := ComputeMasterMix(mustCatalog(t), tubes, params); !errors.As(err, &numeric) {
		t.Fatalf("expected invalid extra_tubes, got %v", err)
	}
}

func TestComputeMasterMixEmptyInputs(t *testing.T) {
	res, err := ComputeMasterMix(mustCatalog(t), mustTubes(t), defaultParams())
	if err != nil {
		t.Fatalf("empty inputs produce empty mixes: %v", err)
	}
	if len(res.Blocks()) != 0 {
		t.Fatalf("expected no blocks, got %d", len(res.Blocks()))
	}
}

func TestComputeMasterMixStableUnderReagentReordering(t *testing.T) {
	catalog := mustCatalog(t,
		domain.Reagent{Name: "A", Concentration: 200, RecommendedUse: 0.25, Type: domain.ReagentSurface},
		domain.Reagent{Name: "B", Concentration: 1000, RecommendedUse: 0.5, Type: domain.ReagentViability},
		domain.Reagent{Name: "C", Concentration: 500, RecommendedUse: 1, Type: domain.ReagentFcBlock},
		domain.Reagent{Name: "Z", RecommendedUse: 1, Type: domain.ReagentSurface},
		domain.Reagent{Name: "I1", Concentration: 200, RecommendedUse: 0.5, Type: domain.ReagentIntracellular},
		domain.Reagent{Name: "I2", Concentration: 100, RecommendedUse: 0.2, Type: domain.ReagentIntracellular},
	)
	cases := []struct {
		name     string
		original []domain.Tube
		reversed []domain.Tube
	}{
		{
			name:     "single tube",
			original: []domain.Tube{{Name: "T1", ReagentRefs: []string{"A", "B"}}},
			reversed: []domain.Tube{{Name: "T1", ReagentRefs: []string{"B", "A"}}},
		},
		{
			name: "shared reagents across tubes",
			original: []domain.Tube{
				{Name: "T1", ReagentRefs: []string{"A", "B"}},
				{Name: "T2", ReagentRefs: []string{"B", "C"}},
			},
			reversed: []domain.Tube{
				{Name: "T1", ReagentRefs: []string{"B", "A"}},
				{Name: "T2", ReagentRefs: []string{"C", "B"}},
			},
		},
		{
			name: "fixed tube with unavailable and dangling refs",
			original: []domain.Tube{
				{Name: "T1", ReagentRefs: []string{"A", "Z", "Ghost", "C"}},
				{Name: "Fix", ReagentRefs: []string{"I1", "I2", "A"}, NeedsFixation: true},
			},
			reversed: []domain.Tube{
				{Name: "T1", ReagentRefs: []string{"C", "Ghost", "Z", "A"}},
				{Name: "Fix", ReagentRefs: []string{"A", "I2", "I1"}, NeedsFixation: true},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			want, err := ComputeMasterMix(catalog, mustTubes(t, tc.original...), defaultParams())
			if err != nil {
				t.Fatalf("ComputeMasterMix original: %v", err)
			}
			got, err := ComputeMasterMix(catalog, mustTubes(t, tc.reversed...), defaultParams())
			if err != nil {
				t.Fatalf("ComputeMasterMix reordered: %v", err)
			}
			assertSameBlock(t, "surface", want.Surface, got.Surface)
			assertSameBlock(t, "intracellular", want.Intracellular, got.Intracellular)
		})
	}
}

// assertSameBlock compares two mix blocks ignoring dose order.
func assertSameBlock(t *testing.T, label string, want, got *MixBlock) {
	t.Helper()
	if (want == nil) != (got == nil) {
		t.Fatalf("%s: block presence differs: want %v got %v", label, want != nil, got != nil)
	}
	if want == nil {
		return
	}
	if want.TotalTubes != got.TotalTubes || !approx(want.TotalVolume, got.TotalVolume) {
		t.Fatalf("%s: totals differ: want %d/%v got %d/%v", label, want.TotalTubes, want.TotalVolume, got.TotalTubes, got.TotalVolume)
	}
	if !approx(want.DiluentVolume, got.DiluentVolume) {
		t.Fatalf("%s: diluent differs: want %v got %v", label, want.DiluentVolume, got.DiluentVolume)
	}
	if len(want.Doses) != len(got.Doses) {
		t.Fatalf("%s: dose count differs: want %d got %d", label, len(want.Doses), len(got.Doses))
	}
	byName := make(map[string]Dose, len(got.Doses))
	for _, d := range got.Doses {
		byName[d.Reagent] = d
	}
	for _, w := range want.Doses {
		g, ok := byName[w.Reagent]
		if !ok {
			t.Fatalf("%s: dose %q missing after reordering", label, w.Reagent)
		}
		if w.Available != g.Available || !approx(w.PerTube, g.PerTube) || !approx(w.Total, g.Total) {
			t.Fatalf("%s: dose %q differs: want %+v got %+v", label, w.Reagent, w, g)
		}
	}
}
