package core

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"

	"flowpanel/pkg/domain"
)

// DefaultPlanSeed is the shuffle seed used when none is supplied, so a
// randomized run order is reproducible across runs.
const DefaultPlanSeed uint64 = 42

// DefaultReplicates is the replicate count offered by the shells.
const DefaultReplicates = 3

// MaxPlanRows caps groups × replicates × tubes for a single plan.
const MaxPlanRows = 100_000

const (
	sampleGroupPrefix = 4
	sampleTubePrefix  = 8
)

// DefaultGroups returns the experiment groups offered by the shells.
func DefaultGroups() []string {
	return []string{"Control", "Model", "Treatment"}
}

// PlanParams controls plan expansion.
type PlanParams struct {
	Groups     []string `json:"groups"`
	Replicates int      `json:"replicates"`
	Randomize  bool     `json:"randomize"`
	// Seed overrides DefaultPlanSeed when Randomize is set.
	Seed *uint64 `json:"seed,omitempty"`
}

// PlanRow is one sample of the experiment plan.
type PlanRow struct {
	SampleID         string   `json:"sample_id"`
	Group            string   `json:"group"`
	Replicate        int      `json:"replicate"`
	Tube             string   `json:"tube"`
	Description      string   `json:"description"`
	Reagents         []string `json:"reagents"`
	Missing          []string `json:"missing,omitempty"`
	NeedsFixation    bool     `json:"needs_fixation"`
	Control          string   `json:"control"`
	AcquisitionOrder int      `json:"acquisition_order"`
}

// Plan is the ordered sample list in acquisition order.
type Plan struct {
	Rows       []PlanRow `json:"rows"`
	Randomized bool      `json:"randomized"`
	Seed       uint64    `json:"seed,omitempty"`
}

// GeneratePlan expands groups × replicates × tubes into samples. Iteration
// is nested group, replicate, tube (insertion order). When randomized the
// rows are shuffled with a seeded permutation and the acquisition order is
// renumbered. catalog may be nil; when set, dangling references are listed
// per row.
func GeneratePlan(catalog *domain.Catalog, tubes *domain.TubeSet, params PlanParams) (Plan, error) {
	groups := cleanGroups(params.Groups)
	if len(groups) == 0 {
		return Plan{}, domain.EmptyGroupsError{}
	}
	if params.Replicates < 1 {
		return Plan{}, domain.InvalidReplicateCountError{Value: params.Replicates}
	}
	if tubes.Len() == 0 {
		return Plan{}, domain.EmptyInputError{Tubes: true}
	}

	list := tubes.List()
	if params.Replicates > MaxPlanRows/(len(groups)*len(list)) {
		return Plan{}, domain.InvalidNumericInputError{
			Field:  "replicates",
			Value:  strconv.Itoa(params.Replicates),
			Reason: fmt.Sprintf("plan would exceed %d samples", MaxPlanRows),
		}
	}
	rows := make([]PlanRow, 0, len(groups)*params.Replicates*len(list))
	ids := sampleIDs{used: make(map[string]struct{})}
	for _, group := range groups {
		for rep := 1; rep <= params.Replicates; rep++ {
			for _, tube := range list {
				row := PlanRow{
					SampleID:      ids.next(group, rep, tube.Name),
					Group:         group,
					Replicate:     rep,
					Tube:          tube.Name,
					Description:   tube.Description,
					Reagents:      append([]string(nil), tube.ReagentRefs...),
					NeedsFixation: tube.NeedsFixation,
					Control:       tube.ControlLabel(),
				}
				if catalog != nil {
					for _, ref := range tube.ReagentRefs {
						if !catalog.Has(ref) {
							row.Missing = append(row.Missing, ref)
						}
					}
				}
				rows = append(rows, row)
			}
		}
	}

	plan := Plan{Rows: rows, Randomized: params.Randomize}
	if params.Randomize {
		plan.Seed = DefaultPlanSeed
		if params.Seed != nil {
			plan.Seed = *params.Seed
		}
		shuffleRows(rows, plan.Seed)
	}
	for i := range rows {
		rows[i].AcquisitionOrder = i + 1
	}
	return plan, nil
}

// shuffleRows applies a Fisher-Yates permutation driven by a PCG source
// seeded from seed alone.
func shuffleRows(rows []PlanRow, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})
}

func cleanGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if g = strings.TrimSpace(g); g != "" {
			out = append(out, g)
		}
	}
	return out
}

// ParseGroups splits a comma separated group list.
func ParseGroups(text string) []string {
	return cleanGroups(strings.Split(text, ","))
}

type sampleIDs struct {
	used map[string]struct{}
}

// next derives "<group>-R<rep>-<tube>" from truncated names, suffixing a
// counter when truncation makes two samples collide.
func (s sampleIDs) next(group string, rep int, tube string) string {
	base := fmt.Sprintf("%s-R%d-%s", truncateRunes(group, sampleGroupPrefix), rep, truncateRunes(tube, sampleTubePrefix))
	id := base
	for n := 2; ; n++ {
		if _, taken := s.used[id]; !taken {
			break
		}
		id = base + "-" + strconv.Itoa(n)
	}
	s.used[id] = struct{}{}
	return id
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Header returns the export column names of the plan sheet.
func (p Plan) Header() []string {
	return []string{"SampleID", "Group", "Replicate", "Tube", "Description", "Reagents", "Fixation", "Control", "AcquisitionOrder"}
}

// Records returns the plan sheet rows matching Header.
func (p Plan) Records() [][]string {
	out := make([][]string, 0, len(p.Rows))
	for _, r := range p.Rows {
		out = append(out, []string{
			r.SampleID,
			r.Group,
			strconv.Itoa(r.Replicate),
			r.Tube,
			r.Description,
			strings.Join(r.Reagents, ", "),
			yesNo(r.NeedsFixation),
			r.Control,
			strconv.Itoa(r.AcquisitionOrder),
		})
	}
	return out
}

// RunOrderHeader returns the column names of the instrument run sheet.
func (p Plan) RunOrderHeader() []string {
	return []string{"SampleID", "Group", "Tube", "AcquisitionOrder"}
}

// RunOrderRecords returns the instrument run sheet rows.
func (p Plan) RunOrderRecords() [][]string {
	out := make([][]string, 0, len(p.Rows))
	for _, r := range p.Rows {
		out = append(out, []string{r.SampleID, r.Group, r.Tube, strconv.Itoa(r.AcquisitionOrder)})
	}
	return out
}
