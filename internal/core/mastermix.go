package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"flowpanel/pkg/domain"
)

// MasterMixParams scales the dose computation.
type MasterMixParams struct {
	CellCount                  float64 `json:"cell_count"`             // ×10⁶ cells per tube
	PerTubeVolume              float64 `json:"per_tube"`               // μL surface mix per tube
	IntracellularPerTubeVolume float64 `json:"intracellular_per_tube"` // μL intracellular working mix per tube
	ExtraTubes                 int     `json:"extra_tubes"`            // safety margin added to every mix
}

// ParamsFromVolumes maps a project's volume bag onto mix parameters.
func ParamsFromVolumes(v domain.Volumes) MasterMixParams {
	return MasterMixParams{
		CellCount:                  v.CellCount,
		PerTubeVolume:              v.PerTube,
		IntracellularPerTubeVolume: v.IntracellularPerTube,
		ExtraTubes:                 v.ExtraTubes,
	}
}

// Validate rejects parameters outside their declared domain.
func (p MasterMixParams) Validate() error {
	return domain.Volumes{
		PerTube:              p.PerTubeVolume,
		IntracellularPerTube: p.IntracellularPerTubeVolume,
		CellCount:            p.CellCount,
		ExtraTubes:           p.ExtraTubes,
	}.Validate()
}

// Dose is the volume of one reagent in a mix. When Available is false the
// dose could not be computed and Err explains why.
type Dose struct {
	Reagent   string
	ShortName string
	PerTube   float64
	Total     float64
	Available bool
	Err       error
}

type doseJSON struct {
	Reagent   string   `json:"reagent"`
	ShortName string   `json:"short_name"`
	PerTube   *float64 `json:"per_tube_ul"`
	Total     *float64 `json:"total_ul"`
	Available bool     `json:"available"`
	Error     string   `json:"error,omitempty"`
}

// MarshalJSON reports unavailable doses with null volumes.
func (d Dose) MarshalJSON() ([]byte, error) {
	out := doseJSON{Reagent: d.Reagent, ShortName: d.ShortName, Available: d.Available}
	if d.Available {
		out.PerTube, out.Total = &d.PerTube, &d.Total
	}
	if d.Err != nil {
		out.Error = d.Err.Error()
	}
	return json.Marshal(out)
}

// MixBlock is the recipe of one master mix.
type MixBlock struct {
	Kind          domain.MixKind `json:"kind"`
	Tubes         []string       `json:"tubes"`
	TubeCount     int            `json:"tube_count"`
	TotalTubes    int            `json:"total_tubes"`
	PerTubeVolume float64        `json:"per_tube_volume_ul"`
	TotalVolume   float64        `json:"total_volume_ul"`
	Doses         []Dose         `json:"doses"`
	// DiluentVolume is the buffer needed to top the reagents up to TotalVolume.
	DiluentVolume float64 `json:"diluent_volume_ul"`
}

// Unavailable returns the doses that could not be computed.
func (b *MixBlock) Unavailable() []Dose {
	if b == nil {
		return nil
	}
	var out []Dose
	for _, d := range b.Doses {
		if !d.Available {
			out = append(out, d)
		}
	}
	return out
}

// MasterMixResult holds the surface and intracellular mixes. A block is nil
// when no tube falls into its group.
type MasterMixResult struct {
	Params        MasterMixParams `json:"params"`
	Surface       *MixBlock       `json:"surface,omitempty"`
	Intracellular *MixBlock       `json:"intracellular,omitempty"`
}

// Blocks returns the non-nil blocks, surface first.
func (r MasterMixResult) Blocks() []*MixBlock {
	var out []*MixBlock
	for _, b := range []*MixBlock{r.Surface, r.Intracellular} {
		if b != nil {
			out = append(out, b)
		}
	}
	return out
}

// ComputeMasterMix partitions tubes into the surface and intracellular mix
// groups and computes per reagent volumes.
//
// A tube that needs fixation is dosed through the intracellular mix; any
// other tube with references is dosed through the surface mix; tubes with
// neither are excluded. Within a group only reagents whose type belongs to
// that mix are dosed, dangling references are skipped and each reagent is
// reported once, using the first tube that references it. A reagent with
// zero concentration is reported as unavailable instead of failing the
// computation.
func ComputeMasterMix(catalog *domain.Catalog, tubes *domain.TubeSet, params MasterMixParams) (MasterMixResult, error) {
	if err := params.Validate(); err != nil {
		return MasterMixResult{}, err
	}
	var surface, intracellular []domain.Tube
	for _, tube := range tubes.List() {
		switch {
		case tube.NeedsFixation:
			intracellular = append(intracellular, tube)
		case len(tube.ReagentRefs) > 0:
			surface = append(surface, tube)
		}
	}
	return MasterMixResult{
		Params:        params,
		Surface:       mixBlock(domain.MixSurface, catalog, surface, params.PerTubeVolume, params),
		Intracellular: mixBlock(domain.MixIntracellular, catalog, intracellular, params.IntracellularPerTubeVolume, params),
	}, nil
}

func mixBlock(kind domain.MixKind, catalog *domain.Catalog, group []domain.Tube, perTubeVolume float64, params MasterMixParams) *MixBlock {
	if len(group) == 0 {
		return nil
	}
	totalTubes := len(group) + params.ExtraTubes
	block := &MixBlock{
		Kind:          kind,
		Tubes:         make([]string, 0, len(group)),
		TubeCount:     len(group),
		TotalTubes:    totalTubes,
		PerTubeVolume: perTubeVolume,
		TotalVolume:   perTubeVolume * float64(totalTubes),
	}
	seen := make(map[string]struct{})
	reagentTotal := 0.0
	for _, tube := range group {
		block.Tubes = append(block.Tubes, tube.Name)
		for _, ref := range tube.ReagentRefs {
			reagent, ok := catalog.Get(ref)
			if !ok || reagent.Mix() != kind {
				continue
			}
			if _, dup := seen[reagent.Name]; dup {
				continue
			}
			seen[reagent.Name] = struct{}{}
			dose := computeDose(reagent, params.CellCount, totalTubes)
			if dose.Available {
				reagentTotal += dose.Total
			}
			block.Doses = append(block.Doses, dose)
		}
	}
	block.DiluentVolume = max(block.TotalVolume-reagentTotal, 0)
	return block
}

func computeDose(reagent domain.Reagent, cellCount float64, totalTubes int) Dose {
	dose := Dose{Reagent: reagent.Name, ShortName: reagent.ShortName}
	perTube, err := perTubeDose(reagent, cellCount)
	if err != nil {
		dose.Err = err
		return dose
	}
	dose.PerTube = perTube
	dose.Total = perTube * float64(totalTubes)
	dose.Available = true
	return dose
}

// perTubeDose converts a recommended μg per 10⁶ cells into μL of stock.
func perTubeDose(reagent domain.Reagent, cellCount float64) (float64, error) {
	if reagent.Concentration == 0 {
		return 0, domain.DivisionByZeroError{Reagent: reagent.Name}
	}
	return reagent.RecommendedUse * cellCount / reagent.Concentration, nil
}

// IsDoseUnavailable reports whether err marks a dose that cannot be computed.
func IsDoseUnavailable(err error) bool {
	var dz domain.DivisionByZeroError
	return errors.As(err, &dz)
}

// formatDose renders a dose the way the bench printout does.
func formatDose(d Dose) string {
	if !d.Available {
		return fmt.Sprintf("%s: dose unavailable (%v)", d.Reagent, d.Err)
	}
	return fmt.Sprintf("%s: %.2f μL per tube, %.2f μL total", d.Reagent, d.PerTube, d.Total)
}
