package core

import "flowpanel/pkg/domain"

// MatrixRow is the staining layout of one tube.
type MatrixRow struct {
	Tube          string   `json:"tube"`
	Description   string   `json:"description"`
	Presence      []bool   `json:"presence"`
	NeedsFixation bool     `json:"needs_fixation"`
	Control       string   `json:"control"`
	RefCount      int      `json:"ref_count"`
	Missing       []string `json:"missing,omitempty"`
}

// Matrix is the reagent × tube presence table. Reagents fixes the column
// order of every row's Presence slice.
type Matrix struct {
	Reagents   []string    `json:"reagents"`
	ShortNames []string    `json:"short_names"`
	Rows       []MatrixRow `json:"rows"`
}

// BuildMatrix projects the catalog and tube set into a presence matrix.
// Rows follow tube insertion order and columns follow catalog insertion
// order. References to reagents absent from the catalog add no column; they
// are reported in the row's Missing list.
func BuildMatrix(catalog *domain.Catalog, tubes *domain.TubeSet) (Matrix, error) {
	if catalog.Len() == 0 || tubes.Len() == 0 {
		return Matrix{}, domain.EmptyInputError{Catalog: catalog.Len() == 0, Tubes: tubes.Len() == 0}
	}
	reagents := catalog.List()
	m := Matrix{
		Reagents:   make([]string, len(reagents)),
		ShortNames: make([]string, len(reagents)),
		Rows:       make([]MatrixRow, 0, tubes.Len()),
	}
	for i, r := range reagents {
		m.Reagents[i] = r.Name
		m.ShortNames[i] = r.ShortName
	}
	for _, tube := range tubes.List() {
		row := MatrixRow{
			Tube:          tube.Name,
			Description:   tube.Description,
			Presence:      make([]bool, len(reagents)),
			NeedsFixation: tube.NeedsFixation,
			Control:       tube.ControlLabel(),
			RefCount:      len(tube.ReagentRefs),
		}
		for i, r := range reagents {
			row.Presence[i] = tube.HasReagent(r.Name)
		}
		for _, ref := range tube.ReagentRefs {
			if !catalog.Has(ref) {
				row.Missing = append(row.Missing, ref)
			}
		}
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

// Present reports the presence flag for a tube/reagent pair.
func (m Matrix) Present(tube, reagent string) bool {
	col := -1
	for i, name := range m.Reagents {
		if name == reagent {
			col = i
			break
		}
	}
	if col < 0 {
		return false
	}
	for _, row := range m.Rows {
		if row.Tube == tube {
			return row.Presence[col]
		}
	}
	return false
}

// Header returns the export column names.
func (m Matrix) Header() []string {
	header := make([]string, 0, len(m.Reagents)+4)
	header = append(header, "Tube", "Description")
	header = append(header, m.Reagents...)
	return append(header, "Fixation", "Control")
}

// Records returns the export rows matching Header.
func (m Matrix) Records() [][]string {
	out := make([][]string, 0, len(m.Rows))
	for _, row := range m.Rows {
		record := make([]string, 0, len(row.Presence)+4)
		record = append(record, row.Tube, row.Description)
		for _, present := range row.Presence {
			record = append(record, checkMark(present))
		}
		record = append(record, yesNo(row.NeedsFixation), row.Control)
		out = append(out, record)
	}
	return out
}

func checkMark(v bool) string {
	if v {
		return "✓"
	}
	return ""
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
