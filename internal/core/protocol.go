package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"flowpanel/pkg/domain"
)

// ProtocolSection is a titled list of lines in the protocol document.
type ProtocolSection struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// Protocol is the printable staining protocol of a project.
type Protocol struct {
	Title        string            `json:"title"`
	Project      string            `json:"project"`
	GeneratedAt  time.Time         `json:"generated_at"`
	ReagentCount int               `json:"reagent_count"`
	TubeCount    int               `json:"tube_count"`
	Steps        []ProtocolSection `json:"steps"`
	Recipes      []ProtocolSection `json:"recipes,omitempty"`
	Notes        []string          `json:"notes"`
}

const protocolTitle = "Flow cytometry staining protocol"

// RenderProtocol builds the protocol document for project. mix is optional;
// when set its recipes are included after the staining steps.
func RenderProtocol(project domain.Project, mix *MasterMixResult, now time.Time) Protocol {
	v := project.Volumes
	p := Protocol{
		Title:        protocolTitle,
		Project:      project.Name,
		GeneratedAt:  now,
		ReagentCount: project.Reagents.Len(),
		TubeCount:    project.Tubes.Len(),
		Steps: []ProtocolSection{
			{Title: "1. Sample preparation", Lines: []string{
				"Prepare a single cell suspension at 1×10⁷ cells/mL",
				"Dispense cells into labelled tubes following the experiment plan",
				fmt.Sprintf("Load %s×10⁶ cells per tube (100 μL)", formatVolume(v.CellCount)),
			}},
			{Title: "2. Fc block and surface staining", Lines: []string{
				"Prepare the surface staining master mix",
				fmt.Sprintf("Add %s μL master mix to each tube", formatVolume(v.PerTube)),
				"Incubate 30 min at 4°C protected from light",
				"Add 1 mL cold staining buffer, spin 300g 5 min at 4°C",
				"Discard supernatant and repeat the wash once",
			}},
			{Title: "3. Fixation and permeabilization (intracellular tubes only)", Lines: []string{
				"Add 100 μL fixative",
				"Incubate 20 min at room temperature protected from light",
				"Add 1 mL 1X permeabilization buffer, spin 300g 5 min at 4°C",
				"Discard supernatant and repeat the wash once",
			}},
			{Title: "4. Intracellular staining", Lines: []string{
				"Prepare the intracellular working mix in permeabilization buffer",
				fmt.Sprintf("Add %s μL working mix to each tube", formatVolume(v.IntracellularPerTube)),
				"Incubate 45 min at 4°C protected from light",
				"Wash twice with permeabilization buffer",
			}},
			{Title: "5. Acquisition", Lines: []string{
				"Resuspend every tube in 300 μL staining buffer",
				"Filter through a 35 μm cell strainer",
				"Acquire following the run order sheet",
			}},
		},
		Notes: []string{
			"Keep every step protected from light",
			"Centrifugation: 300g, 4°C, 5 min",
			"Prepare antibody master mixes fresh",
			"Mix samples thoroughly before acquisition",
			"Set up compensation controls correctly",
		},
	}
	if mix != nil {
		p.Recipes = mixRecipes(*mix)
	}
	return p
}

func mixRecipes(mix MasterMixResult) []ProtocolSection {
	var out []ProtocolSection
	for _, block := range mix.Blocks() {
		title := "Surface staining master mix"
		diluent := "staining buffer"
		if block.Kind == domain.MixIntracellular {
			title = "Intracellular working mix"
			diluent = "1X permeabilization buffer"
		}
		section := ProtocolSection{
			Title: fmt.Sprintf("%s (%d tubes)", title, block.TubeCount),
			Lines: []string{
				"Tubes: " + strings.Join(block.Tubes, ", "),
				fmt.Sprintf("Total volume: %s μL (%s μL × %d tubes)", formatVolume(block.TotalVolume), formatVolume(block.PerTubeVolume), block.TotalTubes),
			},
		}
		for _, d := range block.Doses {
			section.Lines = append(section.Lines, formatDose(d))
		}
		section.Lines = append(section.Lines,
			fmt.Sprintf("Top up with %.2f μL %s to %s μL", block.DiluentVolume, diluent, formatVolume(block.TotalVolume)),
			"Vortex and keep at 4°C protected from light",
		)
		out = append(out, section)
	}
	return out
}

// Text renders the protocol as plain text.
func (p Protocol) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", p.Title)
	fmt.Fprintf(&b, "Project: %s\n", p.Project)
	fmt.Fprintf(&b, "Generated: %s\n\n", p.GeneratedAt.Format("2006-01-02 15:04"))
	b.WriteString("=============== Experiment ===============\n")
	fmt.Fprintf(&b, "Reagents: %d\n", p.ReagentCount)
	fmt.Fprintf(&b, "Tubes: %d\n\n", p.TubeCount)
	b.WriteString("=============== Staining steps ===============\n")
	writeSections(&b, p.Steps)
	if len(p.Recipes) > 0 {
		b.WriteString("=============== Master mixes ===============\n")
		writeSections(&b, p.Recipes)
	}
	b.WriteString("=============== Notes ===============\n")
	for i, note := range p.Notes {
		fmt.Fprintf(&b, "%d. %s\n", i+1, note)
	}
	return b.String()
}

func writeSections(b *strings.Builder, sections []ProtocolSection) {
	for _, s := range sections {
		b.WriteString(s.Title)
		b.WriteByte('\n')
		for i, line := range s.Lines {
			fmt.Fprintf(b, "   %c. %s\n", 'a'+rune(i), line)
		}
		b.WriteByte('\n')
	}
}

func formatVolume(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
