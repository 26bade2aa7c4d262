package domain

// Names of the reagents in the standard CD45 / α-SMA panel.
const (
	StandardFcBlock       = "TruStain FcX™ (anti-mouse CD16/32) Antibody"
	StandardViability     = "Live/Dye eF780"
	StandardCD45          = "BB515 Rat Anti-Mouse CD45"
	StandardAlphaSMA      = "α-SMA AF647"
	standardFixationNotes = "intracellular stain, fix and permeabilize first"
)

// StandardReagents returns the reference catalog for the CD45 / α-SMA panel.
func StandardReagents() []Reagent {
	return []Reagent{
		{
			Name:           StandardFcBlock,
			ShortName:      "FcX",
			Fluorochrome:   "None",
			Target:         "CD16/32",
			Clone:          "93",
			Concentration:  500,
			RecommendedUse: 1.0,
			Type:           ReagentFcBlock,
			CatalogNumber:  "101320",
			LotNumber:      "B123456",
			Storage:        DefaultStorage,
			Notes:          "Fc receptor block",
		},
		{
			Name:           StandardViability,
			ShortName:      "LiveDye",
			Fluorochrome:   "eF780",
			Target:         "Viability",
			Clone:          "N/A",
			Concentration:  1000,
			RecommendedUse: 0.5,
			Type:           ReagentViability,
			CatalogNumber:  "65-0865-14",
			LotNumber:      "123456",
			Storage:        DefaultStorage,
			Notes:          "viability dye, use at 1:1000",
		},
		{
			Name:           StandardCD45,
			ShortName:      "CD45",
			Fluorochrome:   "BB515",
			Target:         "CD45",
			Clone:          "30-F11",
			Concentration:  200,
			RecommendedUse: 0.25,
			Type:           ReagentSurface,
			CatalogNumber:  "564590",
			LotNumber:      "789012",
			Storage:        DefaultStorage,
			Notes:          "leukocyte marker",
		},
		{
			Name:           StandardAlphaSMA,
			ShortName:      "α-SMA",
			Fluorochrome:   "AF647",
			Target:         "α-Smooth Muscle Actin",
			Clone:          "1A4",
			Concentration:  200,
			RecommendedUse: 0.5,
			Type:           ReagentIntracellular,
			CatalogNumber:  "561847",
			LotNumber:      "345678",
			Storage:        DefaultStorage,
			Notes:          standardFixationNotes,
		},
	}
}

// StandardTubes returns the reference tube layout for the standard panel:
// blank, single stains, one FMO and the full stain.
func StandardTubes() []Tube {
	return []Tube{
		{
			Name:        "Blank",
			Description: "unstained control for voltage setup",
			IsControl:   true,
			ControlType: ControlBlank,
		},
		{
			Name:        "FcX_Only",
			Description: "Fc block only",
			ReagentRefs: []string{StandardFcBlock},
			IsControl:   true,
			ControlType: ControlSingle,
		},
		{
			Name:        "Live_Only",
			Description: "viability single stain (compensation)",
			ReagentRefs: []string{StandardFcBlock, StandardViability},
			IsControl:   true,
			ControlType: ControlSingle,
		},
		{
			Name:        "CD45_Only",
			Description: "CD45 single stain (compensation)",
			ReagentRefs: []string{StandardFcBlock, StandardCD45},
			IsControl:   true,
			ControlType: ControlSingle,
		},
		{
			Name:          "αSMA_Only",
			Description:   "α-SMA single stain (compensation, permeabilized)",
			ReagentRefs:   []string{StandardFcBlock, StandardAlphaSMA},
			NeedsFixation: true,
			IsControl:     true,
			ControlType:   ControlSingle,
		},
		{
			Name:        "FMO_αSMA",
			Description: "fluorescence minus one for α-SMA gating",
			ReagentRefs: []string{StandardFcBlock, StandardViability, StandardCD45},
			IsControl:   true,
			ControlType: ControlFMO,
		},
		{
			Name:          "Full_Stain",
			Description:   "full stain experimental tube",
			ReagentRefs:   []string{StandardFcBlock, StandardViability, StandardCD45, StandardAlphaSMA},
			NeedsFixation: true,
		},
	}
}
