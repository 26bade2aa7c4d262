package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Volumes is the parameter bag persisted with a project and used as default
// master-mix parameters.
type Volumes struct {
	PerTube              float64 `json:"per_tube" yaml:"per_tube"`                             // μL surface mix per tube
	IntracellularPerTube float64 `json:"intracellular_per_tube" yaml:"intracellular_per_tube"` // μL intracellular working mix per tube
	CellCount            float64 `json:"cell_count" yaml:"cell_count"`                         // ×10⁶ cells per tube
	ExtraTubes           int     `json:"extra_tubes" yaml:"extra_tubes"`
}

// DefaultVolumes returns the bench defaults.
func DefaultVolumes() Volumes {
	return Volumes{
		PerTube:              100.0,
		IntracellularPerTube: 50.0,
		CellCount:            1.0,
		ExtraTubes:           2,
	}
}

// Validate checks every parameter against its declared domain.
func (v Volumes) Validate() error {
	if err := RequirePositive("per_tube", v.PerTube); err != nil {
		return err
	}
	if err := RequirePositive("intracellular_per_tube", v.IntracellularPerTube); err != nil {
		return err
	}
	if err := RequirePositive("cell_count", v.CellCount); err != nil {
		return err
	}
	if v.ExtraTubes < 0 {
		return InvalidNumericInputError{Field: "extra_tubes", Value: fmt.Sprint(v.ExtraTubes), Reason: "must not be negative"}
	}
	return nil
}

// ProjectNamePrefix prefixes generated project names.
const ProjectNamePrefix = "Flow_Project_"

// DefaultProjectName derives a project name from a timestamp.
func DefaultProjectName(now time.Time) string {
	return ProjectNamePrefix + now.Format("20060102_1504")
}

// Project is the persisted unit: catalog, tubes, volumes and metadata.
// Its serialized form mirrors the bench tool's project file.
type Project struct {
	Name     string
	Reagents *Catalog
	Tubes    *TubeSet
	Volumes  Volumes
	SavedAt  time.Time
}

// NewProject returns an empty project with default volumes.
func NewProject(name string) Project {
	return Project{
		Name:     name,
		Reagents: &Catalog{entries: newOrderedMap[Reagent]()},
		Tubes:    &TubeSet{entries: newOrderedMap[Tube]()},
		Volumes:  DefaultVolumes(),
	}
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	cp := p
	cp.Reagents = p.Reagents.Clone()
	cp.Tubes = p.Tubes.Clone()
	return cp
}

// projectRecord is the wire shape shared by the JSON and YAML codecs.
type projectRecord struct {
	ProjectName string   `json:"project_name" yaml:"project_name"`
	Antibodies  *Catalog `json:"antibodies" yaml:"antibodies"`
	Tubes       *TubeSet `json:"tubes" yaml:"tubes"`
	Volumes     *Volumes `json:"volumes" yaml:"volumes"`
	SaveTime    string   `json:"save_time" yaml:"save_time"`
}

// saveTimeLayouts are accepted on load; the first one is written.
var saveTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseSaveTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range saveTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ValidationError{Entity: EntityProject, Field: "save_time", Message: fmt.Sprintf("unrecognised timestamp %q", raw)}
}

func (p Project) record() projectRecord {
	vol := p.Volumes
	rec := projectRecord{
		ProjectName: p.Name,
		Antibodies:  p.Reagents.Clone(),
		Tubes:       p.Tubes.Clone(),
		Volumes:     &vol,
	}
	if !p.SavedAt.IsZero() {
		rec.SaveTime = p.SavedAt.Format(saveTimeLayouts[0])
	}
	return rec
}

func (p *Project) fromRecord(rec projectRecord) error {
	saved, err := parseSaveTime(rec.SaveTime)
	if err != nil {
		return err
	}
	out := Project{
		Name:     rec.ProjectName,
		Reagents: rec.Antibodies.Clone(),
		Tubes:    rec.Tubes.Clone(),
		Volumes:  DefaultVolumes(),
		SavedAt:  saved,
	}
	if rec.Volumes != nil {
		out.Volumes = *rec.Volumes
	}
	*p = out
	return nil
}

// MarshalJSON encodes the project file shape.
func (p Project) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.record())
}

// UnmarshalJSON decodes the project file shape. Missing volume keys keep
// their defaults.
func (p *Project) UnmarshalJSON(data []byte) error {
	vol := DefaultVolumes()
	rec := projectRecord{Volumes: &vol}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	return p.fromRecord(rec)
}
