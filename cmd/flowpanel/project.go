package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

func (c *cli) volumesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "Show or change the project volume parameters",
	}
	cmd.AddCommand(c.volumesShowCmd(), c.volumesSetCmd())
	return cmd
}

func printVolumes(w io.Writer, v domain.Volumes) error {
	return printTable(w, []string{"Parameter", "Value"}, [][]string{
		{"per tube (μL)", strconv.FormatFloat(v.PerTube, 'f', -1, 64)},
		{"intracellular per tube (μL)", strconv.FormatFloat(v.IntracellularPerTube, 'f', -1, 64)},
		{"cell count (×10⁶)", strconv.FormatFloat(v.CellCount, 'f', -1, 64)},
		{"extra tubes", strconv.Itoa(v.ExtraTubes)},
	})
}

func (c *cli) volumesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the volume parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := c.app.svc.Project(cmd.Context())
			if err != nil {
				return err
			}
			return c.printResult(cmd, project.Volumes, func(w io.Writer) error {
				return printVolumes(w, project.Volumes)
			})
		},
	}
}

// volumeFlags are kept as text so non-numeric input is rejected with the
// field name instead of a generic flag error.
type volumeFlags struct {
	perTube, intracellular, cellCount, extraTubes string
}

func (f *volumeFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.perTube, "per-tube", "", "μL surface mix per tube")
	fs.StringVar(&f.intracellular, "intracellular-per-tube", "", "μL intracellular working mix per tube")
	fs.StringVar(&f.cellCount, "cell-count", "", "×10⁶ cells per tube")
	fs.StringVar(&f.extraTubes, "extra-tubes", "", "safety margin tubes added to every mix")
}

// apply overrides the fields whose flags were set.
func (f *volumeFlags) apply(cmd *cobra.Command, v *domain.Volumes) (bool, error) {
	changed := false
	set := func(name, field, text string, dst *float64) error {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		n, err := domain.ParseNumber(field, text)
		if err != nil {
			return err
		}
		*dst = n
		changed = true
		return nil
	}
	if err := set("per-tube", "per_tube", f.perTube, &v.PerTube); err != nil {
		return false, err
	}
	if err := set("intracellular-per-tube", "intracellular_per_tube", f.intracellular, &v.IntracellularPerTube); err != nil {
		return false, err
	}
	if err := set("cell-count", "cell_count", f.cellCount, &v.CellCount); err != nil {
		return false, err
	}
	if cmd.Flags().Changed("extra-tubes") {
		n, err := domain.ParseCount("extra_tubes", f.extraTubes)
		if err != nil {
			return false, err
		}
		v.ExtraTubes = n
		changed = true
	}
	return changed, nil
}

func (c *cli) volumesSetCmd() *cobra.Command {
	var flags volumeFlags
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change volume parameters; unset flags keep their values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := c.app.svc.Project(cmd.Context())
			if err != nil {
				return err
			}
			volumes := project.Volumes
			if _, err := flags.apply(cmd, &volumes); err != nil {
				return err
			}
			stored, res, err := c.app.svc.SetVolumes(cmd.Context(), volumes)
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			return c.printResult(cmd, stored, func(w io.Writer) error {
				return printVolumes(w, stored)
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Show, rename, save or load the whole project",
	}
	cmd.AddCommand(c.projectShowCmd(), c.projectRenameCmd(), c.projectSaveCmd(), c.projectLoadCmd())
	return cmd
}

func (c *cli) projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Summarize the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := c.app.svc.Project(cmd.Context())
			if err != nil {
				return err
			}
			return c.printResult(cmd, project, func(w io.Writer) error {
				heading(w, project.Name)
				_, err := fmt.Fprintf(w, "reagents: %d\ntubes: %d\n", project.Reagents.Len(), project.Tubes.Len())
				if err != nil {
					return err
				}
				return printVolumes(w, project.Volumes)
			})
		},
	}
}

func (c *cli) projectRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename NAME",
		Short: "Set the project name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.svc.RenameProject(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "project renamed to %q\n", args[0])
			return err
		},
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func (c *cli) projectSaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save FILE",
		Short: "Write the project file (JSON, or YAML for .yaml/.yml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			project, err := c.app.svc.ExportProject(cmd.Context())
			if err != nil {
				return err
			}
			var body []byte
			if isYAML(args[0]) {
				body, err = yaml.Marshal(project)
			} else {
				body, err = json.MarshalIndent(project, "", "  ")
			}
			if err != nil {
				return fmt.Errorf("encode project: %w", err)
			}
			if err := os.WriteFile(args[0], body, 0o644); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "project %q saved to %s\n", project.Name, args[0])
			return err
		},
	}
}

func (c *cli) projectLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load FILE",
		Short: "Replace the project with a saved project file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var project core.Project
			if isYAML(args[0]) {
				err = yaml.Unmarshal(body, &project)
			} else {
				err = json.Unmarshal(body, &project)
			}
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			res, err := c.app.svc.ImportProject(cmd.Context(), project)
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "loaded %d reagents and %d tubes from %s\n", project.Reagents.Len(), project.Tubes.Len(), args[0])
			return err
		},
	}
}
