package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

func (c *cli) reagentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reagent",
		Aliases: []string{"reagents", "antibody"},
		Short:   "Manage the antibody and dye catalog",
	}
	cmd.AddCommand(c.reagentAddCmd(), c.reagentListCmd(), c.reagentDeleteCmd(), c.reagentLoadDefaultsCmd())
	return cmd
}

func (c *cli) reagentAddCmd() *cobra.Command {
	var (
		r                          domain.Reagent
		concentration, recommended string
		typeLabel                  string
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace a reagent",
		Long: `Adds a reagent to the catalog, replacing any entry with the same name.
Concentration is in μg/mL (0 leaves it unset, which makes the dose
unavailable) and the recommended use in μg per 10⁶ cells.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r.Name = args[0]
			var err error
			if r.Concentration, err = domain.ParseNumber("concentration", concentration); err != nil {
				return err
			}
			if r.RecommendedUse, err = domain.ParseNumber("recommended_use", recommended); err != nil {
				return err
			}
			if r.Type, err = domain.ParseReagentType(typeLabel); err != nil {
				return err
			}
			stored, res, err := c.app.svc.UpsertReagent(cmd.Context(), r)
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			return c.printResult(cmd, stored, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "reagent %q saved (%s, %s)\n", stored.Name, stored.ShortName, stored.Type)
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&r.ShortName, "short-name", "", "display alias (default derived from the name)")
	f.StringVar(&r.Fluorochrome, "fluorochrome", "", "fluorochrome, e.g. BB515")
	f.StringVar(&r.Target, "target", "", "antigen target")
	f.StringVar(&r.Clone, "clone", "", "antibody clone")
	f.StringVar(&concentration, "concentration", "0", "stock concentration in μg/mL")
	f.StringVar(&recommended, "recommended-use", "0", "μg per 10⁶ cells")
	f.StringVar(&typeLabel, "type", domain.ReagentSurface.String(), "Surface, Intracellular, Viability, FcBlock or Other")
	f.StringVar(&r.CatalogNumber, "catalog-number", "", "vendor catalog number")
	f.StringVar(&r.LotNumber, "lot", "", "lot number")
	f.StringVar(&r.Storage, "storage", domain.DefaultStorage, "storage conditions")
	f.StringVar(&r.Notes, "notes", "", "free text notes")
	return cmd
}

func (c *cli) reagentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the catalog in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := c.app.svc.Project(cmd.Context())
			if err != nil {
				return err
			}
			reagents := project.Reagents.List()
			header := []string{"Name", "Short", "Fluorochrome", "Target", "Clone", "Conc (μg/mL)", "Use (μg/10⁶)", "Type"}
			rows := make([][]string, 0, len(reagents))
			for _, r := range reagents {
				rows = append(rows, []string{
					r.Name, r.ShortName, r.Fluorochrome, r.Target, r.Clone,
					strconv.FormatFloat(r.Concentration, 'f', -1, 64),
					strconv.FormatFloat(r.RecommendedUse, 'f', -1, 64),
					r.Type.String(),
				})
			}
			if reagents == nil {
				reagents = []domain.Reagent{}
			}
			return c.printSheet(cmd, reagents, header, rows)
		},
	}
}

func (c *cli) reagentDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a reagent; tubes keep their references",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.svc.DeleteReagent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "reagent %q deleted\n", args[0])
			return err
		},
	}
}

func (c *cli) reagentLoadDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-defaults",
		Short: "Merge the standard CD45 / α-SMA panel into the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, res, err := c.app.svc.LoadStandardReagents(cmd.Context())
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			return c.printResult(cmd, loaded, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "loaded %d standard reagents\n", len(loaded))
				return err
			})
		},
	}
}

func (c *cli) tubeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tube",
		Aliases: []string{"tubes"},
		Short:   "Manage the tube layout",
	}
	cmd.AddCommand(
		c.tubeAddCmd(),
		c.tubeListCmd(),
		c.tubeDeleteCmd(),
		c.tubeReagentCmd("add-reagent", "Reference a reagent from a tube", c.addTubeReagent),
		c.tubeReagentCmd("remove-reagent", "Drop a reagent reference from a tube", c.removeTubeReagent),
		c.tubeLoadDefaultsCmd(),
	)
	return cmd
}

func (c *cli) tubeAddCmd() *cobra.Command {
	var (
		t            domain.Tube
		controlLabel string
	)
	cmd := &cobra.Command{
		Use:   "add NAME",
		Short: "Add or replace a tube",
		Long: `Adds a tube configuration, replacing any tube with the same name.
A control type (FMO, Isotype, Single or Blank) marks the tube as a control.
Reagent references may name reagents that are not in the catalog yet.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t.Name = args[0]
			ct, err := domain.ParseControlType(controlLabel)
			if err != nil {
				return err
			}
			t.ControlType = ct
			t.IsControl = ct != domain.ControlNone
			stored, res, err := c.app.svc.UpsertTube(cmd.Context(), t)
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			return c.printResult(cmd, stored, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "tube %q saved (%s, %d reagents)\n", stored.Name, stored.ControlLabel(), len(stored.ReagentRefs))
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&t.Description, "description", "", "tube description")
	f.StringArrayVarP(&t.ReagentRefs, "reagent", "r", nil, "reagent name to reference (repeatable)")
	f.BoolVar(&t.NeedsFixation, "fixation", false, "tube is fixed and permeabilized (intracellular mix)")
	f.StringVar(&controlLabel, "control", "", "control type: FMO, Isotype, Single or Blank")
	return cmd
}

func (c *cli) tubeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tubes in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := c.app.svc.Project(cmd.Context())
			if err != nil {
				return err
			}
			tubes := project.Tubes.List()
			header := []string{"Name", "Description", "Reagents", "Fixation", "Control"}
			rows := make([][]string, 0, len(tubes))
			for _, t := range tubes {
				fix := "no"
				if t.NeedsFixation {
					fix = "yes"
				}
				rows = append(rows, []string{t.Name, t.Description, strconv.Itoa(len(t.ReagentRefs)), fix, t.ControlLabel()})
			}
			if tubes == nil {
				tubes = []domain.Tube{}
			}
			return c.printSheet(cmd, tubes, header, rows)
		},
	}
}

func (c *cli) tubeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete NAME",
		Aliases: []string{"rm"},
		Short:   "Remove a tube",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := c.app.svc.DeleteTube(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "tube %q deleted\n", args[0])
			return err
		},
	}
}

type tubeReagentFunc func(cmd *cobra.Command, tube, reagent string) (domain.Tube, core.Result, error)

func (c *cli) addTubeReagent(cmd *cobra.Command, tube, reagent string) (domain.Tube, core.Result, error) {
	return c.app.svc.AddTubeReagent(cmd.Context(), tube, reagent)
}

func (c *cli) removeTubeReagent(cmd *cobra.Command, tube, reagent string) (domain.Tube, core.Result, error) {
	return c.app.svc.RemoveTubeReagent(cmd.Context(), tube, reagent)
}

func (c *cli) tubeReagentCmd(use, short string, fn tubeReagentFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use + " TUBE REAGENT",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tube, res, err := fn(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			return c.printResult(cmd, tube, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "tube %q now references %d reagents\n", tube.Name, len(tube.ReagentRefs))
				return err
			})
		},
	}
}

func (c *cli) tubeLoadDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-defaults",
		Short: "Replace the tube layout with the standard controls and full stain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tubes, res, err := c.app.svc.LoadStandardTubes(cmd.Context())
			if err != nil {
				return err
			}
			reportViolations(cmd, res)
			return c.printResult(cmd, tubes, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "loaded %d standard tubes\n", len(tubes))
				return err
			})
		},
	}
}
