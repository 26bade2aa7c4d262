package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/core"
	"flowpanel/pkg/domain"
)

func (c *cli) matrixCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "matrix",
		Short: "Print the tube × reagent matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			matrix, err := c.app.svc.BuildMatrix(cmd.Context())
			if err != nil {
				return err
			}
			return c.printSheet(cmd, matrix, matrix.Header(), matrix.Records())
		},
	}
}

func formatMicroliters(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func printMixBlock(w io.Writer, title string, b *core.MixBlock) error {
	heading(w, fmt.Sprintf("%s: %d tubes + extra = %d", title, b.TubeCount, b.TotalTubes))
	rows := make([][]string, 0, len(b.Doses)+1)
	for _, d := range b.Doses {
		if !d.Available {
			rows = append(rows, []string{d.Reagent, d.ShortName, "n/a", "n/a"})
			continue
		}
		rows = append(rows, []string{d.Reagent, d.ShortName, formatMicroliters(d.PerTube), formatMicroliters(d.Total)})
	}
	rows = append(rows, []string{"diluent", "", "", formatMicroliters(b.DiluentVolume)})
	if err := printTable(w, []string{"Reagent", "Short", "Per tube (μL)", "Total (μL)"}, rows); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "total volume %s μL (%s μL × %d)\n", formatMicroliters(b.TotalVolume), formatMicroliters(b.PerTubeVolume), b.TotalTubes)
	return err
}

func (c *cli) masterMixCmd() *cobra.Command {
	var flags volumeFlags
	cmd := &cobra.Command{
		Use:     "mastermix",
		Aliases: []string{"mix"},
		Short:   "Compute the surface and intracellular master mixes",
		Long: `Computes the master mixes from the project volumes. Flags override single
parameters for this computation only; use "volumes set" to persist them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project, err := c.app.svc.Project(cmd.Context())
			if err != nil {
				return err
			}
			volumes := project.Volumes
			changed, err := flags.apply(cmd, &volumes)
			if err != nil {
				return err
			}
			var params *core.MasterMixParams
			if changed {
				p := core.ParamsFromVolumes(volumes)
				params = &p
			}
			result, err := c.app.svc.ComputeMasterMix(cmd.Context(), params)
			if err != nil {
				return err
			}
			return c.printResult(cmd, result, func(w io.Writer) error {
				if result.Surface == nil && result.Intracellular == nil {
					_, err := fmt.Fprintln(w, "no tube references a reagent; nothing to mix")
					return err
				}
				if result.Surface != nil {
					if err := printMixBlock(w, "Surface staining master mix", result.Surface); err != nil {
						return err
					}
				}
				if result.Intracellular != nil {
					return printMixBlock(w, "Intracellular working mix", result.Intracellular)
				}
				return nil
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func (c *cli) planCmd() *cobra.Command {
	var (
		groups, replicates, seed string
		randomize, runOrder      bool
	)
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Expand groups × replicates × tubes into the sample plan",
		Long: `Expands every experiment group and replicate over the tube layout. With
--randomize the acquisition order is shuffled with a seeded permutation so
the same seed reproduces the same run order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := c.cfg.PlanParams(randomize)
			if cmd.Flags().Changed("groups") {
				params.Groups = core.ParseGroups(groups)
			}
			if cmd.Flags().Changed("replicates") {
				n, err := domain.ParseCount("replicates", replicates)
				if err != nil {
					return err
				}
				params.Replicates = n
			}
			if cmd.Flags().Changed("seed") {
				n, err := domain.ParseCount("seed", seed)
				if err != nil {
					return err
				}
				if n < 0 {
					return domain.InvalidNumericInputError{Field: "seed", Value: seed, Reason: "must not be negative"}
				}
				s := uint64(n)
				params.Seed = &s
			}
			plan, err := c.app.svc.GeneratePlan(cmd.Context(), params)
			if err != nil {
				return err
			}
			if runOrder {
				return c.printSheet(cmd, plan, plan.RunOrderHeader(), plan.RunOrderRecords())
			}
			return c.printSheet(cmd, plan, plan.Header(), plan.Records())
		},
	}
	f := cmd.Flags()
	f.StringVar(&groups, "groups", "", "comma separated experiment groups (default from config)")
	f.StringVar(&replicates, "replicates", "", "replicates per group (default from config)")
	f.BoolVar(&randomize, "randomize", false, "shuffle the acquisition order")
	f.StringVar(&seed, "seed", "", "shuffle seed (default from config)")
	f.BoolVar(&runOrder, "run-order", false, "print the condensed run order sheet")
	return cmd
}

func (c *cli) protocolCmd() *cobra.Command {
	var (
		includeMix bool
		pdfPath    string
	)
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "Render the staining protocol",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			protocol, err := c.app.svc.Protocol(cmd.Context(), includeMix)
			if err != nil {
				return err
			}
			if pdfPath != "" {
				body, err := export.RenderProtocolPDF(protocol)
				if err != nil {
					return err
				}
				if err := os.WriteFile(pdfPath, body, 0o644); err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "protocol written to %s\n", pdfPath)
				return err
			}
			return c.printResult(cmd, protocol, func(w io.Writer) error {
				_, err := io.WriteString(w, protocol.Text())
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&includeMix, "mix", false, "append the master-mix recipes")
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write the protocol as PDF to this file")
	return cmd
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Evaluate the project rules; exits non-zero on blocking violations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := c.app.svc.Check(cmd.Context())
			if err != nil {
				return err
			}
			err = c.printResult(cmd, res, func(w io.Writer) error {
				if len(res.Violations) == 0 {
					_, err := fmt.Fprintln(w, "no violations")
					return err
				}
				rows := make([][]string, 0, len(res.Violations))
				for _, v := range res.Violations {
					rows = append(rows, []string{strings.ToUpper(string(v.Severity)), v.Rule, string(v.Entity), v.Name, v.Message})
				}
				return printTable(w, []string{"Severity", "Rule", "Entity", "Name", "Message"}, rows)
			})
			if err != nil {
				return err
			}
			if res.HasBlocking() {
				return errBlocking
			}
			return nil
		},
	}
}
