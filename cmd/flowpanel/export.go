package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"flowpanel/internal/adapters/export"
)

func (c *cli) exportCmd() *cobra.Command {
	var (
		formats    []string
		includeMix bool
		randomize  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the project artifacts to the configured blob store",
		Long: `Renders the matrix, plan, run order, master mixes, protocol and project
file and stores them under <project>/<export id>/ in the blob store
selected by blob.driver (filesystem, s3 or memory).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := export.Request{Plan: c.cfg.PlanParams(randomize), IncludeMix: includeMix}
			for _, name := range formats {
				f, err := export.ParseFormat(name)
				if err != nil {
					return err
				}
				req.Formats = append(req.Formats, f)
			}
			exporter, err := c.app.exporter(cmd.Context())
			if err != nil {
				return err
			}
			record, err := exporter.Export(cmd.Context(), req)
			if err != nil {
				return err
			}
			return c.printResult(cmd, record, func(w io.Writer) error {
				heading(w, fmt.Sprintf("export %s (%s)", record.ID, record.Status))
				rows := make([][]string, 0, len(record.Artifacts))
				for _, a := range record.Artifacts {
					rows = append(rows, []string{string(a.Format), a.Key, strconv.FormatInt(a.SizeBytes, 10), a.URL})
				}
				return printTable(w, []string{"Format", "Key", "Bytes", "URL"}, rows)
			})
		},
	}
	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "artifact formats to write (default all)")
	cmd.Flags().BoolVar(&includeMix, "mix", true, "include master-mix recipes in the protocol")
	cmd.Flags().BoolVar(&randomize, "randomize", true, "shuffle the plan acquisition order")
	return cmd
}
