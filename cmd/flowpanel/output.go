package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"flowpanel/internal/adapters/export"
	"flowpanel/internal/core"
)

var headingStyle = lipgloss.NewStyle().Bold(true)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, header []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(header...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.String())
	return err
}

func printCSV(w io.Writer, header []string, rows [][]string) error {
	body, err := export.WriteCSV(header, rows)
	if err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// printSheet writes a tabular result in the selected output format.
func (c *cli) printSheet(cmd *cobra.Command, v any, header []string, rows [][]string) error {
	w := cmd.OutOrStdout()
	switch c.output {
	case outputJSON:
		return printJSON(w, v)
	case outputCSV:
		return printCSV(w, header, rows)
	default:
		return printTable(w, header, rows)
	}
}

// printResult writes a value as JSON, or through text otherwise.
func (c *cli) printResult(cmd *cobra.Command, v any, text func(io.Writer) error) error {
	if c.output == outputJSON {
		return printJSON(cmd.OutOrStdout(), v)
	}
	return text(cmd.OutOrStdout())
}

func heading(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, headingStyle.Render(title))
}

// reportViolations prints rule warnings to stderr. Violations never reach
// stdout so piped JSON and CSV stay clean.
func reportViolations(cmd *cobra.Command, res core.Result) {
	for _, v := range res.Violations {
		name := ""
		if v.Name != "" {
			name = " " + v.Name
		}
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s [%s] %s%s: %s\n", strings.ToUpper(string(v.Severity)), v.Rule, v.Entity, name, v.Message)
	}
}
