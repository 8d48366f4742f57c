package main

import (
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/nijaru/clipzaar/acquisition"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether writer is an interactive terminal. Piped output
// defaults to JSON.
func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderProbeTable(results []acquisition.ProbeResult) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Strategy", "Result", "Title", "Duration", "Error"})

	for _, r := range results {
		status := "failed"
		duration := ""
		if r.Success {
			status = "ok"
			duration = strconv.Itoa(r.DurationSeconds) + "s"
		}
		tw.AppendRow(table.Row{r.Strategy, status, r.Title, duration, r.Error})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, WidthMax: 60},
	})
	return tw.Render()
}
