package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"docpipe/internal/progress"
	"docpipe/internal/runner"
)

func newTable(out io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	if f, ok := out.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleLight)
	}
	return tw
}

func printSummary(out io.Writer, s runner.Summary) {
	tw := newTable(out)
	tw.SetTitle(fmt.Sprintf("%s run %s", s.Stage, shortID(s.RunID)))
	tw.AppendHeader(table.Row{"Done", "Skipped", "Failed", "Outcome"})
	tw.AppendRow(table.Row{s.Done, s.Skipped, s.Failed, string(s.Cause)})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignRight},
	})
	tw.Render()

	if len(s.Failures) == 0 {
		return
	}
	ft := newTable(out)
	ft.SetTitle("Failed items")
	ft.AppendHeader(table.Row{"Item", "Reason"})
	for _, failure := range s.Failures {
		ft.AppendRow(table.Row{failure.Key, failure.Reason})
	}
	ft.Render()
}

func printStatusRow(tw table.Writer, stage string, counts map[progress.Status]int, run progress.RunState) {
	tw.AppendRow(table.Row{
		stage,
		counts[progress.StatusDone],
		counts[progress.StatusInProgress],
		counts[progress.StatusFailed],
		string(run.Cause),
		run.Cursor,
	})
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
