package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"docpipe/internal/progress"
)

func newStatusCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-stage progress and the last run outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}

			tw := newTable(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Stage", "Done", "In progress", "Failed", "Last outcome", "Cursor"})
			for _, stage := range []string{"fetch", "translate", "render"} {
				store := progress.NewStore(cfg.Paths.DocsDir, stage)
				if err := store.Load(); err != nil {
					if errors.Is(err, progress.ErrCorruptState) {
						tw.AppendRow(table.Row{stage, "-", "-", "-", "corrupt state file", ""})
						continue
					}
					return err
				}
				if !store.HasState() {
					tw.AppendRow(table.Row{stage, 0, 0, 0, "never run", ""})
					continue
				}
				printStatusRow(tw, stage, store.CountByStatus(), store.RunState())
			}
			tw.Render()

			fmt.Fprintf(cmd.OutOrStdout(), "docs root: %s\n", cfg.Paths.DocsDir)
			return nil
		},
	}
}
