package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"docpipe/internal/audit"
)

func newAuditCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Cross-check progress state against the docs tree",
		Long:  "audit compares every stage's state file with the files actually on disk and reports missing outputs, path collisions, stage gaps, and suspect translations.\nIt never modifies anything.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}
			script, ok := cfg.Translate.Script()
			if !ok {
				return fmt.Errorf("unknown target script %q", cfg.Translate.TargetScript)
			}

			checker := audit.New(audit.Config{
				DocsRoot:  cfg.Paths.DocsDir,
				Script:    script,
				Threshold: cfg.Translate.SkipThreshold,
			})
			report, err := checker.Audit()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "done: fetch=%d translate=%d render=%d\n",
				report.DoneByStage["fetch"], report.DoneByStage["translate"], report.DoneByStage["render"])

			if len(report.Findings) == 0 {
				fmt.Fprintln(out, "no inconsistencies found")
				return nil
			}

			tw := newTable(out)
			tw.SetTitle(fmt.Sprintf("%d findings", len(report.Findings)))
			tw.AppendHeader(table.Row{"Stage", "Kind", "Item", "Detail"})
			for _, f := range report.Findings {
				tw.AppendRow(table.Row{f.Stage, f.Kind, f.Key, f.Detail})
			}
			tw.Render()
			return nil
		},
	}
}
