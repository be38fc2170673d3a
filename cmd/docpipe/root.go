package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "docpipe",
		Short:         "Fetch, translate, and render documentation as PDF",
		Long:          "docpipe downloads a documentation site as Markdown, translates it, and renders PDFs.\nEvery stage records durable per-item progress, so an interrupted run resumes where it stopped.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cc.configPath, "config", "", "path to config file")

	root.AddCommand(
		newFetchCommand(cc),
		newTranslateCommand(cc),
		newRenderCommand(cc),
		newRunCommand(cc),
		newAuditCommand(cc),
		newStatusCommand(cc),
		newConfigCommand(cc),
	)
	return root
}
