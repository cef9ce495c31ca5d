package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for studyshelf
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "studyshelf",
		Short: "Remote study-material catalog service",
		Long: `StudyShelf crawls a folder of a remote repository, classifies every
file it finds into a catalog of study materials, and serves that
catalog over a JSON API with search, subject and kind filters.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewCrawlCommand())

	return cmd
}
