package main

import (
	"fmt"

	"github.com/open-edge-platform/cygfetch/internal/config/version"
	"github.com/spf13/cobra"
)

// createVersionCommand creates the version subcommand
func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Run:   executeVersion,
	}
}

func executeVersion(cmd *cobra.Command, _ []string) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s v%s\n", version.Toolname, version.Version)
	fmt.Fprintf(w, "Build Date: %s\n", version.BuildDate)
	fmt.Fprintf(w, "Commit: %s\n", version.CommitSHA)
	fmt.Fprintf(w, "Organization: %s\n", version.Organization)
}
