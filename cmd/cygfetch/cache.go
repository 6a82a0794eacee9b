package main

import (
	"fmt"

	"github.com/open-edge-platform/cygfetch/internal/cache"
	"github.com/spf13/cobra"
)

func createCacheCommand() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached artifacts",
		Long: `Manage the per-mirror download cache.

Available commands:
  clean    Remove cached archives or manifests`,
	}

	cacheCmd.AddCommand(createCacheCleanCommand())

	return cacheCmd
}

func createCacheCleanCommand() *cobra.Command {
	var (
		opts cache.CleanOptions
		all  bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove cached archives or manifests",
		Long: `Remove downloaded archives or manifests to reclaim disk space.

By default, the command removes the release/ trees of every cached mirror.
Use flags to target manifests or to restrict cleanup to one mirror.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				opts.CleanArchives = true
				opts.CleanManifests = true
			} else if !cmd.Flags().Changed("archives") && !cmd.Flags().Changed("manifests") {
				opts.CleanArchives = true
			}

			if !opts.CleanArchives && !opts.CleanManifests {
				return fmt.Errorf("nothing to clean: specify --archives, --manifests, or --all")
			}

			result, err := cache.Clean(opts)
			if err != nil {
				return err
			}

			output := []string{}
			if opts.DryRun {
				output = append(output, "Dry run: no files were deleted.")
			}

			if len(result.RemovedPaths) > 0 {
				header := "Removed paths:"
				if opts.DryRun {
					header = "Would remove:"
				}
				output = append(output, header)
				output = append(output, indentPaths(result.RemovedPaths)...)
			}

			if len(result.RemovedPaths) == 0 && len(result.SkippedPaths) == 0 {
				scopeDesc := "archive cache"
				if opts.CleanArchives && opts.CleanManifests {
					scopeDesc = "archive or manifest cache"
				} else if opts.CleanManifests {
					scopeDesc = "manifest cache"
				}
				if opts.Mirror != "" {
					scopeDesc += fmt.Sprintf(" for mirror '%s'", opts.Mirror)
				}
				output = append(output, fmt.Sprintf("No %s entries found.", scopeDesc))
			}

			if len(result.SkippedPaths) > 0 {
				output = append(output, "Skipped (not found):")
				output = append(output, indentPaths(result.SkippedPaths)...)
			}

			writer := cmd.OutOrStdout()
			for _, line := range output {
				fmt.Fprintln(writer, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove both archives and manifests")
	cmd.Flags().BoolVar(&opts.CleanArchives, "archives", false, "Remove downloaded archives (release/ trees)")
	cmd.Flags().BoolVar(&opts.CleanManifests, "manifests", false, "Remove cached setup.* manifests and signatures")
	cmd.Flags().StringVar(&opts.Mirror, "mirror", "", "Restrict cleanup to one mirror (URL or cache directory name)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Show what would be removed without deleting anything")

	return cmd
}

func indentPaths(values []string) []string {
	lines := make([]string, len(values))
	for i, v := range values {
		lines[i] = "  " + v
	}
	return lines
}
