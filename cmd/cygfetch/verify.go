package main

import (
	"fmt"
	"os"

	"github.com/open-edge-platform/cygfetch/internal/config"
	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/cygutils"
	"github.com/spf13/cobra"
)

func createVerifyCommand() *cobra.Command {
	opts := &selectOptions{}

	verifyCmd := &cobra.Command{
		Use:   "verify [flags] [PACKAGE...]",
		Short: "Check cached archives against the manifest hashes",
		Long: `Resolve the selection like 'fetch' and check that every cached archive
has the size and hash the manifest records. Nothing is downloaded.

Examples:
  cygfetch verify --category Base
  cygfetch verify --source gcc-core`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeVerify(cmd, args, opts)
		},
		ValidArgsFunction: packageNameCompletion,
	}
	opts.register(verifyCmd, true)
	return verifyCmd
}

func executeVerify(cmd *cobra.Command, args []string, opts *selectOptions) error {
	if err := opts.applyOverrides(cmd); err != nil {
		return err
	}
	s, err := prepare(cmd.Context(), opts, args, true)
	if err != nil {
		return err
	}

	var paths []string
	var records []*ospackage.FileRecord
	missing := 0
	w := cmd.OutOrStdout()
	for _, item := range s.plan {
		path := cygutils.CachePath(s.cacheRoot, item.Record)
		if _, err := os.Stat(path); err != nil {
			fmt.Fprintf(w, "  missing  %s\n", item.Record.Path)
			missing++
			continue
		}
		paths = append(paths, path)
		records = append(records, item.Record)
	}

	failed := 0
	for i, res := range cygutils.VerifyArchives(paths, records, config.Workers()) {
		if !res.OK {
			fmt.Fprintf(w, "  FAILED   %s: %v\n", records[i].Path, res.Error)
			failed++
		}
	}
	fmt.Fprintf(w, "%d archives verified, %d failed, %d not cached\n", len(paths)-failed, failed, missing)
	if failed > 0 {
		return fmt.Errorf("%d cached archives failed verification", failed)
	}
	return nil
}
