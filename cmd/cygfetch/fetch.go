package main

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/config"
	"github.com/open-edge-platform/cygfetch/internal/ospackage"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/cygutils"
	"github.com/open-edge-platform/cygfetch/internal/ospackage/pkgfetcher"
	"github.com/open-edge-platform/cygfetch/internal/sbom"
	"github.com/open-edge-platform/cygfetch/internal/utils/logger"
	"github.com/spf13/cobra"
)

type fetchOptions struct {
	selectOptions
	workers int
	sbom    string
}

func createFetchCommand() *cobra.Command {
	opts := &fetchOptions{}

	fetchCmd := &cobra.Command{
		Use:   "fetch [flags] [PACKAGE...]",
		Short: "Download the selected packages into the cache",
		Long: `Resolve the selection like 'list' and download every archive that is not
already cached and verified into <cache_dir>/<escaped mirror URL>/.

Archives whose installed version is current are only downloaded when the
cached copy is missing or damaged.

Examples:
  cygfetch fetch gcc-core make
  cygfetch fetch --category Devel --source --workers 16
  cygfetch fetch --mirror https://mirrors.kernel.org/sourceware/cygwin/ --sbom-file sbom.json bash`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeFetch(cmd, args, opts)
		},
		ValidArgsFunction: packageNameCompletion,
	}

	opts.register(fetchCmd, true)
	fetchCmd.Flags().IntVarP(&opts.workers, "workers", "w", -1, "Number of concurrent download workers")
	fetchCmd.Flags().StringVar(&opts.sbom, "sbom-file", "", "Write an SPDX document describing the fetched archives")

	return fetchCmd
}

func executeFetch(cmd *cobra.Command, args []string, opts *fetchOptions) error {
	log := logger.Logger()

	if err := opts.applyOverrides(cmd); err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		if opts.workers < 1 || opts.workers > 100 {
			return fmt.Errorf("--workers must be between 1 and 100, got %d", opts.workers)
		}
		current := config.Global()
		current.Workers = opts.workers
		config.SetGlobal(current)
	}
	if err := config.EnsureCacheDir(); err != nil {
		return err
	}

	s, err := prepare(cmd.Context(), &opts.selectOptions, args, true)
	if err != nil {
		return err
	}

	fetchErr := cygutils.DownloadPackages(cmd.Context(), s.plan, s.client, s.mirrorURL, s.cacheRoot, config.Workers())
	if bf, ok := s.client.(*pkgfetcher.BreakerFetcher); ok {
		if tripped := bf.Tripped(); len(tripped) > 0 {
			log.Warnf("circuit open for %s; try another mirror", strings.Join(tripped, ", "))
		}
	}

	printSummary(cmd, s.plan)

	if opts.sbom != "" {
		entries := make([]sbom.Entry, 0, len(s.plan))
		for _, item := range s.plan {
			entries = append(entries, sbom.Entry{Package: item.Package, Record: item.Record, Kind: string(item.Kind)})
		}
		if err := sbom.WriteSPDXToFile(entries, s.mirrorURL, opts.sbom); err != nil {
			return err
		}
	}
	return fetchErr
}

// printSummary writes one line per transfer state that occurred.
func printSummary(cmd *cobra.Command, plan []cygutils.PlanItem) {
	order := []ospackage.TransferState{
		ospackage.StateNew, ospackage.StateUnchanged, ospackage.StateOlder,
		ospackage.StateNotFound, ospackage.StateError,
	}
	counts := map[ospackage.TransferState]int{}
	for _, item := range plan {
		counts[item.Record.State]++
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%d archives\n", len(plan))
	for _, st := range order {
		if n := counts[st]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", st.String()+":", n)
		}
	}
	for _, item := range plan {
		if item.Record.State == ospackage.StateNotFound || item.Record.State == ospackage.StateError {
			fmt.Fprintf(w, "  %s %s [%s]\n", item.Package.Name, item.Record.Path, item.Record.State)
		}
	}
}
