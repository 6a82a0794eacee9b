package main

import (
	"github.com/open-edge-platform/cygfetch/internal/ospackage/cygutils"
	"github.com/spf13/cobra"
)

type listOptions struct {
	selectOptions
	format string
	fields cygutils.ReportFields
}

func createListCommand() *cobra.Command {
	opts := &listOptions{}

	listCmd := &cobra.Command{
		Use:   "list [flags] [PACKAGE...]",
		Short: "Show the selected packages and their dependencies",
		Long: `Read the manifest, select packages, follow dependencies and print one
record per resolved package with its version, archives and transfer state
against the local installation (New, Unchanged or Older).

Examples:
  # bash and everything it needs
  cygfetch list --deps bash

  # the Base category from a local manifest, as JSON
  cygfetch list --manifest setup.ini --category Base --format json

  # every perl module, compared with an existing installation
  cygfetch list --regex '^perl-' --root /cygdrive/c/cygwin64`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeList(cmd, args, opts)
		},
		ValidArgsFunction: packageNameCompletion,
	}

	opts.register(listCmd, false)
	f := listCmd.Flags()
	f.StringVarP(&opts.format, "format", "o", "text", "Output format (text, json, yaml)")
	f.BoolVar(&opts.fields.LongDesc, "long-desc", false, "Include the long description")
	f.BoolVar(&opts.fields.Hash, "hash", false, "Include archive hashes")
	f.BoolVar(&opts.fields.Obsoletes, "obsoletes", false, "Include obsoleted packages")
	f.BoolVar(&opts.fields.Conflicts, "conflicts", false, "Include conflicting packages")
	f.BoolVar(&opts.fields.ReplaceVersions, "replace-versions", false, "Include replace-versions")

	return listCmd
}

func executeList(cmd *cobra.Command, args []string, opts *listOptions) error {
	if err := opts.applyOverrides(cmd); err != nil {
		return err
	}
	opts.fields.Source = opts.source
	opts.keep.LongDesc = opts.fields.LongDesc
	opts.keep.Obsoletes = opts.fields.Obsoletes
	opts.keep.Conflicts = opts.fields.Conflicts
	opts.keep.ReplaceVersions = opts.fields.ReplaceVersions

	s, err := prepare(cmd.Context(), &opts.selectOptions, args, false)
	if err != nil {
		return err
	}
	rep := cygutils.BuildReport(s.targets, s.index, opts.fields)
	return cygutils.WriteReport(cmd.OutOrStdout(), rep, opts.format)
}
