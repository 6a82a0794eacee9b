package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-edge-platform/cygfetch/internal/ospackage/setupini"
	"github.com/open-edge-platform/cygfetch/internal/utils/security"
	"github.com/spf13/cobra"
)

// completionTarget is where a user-scoped completion script goes, relative
// to the home directory.
var completionTarget = map[string]string{
	"bash":       ".bash_completion.d/cygfetch.bash",
	"zsh":        ".zsh/completion/_cygfetch",
	"fish":       ".config/fish/completions/cygfetch.fish",
	"powershell": "Documents/WindowsPowerShell/cygfetch-completion.ps1",
}

// createInstallCompletionCommand creates the install-completion subcommand
func createInstallCompletionCommand() *cobra.Command {
	installCompletionCmd := &cobra.Command{
		Use:   "install-completion",
		Short: "Install shell completion script",
		Long: `Install shell completion script for Bash, Zsh, Fish, or PowerShell.
Automatically detects your shell and installs the appropriate completion script.`,
		RunE: executeInstallCompletion,
	}

	installCompletionCmd.Flags().String("shell", "", "Specify shell type (bash, zsh, fish, powershell)")
	installCompletionCmd.Flags().Bool("force", false, "Force overwrite existing completion files")

	return installCompletionCmd
}

func detectShell() (string, error) {
	shellEnv := os.Getenv("SHELL")
	if shellEnv == "" {
		// On Windows, we may not have $SHELL
		if os.Getenv("PSModulePath") != "" {
			return "powershell", nil
		}
		return "", fmt.Errorf("could not detect shell. Please specify with --shell flag")
	}
	for _, sh := range []string{"bash", "zsh", "fish"} {
		if strings.Contains(filepath.Base(shellEnv), sh) {
			return sh, nil
		}
	}
	return "", fmt.Errorf("unsupported shell: %s. Please specify shell with --shell flag", shellEnv)
}

// executeInstallCompletion handles installation of shell completion scripts
func executeInstallCompletion(cmd *cobra.Command, args []string) error {
	shellType, err := cmd.Flags().GetString("shell")
	if err != nil {
		return err
	}
	userForce, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if shellType == "" {
		if shellType, err = detectShell(); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	switch shellType {
	case "bash":
		err = cmd.Root().GenBashCompletion(&buf)
	case "zsh":
		err = cmd.Root().GenZshCompletion(&buf)
	case "fish":
		err = cmd.Root().GenFishCompletion(&buf, true)
	case "powershell":
		err = cmd.Root().GenPowerShellCompletion(&buf)
	default:
		return fmt.Errorf("unsupported shell type: %s", shellType)
	}
	if err != nil {
		return fmt.Errorf("error generating %s completion: %w", shellType, err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("could not determine home directory: %w", err)
	}
	targetPath := filepath.Join(homeDir, filepath.FromSlash(completionTarget[shellType]))

	// Optional system install if writable and explicitly requested
	// (e.g., export CYGFETCH_COMPLETION_SCOPE=system)
	if shellType == "bash" && os.Getenv("CYGFETCH_COMPLETION_SCOPE") == "system" {
		systemDir := "/etc/bash_completion.d"
		if _, err := os.Stat(systemDir); err == nil && dirWritable(systemDir) {
			targetPath = filepath.Join(systemDir, "cygfetch.bash")
		}
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
		return fmt.Errorf("could not create directory %s: %w", filepath.Dir(targetPath), err)
	}
	if _, err := os.Stat(targetPath); err == nil && !userForce {
		return fmt.Errorf("completion file already exists at %s. Use --force to overwrite", targetPath)
	}
	if err := security.SafeWriteFile(targetPath, buf.Bytes(), 0600, security.RejectSymlinks); err != nil {
		return fmt.Errorf("could not write completion file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Shell completion installed for %s at %s\n", shellType, targetPath)
	return nil
}

// dirWritable checks if the specified directory is writable by attempting to create and remove a temporary file.
func dirWritable(p string) bool {
	tf, err := os.CreateTemp(p, ".probe-*")
	if err != nil {
		return false
	}
	tf.Close()
	_ = os.Remove(tf.Name())
	return true
}

// packageNameCompletion completes package names from the manifest given
// with --manifest. Without one there is nothing to offer.
func packageNameCompletion(cmd *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	path, _ := cmd.Flags().GetString("manifest")
	if path == "" {
		return nil, cobra.ShellCompDirectiveDefault
	}
	plain, cleanup, err := localManifest(path)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer cleanup()

	f, err := security.SafeOpenFile(plain, os.O_RDONLY, 0, security.ResolveSymlinks)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer f.Close()

	idx, _, err := setupini.Parse(f, setupini.Options{})
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	var names []string
	for _, n := range idx.Names() {
		if strings.HasPrefix(n, toComplete) {
			names = append(names, n)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}
