package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nix-installer",
	Short: "Install, uninstall, and repair a Nix installation",
	Long: `nix-installer plans and executes a reversible, receipted install of the
Nix package manager as a DAG of typed actions.

The settings flags of install, repair and plan each have a
NIX_INSTALLER_<NAME> environment mirror (the table is envBindings in
internal/config). --settings-file, --verbose and the --archive-* flags
have none, and neither do the flags of uninstall and self-test.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
