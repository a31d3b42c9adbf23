package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/logging"
	"github.com/nixinstall/nix-installer/internal/receipt"
)

var (
	uninstallNoConfirm  bool
	uninstallForce      bool
	uninstallLogFormat  string
	uninstallVerbosity  int
)

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [receipt-path]",
	Short: "Revert a prior install using its receipt",
	Long: `Uninstall reverts every action recorded in the receipt, in reverse
order. A failed revert is reported and the sweep goes on; the receipt
is deleted once the sweep ends, failed reverts included.
Receipt-path defaults to /nix/receipt.json.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Default().ReceiptPath
		if len(args) == 1 {
			path = args[0]
		}

		log := logging.New(logging.Format(uninstallLogFormat), uninstallVerbosity)

		if !receipt.Exists(path) {
			return fmt.Errorf("no receipt found at %s", path)
		}

		p, err := receipt.Load(path)
		if err != nil {
			if !uninstallForce {
				return reportError(log, err)
			}
			log.WithError(err).Warn("receipt incompatible, retrying with --force")
			p, err = receipt.LoadForced(path)
			if err != nil {
				return reportError(log, err)
			}
		}

		if !uninstallNoConfirm {
			description, err := p.DescribeUninstall(uninstallVerbosity >= 1)
			if err != nil {
				return err
			}
			fmt.Println(description)
			if !confirm(fmt.Sprintf("Uninstall using receipt %s?", path)) {
				fmt.Println("Aborted.")
				return nil
			}
		}

		ctx := context.Background()
		if err := receipt.Uninstall(ctx, path, p, nil); err != nil {
			return reportError(log, err)
		}

		fmt.Println("Uninstall complete.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
	uninstallCmd.Flags().BoolVar(&uninstallNoConfirm, "no-confirm", false, "skip the interactive confirmation prompt")
	uninstallCmd.Flags().BoolVar(&uninstallForce, "force", false, "proceed even if the receipt fails schema validation")
	uninstallCmd.Flags().StringVar(&uninstallLogFormat, "log-format", "compact", "log rendering: compact|full|pretty|json")
	uninstallCmd.Flags().CountVarP(&uninstallVerbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
}
