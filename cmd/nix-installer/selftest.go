package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer/internal/config"
	"github.com/nixinstall/nix-installer/internal/hostio"
	"github.com/nixinstall/nix-installer/internal/logging"
)

var (
	selfTestReceiptPath string
	selfTestLogFormat   string
	selfTestVerbosity   int
)

var selfTestCmd = &cobra.Command{
	Use:   "self-test",
	Short: "Check a completed install for basic health, without mutating anything",
	Long: `Self-test runs a handful of read-only checks against a completed
install: the store root /nix exists, the default build group is
present, and nix evaluates a trivial expression. Build users, the
daemon's init unit and the receipt are not checked. It never writes
anything; a failing check exits non-zero with a description of
what's wrong.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logging.New(logging.Format(selfTestLogFormat), selfTestVerbosity)
		ctx := context.Background()
		host := hostio.NewLocal()

		checks := []struct {
			name string
			run  func() error
		}{
			{"store root exists", func() error { return checkIsDirectory(host, "/nix") }},
			{"build group is provisioned", func() error {
				_, ok, err := host.LookupGroup(config.DefaultBuildGroupName)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("group %q not found", config.DefaultBuildGroupName)
				}
				return nil
			}},
			{"nix evaluates a trivial expression", func() error {
				path, ok := host.LookPath("nix")
				if !ok {
					return fmt.Errorf("nix not found on PATH")
				}
				_, err := host.Run(ctx, path, "eval", "--expr", "1 + 1")
				return err
			}},
		}

		failed := 0
		for _, c := range checks {
			if err := c.run(); err != nil {
				log.WithError(err).WithField("check", c.name).Error("self-test check failed")
				failed++
				continue
			}
			log.WithField("check", c.name).Info("ok")
		}

		if failed > 0 {
			return fmt.Errorf("%d self-test check(s) failed", failed)
		}
		fmt.Println("Self-test passed.")
		return nil
	},
}

func checkIsDirectory(host hostio.Host, path string) error {
	isDir, err := host.IsDirectory(path)
	if err != nil {
		return err
	}
	if !isDir {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(selfTestCmd)
	selfTestCmd.Flags().StringVar(&selfTestReceiptPath, "receipt-path", config.Default().ReceiptPath, "receipt to cross-check against (currently informational)")
	selfTestCmd.Flags().StringVar(&selfTestLogFormat, "log-format", "compact", "log rendering: compact|full|pretty|json")
	selfTestCmd.Flags().CountVarP(&selfTestVerbosity, "verbose", "v", "increase log verbosity (-v, -vv)")
}
