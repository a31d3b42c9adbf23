package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer/internal/cure"
	"github.com/nixinstall/nix-installer/internal/executor"
	"github.com/nixinstall/nix-installer/internal/logging"
	"github.com/nixinstall/nix-installer/internal/planner"
	nixplan "github.com/nixinstall/nix-installer/internal/plan"
	"github.com/nixinstall/nix-installer/internal/receipt"
)

var repairFlags commonFlags

var repairCmd = &cobra.Command{
	Use:   "repair [planner]",
	Short: "Reconcile a fresh plan against the live host and finish what's missing",
	Long: `Repair implements the cure protocol (spec.md §4.F): it computes a
fresh plan the same way install would, then classifies each top-level
action against a "ghost" of what the host already shows -- loaded from
the receipt if one exists, or synthesized from live host inspection
otherwise. Actions that already match (or can be adopted) are marked
Completed without re-running; only genuinely missing actions execute.
A single conflicting classification aborts the whole repair with no
mutation.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goos := runtime.GOOS
		if len(args) == 1 {
			goos = args[0]
		}

		settings, err := repairFlags.resolveSettings(cmd)
		if err != nil {
			return err
		}
		log := logging.New(logging.Format(repairFlags.logFormat), repairFlags.verbosity)

		pl, err := planner.For(goos)
		if err != nil {
			return err
		}
		archive := nixplan.ArchiveSource{
			URL:            repairFlags.archiveURL,
			ExpectedDigest: repairFlags.archiveDigest,
			Version:        repairFlags.archiveVersion,
		}

		ctx := context.Background()
		fresh, err := pl.Build(ctx, archive, settings)
		if err != nil {
			return reportError(log, err)
		}

		var ghost *nixplan.Plan
		if receipt.Exists(settings.ReceiptPath) {
			ghost, err = receipt.Load(settings.ReceiptPath)
			if err != nil && !settings.Force {
				return reportError(log, err)
			}
		}
		if ghost == nil {
			log.Info("no usable receipt, synthesizing ghost plan from live host inspection")
			ghost, err = cure.SynthesizeGhost(ctx, fresh)
			if err != nil {
				return fmt.Errorf("synthesizing ghost plan: %w", err)
			}
		}

		classifications := cure.Classify(fresh, ghost)
		for _, c := range classifications {
			log.WithFields(map[string]interface{}{
				"action":  c.Fresh.TracingSynopsis(),
				"verdict": c.Verdict,
			}).Info("cure classification")
		}

		if err := cure.Apply(classifications); err != nil {
			return reportError(log, err)
		}

		if !settings.NoConfirm {
			description, err := fresh.Describe(repairFlags.verbosity >= 1)
			if err != nil {
				return err
			}
			fmt.Println(description)
			if !confirm("Proceed with repair?") {
				fmt.Println("Aborted.")
				return nil
			}
		}

		soft, hard, stop := executor.InterruptContexts(ctx)
		defer stop()

		exec := executor.New(log)
		go drainEvents(exec, log)

		executed, execErr := exec.Execute(soft, hard, fresh)
		if writeErr := receipt.Write(settings.ReceiptPath, executed); writeErr != nil {
			log.WithError(writeErr).Error("failed to write receipt")
		}
		if execErr != nil {
			return reportError(log, execErr)
		}

		fmt.Printf("Repair complete. Receipt written to %s\n", settings.ReceiptPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(repairCmd)
	addCommonFlags(repairCmd, &repairFlags)
}
