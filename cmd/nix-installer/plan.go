package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer/internal/planner"
	nixplan "github.com/nixinstall/nix-installer/internal/plan"
)

var (
	planFlags   commonFlags
	planOutFile string
	planExplain bool
)

var planCmd = &cobra.Command{
	Use:   "plan [planner]",
	Short: "Compute an install plan and write it to a file for review",
	Long: `Plan runs the same planning step install would, but stops short of
executing: it serializes the plan as JSON to --out-file so it can be
reviewed or diffed against a later plan run before anything is
mutated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if planOutFile == "" {
			return fmt.Errorf("--out-file is required")
		}

		goos := runtime.GOOS
		if len(args) == 1 {
			goos = args[0]
		}

		settings, err := planFlags.resolveSettings(cmd)
		if err != nil {
			return err
		}

		p, err := planner.For(goos)
		if err != nil {
			return err
		}
		archive := nixplan.ArchiveSource{
			URL:            planFlags.archiveURL,
			ExpectedDigest: planFlags.archiveDigest,
			Version:        planFlags.archiveVersion,
		}

		built, err := p.Build(context.Background(), archive, settings)
		if err != nil {
			return err
		}

		description, err := built.Describe(planExplain)
		if err != nil {
			return err
		}
		fmt.Println(description)

		data, err := built.Serialize()
		if err != nil {
			return fmt.Errorf("serializing plan: %w", err)
		}
		if err := os.WriteFile(planOutFile, data, 0o644); err != nil {
			return fmt.Errorf("writing plan to %s: %w", planOutFile, err)
		}

		fmt.Printf("Plan written to %s\n", planOutFile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	addCommonFlags(planCmd, &planFlags)
	planCmd.Flags().StringVar(&planOutFile, "out-file", "", "path to write the serialized plan JSON (required)")
	planCmd.Flags().BoolVar(&planExplain, "explain", false, "include each action's explanation lines in the printed description")
}
