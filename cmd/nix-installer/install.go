package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/executor"
	"github.com/nixinstall/nix-installer/internal/logging"
	"github.com/nixinstall/nix-installer/internal/planner"
	"github.com/nixinstall/nix-installer/internal/plan"
	"github.com/nixinstall/nix-installer/internal/receipt"
)

var installFlags commonFlags

var installCmd = &cobra.Command{
	Use:   "install [planner]",
	Short: "Plan and execute a Nix install",
	Long: `Install plans a Nix install for the current (or explicitly named)
platform, prints the plan for review, and executes it. The receipt is
written once, after execution returns: on success, and also after a
failed, rolled-back run; a hard abort (second interrupt) writes none.

Planner defaults to the host's runtime.GOOS ("linux" or "darwin"); it
rarely needs to be given explicitly outside of testing.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		goos := runtime.GOOS
		if len(args) == 1 {
			goos = args[0]
		}

		settings, err := installFlags.resolveSettings(cmd)
		if err != nil {
			return err
		}
		log := logging.New(logging.Format(installFlags.logFormat), installFlags.verbosity)

		p, err := planner.For(goos)
		if err != nil {
			return err
		}
		archive := plan.ArchiveSource{
			URL:            installFlags.archiveURL,
			ExpectedDigest: installFlags.archiveDigest,
			Version:        installFlags.archiveVersion,
		}

		ctx := context.Background()
		built, err := p.Build(ctx, archive, settings)
		if err != nil {
			return reportError(log, err)
		}

		description, err := built.Describe(installFlags.verbosity >= 1)
		if err != nil {
			return err
		}
		fmt.Println(description)

		if !settings.NoConfirm {
			if !confirm("Proceed with install?") {
				fmt.Println("Aborted.")
				return nil
			}
		}

		soft, hard, stop := executor.InterruptContexts(ctx)
		defer stop()

		exec := executor.New(log)
		go drainEvents(exec, log)

		executed, execErr := exec.Execute(soft, hard, built)

		var abortErr *action.Error
		if !(errors.As(execErr, &abortErr) && abortErr.Tag == action.TagHardAbort) {
			if writeErr := receipt.Write(settings.ReceiptPath, executed); writeErr != nil {
				log.WithError(writeErr).Error("failed to write receipt")
			}
		}

		if execErr != nil {
			return reportError(log, execErr)
		}

		fmt.Printf("Install complete. Receipt written to %s\n", settings.ReceiptPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(installCmd)
	addCommonFlags(installCmd, &installFlags)
}

// confirm reads a y/n answer from stdin, mirroring the teacher's
// fmt.Scanln confirmation prompts in cmd/mup/cluster.go.
func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

// drainEvents logs the executor's progress stream until it closes,
// meant to run in its own goroutine for the duration of one
// Execute/Revert call.
func drainEvents(exec *executor.Executor, log *logrus.Logger) {
	for ev := range exec.Events() {
		entry := log.WithField("action", ev.Synopsis)
		switch ev.Kind {
		case executor.EventExecuting:
			entry.Info("executing")
		case executor.EventCompleted:
			entry.Info("completed")
		case executor.EventReverting:
			entry.Warn("reverting")
		case executor.EventReverted:
			entry.Warn("reverted")
		case executor.EventFailed:
			entry.WithError(ev.Err).Error("failed")
		}
	}
}

// reportError renders a taxonomy-tagged action.Error per spec.md §7's
// "User visibility": tag, synopsis path, cause, remediation hint.
func reportError(log *logrus.Logger, err error) error {
	var ae *action.Error
	if errors.As(err, &ae) {
		fmt.Fprintf(os.Stderr, "[%s] %s\n", ae.Tag, strings.Join(ae.SynopsisPath, " > "))
		if ae.Cause != nil {
			fmt.Fprintf(os.Stderr, "  cause: %v\n", ae.Cause)
		}
		if hint := ae.Remediation(); hint != "" {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", hint)
		}
	}
	return err
}
