package executor

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

func interruptSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}

// InterruptContexts returns two derived contexts wired to the
// process's interrupt signals per spec.md §7's Cancelled/HardAbort
// split: soft is cancelled on the first SIGINT/SIGTERM, giving
// Execute a chance to roll back cleanly; hard is cancelled on the
// second one, telling Execute to abort immediately with no rollback
// and no receipt. stop releases the underlying signal.Notify channel
// and must be deferred by the caller.
//
// This is plain os/signal rather than a third-party signal library:
// the pack carries golang.org/x/sys/unix for raw syscalls (used by
// internal/hostio and internal/supervisorinit for liveness checks),
// but two-stage Notify-based interrupt handling is exactly what
// os/signal is for, and no example repo reaches for anything else to
// do it.
func InterruptContexts(parent context.Context) (soft, hard context.Context, stop func()) {
	softCtx, cancelSoft := context.WithCancel(parent)
	hardCtx, cancelHard := context.WithCancel(parent)

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, interruptSignals()...)

	var once sync.Once
	done := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case <-sigs:
				count++
				if count == 1 {
					cancelSoft()
				} else {
					cancelHard()
					return
				}
			case <-done:
				return
			}
		}
	}()

	stopFn := func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(done)
			cancelSoft()
			cancelHard()
		})
	}
	return softCtx, hardCtx, stopFn
}
