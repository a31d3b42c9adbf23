// Package base implements the primitive (non-composite) action kinds:
// single host mutations with no children, grounded on the teacher's
// pkg/operation handlers but reshaped onto the Action interface's
// plan/execute/revert lifecycle instead of the teacher's
// IsComplete/PreHook/Execute/PostHook four-phase handler protocol.
package base

import (
	"github.com/nixinstall/nix-installer/internal/hostio"
)

// Host is the shared local-host adapter every primitive action uses.
// It is a package variable rather than a per-action field so that
// registry-constructed zero values (rehydrated from a receipt) have a
// working host without needing a dependency-injection step wired
// through JSON. Tests may swap it for a fake that satisfies
// hostio.Host.
var Host hostio.Host = hostio.NewLocal()

// Fingerprinter returns the backup-suffix fingerprint used by actions
// that move a pre-existing file aside instead of deleting it. It is a
// package variable for the same rehydration reason as Host: production
// code lets it default to a fresh per-run fingerprint, tests substitute
// a fixed one for reproducible assertions.
var Fingerprinter = hostio.NewFingerprint
