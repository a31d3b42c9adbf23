package hostio

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint is the short, deterministic-per-run tag suffixed onto
// backed-up files by the Back-up discipline in spec.md §4.A ("moves
// the original to a sibling path suffixed with the installer's
// fingerprint"). It is derived from the process start time and PID so
// that concurrent or historical installer runs never collide, using
// blake2b in place of the teacher's now-unneeded x/crypto/ssh (see
// DESIGN.md for why the SSH executor was dropped).
type Fingerprint string

// NewFingerprint derives a fingerprint from the current process.
func NewFingerprint() Fingerprint {
	return DeriveFingerprint(os.Getpid(), time.Now())
}

// DeriveFingerprint is the pure function behind NewFingerprint, split
// out so planning stays deterministic and testable (spec.md §4.A:
// "Planning is deterministic given identical inputs").
func DeriveFingerprint(pid int, startedAt time.Time) Fingerprint {
	seed := fmt.Sprintf("nix-installer:%d:%d", pid, startedAt.UnixNano())
	sum := blake2b.Sum256([]byte(seed))
	return Fingerprint(hex.EncodeToString(sum[:])[:12])
}

// BackupSuffix returns the sibling path a file gets moved to before
// being overwritten: "<path>.nix-installer-<fingerprint>".
func (f Fingerprint) BackupSuffix() string {
	return fmt.Sprintf(".nix-installer-%s", string(f))
}
