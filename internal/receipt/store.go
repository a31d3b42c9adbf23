// Package receipt persists a completed (or partially completed) Plan
// durably to disk so a later `uninstall` or `repair` invocation can
// reconstruct exactly what was done. Grounded on
// original_source/src/plan.rs's write_receipt and the teacher's
// pkg/plan/store.go SavePlan/LoadPlan, but strengthened to the
// stricter fsync sequence spec.md §4.E requires: the original writes
// the receipt directly; this store always goes through a tempfile,
// fsyncs it, renames it into place, then fsyncs the containing
// directory, so a crash never leaves a torn receipt on disk.
package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nixinstall/nix-installer/internal/hostio"
	"github.com/nixinstall/nix-installer/internal/plan"
)

var host = hostio.NewLocal()

// checksumSuffix names the sidecar file carrying the receipt's
// SHA-256, letting Load detect silent on-disk corruption before it
// ever reaches JSON unmarshaling.
const checksumSuffix = ".sha256"

// Write durably persists p to path: tempfile, fsync, rename, directory
// fsync, then a checksum sidecar written the same way.
func Write(path string, p *plan.Plan) error {
	data, err := p.Serialize()
	if err != nil {
		return fmt.Errorf("serializing receipt: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating receipt directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing receipt tempfile %s: %w", tmp, err)
	}
	if err := host.FsyncFile(tmp); err != nil {
		return fmt.Errorf("fsyncing receipt tempfile %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming receipt into place at %s: %w", path, err)
	}
	if err := host.FsyncDir(dir); err != nil {
		return fmt.Errorf("fsyncing receipt directory %s: %w", dir, err)
	}

	sum := sha256.Sum256(data)
	checksumPath := path + checksumSuffix
	checksumTmp := checksumPath + ".tmp"
	if err := os.WriteFile(checksumTmp, []byte(hex.EncodeToString(sum[:])), 0o644); err != nil {
		return fmt.Errorf("writing checksum tempfile %s: %w", checksumTmp, err)
	}
	if err := host.FsyncFile(checksumTmp); err != nil {
		return fmt.Errorf("fsyncing checksum tempfile %s: %w", checksumTmp, err)
	}
	if err := os.Rename(checksumTmp, checksumPath); err != nil {
		_ = os.Remove(checksumTmp)
		return fmt.Errorf("renaming checksum into place at %s: %w", checksumPath, err)
	}
	return host.FsyncDir(dir)
}

// Delete removes the receipt and its checksum sidecar. Uninstall calls
// it once its revert sweep ends, failed reverts included, unless an
// action was operator-skipped.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing receipt %s: %w", path, err)
	}
	if err := os.Remove(path + checksumSuffix); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing receipt checksum %s: %w", path+checksumSuffix, err)
	}
	return nil
}
