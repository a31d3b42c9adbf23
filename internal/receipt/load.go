package receipt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/plan"
)

// receiptEnvelope is the minimal shape Load needs before it can decide
// whether a migration is required.
type receiptEnvelope struct {
	SchemaVersion int `json:"schema_version"`
}

// Load reads the receipt at path, verifies its checksum sidecar,
// migrates it forward if it was written by an older binary, and
// returns the fully rehydrated Plan. A missing checksum sidecar is
// tolerated (older receipts predate it); a mismatched one is not.
func Load(path string) (*plan.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", fmt.Errorf("reading %s: %w", path, err))
	}

	if checksum, err := os.ReadFile(path + checksumSuffix); err == nil {
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != string(checksum) {
			return nil, action.NewError(action.TagReceiptIncompatible, "load receipt",
				fmt.Errorf("checksum mismatch for %s: receipt has been modified or corrupted", path))
		}
	}

	var env receiptEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", fmt.Errorf("parsing receipt envelope: %w", err))
	}

	if env.SchemaVersion > plan.CurrentSchemaVersion {
		return nil, action.NewError(action.TagReceiptIncompatible, "load receipt",
			fmt.Errorf("receipt schema version %d is newer than this binary supports (max %d)",
				env.SchemaVersion, plan.CurrentSchemaVersion))
	}

	if env.SchemaVersion < plan.CurrentSchemaVersion {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", fmt.Errorf("parsing receipt for migration: %w", err))
		}
		migrated, err := plan.Migrate(raw, env.SchemaVersion)
		if err != nil {
			return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", err)
		}
		data, err = json.Marshal(migrated)
		if err != nil {
			return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", fmt.Errorf("re-encoding migrated receipt: %w", err))
		}
	}

	p, err := plan.Deserialize(data)
	if err != nil {
		return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", err)
	}
	return p, nil
}

// Exists reports whether a receipt file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LoadForced is Load's best-effort counterpart for `uninstall --force`
// (spec.md §7: "Uninstall aborts unless --force"): it tolerates a
// missing or mismatched checksum sidecar and a schema version newer
// than this binary knows how to migrate, since an operator reaching
// for --force has already accepted the receipt might not be pristine.
// It still refuses a receipt whose JSON itself won't parse -- there is
// no plan to act on in that case, forced or not.
func LoadForced(path string) (*plan.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", fmt.Errorf("reading %s: %w", path, err))
	}

	var env receiptEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", fmt.Errorf("parsing receipt envelope: %w", err))
	}

	if env.SchemaVersion < plan.CurrentSchemaVersion {
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(data, &raw); err == nil {
			if migrated, err := plan.Migrate(raw, env.SchemaVersion); err == nil {
				if reencoded, err := json.Marshal(migrated); err == nil {
					data = reencoded
				}
			}
		}
	}

	p, err := plan.Deserialize(data)
	if err != nil {
		return nil, action.NewError(action.TagReceiptIncompatible, "load receipt", err)
	}
	return p, nil
}
