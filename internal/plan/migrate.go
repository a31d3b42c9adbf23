package plan

import (
	"encoding/json"
	"fmt"
)

// Migration transforms a raw receipt document from one schema version
// to the next. Migrations operate on the raw JSON object rather than
// the typed Plan so that a migration can add, rename, or restructure
// fields the current Plan struct doesn't even carry anymore.
type Migration func(raw map[string]json.RawMessage) (map[string]json.RawMessage, error)

// migrations is keyed by source version: migrations[1] takes a v1
// document to v2. There are none yet since CurrentSchemaVersion is
// still 1; the chain exists so the first real bump only needs one new
// entry, not a rewrite of the loader.
var migrations = map[int]Migration{}

// Migrate walks raw forward from fromVersion to CurrentSchemaVersion,
// applying each registered migration in turn. It refuses to migrate
// backward or across a gap with no registered step, and rejects a
// fromVersion newer than this binary knows (spec.md §4.E: "refuses to
// load anything with a higher-than-known schema version").
func Migrate(raw map[string]json.RawMessage, fromVersion int) (map[string]json.RawMessage, error) {
	if fromVersion > CurrentSchemaVersion {
		return nil, fmt.Errorf("receipt schema version %d is newer than this binary supports (max %d)", fromVersion, CurrentSchemaVersion)
	}
	version := fromVersion
	for version < CurrentSchemaVersion {
		migrate, ok := migrations[version]
		if !ok {
			return nil, fmt.Errorf("no migration registered from schema version %d to %d", version, version+1)
		}
		next, err := migrate(raw)
		if err != nil {
			return nil, fmt.Errorf("migrating schema v%d to v%d: %w", version, version+1, err)
		}
		raw = next
		version++
	}
	return raw, nil
}
