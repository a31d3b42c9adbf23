package plan

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/config"
)

// wireForm is the on-disk JSON shape of a Plan: the same fields as
// Plan, with Actions replaced by their serialized Envelope form. This
// mirrors spec.md §6's receipt format ("version, planner, actions").
type wireForm struct {
	ID            string            `json:"id"`
	SchemaVersion int               `json:"schema_version"`
	PlannerTag    string            `json:"planner_tag"`
	Archive       ArchiveSource     `json:"archive"`
	Settings      config.Settings   `json:"settings"`
	CreatedAt     time.Time         `json:"created_at"`
	Actions       []action.Envelope `json:"actions"`
}

// MarshalJSON implements json.Marshaler, converting live Actions to
// their Envelope form.
func (p *Plan) MarshalJSON() ([]byte, error) {
	envs := make([]action.Envelope, 0, len(p.Actions))
	for _, a := range p.Actions {
		env, err := action.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("marshaling action %s: %w", a.TracingSynopsis(), err)
		}
		envs = append(envs, env)
	}
	return json.Marshal(wireForm{
		ID:            p.ID,
		SchemaVersion: p.SchemaVersion,
		PlannerTag:    p.PlannerTag,
		Archive:       p.Archive,
		Settings:      p.Settings,
		CreatedAt:     p.CreatedAt,
		Actions:       envs,
	})
}

// UnmarshalJSON implements json.Unmarshaler, reconstructing live
// Actions from their Envelope form via the action Registry.
func (p *Plan) UnmarshalJSON(data []byte) error {
	var wire wireForm
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	p.ID = wire.ID
	p.SchemaVersion = wire.SchemaVersion
	p.PlannerTag = wire.PlannerTag
	p.Archive = wire.Archive
	p.Settings = wire.Settings
	p.CreatedAt = wire.CreatedAt
	p.Actions = make([]action.Action, 0, len(wire.Actions))
	for _, env := range wire.Actions {
		a, err := action.Unmarshal(env)
		if err != nil {
			return fmt.Errorf("unmarshaling top-level action: %w", err)
		}
		p.Actions = append(p.Actions, a)
	}
	return nil
}

// Serialize renders the plan as indented JSON, suitable for a
// human-reviewable `plan --out-file` artifact (spec.md §6).
func (p *Plan) Serialize() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Deserialize parses a plan previously produced by Serialize. Callers
// that need schema-version compatibility checking should use
// internal/receipt.Load instead, which additionally runs the migration
// chain.
func Deserialize(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("deserializing plan: %w", err)
	}
	return &p, nil
}
