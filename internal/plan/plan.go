// Package plan implements the Plan data model from spec.md §4.C: an
// ordered array of top-level Actions (the DAG-as-array encoding) plus
// the metadata needed to review, serialize, and re-hydrate an install.
package plan

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/config"
)

// CurrentSchemaVersion is the receipt/plan schema version this binary
// writes. Loaders accept this version or lower (via migration); they
// refuse anything higher (spec.md §4.E).
const CurrentSchemaVersion = 1

// ArchiveSource describes where the target's archive comes from: an
// embedded blob (the common case for a single statically-linked
// installer) or a URL, either way pinned to an expected digest and
// version so fetch-and-move/unpack actions can verify before trusting
// it (spec.md §4.B "verifies digest before unpack").
type ArchiveSource struct {
	URL             string `json:"url,omitempty"`
	EmbeddedBlobRef string `json:"embedded_blob_ref,omitempty"`
	ExpectedDigest  string `json:"expected_digest"`
	Version         string `json:"version"`
}

// IsEmbedded reports whether the archive comes from the binary's own
// embedded blob rather than a network fetch.
func (a ArchiveSource) IsEmbedded() bool { return a.EmbeddedBlobRef != "" }

// Plan is a record of a planner's assembled top-level actions plus the
// metadata spec.md §4.C requires: planner tag, target archive
// descriptor, resolved settings, and schema version.
type Plan struct {
	ID            string          `json:"id"`
	SchemaVersion int             `json:"schema_version"`
	PlannerTag    string          `json:"planner_tag"`
	Archive       ArchiveSource   `json:"archive"`
	Settings      config.Settings `json:"settings"`
	CreatedAt     time.Time       `json:"created_at"`
	Actions       []action.Action `json:"-"`
}

// New constructs an empty Plan for the given planner tag, archive
// descriptor, and settings, ready to be populated with top-level
// actions by a Planner implementation. ID is a random UUID: distinct
// plan/execute cycles against the same host (e.g. a cured re-install)
// each get their own identity in logs even when their action sequence
// is byte-for-byte identical.
func New(plannerTag string, archive ArchiveSource, settings config.Settings) *Plan {
	return &Plan{
		ID:            uuid.NewString(),
		SchemaVersion: CurrentSchemaVersion,
		PlannerTag:    plannerTag,
		Archive:       archive,
		Settings:      settings,
		CreatedAt:     time.Now(),
	}
}

// AddAction appends a top-level action. Top-level actions execute in
// append order and revert in reverse order (spec.md §4.C invariant:
// "the top-level action sequence, read left-to-right, is the
// execution order").
func (p *Plan) AddAction(a action.Action) {
	p.Actions = append(p.Actions, a)
}

// TotalActions counts every action in the plan, including nested
// composite children, for progress reporting.
func (p *Plan) TotalActions() int {
	total := 0
	var walk func(action.Action)
	walk = func(a action.Action) {
		total++
		for _, c := range a.Children() {
			walk(c)
		}
	}
	for _, a := range p.Actions {
		walk(a)
	}
	return total
}

// IsFullyCompleted reports whether every top-level action (and
// therefore, by the monotonic composite rule, every descendant) has
// reached StateCompleted.
func (p *Plan) IsFullyCompleted() bool {
	for _, a := range p.Actions {
		if a.State() != action.StateCompleted {
			return false
		}
	}
	return true
}

// Describe renders a multiline, indented, human-reviewable rendering
// of the plan's planned descriptions, grounded on the teacher's
// Plan.Summary() (pkg/plan/plan.go) and original_source's
// describe_install.
func (p *Plan) Describe(explain bool) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Install plan %s (schema v%d)\n", p.ID, p.SchemaVersion)
	fmt.Fprintf(&b, "Planner: %s\n", p.PlannerTag)
	fmt.Fprintf(&b, "Target version: %s\n\n", p.Archive.Version)
	fmt.Fprintf(&b, "Planned actions:\n")
	for _, a := range p.Actions {
		if err := describeInto(&b, a, 0, explain); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

func describeInto(b *strings.Builder, a action.Action, depth int, explain bool) error {
	indent := strings.Repeat("  ", depth)
	lines, err := a.PlannedDescriptions()
	if err != nil {
		return fmt.Errorf("describing %s: %w", a.TracingSynopsis(), err)
	}
	for _, line := range lines {
		fmt.Fprintf(b, "%s* %s\n", indent, line.Description)
		if explain {
			for _, exp := range line.Explanation {
				fmt.Fprintf(b, "%s  %s\n", indent, exp)
			}
		}
	}
	for _, child := range a.Children() {
		if err := describeInto(b, child, depth+1, explain); err != nil {
			return err
		}
	}
	return nil
}

// DescribeUninstall renders the revert-order description, symmetric to
// Describe, grounded on original_source's describe_uninstall.
func (p *Plan) DescribeUninstall(explain bool) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Uninstall plan (schema v%d)\n", p.SchemaVersion)
	fmt.Fprintf(&b, "Planner: %s\n\n", p.PlannerTag)
	fmt.Fprintf(&b, "Planned actions:\n")
	for i := len(p.Actions) - 1; i >= 0; i-- {
		a := p.Actions[i]
		lines, err := a.ExecutedDescriptions()
		if err != nil {
			return "", fmt.Errorf("describing revert of %s: %w", a.TracingSynopsis(), err)
		}
		for _, line := range lines {
			fmt.Fprintf(&b, "* %s\n", line.Description)
			if explain {
				for _, exp := range line.Explanation {
					fmt.Fprintf(&b, "  %s\n", exp)
				}
			}
		}
	}
	return b.String(), nil
}
