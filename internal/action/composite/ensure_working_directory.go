// Package composite implements the "phase" action kinds: composites
// that own a batch of primitive actions from internal/action/base and
// drive them through Composite's shared sequential/parallel helpers.
// Grounded on the teacher's higher-level pkg/apply phases, which group
// several pkg/operation handlers behind one reviewable step.
package composite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
)

const KindEnsureWorkingDirectory action.Kind = "ensure_working_directory"

func init() {
	action.Register(KindEnsureWorkingDirectory, func() action.Unmarshaler { return &EnsureWorkingDirectory{} })
}

// EnsureWorkingDirectory creates the installer's root working tree
// (e.g. /nix and /nix/var) before any other phase runs.
type EnsureWorkingDirectory struct {
	action.Composite
	Root string
	Subs []string
}

func NewEnsureWorkingDirectory(root string, subs []string) *EnsureWorkingDirectory {
	e := &EnsureWorkingDirectory{Root: root, Subs: subs}
	e.Composite = action.NewComposite(KindEnsureWorkingDirectory,
		fmt.Sprintf("ensure working directory %s", root), false)
	return e
}

func (e *EnsureWorkingDirectory) TryPlan(ctx context.Context) error {
	paths := []string{e.Root}
	for _, s := range e.Subs {
		paths = append(paths, e.Root+"/"+s)
	}
	kids := make([]action.Action, 0, len(paths))
	for _, p := range paths {
		kids = append(kids, base.NewCreateDirectory(p, 0o755, "", ""))
	}
	for _, k := range kids {
		if err := k.TryPlan(ctx); err != nil {
			return action.Enrich(err, e.TracingSynopsis())
		}
	}
	e.Kids = kids
	e.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Ensure working directory tree rooted at %s", e.Root)),
	})
	return e.MarkPlanned()
}

func (e *EnsureWorkingDirectory) TryExecute(ctx context.Context) error {
	if err := e.RequirePlanned(); err != nil {
		return err
	}
	if err := e.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	return e.MarkCompleted()
}

func (e *EnsureWorkingDirectory) TryRevert(ctx context.Context) error {
	if err := e.RequireCompleted(); err != nil {
		return err
	}
	if err := e.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return e.MarkReverted()
}

func (e *EnsureWorkingDirectory) RestoreChildren(children []action.Action) { e.Kids = children }

// InspectGhost implements cure.GhostInspector: the working tree is
// present only if every planned directory already exists.
func (e *EnsureWorkingDirectory) InspectGhost(ctx context.Context) (action.Action, bool, error) {
	paths := []string{e.Root}
	for _, s := range e.Subs {
		paths = append(paths, e.Root+"/"+s)
	}
	for _, p := range paths {
		isDir, err := base.Host.IsDirectory(p)
		if err != nil {
			return nil, false, fmt.Errorf("inspecting %s: %w", p, err)
		}
		if !isDir {
			return nil, false, nil
		}
	}
	g := NewEnsureWorkingDirectory(e.Root, e.Subs)
	if err := g.TryPlan(ctx); err != nil {
		return nil, false, err
	}
	g.RestoreState(action.StateCompleted)
	return g, true, nil
}

type ensureWorkingDirectoryFields struct {
	Root string   `json:"root"`
	Subs []string `json:"subs"`
}

func (e *EnsureWorkingDirectory) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(ensureWorkingDirectoryFields{e.Root, e.Subs})
}

func (e *EnsureWorkingDirectory) UnmarshalFields(data json.RawMessage) error {
	var f ensureWorkingDirectoryFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	e.Root, e.Subs = f.Root, f.Subs
	return nil
}
