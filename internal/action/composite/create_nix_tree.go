package composite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
)

const KindCreateNixTree action.Kind = "create_nix_tree"

func init() {
	action.Register(KindCreateNixTree, func() action.Unmarshaler { return &CreateNixTree{} })
}

// CreateNixTree lays out the fixed directory skeleton under the store
// root (store, var/nix, var/nix/profiles, var/nix/gcroots, var/nix/db) that every
// later phase assumes exists.
type CreateNixTree struct {
	action.Composite
	Root string
}

var nixTreeSubdirs = []string{"store", "var/nix", "var/nix/profiles", "var/nix/gcroots", "var/nix/db"}

func NewCreateNixTree(root string) *CreateNixTree {
	c := &CreateNixTree{Root: root}
	c.Composite = action.NewComposite(KindCreateNixTree, fmt.Sprintf("create nix tree at %s", root), false)
	return c
}

func (c *CreateNixTree) TryPlan(ctx context.Context) error {
	kids := make([]action.Action, 0, len(nixTreeSubdirs))
	for _, sub := range nixTreeSubdirs {
		d := base.NewCreateDirectory(c.Root+"/"+sub, 0o755, "", "")
		if err := d.TryPlan(ctx); err != nil {
			return action.Enrich(err, c.TracingSynopsis())
		}
		kids = append(kids, d)
	}
	c.Kids = kids
	c.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Create Nix store tree under %s", c.Root)),
	})
	return c.MarkPlanned()
}

func (c *CreateNixTree) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	if err := c.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	return c.MarkCompleted()
}

func (c *CreateNixTree) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if err := c.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return c.MarkReverted()
}

func (c *CreateNixTree) RestoreChildren(children []action.Action) { c.Kids = children }

// InspectGhost implements cure.GhostInspector: present only if every
// subdirectory in the fixed skeleton already exists under Root.
func (c *CreateNixTree) InspectGhost(ctx context.Context) (action.Action, bool, error) {
	for _, sub := range nixTreeSubdirs {
		isDir, err := base.Host.IsDirectory(c.Root + "/" + sub)
		if err != nil {
			return nil, false, fmt.Errorf("inspecting %s/%s: %w", c.Root, sub, err)
		}
		if !isDir {
			return nil, false, nil
		}
	}
	g := NewCreateNixTree(c.Root)
	if err := g.TryPlan(ctx); err != nil {
		return nil, false, err
	}
	g.RestoreState(action.StateCompleted)
	return g, true, nil
}

type createNixTreeFields struct {
	Root string `json:"root"`
}

func (c *CreateNixTree) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(createNixTreeFields{c.Root})
}

func (c *CreateNixTree) UnmarshalFields(data json.RawMessage) error {
	var f createNixTreeFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Root = f.Root
	return nil
}
