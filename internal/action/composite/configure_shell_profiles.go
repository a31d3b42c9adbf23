package composite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
)

const KindConfigureShellProfiles action.Kind = "configure_shell_profiles"

func init() {
	action.Register(KindConfigureShellProfiles, func() action.Unmarshaler { return &ConfigureShellProfiles{} })
}

// shellProfile pairs a profile path with the sentinel block content to
// merge into it.
type shellProfile struct {
	Path  string `json:"path"`
	Block string `json:"block"`
}

// ConfigureShellProfiles patches every known shell's profile
// (bash/zsh/fish, ...) to source the Nix environment. Each profile is
// an independent file, so the children are declared parallel-safe.
type ConfigureShellProfiles struct {
	action.Composite
	Profiles []shellProfile
}

// NewConfigureShellProfiles builds the composite for the standard set
// of profile files sourced by interactive shells on Linux and macOS.
func NewConfigureShellProfiles(storeRoot string) *ConfigureShellProfiles {
	block := fmt.Sprintf(". %s/var/nix/profiles/default/etc/profile.d/nix-daemon.sh", storeRoot)
	c := &ConfigureShellProfiles{Profiles: []shellProfile{
		{Path: "/etc/bashrc", Block: block},
		{Path: "/etc/zshrc", Block: block},
		{Path: "/etc/fish/config.fish", Block: block},
		{Path: "/etc/bash.bashrc", Block: block},
	}}
	c.Composite = action.NewComposite(KindConfigureShellProfiles, "configure shell profiles", true)
	return c
}

func (c *ConfigureShellProfiles) TryPlan(ctx context.Context) error {
	kids := make([]action.Action, 0, len(c.Profiles))
	for _, prof := range c.Profiles {
		merge := base.NewCreateOrMergeFile(prof.Path, prof.Block, 0o644)
		if err := merge.TryPlan(ctx); err != nil {
			return action.Enrich(err, c.TracingSynopsis())
		}
		kids = append(kids, merge)
	}
	c.Kids = kids
	c.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Configure %d shell profiles to source the Nix environment", len(c.Profiles))),
	})
	return c.MarkPlanned()
}

func (c *ConfigureShellProfiles) TryExecute(ctx context.Context) error {
	if err := c.RequirePlanned(); err != nil {
		return err
	}
	if err := c.ExecuteChildrenParallel(ctx); err != nil {
		return err
	}
	return c.MarkCompleted()
}

func (c *ConfigureShellProfiles) TryRevert(ctx context.Context) error {
	if err := c.RequireCompleted(); err != nil {
		return err
	}
	if err := c.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return c.MarkReverted()
}

func (c *ConfigureShellProfiles) RestoreChildren(children []action.Action) { c.Kids = children }

type configureShellProfilesFields struct {
	Profiles []shellProfile `json:"profiles"`
}

func (c *ConfigureShellProfiles) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(configureShellProfilesFields{c.Profiles})
}

func (c *ConfigureShellProfiles) UnmarshalFields(data json.RawMessage) error {
	var f configureShellProfilesFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.Profiles = f.Profiles
	return nil
}
