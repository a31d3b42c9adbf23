package composite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/config"
)

const KindPlaceConfiguration action.Kind = "place_configuration"

func init() {
	action.Register(KindPlaceConfiguration, func() action.Unmarshaler { return &PlaceConfiguration{} })
}

// PlaceConfiguration renders /etc/nix/nix.conf from Settings. When
// SkipNixConf is set the composite plans zero children and completes
// as a no-op, matching original_source's --no-modify-profile-style
// escape hatches.
type PlaceConfiguration struct {
	action.Composite
	Settings   config.Settings
	NixConfDir string
}

func NewPlaceConfiguration(settings config.Settings, nixConfDir string) *PlaceConfiguration {
	p := &PlaceConfiguration{Settings: settings, NixConfDir: nixConfDir}
	p.Composite = action.NewComposite(KindPlaceConfiguration, "place nix.conf", false)
	return p
}

func (p *PlaceConfiguration) TryPlan(ctx context.Context) error {
	if p.Settings.SkipNixConf {
		p.SetPlannedDescriptions([]action.Description{
			action.NewDescription("Skip writing nix.conf (--skip-nix-conf)"),
		})
		return p.MarkPlanned()
	}
	render := base.NewRenderTemplate("nix.conf.tmpl", p.NixConfDir+"/nix.conf", map[string]any{
		"NixBuildGroupName": p.Settings.NixBuildGroupName,
		"ExtraConf":         p.Settings.ExtraConf,
	}, 0o644)
	if err := render.TryPlan(ctx); err != nil {
		return action.Enrich(err, p.TracingSynopsis())
	}
	p.Kids = []action.Action{render}
	p.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Write nix.conf to %s", p.NixConfDir)),
	})
	return p.MarkPlanned()
}

func (p *PlaceConfiguration) TryExecute(ctx context.Context) error {
	if err := p.RequirePlanned(); err != nil {
		return err
	}
	if err := p.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	return p.MarkCompleted()
}

func (p *PlaceConfiguration) TryRevert(ctx context.Context) error {
	if err := p.RequireCompleted(); err != nil {
		return err
	}
	if err := p.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return p.MarkReverted()
}

func (p *PlaceConfiguration) RestoreChildren(children []action.Action) { p.Kids = children }

type placeConfigurationFields struct {
	Settings   config.Settings `json:"settings"`
	NixConfDir string          `json:"nix_conf_dir"`
}

func (p *PlaceConfiguration) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(placeConfigurationFields{p.Settings, p.NixConfDir})
}

func (p *PlaceConfiguration) UnmarshalFields(data json.RawMessage) error {
	var f placeConfigurationFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	p.Settings, p.NixConfDir = f.Settings, f.NixConfDir
	return nil
}
