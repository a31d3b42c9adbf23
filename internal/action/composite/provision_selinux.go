package composite

import (
	"context"
	"encoding/json"
	"runtime"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
)

const KindProvisionSELinux action.Kind = "provision_selinux"

func init() {
	action.Register(KindProvisionSELinux, func() action.Unmarshaler { return &ProvisionSELinux{} })
}

// ProvisionSELinux installs the Nix store SELinux policy module on
// hosts that enforce it, grounded on
// original_source/src/action/linux/provision_selinux.rs. It is a
// Linux-only, optional phase: on any other GOOS, or when semanage is
// absent, it plans zero children and completes as a no-op rather than
// failing the whole install over a hardening step the host doesn't use.
type ProvisionSELinux struct {
	action.Composite
	PolicyPath string
	applicable bool
}

func NewProvisionSELinux(policyPath string) *ProvisionSELinux {
	p := &ProvisionSELinux{PolicyPath: policyPath}
	p.Composite = action.NewComposite(KindProvisionSELinux, "provision SELinux policy", false)
	return p
}

func (p *ProvisionSELinux) TryPlan(ctx context.Context) error {
	if runtime.GOOS != "linux" {
		p.SetPlannedDescriptions([]action.Description{
			action.NewDescription("Skip SELinux policy provisioning (not on Linux)"),
		})
		return p.MarkPlanned()
	}
	if _, ok := base.Host.LookPath("semanage"); !ok {
		p.SetPlannedDescriptions([]action.Description{
			action.NewDescription("Skip SELinux policy provisioning (semanage not present)"),
		})
		return p.MarkPlanned()
	}
	p.applicable = true
	fetch := base.NewCreateFile(p.PolicyPath, "", 0o644, true)
	if err := fetch.TryPlan(ctx); err != nil {
		return action.Enrich(err, p.TracingSynopsis())
	}
	p.Kids = []action.Action{fetch}
	p.SetPlannedDescriptions([]action.Description{
		action.NewDescription("Install Nix store SELinux policy module"),
	})
	return p.MarkPlanned()
}

func (p *ProvisionSELinux) TryExecute(ctx context.Context) error {
	if err := p.RequirePlanned(); err != nil {
		return err
	}
	if !p.applicable {
		return p.MarkCompleted()
	}
	if err := p.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	if _, err := base.Host.Run(ctx, "semanage", "module", "-a", p.PolicyPath); err != nil {
		return p.RollbackOnFailure(ctx, action.NewError(action.TagActionFailed, p.TracingSynopsis(), err))
	}
	return p.MarkCompleted()
}

func (p *ProvisionSELinux) TryRevert(ctx context.Context) error {
	if err := p.RequireCompleted(); err != nil {
		return err
	}
	if p.applicable {
		if _, err := base.Host.Run(ctx, "semanage", "module", "-r", "nix"); err != nil {
			return action.NewError(action.TagRevertFailed, p.TracingSynopsis(), err)
		}
	}
	if err := p.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return p.MarkReverted()
}

func (p *ProvisionSELinux) RestoreChildren(children []action.Action) { p.Kids = children }

type provisionSELinuxFields struct {
	PolicyPath string `json:"policy_path"`
	Applicable bool   `json:"applicable"`
}

func (p *ProvisionSELinux) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(provisionSELinuxFields{p.PolicyPath, p.applicable})
}

func (p *ProvisionSELinux) UnmarshalFields(data json.RawMessage) error {
	var f provisionSELinuxFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	p.PolicyPath, p.applicable = f.PolicyPath, f.Applicable
	return nil
}
