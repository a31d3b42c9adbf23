package composite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/config"
)

const KindProvisionIdentities action.Kind = "provision_identities"

func init() {
	action.Register(KindProvisionIdentities, func() action.Unmarshaler { return &ProvisionIdentities{} })
}

// ProvisionIdentities creates the build group and every build user.
// User creation across siblings touches disjoint UIDs and disjoint
// /etc/passwd rows, so this composite declares itself parallel-safe;
// the leading CreateGroup step still runs first since every user
// depends on the group already existing.
type ProvisionIdentities struct {
	action.Composite
	Settings config.Settings
}

func NewProvisionIdentities(settings config.Settings) *ProvisionIdentities {
	p := &ProvisionIdentities{Settings: settings}
	p.Composite = action.NewComposite(KindProvisionIdentities, "provision build identities", true)
	return p
}

func (p *ProvisionIdentities) TryPlan(ctx context.Context) error {
	group := base.NewCreateGroup(p.Settings.NixBuildGroupName, p.Settings.NixBuildGroupID)
	if err := group.TryPlan(ctx); err != nil {
		return action.Enrich(err, p.TracingSynopsis())
	}
	kids := []action.Action{group}
	for i := uint32(0); i < p.Settings.NixBuildUserCount; i++ {
		name := fmt.Sprintf("%s%d", p.Settings.NixBuildUserPrefix, i+1)
		uid := p.Settings.NixBuildUserIDBase + i
		comment := fmt.Sprintf("Nix build user %d", i+1)
		user := base.NewCreateUser(name, uid, p.Settings.NixBuildGroupName, comment)
		if err := user.TryPlan(ctx); err != nil {
			return action.Enrich(err, p.TracingSynopsis())
		}
		kids = append(kids, user)
	}
	p.Kids = kids
	p.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Provision group %s and %d build users",
			p.Settings.NixBuildGroupName, p.Settings.NixBuildUserCount)),
	})
	return p.MarkPlanned()
}

// InspectGhost implements cure.GhostInspector. It reports present only
// if the build group and every build user already exist with matching
// GID/UID; a partial pre-state (some users present, some not) is
// reported as absent so the composite replans normally, which stays
// idempotent anyway since CreateGroup.TryPlan and CreateUser.TryPlan
// each independently detect their own already-exists case.
func (p *ProvisionIdentities) InspectGhost(ctx context.Context) (action.Action, bool, error) {
	group, found, err := base.Host.LookupGroup(p.Settings.NixBuildGroupName)
	if err != nil {
		return nil, false, err
	}
	if !found || group.Gid != fmt.Sprintf("%d", p.Settings.NixBuildGroupID) {
		return nil, false, nil
	}
	for i := uint32(0); i < p.Settings.NixBuildUserCount; i++ {
		name := fmt.Sprintf("%s%d", p.Settings.NixBuildUserPrefix, i+1)
		uid := p.Settings.NixBuildUserIDBase + i
		u, found, err := base.Host.LookupUser(name)
		if err != nil {
			return nil, false, err
		}
		if !found || u.Uid != fmt.Sprintf("%d", uid) {
			return nil, false, nil
		}
	}
	g := NewProvisionIdentities(p.Settings)
	if err := g.TryPlan(ctx); err != nil {
		return nil, false, err
	}
	g.RestoreState(action.StateCompleted)
	return g, true, nil
}

func (p *ProvisionIdentities) TryExecute(ctx context.Context) error {
	if err := p.RequirePlanned(); err != nil {
		return err
	}
	if len(p.Kids) == 0 {
		return p.MarkCompleted()
	}
	if err := p.Kids[0].TryExecute(ctx); err != nil {
		p.Sync()
		return p.RollbackOnFailure(ctx, action.Enrich(err, p.TracingSynopsis()))
	}
	p.Sync()
	if err := executeUsersParallel(ctx, p); err != nil {
		return err
	}
	return p.MarkCompleted()
}

// executeUsersParallel dispatches every build user's CreateUser
// through the same bounded semaphore ExecuteChildrenParallel uses, so
// a full nixbld1..32 install never fires more than
// action.MaxParallelChildren useradd subprocesses at once.
func executeUsersParallel(ctx context.Context, p *ProvisionIdentities) error {
	type outcome struct {
		err error
	}
	rest := p.Kids[1:]
	sem := make(chan struct{}, action.SemaphoreWidth())
	results := make(chan outcome, len(rest))
	for _, k := range rest {
		sem <- struct{}{}
		go func(k action.Action) {
			defer func() { <-sem }()
			results <- outcome{err: k.TryExecute(ctx)}
		}(k)
	}
	var firstErr error
	for range rest {
		res := <-results
		if res.err != nil && firstErr == nil {
			firstErr = res.err
		}
	}
	p.Sync()
	if firstErr != nil {
		return p.RollbackOnFailure(ctx, action.Enrich(firstErr, p.TracingSynopsis()))
	}
	return nil
}

func (p *ProvisionIdentities) TryRevert(ctx context.Context) error {
	if err := p.RequireCompleted(); err != nil {
		return err
	}
	if err := p.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return p.MarkReverted()
}

func (p *ProvisionIdentities) RestoreChildren(children []action.Action) { p.Kids = children }

type provisionIdentitiesFields struct {
	Settings config.Settings `json:"settings"`
}

func (p *ProvisionIdentities) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(provisionIdentitiesFields{p.Settings})
}

func (p *ProvisionIdentities) UnmarshalFields(data json.RawMessage) error {
	var f provisionIdentitiesFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	p.Settings = f.Settings
	return nil
}
