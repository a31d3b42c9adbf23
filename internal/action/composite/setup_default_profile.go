package composite

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
)

const KindSetupDefaultProfile action.Kind = "setup_default_profile"

func init() {
	action.Register(KindSetupDefaultProfile, func() action.Unmarshaler { return &SetupDefaultProfile{} })
}

// SetupDefaultProfile symlinks the store root's default profile into
// the well-known /nix/var/nix/profiles/default location and, when
// ModifyProfile is set, links the per-user channel root too. Grounded
// on original_source/src/action/base/setup_default_profile.rs.
type SetupDefaultProfile struct {
	action.Composite
	StoreRoot     string
	ModifyProfile bool
}

func NewSetupDefaultProfile(storeRoot string, modifyProfile bool) *SetupDefaultProfile {
	s := &SetupDefaultProfile{StoreRoot: storeRoot, ModifyProfile: modifyProfile}
	s.Composite = action.NewComposite(KindSetupDefaultProfile, "setup default Nix profile", false)
	return s
}

func (s *SetupDefaultProfile) TryPlan(ctx context.Context) error {
	defaultProfile := s.StoreRoot + "/var/nix/profiles/default"
	link := base.NewCreateSymlink(defaultProfile, s.StoreRoot+"/var/nix/profiles/default-1-link")
	if err := link.TryPlan(ctx); err != nil {
		return action.Enrich(err, s.TracingSynopsis())
	}
	kids := []action.Action{link}
	if s.ModifyProfile {
		userLink := base.NewCreateSymlink("/nix/var/nix/profiles/default", defaultProfile)
		if err := userLink.TryPlan(ctx); err != nil {
			return action.Enrich(err, s.TracingSynopsis())
		}
		kids = append(kids, userLink)
	}
	s.Kids = kids
	s.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Set up default Nix profile at %s", defaultProfile)),
	})
	return s.MarkPlanned()
}

func (s *SetupDefaultProfile) TryExecute(ctx context.Context) error {
	if err := s.RequirePlanned(); err != nil {
		return err
	}
	if err := s.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	return s.MarkCompleted()
}

func (s *SetupDefaultProfile) TryRevert(ctx context.Context) error {
	if err := s.RequireCompleted(); err != nil {
		return err
	}
	if err := s.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return s.MarkReverted()
}

func (s *SetupDefaultProfile) RestoreChildren(children []action.Action) { s.Kids = children }

type setupDefaultProfileFields struct {
	StoreRoot     string `json:"store_root"`
	ModifyProfile bool   `json:"modify_profile"`
}

func (s *SetupDefaultProfile) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(setupDefaultProfileFields{s.StoreRoot, s.ModifyProfile})
}

func (s *SetupDefaultProfile) UnmarshalFields(data json.RawMessage) error {
	var f setupDefaultProfileFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	s.StoreRoot, s.ModifyProfile = f.StoreRoot, f.ModifyProfile
	return nil
}
