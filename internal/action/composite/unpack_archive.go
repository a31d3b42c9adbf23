package composite

import (
	"context"
	"encoding/json"
	"fmt"

	hcversion "github.com/hashicorp/go-version"
	"golang.org/x/mod/semver"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/plan"
)

const KindUnpackArchive action.Kind = "unpack_archive"

func init() {
	action.Register(KindUnpackArchive, func() action.Unmarshaler { return &UnpackArchive{} })
}

// UnpackArchive fetches (or locates the embedded copy of) the target
// archive, verifies its digest, and moves it into the store staging
// path, grounded on original_source's fetch_and_unpack_nix. An
// embedded archive skips FetchURL entirely: MoveFile and the version
// marker are the only children.
type UnpackArchive struct {
	action.Composite
	Archive  plan.ArchiveSource
	StageDir string
	FinalDir string
}

func NewUnpackArchive(archive plan.ArchiveSource, stageDir, finalDir string) *UnpackArchive {
	u := &UnpackArchive{Archive: archive, StageDir: stageDir, FinalDir: finalDir}
	u.Composite = action.NewComposite(KindUnpackArchive, "unpack target archive", false)
	return u
}

// validateVersion rejects a malformed target version at plan time
// rather than surfacing an obscure failure deep inside unpack, using
// go-version's parser since it accepts the loose, non-strict-semver
// version strings a target archive's release tags actually carry.
func validateVersion(v string) error {
	if _, err := hcversion.NewVersion(v); err != nil {
		return fmt.Errorf("invalid target version %q: %w", v, err)
	}
	return nil
}

func (u *UnpackArchive) TryPlan(ctx context.Context) error {
	if err := validateVersion(u.Archive.Version); err != nil {
		return action.NewError(action.TagPlanConflict, u.TracingSynopsis(), err)
	}
	stagePath := u.StageDir + "/archive.download"
	var kids []action.Action
	if !u.Archive.IsEmbedded() {
		fetch := base.NewFetchURL(u.Archive.URL, stagePath, u.Archive.ExpectedDigest)
		if err := fetch.TryPlan(ctx); err != nil {
			return action.Enrich(err, u.TracingSynopsis())
		}
		kids = append(kids, fetch)
	} else {
		stagePath = u.Archive.EmbeddedBlobRef
	}
	move := base.NewMoveFile(stagePath, u.FinalDir+"/archive")
	if err := move.TryPlan(ctx); err != nil {
		return action.Enrich(err, u.TracingSynopsis())
	}
	kids = append(kids, move)

	marker := base.NewCreateFile(u.versionMarkerPath(), u.Archive.Version, 0o644, true)
	if err := marker.TryPlan(ctx); err != nil {
		return action.Enrich(err, u.TracingSynopsis())
	}
	kids = append(kids, marker)
	u.Kids = kids
	u.SetPlannedDescriptions([]action.Description{
		action.NewDescription(fmt.Sprintf("Unpack target archive version %s into %s", u.Archive.Version, u.FinalDir)),
	})
	return u.MarkPlanned()
}

func (u *UnpackArchive) TryExecute(ctx context.Context) error {
	if err := u.RequirePlanned(); err != nil {
		return err
	}
	if err := u.ExecuteChildrenSequential(ctx); err != nil {
		return err
	}
	return u.MarkCompleted()
}

func (u *UnpackArchive) TryRevert(ctx context.Context) error {
	if err := u.RequireCompleted(); err != nil {
		return err
	}
	if err := u.RevertChildrenSequential(ctx); err != nil {
		return err
	}
	return u.MarkReverted()
}

func (u *UnpackArchive) RestoreChildren(children []action.Action) { u.Kids = children }

func (u *UnpackArchive) versionMarkerPath() string { return u.FinalDir + "/.nix-installer-version" }

// InspectGhost implements cure.GhostInspector: present if the store
// already holds an archive with a version marker, reporting whatever
// version that marker records so CompareGhost can decide adoptability.
func (u *UnpackArchive) InspectGhost(ctx context.Context) (action.Action, bool, error) {
	exists, err := base.Host.FileExists(u.versionMarkerPath())
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}
	content, err := base.Host.ReadFile(u.versionMarkerPath())
	if err != nil {
		return nil, false, err
	}
	g := NewUnpackArchive(plan.ArchiveSource{
		Version:        string(content),
		ExpectedDigest: u.Archive.ExpectedDigest,
	}, u.StageDir, u.FinalDir)
	if err := g.TryPlan(ctx); err != nil {
		return nil, false, err
	}
	g.RestoreState(action.StateCompleted)
	return g, true, nil
}

// CompareGhost implements action.AdoptableAction. A ghost archive at
// the same or a newer version is adoptable (re-running install against
// an already-current store should converge, not re-unpack); a ghost at
// an older version conflicts, since silently downgrading isn't a cure
// engine's call to make. Comparison uses golang.org/x/mod/semver
// rather than go-version here since it only needs a cheap ordering
// check, not go-version's constraint-matching machinery.
func (u *UnpackArchive) CompareGhost(ghost action.Action) (action.Verdict, string) {
	g, ok := ghost.(*UnpackArchive)
	if !ok {
		return action.VerdictMissing, ""
	}
	fresh, live := canonicalSemver(u.Archive.Version), canonicalSemver(g.Archive.Version)
	switch {
	case fresh == live:
		return action.VerdictMatches, ""
	case semver.Compare(live, fresh) > 0:
		return action.VerdictAdoptable, ""
	default:
		return action.VerdictConflicting, fmt.Sprintf(
			"store holds target version %s, older than planned version %s", g.Archive.Version, u.Archive.Version)
	}
}

// AdoptGhost absorbs the ghost's already-unpacked archive version.
func (u *UnpackArchive) AdoptGhost(ghost action.Action) {
	if g, ok := ghost.(*UnpackArchive); ok {
		u.Archive.Version = g.Archive.Version
	}
}

// canonicalSemver prefixes a bare version like "2.24.0" with "v" so
// golang.org/x/mod/semver, which only accepts the "vMAJOR.MINOR.PATCH"
// form, can compare target release versions that don't carry the v.
func canonicalSemver(v string) string {
	if v == "" {
		return v
	}
	if v[0] != 'v' {
		return "v" + v
	}
	return v
}

type unpackArchiveFields struct {
	Archive  plan.ArchiveSource `json:"archive"`
	StageDir string             `json:"stage_dir"`
	FinalDir string             `json:"final_dir"`
}

func (u *UnpackArchive) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(unpackArchiveFields{u.Archive, u.StageDir, u.FinalDir})
}

func (u *UnpackArchive) UnmarshalFields(data json.RawMessage) error {
	var f unpackArchiveFields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	u.Archive, u.StageDir, u.FinalDir = f.Archive, f.StageDir, f.FinalDir
	return nil
}
