package cure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nixinstall/nix-installer/internal/action"
	"github.com/nixinstall/nix-installer/internal/action/base"
	"github.com/nixinstall/nix-installer/internal/action/composite"
	"github.com/nixinstall/nix-installer/internal/hostio"
	"github.com/nixinstall/nix-installer/internal/plan"
)

func planOf(actions ...action.Action) *plan.Plan {
	return &plan.Plan{Actions: actions}
}

func TestClassify_MatchesAdoptsMissingConflicting(t *testing.T) {
	freshUser := base.NewCreateUser("nixbld1", 3001, "nixbld", "fresh comment")
	matchingGhost := base.NewCreateUser("nixbld1", 3001, "nixbld", "fresh comment")

	freshGroup := base.NewCreateGroup("nixbld", 3000)
	conflictingGhost := base.NewCreateGroup("nixbld", 4000)

	freshMissing := base.NewCreateDirectory("/nix/store", 0o755, "", "")

	fresh := planOf(freshUser, freshGroup, freshMissing)
	ghost := planOf(matchingGhost, conflictingGhost, nil)

	results := Classify(fresh, ghost)
	require.Len(t, results, 3)

	assert.Equal(t, action.VerdictMatches, results[0].Verdict)
	assert.Equal(t, action.VerdictConflicting, results[1].Verdict)
	assert.NotEmpty(t, results[1].Conflict)
	assert.Equal(t, action.VerdictMissing, results[2].Verdict)
}

func TestClassify_AdoptableAbsorbsGhostValues(t *testing.T) {
	fresh := base.NewCreateUser("nixbld1", 3001, "nixbld", "planned comment")
	ghost := base.NewCreateUser("nixbld1", 3001, "nixbld", "live comment")

	results := Classify(planOf(fresh), planOf(ghost))
	require.Len(t, results, 1)
	assert.Equal(t, action.VerdictAdoptable, results[0].Verdict)
	assert.Equal(t, "live comment", fresh.Comment, "AdoptGhost should have absorbed the ghost's comment")
}

func TestClassify_KindMismatchIsConflicting(t *testing.T) {
	fresh := base.NewCreateGroup("nixbld", 3000)
	ghost := base.NewCreateDirectory("/nix/store", 0o755, "", "")

	results := Classify(planOf(fresh), planOf(ghost))
	require.Len(t, results, 1)
	assert.Equal(t, action.VerdictConflicting, results[0].Verdict)
}

func TestClassify_ExtraFreshActionIsMissing(t *testing.T) {
	fresh1 := base.NewCreateGroup("nixbld", 3000)
	fresh2 := base.NewCreateDirectory("/nix/store", 0o755, "", "")
	ghost1 := base.NewCreateGroup("nixbld", 3000)

	results := Classify(planOf(fresh1, fresh2), planOf(ghost1))
	require.Len(t, results, 2)
	assert.Equal(t, action.VerdictMatches, results[0].Verdict)
	assert.Equal(t, action.VerdictMissing, results[1].Verdict)
}

func TestApply_ConflictingClassificationMutatesNothing(t *testing.T) {
	fresh := base.NewCreateGroup("nixbld", 3000)
	classifications := []Classification{
		{Fresh: fresh, Verdict: action.VerdictConflicting, Conflict: "gid mismatch"},
	}

	err := Apply(classifications)
	require.Error(t, err)
	var ae *action.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, action.TagCureConflict, ae.Tag)
	assert.Equal(t, action.StateUninitialized, fresh.State(), "a refused cure must not mark anything completed")
}

func TestApply_MatchesAndAdoptableMarkCompletedWithoutExecute(t *testing.T) {
	matched := base.NewCreateGroup("nixbld", 3000)
	adopted := base.NewCreateUser("nixbld1", 3001, "nixbld", "planned")

	classifications := []Classification{
		{Fresh: matched, Verdict: action.VerdictMatches},
		{Fresh: adopted, Verdict: action.VerdictAdoptable},
	}

	require.NoError(t, Apply(classifications))
	assert.Equal(t, action.StateCompleted, matched.State())
	assert.Equal(t, action.StateCompleted, adopted.State())
}

func TestApply_MatchingCompositeRestoresChildrenSoRevertActuallyRuns(t *testing.T) {
	prev := base.Host
	fake := hostio.NewFake()
	base.Host = fake
	t.Cleanup(func() { base.Host = prev })

	ctx := context.Background()
	tree := composite.NewCreateNixTree("/nix")
	require.NoError(t, tree.TryPlan(ctx))
	require.NotEmpty(t, tree.Children())
	for _, k := range tree.Children() {
		require.Equal(t, action.StatePlanned, k.State())
	}

	classifications := []Classification{{Fresh: tree, Verdict: action.VerdictMatches}}
	require.NoError(t, Apply(classifications))

	require.Equal(t, action.StateCompleted, tree.State())
	for _, k := range tree.Children() {
		assert.Equal(t, action.StateCompleted, k.State(),
			"a matched composite's children must also be marked completed so RevertChildrenSequential doesn't skip them")
	}

	for _, sub := range []string{"store", "var/nix", "var/nix/profiles", "var/nix/gcroots", "var/nix/db"} {
		fake.WithDirectory("/nix/" + sub)
	}

	require.NoError(t, tree.TryRevert(ctx))
	for _, sub := range []string{"store", "var/nix", "var/nix/profiles", "var/nix/gcroots", "var/nix/db"} {
		isDir, err := fake.IsDirectory("/nix/" + sub)
		require.NoError(t, err)
		assert.False(t, isDir, "revert must actually reach a cured composite's children, not silently skip them")
	}
}

func TestSynthesizeGhost_NoInspectorAssumesPresent(t *testing.T) {
	prev := base.Host
	fake := hostio.NewFake()
	base.Host = fake
	t.Cleanup(func() { base.Host = prev })

	// CreateDirectory implements no GhostInspector (only the top-level
	// composites do); SynthesizeGhost's conservative default treats it
	// as present, carrying the fresh action itself into the ghost plan.
	dirAction := base.NewCreateDirectory("/nix/store", 0o755, "", "")
	fresh := planOf(dirAction)

	ghost, err := SynthesizeGhost(context.Background(), fresh)
	require.NoError(t, err)
	require.Len(t, ghost.Actions, 1)
	assert.Same(t, action.Action(dirAction), ghost.Actions[0])
}
