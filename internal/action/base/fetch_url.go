package base

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/nixinstall/nix-installer/internal/action"
)

const KindFetchURL action.Kind = "fetch_url"

func init() {
	action.Register(KindFetchURL, func() action.Unmarshaler { return &FetchURL{} })
}

// FetchURL downloads a resource to a local staging path and verifies
// its SHA-256 digest before any later action is allowed to trust it,
// mirroring original_source's fetch_and_unpack_nix "verifies digest
// before unpack" step. It never touches the final install location
// directly; a following MoveFile action promotes the verified blob.
type FetchURL struct {
	action.Base
	URL            string
	Dest           string
	ExpectedDigest string
	client         *http.Client
}

func NewFetchURL(url, dest, expectedDigest string) *FetchURL {
	f := &FetchURL{URL: url, Dest: dest, ExpectedDigest: expectedDigest, client: http.DefaultClient}
	f.Base = action.NewBase(KindFetchURL)
	return f
}

func (f *FetchURL) TracingSynopsis() string { return fmt.Sprintf("fetch %s", f.URL) }
func (f *FetchURL) Reversibility() action.Reversibility {
	return action.ReversibilityNoop
}
func (f *FetchURL) ParallelSafe() bool        { return false }
func (f *FetchURL) Children() []action.Action { return nil }

func (f *FetchURL) PlannedDescriptions() ([]action.Description, error) {
	if err := f.RequireDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(
		fmt.Sprintf("Fetch %s and verify digest %s", f.URL, f.ExpectedDigest),
	)}, nil
}

func (f *FetchURL) ExecutedDescriptions() ([]action.Description, error) {
	if err := f.RequireExecutedDescribable(); err != nil {
		return nil, err
	}
	return []action.Description{action.NewDescription(fmt.Sprintf("Discard staged download %s", f.Dest))}, nil
}

func (f *FetchURL) TryPlan(ctx context.Context) error {
	if f.ExpectedDigest == "" {
		return action.NewError(action.TagPlanConflict, f.TracingSynopsis(), fmt.Errorf("no expected digest pinned for %s", f.URL))
	}
	return f.MarkPlanned()
}

func (f *FetchURL) TryExecute(ctx context.Context) error {
	if err := f.RequirePlanned(); err != nil {
		return err
	}
	client := f.client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return action.NewError(action.TagActionFailed, f.TracingSynopsis(), err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return action.NewError(action.TagActionFailed, f.TracingSynopsis(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return action.NewError(action.TagActionFailed, f.TracingSynopsis(), fmt.Errorf("unexpected status %s", resp.Status))
	}

	out, err := os.Create(f.Dest)
	if err != nil {
		return action.NewError(action.TagActionFailed, f.TracingSynopsis(), fmt.Errorf("creating staging file %s: %w", f.Dest, err))
	}
	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, hasher), resp.Body); err != nil {
		out.Close()
		return action.NewError(action.TagActionFailed, f.TracingSynopsis(), err)
	}
	if err := out.Close(); err != nil {
		return action.NewError(action.TagActionFailed, f.TracingSynopsis(), err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if sum != f.ExpectedDigest {
		_ = os.Remove(f.Dest)
		return action.NewError(action.TagActionFailed, f.TracingSynopsis(),
			fmt.Errorf("digest mismatch: expected %s, got %s", f.ExpectedDigest, sum))
	}
	return f.MarkCompleted()
}

func (f *FetchURL) TryRevert(ctx context.Context) error {
	if err := f.RequireCompleted(); err != nil {
		return err
	}
	if err := Host.Remove(f.Dest); err != nil && !os.IsNotExist(err) {
		return action.NewError(action.TagRevertFailed, f.TracingSynopsis(), err)
	}
	return f.MarkReverted()
}

type fetchURLFields struct {
	URL            string `json:"url"`
	Dest           string `json:"dest"`
	ExpectedDigest string `json:"expected_digest"`
}

func (f *FetchURL) MarshalFields() (json.RawMessage, error) {
	return json.Marshal(fetchURLFields{f.URL, f.Dest, f.ExpectedDigest})
}

func (f *FetchURL) UnmarshalFields(data json.RawMessage) error {
	var fl fetchURLFields
	if err := json.Unmarshal(data, &fl); err != nil {
		return err
	}
	f.URL, f.Dest, f.ExpectedDigest = fl.URL, fl.Dest, fl.ExpectedDigest
	f.client = http.DefaultClient
	return nil
}
