package hostio

import (
	"context"
	"os/user"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_FileLifecycle(t *testing.T) {
	f := NewFake()

	exists, err := f.FileExists("/nix/foo")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, f.WriteFile("/nix/foo", []byte("bar"), 0o644))

	exists, err = f.FileExists("/nix/foo")
	require.NoError(t, err)
	assert.True(t, exists)

	content, err := f.ReadFile("/nix/foo")
	require.NoError(t, err)
	assert.Equal(t, "bar", string(content))

	isDir, err := f.IsDirectory("/nix")
	require.NoError(t, err)
	assert.True(t, isDir, "WriteFile should create the parent directory")

	require.NoError(t, f.Remove("/nix/foo"))
	exists, err = f.FileExists("/nix/foo")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFake_RemoveAll(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.WriteFile("/nix/store/a", []byte("a"), 0o644))
	require.NoError(t, f.WriteFile("/nix/store/b", []byte("b"), 0o644))

	require.NoError(t, f.RemoveAll("/nix/store"))

	exists, _ := f.FileExists("/nix/store/a")
	assert.False(t, exists)
	exists, _ = f.FileExists("/nix/store/b")
	assert.False(t, exists)
}

func TestFake_Symlink(t *testing.T) {
	f := NewFake()
	require.NoError(t, f.Symlink("/nix/var/nix/profiles/default", "/run/current-system"))

	target, err := f.ReadSymlink("/run/current-system")
	require.NoError(t, err)
	assert.Equal(t, "/nix/var/nix/profiles/default", target)
}

func TestFake_LookupUserAndGroup(t *testing.T) {
	f := NewFake()
	f.WithUser(&user.User{Username: "nixbld1", Uid: "3001"})
	f.WithGroup(&user.Group{Name: "nixbld", Gid: "3000"}, "nixbld1", "nixbld2")

	u, ok, err := f.LookupUser("nixbld1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3001", u.Uid)

	_, ok, err = f.LookupUser("nobody-here")
	require.NoError(t, err)
	assert.False(t, ok)

	members, err := f.GroupMembers("nixbld")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"nixbld1", "nixbld2"}, members)
}

func TestFake_RunCannedResponse(t *testing.T) {
	f := NewFake()
	f.Responses["nix eval --expr 1 + 1"] = FakeResponse{Stdout: "2"}

	out, err := f.Run(context.Background(), "nix", "eval", "--expr", "1 + 1")
	require.NoError(t, err)
	assert.Equal(t, "2", out)
	assert.Equal(t, []string{"nix eval --expr 1 + 1"}, f.RunCalls)
}

func TestFake_LookPath(t *testing.T) {
	f := NewFake().WithBinary("nix", "/nix/var/nix/profiles/default/bin/nix")

	path, ok := f.LookPath("nix")
	assert.True(t, ok)
	assert.Equal(t, "/nix/var/nix/profiles/default/bin/nix", path)

	_, ok = f.LookPath("missing-binary")
	assert.False(t, ok)
}
