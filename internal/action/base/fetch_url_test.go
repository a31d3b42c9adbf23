package base

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func digestOf(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestFetchURL_PlanRequiresPinnedDigest(t *testing.T) {
	f := NewFetchURL("https://example.com/nix.tar.xz", "/tmp/nix.tar.xz", "")
	err := f.TryPlan(context.Background())
	assert.Error(t, err)
}

func TestFetchURL_ExecuteVerifiesDigestAndWritesStagingFile(t *testing.T) {
	content := "fake nix archive contents"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "staged.tar.xz")
	f := NewFetchURL(server.URL, dest, digestOf(content))
	require.NoError(t, f.TryPlan(context.Background()))
	require.NoError(t, f.TryExecute(context.Background()))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestFetchURL_ExecuteRejectsDigestMismatchAndCleansUp(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("actual content"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "staged.tar.xz")
	f := NewFetchURL(server.URL, dest, digestOf("different content"))
	require.NoError(t, f.TryPlan(context.Background()))

	err := f.TryExecute(context.Background())
	require.Error(t, err)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "a digest mismatch must not leave the staged file behind")
}

func TestFetchURL_ExecuteRejectsNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "staged.tar.xz")
	f := NewFetchURL(server.URL, dest, digestOf("anything"))
	require.NoError(t, f.TryPlan(context.Background()))

	err := f.TryExecute(context.Background())
	assert.Error(t, err)
}

func TestFetchURL_RevertRemovesStagedFile(t *testing.T) {
	content := "fake nix archive contents"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "staged.tar.xz")
	f := NewFetchURL(server.URL, dest, digestOf(content))
	require.NoError(t, f.TryPlan(context.Background()))
	require.NoError(t, f.TryExecute(context.Background()))
	require.NoError(t, f.TryRevert(context.Background()))

	_, err := os.Stat(dest)
	assert.True(t, os.IsNotExist(err))
}
