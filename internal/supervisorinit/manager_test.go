package supervisorinit

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRunning_FalseWhenPidfileMissing(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(filepath.Join(dir, "supervisord.ini"), dir, "/usr/bin/supervisord", 9001)
	assert.False(t, m.IsRunning())
}

func TestIsRunning_FalseWhenPidfileUnparseable(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supervisord.pid"), []byte("not-a-pid"), 0o644))

	m := NewManager(filepath.Join(dir, "supervisord.ini"), dir, "/usr/bin/supervisord", 9001)
	assert.False(t, m.IsRunning())
}

func TestIsRunning_TrueForOwnProcess(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "supervisord.pid"), []byte(strconv.Itoa(os.Getpid())), 0o644))

	m := NewManager(filepath.Join(dir, "supervisord.ini"), dir, "/usr/bin/supervisord", 9001)
	assert.True(t, m.IsRunning(), "signalling our own test process with signal 0 must succeed")
}
