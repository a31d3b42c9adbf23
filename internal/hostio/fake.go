package hostio

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"
)

// Fake is an in-memory Host, grounded on the teacher's
// pkg/simulation.SimulationExecutor: action unit tests substitute it for
// Local so plan/execute/revert can be exercised without touching the
// real filesystem or user database (see the Host doc comment).
type Fake struct {
	mu sync.Mutex

	files       map[string][]byte
	modes       map[string]os.FileMode
	dirs        map[string]bool
	symlinks    map[string]string
	users       map[string]*user.User
	groups      map[string]*user.Group
	groupMembers map[string][]string
	pathBinaries map[string]string
	runningPIDs  map[int]bool
	usedPorts    map[int]bool

	// Run records every command invocation for assertions, and Responses
	// lets a test script canned stdout (or an error) for a given
	// "name arg1 arg2" key, the same lookup shape as the teacher's
	// simulation.Config.GetResponse.
	RunCalls  []string
	Responses map[string]FakeResponse
}

// FakeResponse is a canned answer for one Fake.Run invocation.
type FakeResponse struct {
	Stdout string
	Err    error
}

// NewFake constructs an empty Fake host.
func NewFake() *Fake {
	return &Fake{
		files:        map[string][]byte{},
		modes:        map[string]os.FileMode{},
		dirs:         map[string]bool{"/": true},
		symlinks:     map[string]string{},
		users:        map[string]*user.User{},
		groups:       map[string]*user.Group{},
		groupMembers: map[string][]string{},
		pathBinaries: map[string]string{},
		runningPIDs:  map[int]bool{},
		usedPorts:    map[int]bool{},
		Responses:    map[string]FakeResponse{},
	}
}

var _ Host = (*Fake)(nil)

// WithDirectory pre-seeds an existing directory, for test setup.
func (f *Fake) WithDirectory(path string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[path] = true
	return f
}

// WithFile pre-seeds an existing file, for test setup.
func (f *Fake) WithFile(path string, content []byte, mode os.FileMode) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
	f.modes[path] = mode
	return f
}

// WithUser pre-seeds an existing user, for test setup.
func (f *Fake) WithUser(u *user.User) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.Username] = u
	return f
}

// WithGroup pre-seeds an existing group, for test setup.
func (f *Fake) WithGroup(g *user.Group, members ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groups[g.Name] = g
	f.groupMembers[g.Name] = members
	return f
}

// WithBinary pre-seeds a resolvable PATH entry, for test setup.
func (f *Fake) WithBinary(name, resolvedPath string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pathBinaries[name] = resolvedPath
	return f
}

func (f *Fake) FileExists(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[path]; ok {
		return true, nil
	}
	if _, ok := f.symlinks[path]; ok {
		return true, nil
	}
	_, ok := f.dirs[path]
	return ok, nil
}

func (f *Fake) IsDirectory(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path], nil
}

func (f *Fake) IsEmptyDirectory(path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.dirs[path] {
		return false, fmt.Errorf("%s: not a directory", path)
	}
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range f.files {
		if strings.HasPrefix(p, prefix) {
			return false, nil
		}
	}
	for d := range f.dirs {
		if d != path && strings.HasPrefix(d, prefix) {
			return false, nil
		}
	}
	return true, nil
}

func (f *Fake) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return content, nil
}

func (f *Fake) WriteFile(path string, content []byte, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[filepath.Dir(path)] = true
	f.files[path] = append([]byte{}, content...)
	f.modes[path] = mode
	return nil
}

func (f *Fake) AtomicWriteFile(path string, content []byte, mode os.FileMode) error {
	return f.WriteFile(path, content, mode)
}

func (f *Fake) Mkdir(path string, mode os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for p := path; p != "." && p != "/" && p != ""; p = filepath.Dir(p) {
		f.dirs[p] = true
	}
	f.dirs["/"] = true
	return nil
}

func (f *Fake) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, path)
	delete(f.symlinks, path)
	delete(f.dirs, path)
	return nil
}

func (f *Fake) RemoveAll(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(path, "/") + "/"
	for p := range f.files {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(f.files, p)
		}
	}
	for p := range f.dirs {
		if p == path || strings.HasPrefix(p, prefix) {
			delete(f.dirs, p)
		}
	}
	delete(f.symlinks, path)
	return nil
}

func (f *Fake) Rename(oldPath, newPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if content, ok := f.files[oldPath]; ok {
		f.files[newPath] = content
		f.modes[newPath] = f.modes[oldPath]
		delete(f.files, oldPath)
		delete(f.modes, oldPath)
		f.dirs[filepath.Dir(newPath)] = true
		return nil
	}
	if f.dirs[oldPath] {
		f.dirs[newPath] = true
		delete(f.dirs, oldPath)
		return nil
	}
	if target, ok := f.symlinks[oldPath]; ok {
		f.symlinks[newPath] = target
		delete(f.symlinks, oldPath)
		f.dirs[filepath.Dir(newPath)] = true
		return nil
	}
	return fmt.Errorf("rename %s -> %s: source does not exist", oldPath, newPath)
}

func (f *Fake) Symlink(target, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[filepath.Dir(link)] = true
	f.symlinks[link] = target
	return nil
}

func (f *Fake) ReadSymlink(link string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target, ok := f.symlinks[link]
	if !ok {
		return "", os.ErrNotExist
	}
	return target, nil
}

func (f *Fake) LookupUser(name string) (*user.User, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[name]
	return u, ok, nil
}

func (f *Fake) LookupGroup(name string) (*user.Group, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.groups[name]
	return g, ok, nil
}

func (f *Fake) GroupMembers(name string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.groupMembers[name]...), nil
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) (string, error) {
	f.mu.Lock()
	key := strings.Join(append([]string{name}, args...), " ")
	f.RunCalls = append(f.RunCalls, key)
	resp, ok := f.Responses[key]
	f.mu.Unlock()
	if !ok {
		return "", nil
	}
	return resp.Stdout, resp.Err
}

func (f *Fake) LookPath(name string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path, ok := f.pathBinaries[name]
	return path, ok
}

func (f *Fake) IsProcessRunning(pid int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runningPIDs[pid], nil
}

func (f *Fake) CheckPortAvailable(port int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.usedPorts[port], nil
}

func (f *Fake) FsyncFile(path string) error { return nil }
func (f *Fake) FsyncDir(dir string) error   { return nil }
