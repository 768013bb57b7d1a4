package gateway

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// countingFs wraps an afero.Fs and counts the calls the gateway makes.
type countingFs struct {
	afero.Fs

	mu        sync.Mutex
	stats     int
	opens     int
	lstats    int
	readlinks int
}

func newCountingFs(fs afero.Fs) *countingFs {
	return &countingFs{Fs: fs}
}

func (c *countingFs) Stat(name string) (os.FileInfo, error) {
	c.mu.Lock()
	c.stats++
	c.mu.Unlock()
	return c.Fs.Stat(name)
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.mu.Lock()
	c.opens++
	c.mu.Unlock()
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	c.mu.Lock()
	c.opens++
	c.mu.Unlock()
	return c.Fs.OpenFile(name, flag, perm)
}

func (c *countingFs) LstatIfPossible(name string) (os.FileInfo, bool, error) {
	c.mu.Lock()
	c.lstats++
	c.mu.Unlock()
	if l, ok := c.Fs.(afero.Lstater); ok {
		return l.LstatIfPossible(name)
	}
	info, err := c.Fs.Stat(name)
	return info, false, err
}

func (c *countingFs) ReadlinkIfPossible(name string) (string, error) {
	c.mu.Lock()
	c.readlinks++
	c.mu.Unlock()
	if r, ok := c.Fs.(afero.LinkReader); ok {
		return r.ReadlinkIfPossible(name)
	}
	return "", &os.PathError{Op: "readlink", Path: name, Err: afero.ErrNoReadlink}
}

func (c *countingFs) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats + c.opens + c.lstats + c.readlinks
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// testEnv is a working directory with a workspace folder inside it.
type testEnv struct {
	workDir   string
	workspace string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	workDir := t.TempDir()
	workspace := filepath.Join(workDir, "workspace")
	require.NoError(t, os.MkdirAll(workspace, 0755))
	return testEnv{workDir: workDir, workspace: workspace}
}

func (e testEnv) config() Config {
	cfg := DefaultConfig()
	cfg.WorkingDir = e.workDir
	cfg.WorkspaceDir = e.workspace
	return cfg
}

func (e testEnv) writeFile(t *testing.T, rel string, content []byte) string {
	t.Helper()
	path := filepath.Join(e.workDir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func newTestGateway(t *testing.T, cfg Config, opts ...Option) *Gateway {
	t.Helper()
	g, err := New(cfg, opts...)
	require.NoError(t, err)
	return g
}

func requireKind(t *testing.T, err error, sentinel error) *Error {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, sentinel)
	gerr, ok := AsError(err)
	require.True(t, ok, "expected *gateway.Error, got %T", err)
	return gerr
}
