package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "workspace")

	ws, err := Ensure(root)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Idempotent
	_, err = Ensure(root)
	assert.NoError(t, err)
}

func TestEnsure_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := Ensure(file)
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	ws, err := Ensure(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "main.go", filepath.Join(ws.Root, "main.go"), false},
		{"nested", "src/app.js", filepath.Join(ws.Root, "src", "app.js"), false},
		{"traversal is clamped", "../../etc/passwd", filepath.Join(ws.Root, "etc", "passwd"), false},
		{"absolute is rooted", "/etc/passwd", filepath.Join(ws.Root, "etc", "passwd"), false},
		{"empty", "", "", true},
		{"null byte", "a\x00.go", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ws.Path(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPath_SymlinkStaysInside(t *testing.T) {
	ws, err := Ensure(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Symlink("/etc", filepath.Join(ws.Root, "escape")))

	got, err := ws.Path("escape/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Root, "etc", "passwd"), got)
}

func TestImport(t *testing.T) {
	ws, err := Ensure(t.TempDir())
	require.NoError(t, err)

	res, err := ws.Import("src/hello.py", []byte("print('hi')\n"), ImportOptions{MaxSize: 1024})
	require.NoError(t, err)
	assert.Equal(t, "CREATED", res.Action)
	assert.Equal(t, int64(12), res.BytesWritten)
	assert.Equal(t, filepath.Join(ws.Root, "src", "hello.py"), res.Path)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "print('hi')\n", string(data))
}

func TestImport_UpdateWithBackup(t *testing.T) {
	ws, err := Ensure(t.TempDir())
	require.NoError(t, err)

	_, err = ws.Import("a.go", []byte("package a\n"), ImportOptions{})
	require.NoError(t, err)

	res, err := ws.Import("a.go", []byte("package b\n"), ImportOptions{Backup: true})
	require.NoError(t, err)
	assert.Equal(t, "UPDATED", res.Action)
	require.NotEmpty(t, res.BackupPath)

	backup, err := os.ReadFile(res.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(backup))

	current, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "package b\n", string(current))
}

func TestImport_Rejects(t *testing.T) {
	ws, err := Ensure(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(ws.Root, "dir"), 0755))

	_, err = ws.Import("big.txt", make([]byte, 11), ImportOptions{MaxSize: 10})
	assert.Error(t, err)

	_, err = ws.Import("dir", []byte("x"), ImportOptions{})
	assert.Error(t, err)

	_, err = ws.Import("..", []byte("x"), ImportOptions{})
	assert.Error(t, err)
}

func TestWatcher_ReportsNewDirectories(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher([]string{root}, nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	// Files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(root, "note.txt"), []byte("x"), 0644))
	newDir := filepath.Join(root, "project")
	require.NoError(t, os.Mkdir(newDir, 0755))

	select {
	case dir := <-w.Dirs():
		assert.Equal(t, newDir, dir)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for directory event")
	}
}

func runUntilCancel(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_RunAgainAfterCancel(t *testing.T) {
	root := t.TempDir()
	w, err := NewWatcher([]string{root}, nil)
	require.NoError(t, err)
	defer w.Close()

	// Two serve sessions on the same watcher
	runUntilCancel(t, w)
	runUntilCancel(t, w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	newDir := filepath.Join(root, "later")
	require.NoError(t, os.Mkdir(newDir, 0755))
	select {
	case dir, ok := <-w.Dirs():
		require.True(t, ok, "Dirs closed by an earlier Run")
		assert.Equal(t, newDir, dir)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for directory event")
	}
}

func TestWatcher_CloseClosesDirs(t *testing.T) {
	w, err := NewWatcher([]string{t.TempDir()}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	require.NoError(t, w.Close())
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	_, ok := <-w.Dirs()
	assert.False(t, ok)

	assert.NoError(t, w.Close())
	w.Run(ctx)
}

func TestNewWatcher_MissingRoot(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "missing")}, nil)
	assert.Error(t, err)
}
