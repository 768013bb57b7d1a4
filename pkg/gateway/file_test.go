package gateway

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFileExtension(t *testing.T) {
	env := newTestEnv(t)
	g := newTestGateway(t, env.config())

	tests := []struct {
		path    string
		allowed bool
	}{
		{"main.go", true},
		{"App.TSX", true},
		{"README.md", true},
		{"notes.txt", true},
		{"config.yaml", true},
		{"report.exe", false},
		{"library.dll", false},
		{"archive.zip", false},
		{"Makefile", false},
		{"image.png", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := g.ValidateFileExtension(filepath.Join(env.workspace, tt.path))
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			gerr := requireKind(t, err, ErrFileValidation)
			assert.Equal(t, ReasonInvalidExtension, gerr.Reason)
			assert.Equal(t, CodeFileValidation, gerr.Code)
		})
	}
}

func TestValidateFileExtension_CustomList(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config()
	cfg.AllowedExtensions = []string{"GO", " .Rs "}
	g := newTestGateway(t, cfg)

	assert.NoError(t, g.ValidateFileExtension("a.go"))
	assert.NoError(t, g.ValidateFileExtension("a.rs"))
	requireKind(t, g.ValidateFileExtension("a.md"), ErrFileValidation)
}

func TestValidateFileSize(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.config()
	cfg.MaxFileSize = 64
	g := newTestGateway(t, cfg)

	tests := []struct {
		name   string
		size   int
		reason string
	}{
		{name: "empty file", size: 0, reason: ReasonFileTooSmall},
		{name: "one byte", size: 1},
		{name: "exactly max", size: 64},
		{name: "max plus one", size: 65, reason: ReasonFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := env.writeFile(t, "workspace/"+tt.name+".txt", bytes.Repeat([]byte("x"), tt.size))

			size, err := g.ValidateFileSize(path)
			if tt.reason == "" {
				require.NoError(t, err)
				assert.Equal(t, int64(tt.size), size)
				return
			}
			gerr := requireKind(t, err, ErrFileValidation)
			assert.Equal(t, tt.reason, gerr.Reason)
		})
	}
}

func TestValidateFileSize_StatError(t *testing.T) {
	env := newTestEnv(t)
	g := newTestGateway(t, env.config())

	_, err := g.ValidateFileSize(filepath.Join(env.workspace, "missing.go"))
	gerr := requireKind(t, err, ErrFileValidation)
	assert.Equal(t, ReasonStatError, gerr.Reason)
	assert.NotNil(t, gerr.Unwrap())

	_, err = g.ValidateFileSize(env.workspace)
	gerr = requireKind(t, err, ErrFileValidation)
	assert.Equal(t, ReasonStatError, gerr.Reason)
}
