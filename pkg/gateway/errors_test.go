package gateway

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		err      *Error
		sentinel error
		name     string
	}{
		{newSecurityError(errTime, CodeRead, "read", "a.go", nil), ErrSecurity, "SecurityError"},
		{newPathTraversalError(errTime, "traversal", "a.go", "../a.go"), ErrPathTraversal, "PathTraversalError"},
		{newSymlinkError(errTime, "link", "a.go", "/etc/passwd"), ErrSymlink, "SymlinkError"},
		{newFileValidationError(errTime, "ext", "a.exe", ReasonInvalidExtension, nil), ErrFileValidation, "FileValidationError"},
		{newReDoSError(errTime, "slow", "(a+)+", "a.js"), ErrReDoS, "ReDoSError"},
		{newRateLimitError(errTime, "busy", "file_access"), ErrRateLimit, "RateLimitError"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.sentinel)
			assert.Equal(t, tt.name, tt.err.Name())

			wrapped := fmt.Errorf("handler: %w", tt.err)
			got, ok := AsError(wrapped)
			assert.True(t, ok)
			assert.Same(t, tt.err, got)

			for _, other := range []error{ErrSecurity, ErrPathTraversal, ErrSymlink, ErrFileValidation, ErrReDoS, ErrRateLimit} {
				if other != tt.sentinel {
					assert.NotErrorIs(t, tt.err, other)
				}
			}
		})
	}
}

func TestErrorTagAndUnwrap(t *testing.T) {
	cause := errors.New("no such file")
	err := newFileValidationError(errTime, "Cannot validate file size", "a.go", ReasonStatError, cause)

	assert.Equal(t, ReasonStatError, err.Tag())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "Cannot validate file size: no such file", err.Error())

	plain := newSecurityError(errTime, CodeIntegrity, "mismatch", "a.go", nil)
	assert.Equal(t, CodeIntegrity, plain.Tag())
	assert.Equal(t, "mismatch", plain.Error())

	_, ok := AsError(errors.New("other"))
	assert.False(t, ok)
}

func TestErrorTimestampUsesGatewayClock(t *testing.T) {
	env := newTestEnv(t)
	clock := newFakeClock()
	g := newTestGateway(t, env.config(), WithClock(clock.Now))
	clock.Advance(90 * time.Minute)

	_, err := g.ValidateFile("../../etc/passwd")
	gerr := requireKind(t, err, ErrPathTraversal)
	assert.True(t, clock.Now().Equal(gerr.Timestamp))

	entries := g.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, gerr.Timestamp.UTC().Format(time.RFC3339Nano), entries[0].Timestamp)
}
