package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/sourcegraph/conc/panics"
)

// slowPatternRatio is the fraction of the timeout after which a successful
// match is still reported as slow.
const slowPatternRatio = 0.8

// CompilePattern compiles expr with the backtracking engine used for
// highlighting rules. The engine's own step clock is set to the configured
// execution budget so an abandoned match stops consuming CPU.
func (g *Gateway) CompilePattern(expr string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, newSecurityError(g.now(), CodeInvalidPattern, fmt.Sprintf("Invalid pattern: %s", expr), "", err)
	}
	if g.cfg.EnableReDoSProtection {
		re.MatchTimeout = g.cfg.MaxPatternExecutionTime
	}
	return re, nil
}

type matchResult struct {
	matched bool
	err     error
}

// SafeRegexExecution evaluates pattern against content on a worker goroutine
// and gives up once MaxPatternExecutionTime has elapsed. filePath is only
// used for error reporting and may be empty.
func (g *Gateway) SafeRegexExecution(ctx context.Context, pattern *regexp2.Regexp, content, filePath string) (bool, error) {
	if !g.cfg.EnableReDoSProtection {
		matched, err := pattern.MatchString(content)
		if err != nil {
			return false, newSecurityError(g.now(), CodeSecurity, "Regex execution failed", filePath, err)
		}
		return matched, nil
	}

	timeout := g.cfg.MaxPatternExecutionTime
	start := g.now()
	done := make(chan matchResult, 1)

	go func() {
		var res matchResult
		var pc panics.Catcher
		pc.Try(func() {
			res.matched, res.err = pattern.MatchString(content)
		})
		if r := pc.Recovered(); r != nil {
			res.err = r.AsError()
		}
		done <- res
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var (
		res     matchResult
		timeErr error
	)
	select {
	case res = <-done:
	case <-timer.C:
		timeErr = newReDoSError(g.now(), "Regex execution timeout - possible ReDoS attack", pattern.String(), filePath)
	case <-ctx.Done():
		return false, ctx.Err()
	}

	elapsed := g.now().Sub(start)
	if elapsed > time.Duration(float64(timeout)*slowPatternRatio) {
		g.logger.Warn("slow regex execution",
			"pattern", pattern.String(),
			"elapsed", elapsed,
			"timeout", timeout,
		)
	}

	if timeErr == nil && res.err != nil {
		if !isEngineTimeout(res.err) {
			return false, newSecurityError(g.now(), CodeSecurity, "Regex execution failed", filePath, res.err)
		}
		// The engine's own step clock fired before the timer did.
		timeErr = newReDoSError(g.now(), "Regex execution timeout - possible ReDoS attack", pattern.String(), filePath)
	}

	if timeErr != nil {
		g.logOperation(OpRegexTimeout, map[string]any{
			"pattern":  pattern.String(),
			"filePath": filePath,
			"elapsed":  elapsed.Milliseconds(),
		})
		return false, timeErr
	}

	return res.matched, nil
}

// isEngineTimeout reports whether err is regexp2's MatchTimeout error.
// regexp2 (checked against v1.11.0) returns an unexported error whose text
// starts with "match timeout after"; the text is pinned by
// TestIsEngineTimeout_PinsEngineErrorText.
func isEngineTimeout(err error) bool {
	return strings.Contains(err.Error(), "match timeout")
}
