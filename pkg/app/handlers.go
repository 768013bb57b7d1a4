package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/computerscienceiscool/code-animator/pkg/gateway"
	"github.com/computerscienceiscool/code-animator/pkg/workspace"
)

// Methods accepted from the UI process
const (
	MethodReadFile     = "file:read"
	MethodValidateFile = "file:validate"
	MethodVerifyFile   = "file:verify"
	MethodRegexMatch   = "regex:match"
	MethodGetStats     = "security:getStats"
	MethodExportLog    = "security:exportLog"
	MethodImport       = "workspace:import"
)

// Request is one call from the UI process
type Request struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Params is the union of all method parameters
type Params struct {
	FilePath     string `json:"filePath,omitempty"`
	ExpectedHash string `json:"expectedHash,omitempty"`
	Pattern      string `json:"pattern,omitempty"`
	Content      string `json:"content,omitempty"`
	Name         string `json:"name,omitempty"`
	Backup       bool   `json:"backup,omitempty"`
}

// Response is returned for every request. Only the fields relevant to the
// method are set.
type Response struct {
	ID      string `json:"id,omitempty"`
	Success bool   `json:"success"`
	Valid   *bool  `json:"valid,omitempty"`
	Matched *bool  `json:"matched,omitempty"`

	Content   string `json:"content,omitempty"`
	FilePath  string `json:"filePath,omitempty"`
	FileName  string `json:"fileName,omitempty"`
	Extension string `json:"extension,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	Stats    *gateway.SecurityStats  `json:"stats,omitempty"`
	Archived map[string]int64        `json:"archived,omitempty"`
	Import   *workspace.ImportResult `json:"import,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorType string `json:"errorType,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

func boolPtr(b bool) *bool { return &b }

// failure builds an error response. Gateway errors carry their taxonomy
// name and code; anything else is reported as a plain Error.
func failure(err error) Response {
	resp := Response{Success: false, Error: err.Error(), ErrorType: "Error"}
	if gerr, ok := gateway.AsError(err); ok {
		resp.ErrorType = gerr.Name()
		resp.ErrorCode = gerr.Tag()
	}
	return resp
}

// Handle dispatches a request to the matching operation
func (a *App) Handle(ctx context.Context, req Request) Response {
	var p Params
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			resp := failure(fmt.Errorf("invalid params: %w", err))
			resp.ID = req.ID
			return resp
		}
	}

	var resp Response
	switch req.Method {
	case MethodReadFile:
		resp = a.ReadFile(p.FilePath)
	case MethodValidateFile:
		resp = a.ValidateFile(p.FilePath)
	case MethodVerifyFile:
		resp = a.VerifyFile(p.FilePath, p.ExpectedHash)
	case MethodRegexMatch:
		resp = a.Match(ctx, p.Pattern, p.Content, p.FilePath)
	case MethodGetStats:
		resp = a.Stats()
	case MethodExportLog:
		// The UI never chooses the destination; logs go to audit.export_dir.
		resp = a.Export("")
	case MethodImport:
		resp = a.Import(p.Name, p.Content, p.Backup)
	default:
		resp = failure(fmt.Errorf("unknown method: %q", req.Method))
	}
	resp.ID = req.ID
	return resp
}

// ReadFile returns the content of a validated file
func (a *App) ReadFile(filePath string) Response {
	res, err := a.gateway.SecureReadFile(filePath)
	if err != nil {
		return failure(err)
	}
	return Response{
		Success:   true,
		Content:   res.Content,
		FilePath:  res.FilePath,
		FileName:  res.FileName,
		Extension: res.Extension,
		Size:      res.Size,
		Hash:      res.Hash,
	}
}

// ValidateFile runs the validation pipeline without reading content
func (a *App) ValidateFile(filePath string) Response {
	res, err := a.gateway.ValidateFile(filePath)
	if err != nil {
		resp := failure(err)
		resp.Valid = boolPtr(false)
		return resp
	}
	return Response{
		Success:   true,
		Valid:     boolPtr(true),
		FilePath:  res.FilePath,
		Size:      res.Size,
		Hash:      res.Hash,
		Timestamp: res.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// VerifyFile validates filePath and compares its digest to expectedHash
func (a *App) VerifyFile(filePath, expectedHash string) Response {
	if expectedHash == "" {
		return failure(errors.New("expectedHash is required"))
	}
	res, err := a.gateway.ValidateFile(filePath)
	if err != nil {
		resp := failure(err)
		resp.Valid = boolPtr(false)
		return resp
	}
	if err := a.gateway.VerifyFileIntegrity(res.FilePath, expectedHash); err != nil {
		resp := failure(err)
		resp.Valid = boolPtr(false)
		resp.FilePath = res.FilePath
		return resp
	}
	return Response{Success: true, Valid: boolPtr(true), FilePath: res.FilePath, Hash: expectedHash}
}

// Match runs pattern against content under the ReDoS guard. With no
// content, the file at filePath is read through the gateway first.
func (a *App) Match(ctx context.Context, pattern, content, filePath string) Response {
	if content == "" && filePath != "" {
		res, err := a.gateway.SecureReadFile(filePath)
		if err != nil {
			return failure(err)
		}
		content = res.Content
		filePath = res.FilePath
	}

	re, err := a.gateway.CompilePattern(pattern)
	if err != nil {
		return failure(err)
	}
	matched, err := a.gateway.SafeRegexExecution(ctx, re, content, filePath)
	if err != nil {
		return failure(err)
	}
	return Response{Success: true, Matched: boolPtr(matched), FilePath: filePath}
}

// Stats returns the gateway's counters, plus per-type archive counts when
// an audit archive is configured
func (a *App) Stats() Response {
	stats := a.gateway.GetSecurityStats()
	resp := Response{Success: true, Stats: &stats}
	if a.store != nil {
		counts, err := a.store.Counts()
		if err != nil {
			a.session.Logger.Warn("audit archive unavailable", "error", err)
		} else {
			resp.Archived = counts
		}
	}
	return resp
}

// Export writes the security log and reports where it went. outputPath is
// trusted and must only come from the operator, never from a UI request.
func (a *App) Export(outputPath string) Response {
	path, err := a.ExportLog(outputPath)
	if err != nil {
		return failure(err)
	}
	return Response{Success: true, FilePath: path}
}

// Import stores content under name in the workspace
func (a *App) Import(name, content string, backup bool) Response {
	if a.workspace == nil {
		return failure(errors.New("workspace is disabled"))
	}
	res, err := a.workspace.Import(name, []byte(content), workspace.ImportOptions{
		MaxSize: a.gateway.Config().MaxFileSize,
		Backup:  backup,
	})
	if err != nil {
		return failure(fmt.Errorf("import failed: %w", err))
	}
	a.session.Logger.Info("file imported into workspace", "path", res.Path, "action", res.Action)
	return Response{Success: true, FilePath: res.Path, Size: res.BytesWritten, Import: res}
}
