package gateway

import (
	"sync"
	"time"

	"github.com/emirpasic/gods/queues/circularbuffer"
)

// Audit operation types
const (
	OpValidationSuccess = "FILE_VALIDATION_SUCCESS"
	OpValidationFailed  = "FILE_VALIDATION_FAILED"
	OpReadSuccess       = "FILE_READ_SUCCESS"
	OpReadFailed        = "FILE_READ_FAILED"
	OpIntegrityVerified = "FILE_INTEGRITY_VERIFIED"
	OpIntegrityFailed   = "FILE_INTEGRITY_FAILED"
	OpRegexTimeout      = "REGEX_TIMEOUT"
	OpAllowedDirAdded   = "ALLOWED_DIR_ADDED"
)

// AuditEntry is a single record in the gateway's audit trail.
type AuditEntry struct {
	Type      string         `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
	Uptime    int64          `json:"uptime"` // milliseconds since the gateway started
}

// AuditSink receives a copy of every audit entry, e.g. a persistent archive.
type AuditSink interface {
	Record(entry AuditEntry) error
}

// auditLog keeps the most recent entries in a fixed-size ring; the oldest
// entry is dropped first once capacity is reached.
type auditLog struct {
	mu  sync.Mutex
	buf *circularbuffer.Queue
}

func newAuditLog(capacity int) *auditLog {
	return &auditLog{buf: circularbuffer.New(capacity)}
}

func (a *auditLog) append(entry AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.buf.Full() {
		a.buf.Dequeue()
	}
	a.buf.Enqueue(entry)
}

func (a *auditLog) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Size()
}

// entries returns the log oldest first.
func (a *auditLog) entries() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	values := a.buf.Values()
	out := make([]AuditEntry, 0, len(values))
	for _, v := range values {
		out = append(out, v.(AuditEntry))
	}
	return out
}

// logOperation appends to the audit trail. It cannot be skipped by callers;
// every pipeline outcome goes through here.
func (g *Gateway) logOperation(opType string, data map[string]any) {
	now := g.now()
	entry := AuditEntry{
		Type:      opType,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
		Data:      data,
		Uptime:    now.Sub(g.startTime).Milliseconds(),
	}
	g.audit.append(entry)

	g.logger.Debug("security operation", "type", opType, "data", data)

	if g.sink != nil {
		if err := g.sink.Record(entry); err != nil {
			g.logger.Error("audit sink write failed", "type", opType, "error", err)
		}
	}
}

// AuditEntries returns a snapshot of the audit trail, oldest first.
func (g *Gateway) AuditEntries() []AuditEntry {
	return g.audit.entries()
}

// SecurityStats summarizes the gateway's state.
type SecurityStats struct {
	TotalOperations  int    `json:"totalOperations"`
	Uptime           int64  `json:"uptime"`
	RateLimitEntries int    `json:"rateLimitEntries"`
	CachedHashes     int    `json:"cachedHashes"`
	Config           Config `json:"config"`
}

// SecurityLog is the document produced for a user-triggered export.
type SecurityLog struct {
	GeneratedAt string        `json:"generatedAt"`
	SessionID   string        `json:"sessionId,omitempty"`
	Stats       SecurityStats `json:"stats"`
	Operations  []AuditEntry  `json:"operations"`
}

// GetSecurityStats returns aggregate counters and a configuration snapshot.
func (g *Gateway) GetSecurityStats() SecurityStats {
	return SecurityStats{
		TotalOperations:  g.audit.len(),
		Uptime:           g.now().Sub(g.startTime).Milliseconds(),
		RateLimitEntries: g.limiter.size(),
		CachedHashes:     g.hashes.size(),
		Config:           g.Config(),
	}
}

// ExportSecurityLog returns the full audit trail with a stats snapshot.
func (g *Gateway) ExportSecurityLog() SecurityLog {
	return SecurityLog{
		GeneratedAt: g.now().UTC().Format(time.RFC3339Nano),
		SessionID:   g.sessionID,
		Stats:       g.GetSecurityStats(),
		Operations:  g.AuditEntries(),
	}
}
