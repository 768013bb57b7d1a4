package gateway

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// Supported hash algorithm identifiers
const (
	HashSHA256     = "sha256"
	HashSHA512     = "sha512"
	HashSHA1       = "sha1"
	HashSHA3_256   = "sha3-256"
	HashBLAKE2b256 = "blake2b-256"
)

func newHasher(algorithm string) (hash.Hash, error) {
	switch strings.ToLower(algorithm) {
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashSHA1:
		return sha1.New(), nil
	case HashSHA3_256:
		return sha3.New256(), nil
	case HashBLAKE2b256:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unsupported hash algorithm: %q", algorithm)
	}
}

// HashRecord is the most recent digest computed for a path.
type HashRecord struct {
	Hash      string    `json:"hash"`
	Timestamp time.Time `json:"timestamp"`
}

// hashTable records every digest the gateway computes. It is never read
// back to skip hashing; each call re-reads the file from disk.
type hashTable struct {
	mu      sync.Mutex
	records map[string]HashRecord
}

func newHashTable() *hashTable {
	return &hashTable{records: make(map[string]HashRecord)}
}

func (h *hashTable) record(path, sum string, at time.Time) {
	h.mu.Lock()
	h.records[path] = HashRecord{Hash: sum, Timestamp: at}
	h.mu.Unlock()
}

func (h *hashTable) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// CalculateFileHash reads the whole file and returns its hex digest using
// the configured algorithm.
func (g *Gateway) CalculateFileHash(filePath string) (string, error) {
	h, err := newHasher(g.cfg.HashAlgorithm)
	if err != nil {
		return "", newSecurityError(g.now(), CodeHash, "Failed to calculate file hash", filePath, err)
	}

	f, err := g.fs.Open(filePath)
	if err != nil {
		return "", newSecurityError(g.now(), CodeHash, "Failed to calculate file hash", filePath, err)
	}
	defer f.Close()

	n, err := io.Copy(h, io.LimitReader(f, g.cfg.MaxFileSize+1))
	if err != nil {
		return "", newSecurityError(g.now(), CodeHash, "Failed to calculate file hash", filePath, err)
	}
	if n > g.cfg.MaxFileSize {
		return "", newSecurityError(g.now(), CodeRead,
			fmt.Sprintf("File grew beyond %d bytes after validation", g.cfg.MaxFileSize), filePath, nil)
	}

	sum := hex.EncodeToString(h.Sum(nil))
	g.hashes.record(filePath, sum, g.now())
	return sum, nil
}

// VerifyFileIntegrity re-hashes the file and compares it to expectedHash.
func (g *Gateway) VerifyFileIntegrity(filePath, expectedHash string) error {
	current, err := g.CalculateFileHash(filePath)
	if err != nil {
		return err
	}

	if !strings.EqualFold(current, strings.TrimSpace(expectedHash)) {
		g.logOperation(OpIntegrityFailed, map[string]any{
			"filePath": filePath,
			"expected": expectedHash,
			"actual":   current,
		})
		return newSecurityError(g.now(), CodeIntegrity,
			"File integrity verification failed - file may have been tampered with", filePath, nil)
	}

	g.logOperation(OpIntegrityVerified, map[string]any{
		"filePath": filePath,
		"hash":     current,
	})
	return nil
}
