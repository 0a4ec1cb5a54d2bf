// Package cache stores per-file scan results keyed by content fingerprint
// so unchanged files never trigger a second round of external calls.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/user/complyscan/pkg/engine"
)

// Backend is the persistence contract. Local-file and remote-object-store
// implementations are selected at construction; the cache itself never
// branches on environment.
type Backend interface {
	Get(ctx context.Context, key string) (data []byte, found bool, err error)
	Put(ctx context.Context, key string, data []byte) error
}

// Entry is the stored record for one (path, fingerprint) pair.
type Entry struct {
	Path        string           `json:"path"`
	Fingerprint string           `json:"fingerprint"`
	Findings    []engine.Finding `json:"findings"`
	StoredAt    time.Time        `json:"timestamp"`
}

// ContentCache maps content fingerprints to previously computed findings.
type ContentCache struct {
	backend Backend
	horizon time.Duration
	log     *zap.SugaredLogger
	now     func() time.Time
}

// DefaultHorizon is how long an entry stays usable. Stale entries are
// treated as misses.
const DefaultHorizon = 7 * 24 * time.Hour

// New creates a cache over the given backend.
func New(backend Backend, horizon time.Duration, log *zap.SugaredLogger) *ContentCache {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ContentCache{backend: backend, horizon: horizon, log: log, now: time.Now}
}

// Key derives the backend key for a target. Path is part of the key so two
// identical files still report findings under their own paths.
func Key(path, fingerprint string) string {
	sum := sha256.Sum256([]byte(path + "|" + fingerprint))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached findings for the target. A hit requires an
// exact fingerprint match and an entry younger than the horizon. Backend
// errors fail open: the scan proceeds as if the file were new, and the
// error is returned so callers can tell a reachable miss from a dead
// backend. Corrupt or stale entries are plain misses.
func (c *ContentCache) Lookup(ctx context.Context, target engine.ScanTarget) ([]engine.Finding, bool, error) {
	data, found, err := c.backend.Get(ctx, Key(target.Path, target.Fingerprint))
	if err != nil {
		c.log.Warnw("cache read failed, treating as miss", "path", target.Path, "error", err)
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warnw("cache entry corrupt, treating as miss", "path", target.Path, "error", err)
		return nil, false, nil
	}
	if entry.Fingerprint != target.Fingerprint {
		return nil, false, nil
	}
	if c.now().Sub(entry.StoredAt) > c.horizon {
		return nil, false, nil
	}
	return entry.Findings, true, nil
}

// Store persists the findings for the target. Write errors are logged and
// swallowed: a cache failure must never block the scan.
func (c *ContentCache) Store(ctx context.Context, target engine.ScanTarget, findings []engine.Finding) {
	entry := Entry{
		Path:        target.Path,
		Fingerprint: target.Fingerprint,
		Findings:    findings,
		StoredAt:    c.now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.log.Warnw("cache encode failed", "path", target.Path, "error", err)
		return
	}
	if err := c.backend.Put(ctx, Key(target.Path, target.Fingerprint), data); err != nil {
		c.log.Warnw("cache write failed", "path", target.Path, "error", err)
	}
}
