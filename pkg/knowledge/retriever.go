// Package knowledge queries the external policy knowledge base for rules
// applicable to a code excerpt. Responses are cached with a TTL: policy
// documents change far less often than scans run, so staleness within the
// TTL is acceptable and cache hits cost nothing.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// Source is one cited policy document excerpt.
type Source struct {
	DocumentID string  `json:"documentId"`
	Excerpt    string  `json:"excerpt"`
	Score      float64 `json:"score"`
}

// Context is the result of one retrieval query.
type Context struct {
	Guidance string   `json:"guidance"`
	Sources  []Source `json:"sources"`
}

// SourceIDs returns the cited document ids, for attaching to findings.
func (c Context) SourceIDs() []string {
	ids := make([]string, 0, len(c.Sources))
	for _, s := range c.Sources {
		ids = append(ids, s.DocumentID)
	}
	return ids
}

// DefaultTTL bounds how long a cached retrieval response is served.
const DefaultTTL = time.Hour

type cacheEntry struct {
	ctx      Context
	storedAt time.Time
}

// Retriever queries the knowledge endpoint with an in-memory TTL cache.
// Safe for concurrent use by scan workers.
type Retriever struct {
	endpoint string
	kbID     string
	client   *retryablehttp.Client
	ttl      time.Duration
	log      *zap.SugaredLogger
	now      func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// New creates a retriever for the given endpoint and knowledge base id.
func New(endpoint, kbID string, ttl time.Duration, log *zap.SugaredLogger) *Retriever {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 15 * time.Second
	client.Logger = nil
	return &Retriever{
		endpoint: strings.TrimRight(endpoint, "/"),
		kbID:     kbID,
		client:   client,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		cache:    map[string]cacheEntry{},
	}
}

// NormalizeQuery collapses whitespace and lowercases the query text so
// equivalent excerpts share a cache key.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Query retrieves applicable rules for one code excerpt. On timeout or
// service error it returns an empty Context and the error: the scan
// degrades to findings with no traceable source rather than failing, and
// the caller attaches the error to the report. A retriever without an
// endpoint is disabled, not failing.
func (r *Retriever) Query(ctx context.Context, codeExcerpt, language string) (Context, error) {
	if r.endpoint == "" {
		return Context{}, nil
	}
	key := language + "\n" + NormalizeQuery(codeExcerpt)

	r.mu.RLock()
	entry, ok := r.cache[key]
	r.mu.RUnlock()
	if ok && r.now().Sub(entry.storedAt) < r.ttl {
		return entry.ctx, nil
	}

	result, err := r.fetch(ctx, codeExcerpt, language)
	if err != nil {
		r.log.Warnw("knowledge retrieval failed, continuing without sources",
			"language", language, "error", err)
		return Context{}, err
	}

	// Two workers computing the same key race here; last write wins and
	// both results were valid.
	r.mu.Lock()
	r.cache[key] = cacheEntry{ctx: result, storedAt: r.now()}
	r.mu.Unlock()
	return result, nil
}

type queryRequest struct {
	KnowledgeBaseID string `json:"knowledgeBaseId"`
	Language        string `json:"language"`
	Query           string `json:"query"`
}

func (r *Retriever) fetch(ctx context.Context, codeExcerpt, language string) (Context, error) {
	body, err := json.Marshal(queryRequest{
		KnowledgeBaseID: r.kbID,
		Language:        language,
		Query:           codeExcerpt,
	})
	if err != nil {
		return Context{}, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/retrieve", bytes.NewReader(body))
	if err != nil {
		return Context{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Context{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Context{}, fmt.Errorf("knowledge service returned %s", resp.Status)
	}
	var result Context
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Context{}, fmt.Errorf("decoding knowledge response: %w", err)
	}
	return result, nil
}
