// Package vulnfeed matches code against a language-keyed table of
// dangerous patterns and correlates hits with a public vulnerability feed.
// It runs purely on static recognition and keeps producing findings when
// the AI backend is disabled or over budget.
package vulnfeed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/user/complyscan/pkg/engine"
)

// Correlator matches code excerpts against the rule table and the feed.
type Correlator struct {
	rules    []Rule
	endpoint string
	client   *retryablehttp.Client
	log      *zap.SugaredLogger
}

// New creates a correlator. An empty endpoint disables feed lookups; rule
// matches are still produced.
func New(rules []Rule, endpoint string, log *zap.SugaredLogger) *Correlator {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.RetryWaitMin = 100 * time.Millisecond
	client.RetryWaitMax = time.Second
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &Correlator{
		rules:    rules,
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
		log:      log,
	}
}

// Match scans the excerpt line by line and returns one finding per rule
// hit. Feed errors degrade to matches without CVE identifiers; the error
// is returned alongside the findings so the caller can annotate the
// report.
func (c *Correlator) Match(ctx context.Context, target engine.ScanTarget) ([]engine.Finding, error) {
	lines := strings.Split(string(target.Content), "\n")

	var findings []engine.Finding
	var keys []string
	for i, line := range lines {
		for _, rule := range c.rules {
			if !rule.appliesTo(target.Language) {
				continue
			}
			if !rule.re.MatchString(line) {
				continue
			}
			f := engine.Finding{
				File:        target.Path,
				Line:        i + 1,
				Severity:    rule.Severity,
				Description: rule.Description,
				Category:    rule.ID,
				Standards:   append([]string(nil), rule.Standards...),
				CVE: &engine.VulnerabilityMatch{
					Pattern:    rule.Pattern,
					Confidence: rule.Confidence,
				},
			}
			if rule.ID == "open-ingress" && referencesSSH(lines, i) {
				f.Severity = engine.SevCritical
				f.Description = "Unrestricted SSH ingress from 0.0.0.0/0 on port 22"
				f.CVE.Confidence = 0.95
			}
			findings = append(findings, f)
			keys = append(keys, rule.AdvisoryKey)
		}
	}
	if len(findings) == 0 {
		return nil, nil
	}

	advisories, err := c.lookup(ctx, keys)
	for i := range findings {
		if id, ok := advisories[keys[i]]; ok {
			findings[i].CVE.ID = id
		}
	}
	return findings, err
}

// referencesSSH looks a few lines around an ingress hit for port 22.
func referencesSSH(lines []string, idx int) bool {
	lo, hi := idx-5, idx+5
	if lo < 0 {
		lo = 0
	}
	if hi >= len(lines) {
		hi = len(lines) - 1
	}
	for _, line := range lines[lo : hi+1] {
		if sshPortPattern.MatchString(line) {
			return true
		}
	}
	return false
}

type feedRequest struct {
	AdvisoryKeys []string `json:"advisoryKeys"`
}

type feedResponse struct {
	Advisories []struct {
		Key     string `json:"key"`
		ID      string `json:"id"`
		Summary string `json:"summary"`
	} `json:"advisories"`
}

// lookup resolves advisory keys to CVE identifiers. Fail open: any error
// returns an empty map and the matches go out without identifiers. An
// empty endpoint disables lookups entirely.
func (c *Correlator) lookup(ctx context.Context, keys []string) (map[string]string, error) {
	if c.endpoint == "" || len(keys) == 0 {
		return nil, nil
	}
	seen := map[string]bool{}
	var unique []string
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			unique = append(unique, k)
		}
	}

	body, err := json.Marshal(feedRequest{AdvisoryKeys: unique})
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/advisories", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnw("vulnerability feed unreachable", "error", err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warnw("vulnerability feed error", "status", resp.Status)
		return nil, fmt.Errorf("vulnerability feed returned %s", resp.Status)
	}
	var result feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.log.Warnw("vulnerability feed decode error", "error", err)
		return nil, fmt.Errorf("decoding feed response: %w", err)
	}
	out := map[string]string{}
	for _, a := range result.Advisories {
		out[a.Key] = a.ID
	}
	return out, nil
}
