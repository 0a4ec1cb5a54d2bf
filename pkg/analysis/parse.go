package analysis

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/user/complyscan/pkg/engine"
)

// rawFinding is the backend's wire shape. Line and Severity are required;
// anything missing them is dropped rather than coerced.
type rawFinding struct {
	Line        int      `json:"line"`
	EndLine     int      `json:"end_line"`
	Severity    string   `json:"severity"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Violations  []string `json:"compliance_violations"`
	Remediation string   `json:"remediation"`
}

var (
	fenceLine    = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")
	herePreamble = regexp.MustCompile(`(?i)^here[^\n]*:\s*`)
)

// CleanResponse strips markdown fences and "Here is..." preambles that
// models wrap around otherwise valid payloads.
func CleanResponse(s string) string {
	s = fenceLine.ReplaceAllString(s, "")
	s = herePreamble.ReplaceAllString(strings.TrimSpace(s), "")
	return strings.TrimSpace(s)
}

// ParseFindings validates the backend response against the finding schema.
// A response with no recognizable JSON array is a parse error; entries
// missing required fields are dropped.
func ParseFindings(output, file string) ([]engine.Finding, error) {
	cleaned := CleanResponse(output)

	start := strings.Index(cleaned, "[")
	end := strings.LastIndex(cleaned, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var raw []rawFinding
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("decoding findings: %w", err)
	}

	findings := make([]engine.Finding, 0, len(raw))
	for _, r := range raw {
		if r.Line <= 0 || r.Severity == "" {
			continue
		}
		findings = append(findings, engine.Finding{
			File:        file,
			Line:        r.Line,
			EndLine:     r.EndLine,
			Severity:    engine.NormalizeSeverity(r.Severity),
			Category:    r.Category,
			Description: r.Description,
			Standards:   r.Violations,
			Remediation: r.Remediation,
		})
	}
	return findings, nil
}
