package engine

// Severity levels for findings, most severe first.
type Severity string

const (
	SevCritical Severity = "CRITICAL"
	SevHigh     Severity = "HIGH"
	SevMedium   Severity = "MEDIUM"
	SevLow      Severity = "LOW"
)

var severityRank = map[Severity]int{
	SevCritical: 4,
	SevHigh:     3,
	SevMedium:   2,
	SevLow:      1,
}

// NormalizeSeverity maps free-form model output ("critical", "High") onto
// the severity enum. Unknown values degrade to LOW rather than being
// dropped, so a sloppy backend response still surfaces.
func NormalizeSeverity(s string) Severity {
	switch s {
	case "critical", "CRITICAL", "Critical":
		return SevCritical
	case "high", "HIGH", "High":
		return SevHigh
	case "medium", "MEDIUM", "Medium":
		return SevMedium
	case "low", "LOW", "Low":
		return SevLow
	default:
		return SevLow
	}
}

// MaxSeverity returns the more severe of two levels.
func MaxSeverity(a, b Severity) Severity {
	if severityRank[a] >= severityRank[b] {
		return a
	}
	return b
}

// VulnerabilityMatch is a correlation hit against the public vulnerability
// feed, produced independently of the AI backend.
type VulnerabilityMatch struct {
	ID         string  `json:"id"`
	Pattern    string  `json:"pattern"`
	Confidence float64 `json:"confidence"`
}

// Finding is one detected issue. Findings are value objects: once merged
// into a report they are never mutated.
type Finding struct {
	File        string              `json:"file"`
	Line        int                 `json:"line"`
	EndLine     int                 `json:"endLine,omitempty"`
	Severity    Severity            `json:"severity"`
	Description string              `json:"description"`
	Category    string              `json:"category,omitempty"`
	Standards   []string            `json:"standards"`
	Sources     []string            `json:"sources"`
	CVE         *VulnerabilityMatch `json:"cve,omitempty"`
	Remediation string              `json:"remediation,omitempty"`
	Fix         *FixResult          `json:"fix,omitempty"`
}

// FixStatus is the verdict of remediation validation.
type FixStatus string

const (
	FixPassed   FixStatus = "PASSED"
	FixRejected FixStatus = "REJECTED"
)

// FixResult is the report-facing view of a fix proposal.
type FixResult struct {
	Status FixStatus `json:"status"`
	Diff   string    `json:"diff,omitempty"`
	Reason string    `json:"reason,omitempty"`
}

// FixProposal is a candidate remediation for a single finding. It is never
// written to disk unless Status is PASSED.
type FixProposal struct {
	Finding      Finding
	Original     string // full original file content
	Fixed        string // full replacement content
	SpanStart    int    // first changed line, 1-based
	SpanEnd      int    // last changed line, 1-based
	Status       FixStatus
	RejectReason string
}

// FileError annotates a per-file stage failure so report consumers can
// tell "no issues found" apart from "could not be analyzed".
type FileError struct {
	File  string `json:"file"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// Stage names used in FileError annotations.
const (
	StageRead      = "read"
	StageCache     = "cache"
	StageKnowledge = "knowledge"
	StageCorrelate = "correlate"
	StageAnalyze   = "analyze"
	StageRemediate = "remediate"
)

// AnalysisFailed marks a file whose AI analysis hit a permanent error.
const AnalysisFailed = "FILE_ANALYSIS_FAILED"

// AnalysisSkipped marks a file left unanalyzed because the budget ran out.
const AnalysisSkipped = "skipped: budget exceeded"
