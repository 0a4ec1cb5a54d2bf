package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// StandardSummary aggregates findings for one compliance standard.
type StandardSummary struct {
	Files    []string `json:"files"`
	Issues   int      `json:"issues"`
	Critical int      `json:"critical"`
	High     int      `json:"high"`
}

// Report is the final scan artifact.
type Report struct {
	RunID           string                      `json:"runId"`
	Timestamp       time.Time                   `json:"timestamp"`
	Model           string                      `json:"model"`
	KnowledgeBaseID string                      `json:"knowledgeBaseId,omitempty"`
	FilesScanned    int                         `json:"filesScanned"`
	Findings        []Finding                   `json:"findings"`
	BySeverity      map[Severity]int            `json:"bySeverity"`
	Compliance      map[string]*StandardSummary `json:"complianceSummary"`
	Errors          []FileError                 `json:"errors,omitempty"`
	FilesSkipped    []string                    `json:"filesSkippedOverBudget,omitempty"`
	FixedFiles      []string                    `json:"fixedFiles,omitempty"`
	CostUSD         float64                     `json:"costUsd"`
	MonthlyEstimate float64                     `json:"estimatedMonthlyCostUsd"`
	AICalls         int                         `json:"aiCalls"`
	Partial         bool                        `json:"partial"`
	Inconclusive    bool                        `json:"inconclusive"`
}

// NewReport creates an empty report stamped with a fresh run id.
func NewReport(model, kbID string) *Report {
	return &Report{
		RunID:           uuid.NewString(),
		Timestamp:       time.Now().UTC(),
		Model:           model,
		KnowledgeBaseID: kbID,
		Findings:        []Finding{},
		BySeverity:      map[Severity]int{},
		Compliance:      map[string]*StandardSummary{},
	}
}

// Aggregate folds per-file findings into the report. Findings are sorted
// by path then line so repeated runs over unchanged input produce
// byte-identical output regardless of worker completion order.
func (r *Report) Aggregate(findings []Finding) {
	r.Findings = append(r.Findings, findings...)
	sort.SliceStable(r.Findings, func(i, j int) bool {
		if r.Findings[i].File != r.Findings[j].File {
			return r.Findings[i].File < r.Findings[j].File
		}
		return r.Findings[i].Line < r.Findings[j].Line
	})
	sort.Slice(r.Errors, func(i, j int) bool {
		if r.Errors[i].File != r.Errors[j].File {
			return r.Errors[i].File < r.Errors[j].File
		}
		return r.Errors[i].Stage < r.Errors[j].Stage
	})
	sort.Strings(r.FilesSkipped)
	sort.Strings(r.FixedFiles)

	r.BySeverity = map[Severity]int{}
	r.Compliance = map[string]*StandardSummary{}
	for _, f := range r.Findings {
		r.BySeverity[f.Severity]++
		for _, std := range f.Standards {
			s := r.Compliance[std]
			if s == nil {
				s = &StandardSummary{}
				r.Compliance[std] = s
			}
			s.Issues++
			if len(s.Files) == 0 || s.Files[len(s.Files)-1] != f.File {
				s.Files = append(s.Files, f.File)
			}
			switch f.Severity {
			case SevCritical:
				s.Critical++
			case SevHigh:
				s.High++
			}
		}
	}
}

// HasCritical reports whether the scan found any CRITICAL issue. Used by
// the CLI to gate pipeline exit codes.
func (r *Report) HasCritical() bool {
	return r.BySeverity[SevCritical] > 0
}

// Save writes the report JSON to the given sink path, creating parent
// directories as needed.
func (r *Report) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
