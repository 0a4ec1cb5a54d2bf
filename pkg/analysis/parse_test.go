package analysis

import (
	"testing"

	"github.com/user/complyscan/pkg/engine"
)

func TestParseFindingsPlainArray(t *testing.T) {
	out := `[{"line": 3, "severity": "critical", "category": "network",
"description": "open ingress", "compliance_violations": ["PCI-DSS-1.2.1"]}]`

	findings, err := ParseFindings(out, "main.tf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(findings))
	}
	f := findings[0]
	if f.File != "main.tf" || f.Line != 3 || f.Severity != engine.SevCritical {
		t.Errorf("unexpected finding: %+v", f)
	}
	if len(f.Standards) != 1 || f.Standards[0] != "PCI-DSS-1.2.1" {
		t.Errorf("standards not carried: %+v", f.Standards)
	}
}

func TestParseFindingsStripsFencesAndPreamble(t *testing.T) {
	out := "Here is the analysis:\n```json\n[{\"line\": 1, \"severity\": \"high\", \"description\": \"d\"}]\n```"

	findings, err := ParseFindings(out, "a.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 || findings[0].Severity != engine.SevHigh {
		t.Errorf("unexpected findings: %+v", findings)
	}
}

func TestParseFindingsDropsEntriesMissingRequiredFields(t *testing.T) {
	out := `[
		{"line": 2, "severity": "low", "description": "keep"},
		{"severity": "high", "description": "no line"},
		{"line": 9, "description": "no severity"}
	]`

	findings, err := ParseFindings(out, "a.py")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 || findings[0].Description != "keep" {
		t.Errorf("expected only the valid entry, got %+v", findings)
	}
}

func TestParseFindingsRejectsNonJSON(t *testing.T) {
	if _, err := ParseFindings("I could not analyze this file.", "a.py"); err == nil {
		t.Error("expected a parse error for prose output")
	}
	if _, err := ParseFindings("[not json]", "a.py"); err == nil {
		t.Error("expected a parse error for malformed array")
	}
}

func TestParseFindingsEmptyArray(t *testing.T) {
	findings, err := ParseFindings("[]", "clean.tf")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("expected no findings, got %+v", findings)
	}
}

func TestNormalizeSeverityUnknownDegradesToLow(t *testing.T) {
	if got := engine.NormalizeSeverity("urgent"); got != engine.SevLow {
		t.Errorf("expected LOW for unknown severity, got %s", got)
	}
}
