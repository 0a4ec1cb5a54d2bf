package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestAggregateSortsAndCounts(t *testing.T) {
	r := NewReport("gemini-1.5-flash", "kb-1")
	r.Aggregate([]Finding{
		{File: "b.tf", Line: 10, Severity: SevHigh, Standards: []string{"PCI-DSS-1.2.1"}},
		{File: "a.tf", Line: 20, Severity: SevCritical, Standards: []string{"PCI-DSS-1.2.1", "CIS-AWS-4.1"}},
		{File: "a.tf", Line: 5, Severity: SevLow},
		{File: "b.tf", Line: 3, Severity: SevMedium, Standards: []string{"SOC2-CC6.1"}},
	})

	wantOrder := []struct {
		file string
		line int
	}{
		{"a.tf", 5}, {"a.tf", 20}, {"b.tf", 3}, {"b.tf", 10},
	}
	for i, w := range wantOrder {
		f := r.Findings[i]
		if f.File != w.file || f.Line != w.line {
			t.Errorf("finding %d = %s:%d, want %s:%d", i, f.File, f.Line, w.file, w.line)
		}
	}

	if r.BySeverity[SevCritical] != 1 || r.BySeverity[SevHigh] != 1 ||
		r.BySeverity[SevMedium] != 1 || r.BySeverity[SevLow] != 1 {
		t.Errorf("unexpected severity counts: %v", r.BySeverity)
	}

	pci := r.Compliance["PCI-DSS-1.2.1"]
	if pci == nil {
		t.Fatal("missing PCI-DSS-1.2.1 summary")
	}
	if pci.Issues != 2 || pci.Critical != 1 || pci.High != 1 {
		t.Errorf("PCI summary = %+v", pci)
	}
	if len(pci.Files) != 2 {
		t.Errorf("PCI files = %v, want a.tf and b.tf once each", pci.Files)
	}
}

func TestAggregateIsIdempotentAcrossBatches(t *testing.T) {
	r := NewReport("m", "")
	r.Aggregate([]Finding{{File: "z.tf", Line: 1, Severity: SevHigh, Standards: []string{"CIS-AWS-4.1"}}})
	r.Aggregate([]Finding{{File: "a.tf", Line: 1, Severity: SevHigh, Standards: []string{"CIS-AWS-4.1"}}})

	if r.Findings[0].File != "a.tf" {
		t.Error("second batch must re-sort the whole report")
	}
	if got := r.Compliance["CIS-AWS-4.1"].Issues; got != 2 {
		t.Errorf("summary must be recomputed, not accumulated twice: issues=%d", got)
	}
}

func TestHasCritical(t *testing.T) {
	r := NewReport("m", "")
	r.Aggregate([]Finding{{File: "a.tf", Line: 1, Severity: SevHigh}})
	if r.HasCritical() {
		t.Error("no critical findings yet")
	}
	r.Aggregate([]Finding{{File: "a.tf", Line: 2, Severity: SevCritical}})
	if !r.HasCritical() {
		t.Error("expected HasCritical after a CRITICAL finding")
	}
}

func TestSaveCreatesParentDirs(t *testing.T) {
	r := NewReport("m", "")
	path := filepath.Join(t.TempDir(), "out", "nested", "report.json")
	if err := r.Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var round Report
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("saved report is not valid JSON: %v", err)
	}
	if round.RunID != r.RunID {
		t.Errorf("run id mismatch: %s vs %s", round.RunID, r.RunID)
	}
}

func TestNormalizeSeverityAndMax(t *testing.T) {
	if NormalizeSeverity("critical") != SevCritical {
		t.Error("case-insensitive normalization failed")
	}
	if NormalizeSeverity("bogus") != SevLow {
		t.Error("unknown severity must map to LOW")
	}
	if MaxSeverity(SevMedium, SevHigh) != SevHigh {
		t.Error("MaxSeverity must pick the higher rank")
	}
	if MaxSeverity(SevCritical, SevLow) != SevCritical {
		t.Error("MaxSeverity must pick CRITICAL over LOW")
	}
}
