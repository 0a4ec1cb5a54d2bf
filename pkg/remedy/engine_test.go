package remedy

import (
	"context"
	"strings"
	"testing"

	"github.com/user/complyscan/pkg/analysis"
	"github.com/user/complyscan/pkg/budget"
	"github.com/user/complyscan/pkg/engine"
)

type cannedProvider struct {
	output string
	calls  int
}

func (p *cannedProvider) Generate(context.Context, string) (string, error) {
	p.calls++
	return p.output, nil
}

func (p *cannedProvider) ListModels(context.Context) ([]string, error) { return nil, nil }

func newEngine(output string) (*Engine, *cannedProvider) {
	p := &cannedProvider{output: output}
	inv := analysis.NewInvoker(p, analysis.DefaultPricing, 0, nil)
	return New(inv, nil), p
}

func sshFinding() engine.Finding {
	return engine.Finding{
		File:        "main.tf",
		Line:        8,
		Severity:    engine.SevCritical,
		Description: "Unrestricted SSH ingress from 0.0.0.0/0 on port 22",
		Standards:   []string{"PCI-DSS-1.2.1"},
	}
}

func sshTarget() engine.ScanTarget {
	return engine.ScanTarget{
		Path:        "main.tf",
		Language:    "Terraform",
		Content:     []byte(tfOriginal),
		Fingerprint: engine.Fingerprint([]byte(tfOriginal)),
	}
}

func TestProposePassesValidFix(t *testing.T) {
	fixed := strings.Replace(tfOriginal, `["0.0.0.0/0"]`, `["10.0.0.0/8"]`, 1)
	e, _ := newEngine("```hcl\n" + fixed + "```")

	proposal, err := e.Propose(context.Background(), sshFinding(), sshTarget(), budget.New(10, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proposal.Status != engine.FixPassed {
		t.Fatalf("expected PASSED, got %s (%s)", proposal.Status, proposal.RejectReason)
	}
	if !strings.Contains(proposal.Fixed, "10.0.0.0/8") {
		t.Error("fixed content lost the edit")
	}
}

func TestProposeRejectsTruncatedFix(t *testing.T) {
	e, _ := newEngine("resource \"aws_security_group\" \"ssh\" {}")

	proposal, err := e.Propose(context.Background(), sshFinding(), sshTarget(), budget.New(10, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proposal.Status != engine.FixRejected {
		t.Errorf("expected REJECTED, got %s", proposal.Status)
	}
	if proposal.RejectReason == "" {
		t.Error("rejection must carry a reason")
	}
}

func TestProposeSkipsFindingWithoutLine(t *testing.T) {
	e, p := newEngine("anything")

	f := sshFinding()
	f.Line = 0
	proposal, err := e.Propose(context.Background(), f, sshTarget(), budget.New(10, 1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proposal.Status != engine.FixRejected {
		t.Errorf("expected REJECTED, got %s", proposal.Status)
	}
	if p.calls != 0 {
		t.Errorf("no model call expected without a line boundary, got %d", p.calls)
	}
}

func TestProposeRespectsBudget(t *testing.T) {
	e, p := newEngine("anything")

	_, err := e.Propose(context.Background(), sshFinding(), sshTarget(), budget.New(0, 0))
	if err == nil {
		t.Fatal("expected budget error")
	}
	if p.calls != 0 {
		t.Errorf("no model call expected when budget denied, got %d", p.calls)
	}
}

func TestApplyRefusesRejectedProposal(t *testing.T) {
	e, _ := newEngine("")
	proposal := engine.FixProposal{Status: engine.FixRejected}

	if err := e.Apply(proposal, "main.tf"); err == nil {
		t.Error("applying a REJECTED proposal must fail")
	}
}
