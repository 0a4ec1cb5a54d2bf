// Package remedy proposes automated fixes for findings and gates them
// behind conservative content-protection checks. Only PASSED proposals
// may ever reach disk.
package remedy

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/user/complyscan/pkg/analysis"
	"github.com/user/complyscan/pkg/budget"
	"github.com/user/complyscan/pkg/engine"
)

// Engine generates fix proposals through the shared analysis invoker, so
// fix generation draws on the same budget as analysis.
type Engine struct {
	invoker *analysis.Invoker
	log     *zap.SugaredLogger
}

// New creates a remediation engine.
func New(invoker *analysis.Invoker, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{invoker: invoker, log: log}
}

// Propose asks the backend for a corrected version of the file addressing
// one finding, then validates it. Findings without a line boundary are
// never fixed: there is not enough context to bound the edit.
func (e *Engine) Propose(ctx context.Context, finding engine.Finding, target engine.ScanTarget, gov *budget.Governor) (engine.FixProposal, error) {
	proposal := engine.FixProposal{
		Finding:  finding,
		Original: string(target.Content),
		Status:   engine.FixRejected,
	}
	if finding.Line <= 0 {
		proposal.RejectReason = "finding has no line boundary"
		return proposal, nil
	}

	prompt := buildFixPrompt(finding, target)
	output, err := e.invoker.GenerateRaw(ctx, prompt, gov)
	if err != nil {
		return proposal, err
	}

	fixed := analysis.CleanResponse(output)
	proposal.Fixed = fixed
	proposal.SpanStart, proposal.SpanEnd = editedSpan(proposal.Original, fixed)

	if reason := Validate(proposal.Original, fixed, target.Language, finding.Line); reason != "" {
		proposal.RejectReason = reason
		e.log.Debugw("fix rejected", "file", target.Path, "line", finding.Line, "reason", reason)
		return proposal, nil
	}

	proposal.Status = engine.FixPassed
	return proposal, nil
}

// Apply writes a PASSED proposal back to disk. Calling it with anything
// else is a programming error and refused.
func (e *Engine) Apply(proposal engine.FixProposal, path string) error {
	if proposal.Status != engine.FixPassed {
		return fmt.Errorf("refusing to apply %s proposal for %s", proposal.Status, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(proposal.Fixed), info.Mode().Perm())
}

// Result converts a proposal to its report-facing form.
func Result(p engine.FixProposal) *engine.FixResult {
	r := &engine.FixResult{Status: p.Status, Reason: p.RejectReason}
	if p.Status == engine.FixPassed {
		r.Diff = diffSummary(p)
	}
	return r
}

func diffSummary(p engine.FixProposal) string {
	origLines := strings.Split(p.Original, "\n")
	fixedLines := strings.Split(p.Fixed, "\n")

	var sb strings.Builder
	fmt.Fprintf(&sb, "@@ lines %d-%d @@\n", p.SpanStart, p.SpanEnd)
	for i := p.SpanStart - 1; i < p.SpanEnd && i < len(origLines); i++ {
		sb.WriteString("- " + origLines[i] + "\n")
	}
	fixedEnd := len(fixedLines) - (len(origLines) - p.SpanEnd)
	for i := p.SpanStart - 1; i < fixedEnd && i < len(fixedLines); i++ {
		sb.WriteString("+ " + fixedLines[i] + "\n")
	}
	return sb.String()
}

func buildFixPrompt(finding engine.Finding, target engine.ScanTarget) string {
	lang := target.Language
	if target.Framework != "" {
		lang += "/" + target.Framework
	}
	standards := strings.Join(finding.Standards, ", ")
	if standards == "" {
		standards = "general security best practice"
	}
	return fmt.Sprintf(`Fix the following security violation in this %s file with the smallest possible change.

Line %d: %s (%s) - Violates: %s

Keep every unrelated line exactly as it is. Return ONLY the complete fixed file content, no explanations, no code fences.

Original file:
%s`, lang, finding.Line, finding.Description, finding.Severity, standards, string(target.Content))
}
