// Package analysis sends code and retrieved policy context to the AI
// backend and parses the structured finding list it returns. Every call is
// admitted through the cost governor first; a denied call is a skip, not
// an error.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/user/complyscan/pkg/budget"
	"github.com/user/complyscan/pkg/engine"
	"github.com/user/complyscan/pkg/knowledge"
)

// ErrBudgetExhausted is returned when the governor refuses the call.
var ErrBudgetExhausted = errors.New("skipped: budget exceeded")

// DefaultMaxOutputTokens caps how much the model may produce per call.
// Pricing reservations assume this cap, so it must not be raised without
// raising EstOutputTokens with it.
const DefaultMaxOutputTokens = 3000

// Pricing converts prompt/response sizes to dollar estimates. Tokens are
// approximated as length/4, matching the backend's published tokenizer
// ratio closely enough for admission control. EstOutputTokens prices the
// full output cap: the reservation is an upper bound and settling only
// ever adjusts spend downward.
type Pricing struct {
	InputPer1K      float64
	OutputPer1K     float64
	EstOutputTokens float64
}

// DefaultPricing matches the configured default model.
var DefaultPricing = Pricing{
	InputPer1K:      0.00035,
	OutputPer1K:     0.0014,
	EstOutputTokens: DefaultMaxOutputTokens,
}

func (p Pricing) estimate(prompt string) float64 {
	inputTokens := float64(len(prompt)) / 4
	return inputTokens*p.InputPer1K/1000 + p.EstOutputTokens*p.OutputPer1K/1000
}

func (p Pricing) actual(prompt, output string) float64 {
	inputTokens := float64(len(prompt)) / 4
	outputTokens := float64(len(output)) / 4
	return inputTokens*p.InputPer1K/1000 + outputTokens*p.OutputPer1K/1000
}

const maxAttempts = 3

// Invoker drives governor-gated analysis calls against a Provider.
type Invoker struct {
	provider       Provider
	pricing        Pricing
	maxPromptBytes int
	log            *zap.SugaredLogger

	// newBackOff is swappable so tests run without real delays.
	newBackOff func() backoff.BackOff
}

// NewInvoker creates an invoker. maxPromptBytes bounds how much of a file
// is embedded in the prompt; larger files are truncated for cost control.
func NewInvoker(provider Provider, pricing Pricing, maxPromptBytes int, log *zap.SugaredLogger) *Invoker {
	if maxPromptBytes <= 0 {
		maxPromptBytes = 16 * 1024
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Invoker{
		provider:       provider,
		pricing:        pricing,
		maxPromptBytes: maxPromptBytes,
		log:            log,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
}

const complianceContext = `You are a security expert specializing in compliance standards: PCI-DSS, SOC2, HIPAA, GDPR, OWASP Top 10.

Context:
- PCI-DSS: Protect cardholder data, encrypt transmission, implement access controls
- SOC2: Security, availability, confidentiality controls
- HIPAA: Protect PHI with encryption, access controls, audit logs
- GDPR: Data protection by design, consent, minimization
- OWASP: Prevent injection, broken auth, data exposure`

// buildPrompt assembles the analysis prompt: compliance context, retrieved
// guidance, and the (possibly truncated) file content.
func (inv *Invoker) buildPrompt(target engine.ScanTarget, kctx knowledge.Context) string {
	code := string(target.Content)
	if len(code) > inv.maxPromptBytes {
		code = code[:inv.maxPromptBytes] + "\n# ... (truncated for cost control)"
	}

	lang := target.Language
	if target.Framework != "" {
		lang += "/" + target.Framework
	}

	var sb strings.Builder
	sb.WriteString(complianceContext)
	sb.WriteString("\n\n")
	if kctx.Guidance != "" {
		sb.WriteString("Applicable policy guidance:\n")
		sb.WriteString(kctx.Guidance)
		sb.WriteString("\n")
		for _, s := range kctx.Sources {
			fmt.Fprintf(&sb, "- [%s] %s\n", s.DocumentID, s.Excerpt)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, `Analyze this %s code for compliance violations.

Return a JSON array with exact line numbers:
[{"line": <exact_line_number>, "severity": "critical|high|medium|low", "category": "<type>", "description": "<what_you_found>", "compliance_violations": ["<standard>"], "remediation": "<fix>"}]

Code from %s:
%s

IMPORTANT: Return ONLY the JSON array, no other text.`, lang, target.Path, "```\n"+code+"\n```")
	return sb.String()
}

// Analyze runs one governor-gated analysis for the target. Returns
// ErrBudgetExhausted when the governor denies admission; a permanent
// backend failure fails only this file.
func (inv *Invoker) Analyze(ctx context.Context, target engine.ScanTarget, kctx knowledge.Context, gov *budget.Governor) ([]engine.Finding, error) {
	prompt := inv.buildPrompt(target, kctx)

	output, err := inv.generate(ctx, prompt, gov)
	if err != nil {
		return nil, err
	}

	findings, parseErr := ParseFindings(output, target.Path)
	if parseErr == nil {
		return findings, nil
	}

	// A structurally invalid response is treated as transient: retried
	// once, then discarded.
	inv.log.Debugw("analysis response failed validation, retrying once",
		"file", target.Path, "error", parseErr)
	output, err = inv.generate(ctx, prompt, gov)
	if err != nil {
		return nil, err
	}
	findings, parseErr = ParseFindings(output, target.Path)
	if parseErr != nil {
		inv.log.Warnw("analysis response unparseable, discarding",
			"file", target.Path, "error", parseErr)
		return nil, nil
	}
	return findings, nil
}

// generate performs one admitted model call with bounded retry for
// transient failures.
func (inv *Invoker) generate(ctx context.Context, prompt string, gov *budget.Governor) (string, error) {
	est := inv.pricing.estimate(prompt)
	if !gov.Admit(est) {
		return "", ErrBudgetExhausted
	}

	attempt := 0
	output, err := backoff.RetryWithData(func() (string, error) {
		attempt++
		out, genErr := inv.provider.Generate(ctx, prompt)
		if genErr == nil {
			return out, nil
		}
		if IsPermanent(genErr) || attempt >= maxAttempts {
			return "", backoff.Permanent(genErr)
		}
		inv.log.Debugw("transient analysis failure, backing off",
			"attempt", attempt, "error", genErr)
		return "", genErr
	}, backoff.WithContext(inv.newBackOff(), ctx))

	gov.Settle(est, inv.pricing.actual(prompt, output))
	if err != nil {
		return "", fmt.Errorf("analysis backend: %w", err)
	}
	return output, nil
}

// GenerateRaw runs one admitted free-form completion. The remediation
// engine uses it for fix generation so its calls share the same budget.
func (inv *Invoker) GenerateRaw(ctx context.Context, prompt string, gov *budget.Governor) (string, error) {
	return inv.generate(ctx, prompt, gov)
}
