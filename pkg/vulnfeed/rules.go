package vulnfeed

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/user/complyscan/pkg/engine"
)

// Rule is one static pattern check, keyed by language. AdvisoryKey links
// the rule to the external vulnerability feed.
type Rule struct {
	ID          string          `yaml:"id"`
	Languages   []string        `yaml:"languages"` // empty = all languages
	Pattern     string          `yaml:"pattern"`
	Severity    engine.Severity `yaml:"severity"`
	Description string          `yaml:"description"`
	Standards   []string        `yaml:"standards"`
	AdvisoryKey string          `yaml:"advisory_key"`
	Confidence  float64         `yaml:"confidence"`

	re *regexp.Regexp
}

// builtinRules covers the dangerous patterns the scanner must catch even
// with the AI backend disabled or over budget.
var builtinRules = []Rule{
	{
		ID:          "open-ingress",
		Languages:   []string{"Terraform", "Kubernetes"},
		Pattern:     `0\.0\.0\.0/0`,
		Severity:    engine.SevHigh,
		Description: "Ingress rule open to the world (0.0.0.0/0)",
		Standards:   []string{"PCI-DSS-1.2.1", "CIS-AWS-4.1"},
		AdvisoryKey: "open-ingress",
		Confidence:  0.9,
	},
	{
		ID:          "hardcoded-password",
		Pattern:     `(?i)password\s*[=:]\s*["'][^"']{3,}["']`,
		Severity:    engine.SevCritical,
		Description: "Hardcoded password",
		Standards:   []string{"PCI-DSS-8.2.1", "OWASP-A07"},
		AdvisoryKey: "hardcoded-credential",
		Confidence:  0.8,
	},
	{
		ID:          "hardcoded-secret",
		Pattern:     `(?i)(api_key|apikey|secret|token)\s*[=:]\s*["'][^"']{10,}["']`,
		Severity:    engine.SevHigh,
		Description: "Hardcoded secret or API key",
		Standards:   []string{"PCI-DSS-3.4", "SOC2-CC6.1"},
		AdvisoryKey: "hardcoded-credential",
		Confidence:  0.7,
	},
	{
		ID:          "privileged-container",
		Languages:   []string{"Kubernetes"},
		Pattern:     `privileged:\s*true`,
		Severity:    engine.SevHigh,
		Description: "Privileged container",
		Standards:   []string{"CIS-K8S-5.2.1", "SOC2-CC6.6"},
		AdvisoryKey: "privileged-container",
		Confidence:  0.9,
	},
	{
		ID:          "root-user",
		Languages:   []string{"Kubernetes"},
		Pattern:     `runAsUser:\s*0\b`,
		Severity:    engine.SevHigh,
		Description: "Container running as root user",
		Standards:   []string{"CIS-K8S-5.2.6"},
		AdvisoryKey: "root-container",
		Confidence:  0.9,
	},
	{
		ID:          "unencrypted-bucket",
		Languages:   []string{"Terraform"},
		Pattern:     `resource\s+"aws_s3_bucket"`,
		Severity:    engine.SevMedium,
		Description: "S3 bucket declared without server-side encryption block",
		Standards:   []string{"PCI-DSS-3.4", "HIPAA-164.312"},
		AdvisoryKey: "unencrypted-storage",
		Confidence:  0.4,
	},
	{
		ID:          "dynamic-eval",
		Languages:   []string{"Python", "JavaScript", "TypeScript"},
		Pattern:     `\beval\s*\(`,
		Severity:    engine.SevHigh,
		Description: "Dynamic code execution via eval",
		Standards:   []string{"OWASP-A03"},
		AdvisoryKey: "dynamic-exec",
		Confidence:  0.7,
	},
	{
		ID:          "python-exec",
		Languages:   []string{"Python"},
		Pattern:     `\bexec\s*\(`,
		Severity:    engine.SevHigh,
		Description: "Dynamic code execution via exec",
		Standards:   []string{"OWASP-A03"},
		AdvisoryKey: "dynamic-exec",
		Confidence:  0.7,
	},
	{
		ID:          "curl-pipe-shell",
		Languages:   []string{"Shell"},
		Pattern:     `curl[^|\n]*\|\s*(sudo\s+)?(ba)?sh`,
		Severity:    engine.SevHigh,
		Description: "Remote script piped directly into a shell",
		Standards:   []string{"OWASP-A08"},
		AdvisoryKey: "remote-exec",
		Confidence:  0.8,
	},
}

// sshPortPattern escalates an open ingress rule to unrestricted SSH when
// the surrounding block references port 22.
var sshPortPattern = regexp.MustCompile(`(?:from_port|to_port|port)\s*[=:]\s*"?22\b`)

// DefaultRules returns the compiled builtin rule table.
func DefaultRules() ([]Rule, error) {
	return compile(builtinRules)
}

// LoadRules reads a YAML rule file, replacing the builtin table. Used by
// teams that maintain their own pattern sets.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	return compile(rules)
}

func compile(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, err
		}
		r.re = re
		if r.Confidence == 0 {
			r.Confidence = 0.5
		}
		out = append(out, r)
	}
	return out, nil
}

func (r Rule) appliesTo(language string) bool {
	if len(r.Languages) == 0 {
		return true
	}
	for _, l := range r.Languages {
		if l == language {
			return true
		}
	}
	return false
}
