package remedy

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// MinLengthRatio guards against truncation: a fix shrinking the file below
// this fraction of its original length is rejected.
const MinLengthRatio = 0.5

// contextLines is how many unchanged lines must surround the edited span.
const contextLines = 2

// Validate runs every content-protection gate over a candidate fix and
// returns the first rejection reason, or "" when all gates pass.
func Validate(original, fixed, language string, findingLine int) string {
	origTrim := strings.TrimSpace(original)
	fixedTrim := strings.TrimSpace(fixed)

	if fixedTrim == "" || len(fixedTrim) < 10 {
		return "fix produced trivial content"
	}
	if fixed == original {
		return "fix identical to original"
	}
	if float64(len(fixedTrim)) < MinLengthRatio*float64(len(origTrim)) {
		return fmt.Sprintf("fix shrinks content below %.0f%% of original", MinLengthRatio*100)
	}

	if reason := checkBalance(original, fixed); reason != "" {
		return reason
	}

	start, end := editedSpan(original, fixed)
	if findingLine > 0 && (findingLine < start-contextLines || findingLine > end+contextLines) {
		return "edit does not touch the reported line"
	}

	return checkStructure(fixed, language)
}

// editedSpan locates the changed region by trimming common prefix and
// suffix lines. Returns 1-based start/end line numbers in the original.
func editedSpan(original, fixed string) (start, end int) {
	origLines := strings.Split(original, "\n")
	fixedLines := strings.Split(fixed, "\n")

	prefix := 0
	for prefix < len(origLines) && prefix < len(fixedLines) && origLines[prefix] == fixedLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(origLines)-prefix && suffix < len(fixedLines)-prefix &&
		origLines[len(origLines)-1-suffix] == fixedLines[len(fixedLines)-1-suffix] {
		suffix++
	}

	start = prefix + 1
	end = len(origLines) - suffix
	if end < start {
		end = start
	}
	return start, end
}

// checkBalance verifies the fix did not change brace/bracket/paren depth
// or double-quote parity relative to the original. The check is relative
// because real files are routinely unbalanced in absolute terms: an
// apostrophe-free shell comment with a stray quote, a snippet of a larger
// document. Single quotes are skipped entirely, apostrophes in comments
// would produce false rejections.
func checkBalance(original, fixed string) string {
	origDepth, origQuotes := countDelims(original)
	fixedDepth, fixedQuotes := countDelims(fixed)

	for _, open := range []rune{'{', '[', '('} {
		if fixedDepth[open] != origDepth[open] {
			return fmt.Sprintf("fix changes %q delimiter balance", open)
		}
	}
	if fixedQuotes%2 != origQuotes%2 {
		return "fix changes double-quote parity"
	}
	return ""
}

// countDelims returns the net nesting depth per opening delimiter and the
// total double-quote count, honoring backslash escapes.
func countDelims(content string) (map[rune]int, int) {
	depth := map[rune]int{'{': 0, '[': 0, '(': 0}
	quotes := 0
	escaped := false
	for _, r := range content {
		if escaped {
			escaped = false
			continue
		}
		switch r {
		case '\\':
			escaped = true
		case '"':
			quotes++
		case '{':
			depth['{']++
		case '}':
			depth['{']--
		case '[':
			depth['[']++
		case ']':
			depth['[']--
		case '(':
			depth['(']++
		case ')':
			depth['(']--
		}
	}
	return depth, quotes
}

// checkStructure runs the per-language-family parseability gate.
func checkStructure(content, language string) string {
	switch language {
	case "Kubernetes":
		var node any
		if err := yaml.Unmarshal([]byte(content), &node); err != nil {
			return fmt.Sprintf("fix is not valid YAML: %v", err)
		}
		if !strings.Contains(content, "apiVersion:") {
			return "fix dropped the apiVersion marker"
		}
	case "Terraform":
		if !containsAny(content, "resource", "data", "module", "provider", "variable") {
			return "fix dropped all Terraform block markers"
		}
	}
	return ""
}

func containsAny(content string, markers ...string) bool {
	for _, m := range markers {
		if strings.Contains(content, m) {
			return true
		}
	}
	return false
}
