package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
)

// ScanTarget identifies one file for the duration of a scan pass. Content
// and fingerprint are captured at read time and never refreshed, so every
// stage of the pipeline sees the same bytes.
type ScanTarget struct {
	Path        string
	Language    string
	Framework   string
	Content     []byte
	Fingerprint string
}

var extLanguages = map[string]string{
	".py":     "Python",
	".js":     "JavaScript",
	".ts":     "TypeScript",
	".tf":     "Terraform",
	".tfvars": "Terraform",
	".yaml":   "Kubernetes",
	".yml":    "Kubernetes",
	".java":   "Java",
	".go":     "Go",
	".sh":     "Shell",
}

// DetectLanguage maps a file extension to its language. Returns "" for
// files the scanner does not handle.
func DetectLanguage(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}

// detectFramework sniffs the framework for languages where remediation
// guidance differs by framework.
func detectFramework(language string, content []byte) string {
	if language != "Python" {
		return ""
	}
	lower := strings.ToLower(string(content))
	switch {
	case strings.Contains(lower, "django"):
		return "Django"
	case strings.Contains(lower, "flask"):
		return "Flask"
	case strings.Contains(lower, "fastapi"):
		return "FastAPI"
	}
	return ""
}

// Fingerprint returns the hex SHA-256 of the given content.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ReadTarget loads a file into a ScanTarget. Files in unsupported
// languages yield ok=false and are skipped by the caller.
func ReadTarget(path string) (ScanTarget, bool, error) {
	language := DetectLanguage(path)
	if language == "" {
		return ScanTarget{}, false, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return ScanTarget{}, false, err
	}
	return ScanTarget{
		Path:        filepath.ToSlash(path),
		Language:    language,
		Framework:   detectFramework(language, content),
		Content:     content,
		Fingerprint: Fingerprint(content),
	}, true, nil
}
