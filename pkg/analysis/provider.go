package analysis

import (
	"context"
	"errors"

	"google.golang.org/api/googleapi"
)

// Provider defines the contract for an AI analysis backend. Every
// implementation must pin its sampling to the most deterministic setting
// available so repeated runs on unchanged input produce stable findings.
type Provider interface {
	Generate(ctx context.Context, prompt string) (string, error)
	ListModels(ctx context.Context) ([]string, error)
}

// permanentError marks failures that retrying cannot fix (bad auth,
// malformed request, missing model).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps an error so the invoker stops retrying it.
func Permanent(err error) error {
	return &permanentError{err: err}
}

// IsPermanent reports whether the error is not worth retrying. Google API
// errors are classified by status code: 429 and 5xx are transient, other
// 4xx are permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	if errors.As(err, &pe) {
		return true
	}
	var ge *googleapi.Error
	if errors.As(err, &ge) {
		if ge.Code == 429 || ge.Code >= 500 {
			return false
		}
		return ge.Code >= 400
	}
	return false
}
