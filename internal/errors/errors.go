package errors

import (
	"fmt"
)

// PretextError carries a stable code plus everything the CLI, the logs,
// and the JSON output need to present a failure.
type PretextError struct {
	Code       string            // stable identifier, e.g. "ERR_204_CORPUS_WRITE"
	Message    string            // human-readable description
	Category   Category          // derived from the code's number range
	Severity   Severity          // how the caller should react
	Details    map[string]string // extra context for debug output
	Cause      error             // wrapped underlying error
	Retryable  bool              // whether another attempt could succeed
	Suggestion string            // actionable advice for the user
}

// New builds a PretextError for the given code. Category, severity, and
// the retryable flag follow from the code.
func New(code string, message string, cause error) *PretextError {
	return &PretextError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap lifts a plain error into a PretextError, reusing its text as the
// message. A nil error stays nil.
func Wrap(code string, err error) *PretextError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

func (e *PretextError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the cause to the errors.Is / errors.As machinery.
func (e *PretextError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is works across separately constructed
// PretextError values.
func (e *PretextError) Is(target error) bool {
	t, ok := target.(*PretextError)
	return ok && e.Code == t.Code
}

// WithDetail attaches a key-value pair and returns the error for chaining.
func (e *PretextError) WithDetail(key, value string) *PretextError {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}

// WithSuggestion attaches advice for the user and returns the error for
// chaining.
func (e *PretextError) WithSuggestion(suggestion string) *PretextError {
	e.Suggestion = suggestion
	return e
}

// ConfigError reports a bad or unusable configuration.
func ConfigError(message string, cause error) *PretextError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// DatasetError reports a failed dataset read.
func DatasetError(message string, cause error) *PretextError {
	return New(ErrCodeDatasetRead, message, cause)
}

// CorpusWriteError reports a failed corpus write. These are fatal: the run
// stops rather than retry into a partial file.
func CorpusWriteError(message string, cause error) *PretextError {
	return New(ErrCodeCorpusWrite, message, cause)
}

// ValidationError reports rejected input.
func ValidationError(message string, cause error) *PretextError {
	return New(ErrCodeInvalidFormat, message, cause)
}

// InternalError reports a bug or unexpected state.
func InternalError(message string, cause error) *PretextError {
	return New(ErrCodeInternal, message, cause)
}

// as extracts the *PretextError when err itself is one. Wrapped chains are
// not searched: the outermost error is the one that classified the failure.
func as(err error) (*PretextError, bool) {
	pe, ok := err.(*PretextError)
	return pe, ok
}

// IsRetryable reports whether err is a PretextError marked retryable.
func IsRetryable(err error) bool {
	pe, ok := as(err)
	return ok && pe.Retryable
}

// IsFatal reports whether err carries fatal severity and should abort the
// current operation.
func IsFatal(err error) bool {
	pe, ok := as(err)
	return ok && pe.Severity == SeverityFatal
}

// GetCode returns the error code, or "" for non-PretextError values.
func GetCode(err error) string {
	if pe, ok := as(err); ok {
		return pe.Code
	}
	return ""
}

// GetCategory returns the error category, or "" for non-PretextError values.
func GetCategory(err error) Category {
	if pe, ok := as(err); ok {
		return pe.Category
	}
	return ""
}
