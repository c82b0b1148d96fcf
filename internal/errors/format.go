package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// coerce returns err as a *PretextError, wrapping anything else as an
// internal error.
func coerce(err error) *PretextError {
	if pe, ok := as(err); ok {
		return pe
	}
	return Wrap(ErrCodeInternal, err)
}

// FormatForUser renders a multi-line, user-facing message. With debug set
// the cause and detail pairs are included.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}
	pe, ok := as(err)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", pe.Message)
	if pe.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", pe.Suggestion)
	}
	if debug {
		if pe.Cause != nil {
			fmt.Fprintf(&sb, "\nCause: %v\n", pe.Cause)
		}
		for k, v := range pe.Details {
			fmt.Fprintf(&sb, "  %s: %s\n", k, v)
		}
	}
	fmt.Fprintf(&sb, "\n[%s]", pe.Code)
	return sb.String()
}

// FormatForCLI renders the short form used by command error output.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}
	pe := coerce(err)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", pe.Message)
	if pe.Suggestion != "" {
		fmt.Fprintf(&sb, "  Hint: %s\n", pe.Suggestion)
	}
	fmt.Fprintf(&sb, "  Code: %s\n", pe.Code)
	return sb.String()
}

// errorPayload is the JSON shape emitted by FormatJSON.
type errorPayload struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON renders the error for machine consumption. A nil error
// marshals to JSON null.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}
	pe := coerce(err)

	p := errorPayload{
		Code:       pe.Code,
		Message:    pe.Message,
		Category:   string(pe.Category),
		Severity:   string(pe.Severity),
		Details:    pe.Details,
		Suggestion: pe.Suggestion,
		Retryable:  pe.Retryable,
	}
	if pe.Cause != nil {
		p.Cause = pe.Cause.Error()
	}
	return json.Marshal(p)
}

// FormatForLog returns key-value pairs for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}
	pe, ok := as(err)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	fields := map[string]any{
		"error_code": pe.Code,
		"message":    pe.Message,
		"category":   string(pe.Category),
		"severity":   string(pe.Severity),
		"retryable":  pe.Retryable,
	}
	if pe.Cause != nil {
		fields["cause"] = pe.Cause.Error()
	}
	if pe.Suggestion != "" {
		fields["suggestion"] = pe.Suggestion
	}
	for k, v := range pe.Details {
		fields["detail_"+k] = v
	}
	return fields
}
