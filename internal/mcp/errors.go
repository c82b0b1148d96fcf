// Package mcp implements the Model Context Protocol server behind
// `pretext serve`. It exposes a built corpus to agent clients through
// corpus_search and corpus_stats tools plus read-only resources for
// the corpus file and the build manifest.
package mcp

import (
	"context"
	"errors"
	"fmt"

	pxerrors "github.com/pretextml/pretext/internal/errors"
)

// Standard JSON-RPC error codes.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Server-specific codes, in the JSON-RPC implementation-defined range.
const (
	ErrCodeIndexNotFound = -32001 // no sentence index exists
	ErrCodeNoBuilds      = -32002 // the manifest has no recorded builds
	ErrCodeTimeout       = -32003 // request timed out or was canceled
	ErrCodeFileNotFound  = -32004 // a corpus artifact is missing on disk
	ErrCodeFileTooLarge  = -32005 // a resource exceeds the size cap
)

// Sentinel errors the tool and resource handlers return internally.
// MapError translates them into protocol errors at the boundary.
var (
	ErrIndexNotFound    = errors.New("sentence index not found")
	ErrNoBuilds         = errors.New("no recorded builds")
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

func rpcErr(code int, message string) *MCPError {
	return &MCPError{Code: code, Message: message}
}

// sentinelMappings pairs each sentinel with its protocol code and the
// client-facing message.
var sentinelMappings = []struct {
	target  error
	code    int
	message string
}{
	{ErrIndexNotFound, ErrCodeIndexNotFound, "No sentence index. Run 'pretext build' with index.enabled: true first."},
	{ErrNoBuilds, ErrCodeNoBuilds, "No builds recorded yet. Run 'pretext build' first."},
	{context.DeadlineExceeded, ErrCodeTimeout, "Request timed out."},
	{context.Canceled, ErrCodeTimeout, "Request was canceled."},
	{ErrToolNotFound, ErrCodeMethodNotFound, "Tool not found."},
	{ErrInvalidParams, ErrCodeInvalidParams, "Invalid parameters."},
	{ErrResourceNotFound, ErrCodeMethodNotFound, "Resource not found."},
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var pe *pxerrors.PretextError
	if errors.As(err, &pe) {
		return mapPretextError(pe)
	}

	for _, m := range sentinelMappings {
		if errors.Is(err, m.target) {
			return rpcErr(m.code, m.message)
		}
	}
	return rpcErr(ErrCodeInternalError, "Internal server error.")
}

// NewInvalidParamsError creates an invalid-params error with a custom
// message.
func NewInvalidParamsError(msg string) *MCPError {
	return rpcErr(ErrCodeInvalidParams, msg)
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return rpcErr(ErrCodeMethodNotFound, fmt.Sprintf("Tool '%s' not found.", name))
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return rpcErr(ErrCodeMethodNotFound, fmt.Sprintf("Resource '%s' not found.", uri))
}

// codeOverrides routes specific structured-error codes to more precise
// protocol codes than their category alone would pick.
var codeOverrides = map[string]int{
	pxerrors.ErrCodeDatasetNotFound: ErrCodeFileNotFound,
	pxerrors.ErrCodeIndexCorrupt:    ErrCodeIndexNotFound,
}

// mapPretextError converts a structured error, folding the suggestion
// into the client-visible message.
func mapPretextError(pe *pxerrors.PretextError) *MCPError {
	message := pe.Message
	if pe.Suggestion != "" {
		message = fmt.Sprintf("%s %s", pe.Message, pe.Suggestion)
	}

	if code, ok := codeOverrides[pe.Code]; ok {
		return rpcErr(code, message)
	}
	if pe.Category == pxerrors.CategoryValidation {
		return rpcErr(ErrCodeInvalidParams, message)
	}
	return rpcErr(ErrCodeInternalError, message)
}
