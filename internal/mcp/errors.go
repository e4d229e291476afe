// Package mcp implements the Model Context Protocol server for reqlens,
// exposing requirement search and analysis tools to AI clients.
package mcp

import (
	"errors"
	"fmt"

	lenserr "github.com/reqlens/reqlens/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeIndexNotFound indicates no index exists yet.
	ErrCodeIndexNotFound = -32001

	// ErrCodeEmbeddingFailed indicates embedding generation failed.
	ErrCodeEmbeddingFailed = -32002

	// ErrCodeSourceFailed indicates a remote source fetch failed.
	ErrCodeSourceFailed = -32003

	// ErrCodeFileNotFound indicates an ingestion file does not exist.
	ErrCodeFileNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("mcp error %d: %s", e.Code, e.Message)
}

// NewInvalidParamsError builds a -32602 error.
func NewInvalidParamsError(message string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: message}
}

// NewMethodNotFoundError builds a -32601 error.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: "unknown tool: " + name}
}

// MapError translates internal errors to MCP protocol errors. Structured
// error codes map to specific MCP codes; everything else is internal.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	switch lenserr.GetCode(err) {
	case lenserr.ErrCodeQueryEmpty, lenserr.ErrCodeInvalidInput:
		return &MCPError{Code: ErrCodeInvalidParams, Message: err.Error()}
	case lenserr.ErrCodeFileNotFound, lenserr.ErrCodeFileUnsupported:
		return &MCPError{Code: ErrCodeFileNotFound, Message: err.Error()}
	case lenserr.ErrCodeEmbeddingFailed, lenserr.ErrCodeModelUnavailable:
		return &MCPError{Code: ErrCodeEmbeddingFailed, Message: err.Error()}
	case lenserr.ErrCodePageFetch, lenserr.ErrCodeSourceUnavailable, lenserr.ErrCodeSourceUnauthorized:
		return &MCPError{Code: ErrCodeSourceFailed, Message: err.Error()}
	case lenserr.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexNotFound, Message: err.Error()}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}
