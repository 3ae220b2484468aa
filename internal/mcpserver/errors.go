package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"party-beacon/internal/beacon"
	"party-beacon/internal/host"
)

// Tool error codes beyond the ledger outcome names.
const (
	codeInvalidRequest      = "invalid_request"
	codeLeaderUpdateRefused = "leader_update_refused"
	codeHostStopped         = "host_stopped"
	codeTimeout             = "timeout"
	codeInternal            = "internal_error"
)

// toolError is a tool level failure: IsError is set and the structured
// content carries the code and whether retrying can help.
func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":      code,
				"message":   message,
				"retryable": code == codeTimeout,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func invalidRequest(arg string) *mcp.CallToolResult {
	return toolError(codeInvalidRequest, arg+" is required")
}

func hostError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return toolError(codeInternal, "unknown error")
	case errors.Is(err, host.ErrStopped):
		return toolError(codeHostStopped, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return toolError(codeTimeout, err.Error())
	default:
		return toolError(codeInternal, err.Error())
	}
}

// outcomeError reports a ledger refusal using the outcome name as the code.
func outcomeError(o beacon.Outcome, message string) *mcp.CallToolResult {
	return toolError(o.String(), message)
}
