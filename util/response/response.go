// Package response provides convenience constructors for the
// *protocol.CallToolResult shape tool handlers return.
package response

import (
	"encoding/json"

	"github.com/localrivet/gomcp/protocol"
)

// Error builds a tool-level error result. Returning this from a handler
// (rather than a Go error) lets the handler attach structured content
// alongside the failure instead of a bare message.
func Error(msg string) *protocol.CallToolResult {
	return &protocol.CallToolResult{
		Content: []protocol.Content{protocol.NewTextContent(msg)},
		IsError: true,
	}
}

// JSON marshals v and wraps it as a single text content block.
func JSON(v interface{}) *protocol.CallToolResult {
	b, err := json.Marshal(v)
	if err != nil {
		return Error("failed to marshal response: " + err.Error())
	}
	return Text(string(b))
}

// Text wraps msg as a single text content block.
func Text(msg string) *protocol.CallToolResult {
	return &protocol.CallToolResult{Content: []protocol.Content{protocol.NewTextContent(msg)}}
}

// Success is an alias for Text kept for readability at call sites that
// want to emphasize the happy path.
func Success(msg string) *protocol.CallToolResult {
	return Text(msg)
}
