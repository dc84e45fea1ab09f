// Package tool provides a typed-argument convenience layer over
// server.RegisterTool: given a Go struct describing a tool's arguments,
// it generates the JSON Schema advertised in tools/list and decodes
// incoming tools/call arguments into that struct before handing them to
// the caller's handler.
package tool

import (
	"encoding/json"

	"github.com/localrivet/gomcp/protocol"
	"github.com/localrivet/gomcp/server"
	"github.com/localrivet/gomcp/util/schema"
)

// TypedHandler is a tool handler that receives its arguments already
// decoded into *T instead of a raw map.
type TypedHandler[T any] func(ctx *server.Context, args *T) (*protocol.CallToolResult, error)

// New builds the protocol.Tool advertisement (with an InputSchema derived
// by reflecting over T) and the server.ToolHandlerFunc that decodes
// incoming arguments into T before calling handler, suitable for passing
// straight to server.Server.RegisterTool.
func New[T any](name, description string, handler TypedHandler[T]) (protocol.Tool, server.ToolHandlerFunc) {
	var zero T
	inputSchema := schema.FromStruct(zero)
	schemaBytes, err := json.Marshal(inputSchema)
	if err != nil {
		// A struct that can't be reflected into a schema is a
		// programmer error caught at registration time, not a
		// request-time failure; panicking here surfaces it where the
		// mistake was made.
		panic("tool: cannot build input schema for " + name + ": " + err.Error())
	}

	def := protocol.Tool{Name: name, Description: description, InputSchema: schemaBytes}

	wrapped := func(ctx *server.Context, args map[string]interface{}) (*protocol.CallToolResult, error) {
		typed, err := server.DecodeArgs[T](args)
		if err != nil {
			return nil, err
		}
		return handler(ctx, typed)
	}
	return def, wrapped
}
