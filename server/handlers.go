package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/localrivet/gomcp/protocol"
)

func (sess *Session) handleListTools(ctx context.Context, params interface{}) (interface{}, error) {
	entries := sess.server.tools.List()
	tools := make([]protocol.Tool, 0, len(entries))
	for _, e := range entries {
		tools = append(tools, e.tool)
	}
	return protocol.ListToolsResult{Tools: tools}, nil
}

func (sess *Session) handleCallTool(ctx context.Context, params interface{}) (interface{}, error) {
	var p protocol.CallToolParams
	if err := protocol.UnmarshalPayload(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.InvalidParams, "invalid tools/call params: %v", err)
	}

	entry, ok := sess.server.tools.Get(p.Name)
	if !ok {
		return &protocol.CallToolResult{
			Content: []protocol.Content{protocol.NewTextContent(fmt.Sprintf("Tool %s not found", p.Name))},
			IsError: true,
		}, nil
	}

	hctx := newContext(ctx, sess, p.Meta)
	result, err := sess.safeCallTool(entry.handler, hctx, p.Arguments)
	if err != nil {
		return &protocol.CallToolResult{
			Content: []protocol.Content{protocol.NewTextContent(fmt.Sprintf("Error executing tool %s: %v", p.Name, err))},
			IsError: true,
		}, nil
	}
	if result == nil {
		result = &protocol.CallToolResult{}
	}
	return result, nil
}

func (sess *Session) safeCallTool(handler ToolHandlerFunc, ctx *Context, args map[string]interface{}) (result *protocol.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool handler panic: %v", r)
		}
	}()
	return handler(ctx, args)
}

func (sess *Session) handleListPrompts(ctx context.Context, params interface{}) (interface{}, error) {
	entries := sess.server.prompts.List()
	prompts := make([]protocol.Prompt, 0, len(entries))
	for _, e := range entries {
		prompts = append(prompts, e.prompt)
	}
	return protocol.ListPromptsResult{Prompts: prompts}, nil
}

func (sess *Session) handleGetPrompt(ctx context.Context, params interface{}) (interface{}, error) {
	var p protocol.GetPromptParams
	if err := protocol.UnmarshalPayload(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.InvalidParams, "invalid prompts/get params: %v", err)
	}
	entry, ok := sess.server.prompts.Get(p.Name)
	if !ok {
		return nil, protocol.Errorf(protocol.InvalidParams, "unknown prompt: %s", p.Name)
	}
	hctx := newContext(ctx, sess, nil)
	result, err := entry.handler(hctx, p.Arguments)
	if err != nil {
		return nil, protocol.Errorf(protocol.InternalError, "prompt handler: %v", err)
	}
	return result, nil
}

func (sess *Session) handleListResources(ctx context.Context, params interface{}) (interface{}, error) {
	entries := sess.server.resources.List()
	resources := make([]protocol.Resource, 0, len(entries))
	for _, e := range entries {
		resources = append(resources, e.resource)
	}
	return protocol.ListResourcesResult{Resources: resources}, nil
}

func (sess *Session) handleListResourceTemplates(ctx context.Context, params interface{}) (interface{}, error) {
	entries := sess.server.templates.List()
	templates := make([]protocol.ResourceTemplate, 0, len(entries))
	for _, e := range entries {
		templates = append(templates, e.Value.template)
	}
	return protocol.ListResourceTemplatesResult{ResourceTemplates: templates}, nil
}

func (sess *Session) handleReadResource(ctx context.Context, params interface{}) (interface{}, error) {
	var p protocol.ReadResourceParams
	if err := protocol.UnmarshalPayload(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.InvalidParams, "invalid resources/read params: %v", err)
	}

	if entry, ok := sess.server.resources.Get(p.URI); ok {
		hctx := newContext(ctx, sess, nil)
		result, err := entry.handler(hctx, p.URI, nil)
		if err != nil {
			return nil, protocol.Errorf(protocol.InternalError, "resource handler: %v", err)
		}
		return result, nil
	}

	if entry, vars, ok := sess.server.templates.Match(p.URI); ok {
		hctx := newContext(ctx, sess, nil)
		result, err := entry.handler(hctx, p.URI, vars)
		if err != nil {
			return nil, protocol.Errorf(protocol.InternalError, "resource handler: %v", err)
		}
		return result, nil
	}

	return nil, protocol.Errorf(protocol.InvalidParams, "unknown resource: %s", p.URI)
}

func (sess *Session) handleSubscribe(ctx context.Context, params interface{}) (interface{}, error) {
	var p protocol.SubscribeParams
	if err := protocol.UnmarshalPayload(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.InvalidParams, "invalid resources/subscribe params: %v", err)
	}
	sess.server.notifier.Subscribe(sess.id, p.URI)
	return struct{}{}, nil
}

func (sess *Session) handleUnsubscribe(ctx context.Context, params interface{}) (interface{}, error) {
	var p protocol.UnsubscribeParams
	if err := protocol.UnmarshalPayload(params, &p); err != nil {
		return nil, protocol.Errorf(protocol.InvalidParams, "invalid resources/unsubscribe params: %v", err)
	}
	sess.server.notifier.Unsubscribe(sess.id, p.URI)
	return struct{}{}, nil
}

// rawArgs marshals a decoded JSON map back to bytes, the same
// marshal-then-unmarshal trick protocol.UnmarshalPayload uses, so
// DecodeArgs can hand callers a typed struct without a second codec path.
func rawArgs(args map[string]interface{}) (json.RawMessage, error) {
	return json.Marshal(args)
}
