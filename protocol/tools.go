package protocol

import "encoding/json"

// Tool is a single callable tool's advertised shape.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Meta      *RequestMeta           `json:"_meta,omitempty"`
}

// CallToolResult reports both successful tool output and tool-level
// failures. A handler panic or returned error is translated into
// IsError=true here rather than a JSON-RPC error response, so the calling
// model sees the failure as part of the conversation instead of a
// transport-level fault.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

func (r *CallToolResult) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Content ContentList `json:"content"`
		IsError bool        `json:"isError,omitempty"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	r.Content = []Content(shadow.Content)
	r.IsError = shadow.IsError
	return nil
}
