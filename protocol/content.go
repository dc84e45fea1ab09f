package protocol

import (
	"encoding/json"
	"fmt"
)

// Content is a tool result / prompt message / sampling message payload.
// The concrete type is carried by the wire "type" field, decoded via
// ContentList's custom UnmarshalJSON below.
type Content interface {
	GetType() string
}

// ContentAnnotations is optional client-side rendering guidance attached to
// a content block.
type ContentAnnotations struct {
	Audience []string `json:"audience,omitempty"`
	Priority *float64 `json:"priority,omitempty"`
}

type TextContent struct {
	Type        string               `json:"type"`
	Text        string               `json:"text"`
	Annotations *ContentAnnotations `json:"annotations,omitempty"`
}

func (c TextContent) GetType() string { return "text" }

type ImageContent struct {
	Type        string               `json:"type"`
	Data        string               `json:"data"`
	MimeType    string               `json:"mimeType"`
	Annotations *ContentAnnotations `json:"annotations,omitempty"`
}

func (c ImageContent) GetType() string { return "image" }

type AudioContent struct {
	Type        string               `json:"type"`
	Data        string               `json:"data"`
	MimeType    string               `json:"mimeType"`
	Annotations *ContentAnnotations `json:"annotations,omitempty"`
}

func (c AudioContent) GetType() string { return "audio" }

// EmbeddedResourceContent inlines a resource's contents into a tool result
// or prompt message instead of requiring a follow-up resources/read.
type EmbeddedResourceContent struct {
	Type        string               `json:"type"`
	Resource    ResourceContents     `json:"resource"`
	Annotations *ContentAnnotations `json:"annotations,omitempty"`
}

func (c EmbeddedResourceContent) GetType() string { return "resource" }

// NewTextContent is a convenience constructor used throughout handlers and
// tests.
func NewTextContent(text string) TextContent {
	return TextContent{Type: "text", Text: text}
}

// ContentList decodes a JSON array of heterogeneous content blocks,
// dispatching on each element's "type" field. Elements of unknown type are
// skipped without error or report rather than failing the whole decode.
type ContentList []Content

func (cl *ContentList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(ContentList, 0, len(raw))
	for _, item := range raw {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(item, &head); err != nil {
			return fmt.Errorf("protocol: content entry missing type: %w", err)
		}
		var c Content
		switch head.Type {
		case "text":
			var v TextContent
			if err := json.Unmarshal(item, &v); err != nil {
				return err
			}
			c = v
		case "image":
			var v ImageContent
			if err := json.Unmarshal(item, &v); err != nil {
				return err
			}
			c = v
		case "audio":
			var v AudioContent
			if err := json.Unmarshal(item, &v); err != nil {
				return err
			}
			c = v
		case "resource":
			var v EmbeddedResourceContent
			if err := json.Unmarshal(item, &v); err != nil {
				return err
			}
			c = v
		default:
			// Unknown content variant: skip rather than fail the batch.
			continue
		}
		out = append(out, c)
	}
	*cl = out
	return nil
}
