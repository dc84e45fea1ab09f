// Package protocol defines the wire format, capability tables and shared
// vocabulary of the Model Context Protocol: JSON-RPC 2.0 envelopes, the
// method and error-code catalogs, and the content/capability payload types
// carried inside them.
package protocol

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only version string this runtime emits or accepts.
const JSONRPCVersion = "2.0"

// ID identifies a request/response pair. Per JSON-RPC 2.0 it is a string,
// a number, or absent (for notifications); never a struct or array.
type ID = interface{}

// ErrorObject is the JSON-RPC "error" member of a Response.
type ErrorObject struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ErrorObject) Error() string {
	return fmt.Sprintf("jsonrpc: %s (%d)", e.Message, e.Code)
}

// Request is a client- or server-originated call expecting a Response.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      ID          `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// Response completes a Request, carrying exactly one of Result or Error.
type Response struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      ID           `json:"id"`
	Result  interface{}  `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// Notification is a one-way message with no ID and no Response.
type Notification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

func NewRequest(id ID, method string, params interface{}) *Request {
	return &Request{JSONRPC: JSONRPCVersion, ID: id, Method: method, Params: params}
}

func NewNotification(method string, params interface{}) *Notification {
	return &Notification{JSONRPC: JSONRPCVersion, Method: method, Params: params}
}

func NewSuccessResponse(id ID, result interface{}) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func NewErrorResponse(id ID, code ErrorCode, message string, data interface{}) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: &ErrorObject{Code: code, Message: message, Data: data}}
}

// MessageKind discriminates the concrete variant a Message decoded as.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindRequest
	KindResponse
	KindNotification
)

// Message is the tagged union of the three wire shapes a JSON-RPC 2.0
// endpoint may receive, plus a carrier for anything that doesn't match any
// of them. The concrete variant is picked from the discriminator fields
// already present in the wire format (id/method/result/error) rather than
// an explicit type tag, matching how the protocol is actually framed.
type Message struct {
	Kind         MessageKind
	Request      *Request
	Response     *Response
	Notification *Notification
	Raw          json.RawMessage
}

type envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  json.RawMessage `json:"method"`
	Params  json.RawMessage `json:"params"`
	Result  json.RawMessage `json:"result"`
	Error   json.RawMessage `json:"error"`
}

// UnmarshalJSON implements the discriminator-based decode described above.
// Anything that doesn't cleanly match a Request, Response or Notification
// shape is kept verbatim as KindUnknown rather than failing the parse, so a
// batch containing one malformed entry doesn't take down the rest.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		m.Kind = KindUnknown
		m.Raw = append(json.RawMessage(nil), data...)
		return nil
	}

	hasID := len(env.ID) > 0 && string(env.ID) != "null"
	hasMethod := len(env.Method) > 0 && string(env.Method) != "null"
	hasResult := len(env.Result) > 0
	hasError := len(env.Error) > 0

	switch {
	case hasMethod && hasID:
		var req Request
		if err := json.Unmarshal(data, &req); err != nil {
			break
		}
		m.Kind = KindRequest
		m.Request = &req
		return nil
	case hasMethod && !hasID:
		var notif Notification
		if err := json.Unmarshal(data, &notif); err != nil {
			break
		}
		m.Kind = KindNotification
		m.Notification = &notif
		return nil
	case hasID && (hasResult || hasError):
		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			break
		}
		m.Kind = KindResponse
		m.Response = &resp
		return nil
	}

	m.Kind = KindUnknown
	m.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits whichever variant is set.
func (m Message) MarshalJSON() ([]byte, error) {
	switch m.Kind {
	case KindRequest:
		return json.Marshal(m.Request)
	case KindResponse:
		return json.Marshal(m.Response)
	case KindNotification:
		return json.Marshal(m.Notification)
	default:
		if m.Raw == nil {
			return []byte("null"), nil
		}
		return m.Raw, nil
	}
}

// UnmarshalPayload decodes a params/result payload of unknown shape into
// target via a marshal-then-unmarshal round trip. Useful when Params was
// decoded generically (interface{}) and a handler needs a concrete struct.
func UnmarshalPayload(payload interface{}, target interface{}) error {
	if payload == nil {
		return nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("protocol: re-marshal payload: %w", err)
	}
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	return json.Unmarshal(b, target)
}
