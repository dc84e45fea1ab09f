package protocol

// ProgressToken correlates a stream of notifications/progress messages
// back to the request that opted into progress reporting via
// RequestMeta.ProgressToken.
type ProgressToken = interface{}

type RequestMeta struct {
	ProgressToken ProgressToken `json:"progressToken,omitempty"`
}

type ProgressParams struct {
	ProgressToken ProgressToken `json:"progressToken"`
	Progress      float64       `json:"progress"`
	Total         float64       `json:"total,omitempty"`
	Message       string        `json:"message,omitempty"`
}

// CancelledParams is sent (in either direction) to cancel an in-flight
// request by ID, with an optional human-readable reason.
type CancelledParams struct {
	RequestID ID     `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

type SetLevelParams struct {
	Level LoggingLevel `json:"level"`
}

// LoggingMessageParams carries a single structured log record from server
// to client, filtered against the session's configured level.
type LoggingMessageParams struct {
	Level  LoggingLevel `json:"level"`
	Logger string       `json:"logger,omitempty"`
	Data   interface{}  `json:"data"`
}

type PingParams struct{}

type ToolsListChangedParams struct{}
