package protocol

import "encoding/json"

// ModelHint is a soft preference for a model family; servers may ignore
// hints they don't recognize.
type ModelHint struct {
	Name string `json:"name,omitempty"`
}

type ModelPreferences struct {
	Hints                []ModelHint `json:"hints,omitempty"`
	CostPriority         *float64    `json:"costPriority,omitempty"`
	SpeedPriority        *float64    `json:"speedPriority,omitempty"`
	IntelligencePriority *float64    `json:"intelligencePriority,omitempty"`
}

type SamplingMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

func (m *SamplingMessage) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	m.Role = shadow.Role
	var list ContentList
	if err := list.UnmarshalJSON([]byte("[" + string(shadow.Content) + "]")); err != nil {
		return err
	}
	if len(list) > 0 {
		m.Content = list[0]
	}
	return nil
}

// CreateMessageParams is the server->client sampling/createMessage request
// body: a chat completion performed by whatever model the client hosts.
type CreateMessageParams struct {
	Messages         []SamplingMessage `json:"messages"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	MaxTokens        int               `json:"maxTokens"`
}

type CreateMessageResult struct {
	Role       string  `json:"role"`
	Content    Content `json:"content"`
	Model      string  `json:"model"`
	StopReason string  `json:"stopReason,omitempty"`
}

func (r *CreateMessageResult) UnmarshalJSON(data []byte) error {
	var shadow struct {
		Role       string          `json:"role"`
		Content    json.RawMessage `json:"content"`
		Model      string          `json:"model"`
		StopReason string          `json:"stopReason,omitempty"`
	}
	if err := json.Unmarshal(data, &shadow); err != nil {
		return err
	}
	r.Role = shadow.Role
	r.Model = shadow.Model
	r.StopReason = shadow.StopReason
	var list ContentList
	if err := list.UnmarshalJSON([]byte("[" + string(shadow.Content) + "]")); err != nil {
		return err
	}
	if len(list) > 0 {
		r.Content = list[0]
	}
	return nil
}
