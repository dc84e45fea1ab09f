package server

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// DecodeArgs decodes a tools/call arguments map into a typed struct T,
// using the same case-insensitive, weakly-typed mapstructure configuration
// used elsewhere in the example pack for JSON-shaped tool arguments. If
// mapstructure decoding fails outright (e.g. T has custom json.Unmarshaler
// fields mapstructure doesn't know how to drive), it falls back to a
// plain JSON round trip before giving up.
func DecodeArgs[T any](args map[string]interface{}) (*T, error) {
	var out T
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &out,
		ZeroFields:       true,
		ErrorUnused:      false,
		Squash:           true,
	})
	if err == nil {
		if decodeErr := decoder.Decode(args); decodeErr == nil {
			return &out, nil
		}
	}

	raw, err := rawArgs(args)
	if err != nil {
		return nil, fmt.Errorf("server: marshaling tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("server: decoding tool arguments: %w", err)
	}
	return &out, nil
}
