package wire

import (
	"encoding/json"
	"fmt"
)

// typeOnly is used to peek at the "type" discriminator of an inbound frame.
type typeOnly struct {
	Type MsgType `json:"type"`
}

// PeekType returns the message type of a raw frame without fully decoding it.
func PeekType(frame []byte) (MsgType, error) {
	var t typeOnly
	if err := json.Unmarshal(frame, &t); err != nil {
		return "", fmt.Errorf("wire: peek type: %w", err)
	}
	if t.Type == "" {
		return "", fmt.Errorf("wire: missing type field")
	}
	return t.Type, nil
}

// Decode unmarshals a raw frame into dst, which must be a pointer to a
// struct with a `Type MsgType `json:"type"`` field (or embed one).
func Decode(frame []byte, dst any) error {
	if err := json.Unmarshal(frame, dst); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}

// Encode marshals v (expected to carry its own `type` field) to a frame.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	return b, nil
}

// WithType merges a message type into an arbitrary field map, the
// generic escape hatch used by handlers that build ad-hoc outbound
// payloads (e.g. LIST_CHANNELS results) instead of a named struct.
func WithType(t MsgType, fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["type"] = t
	return out
}
