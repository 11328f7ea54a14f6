package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// outgoing is the encoded form of an Envelope. Encoding the payload in place
// saves a second pass over it.
type outgoing struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload,omitempty"`
}

// Marshal encodes a message. A nil payload is left out of the frame.
func Marshal(msgType MessageType, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, fmt.Errorf("protocol: empty message type")
	}
	data, err := sonic.Marshal(outgoing{Type: msgType, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("protocol: marshal %q: %w", msgType, err)
	}
	return data, nil
}

// Unmarshal decodes a text frame into its type and undecoded payload.
func Unmarshal(data []byte) (MessageType, json.RawMessage, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	if env.Type == "" {
		return "", nil, fmt.Errorf("protocol: envelope missing type field")
	}
	return env.Type, env.Payload, nil
}

// UnmarshalPayload decodes a payload into T. Messages without a payload
// decode to the zero value.
func UnmarshalPayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("protocol: unmarshal payload: %w", err)
	}
	return v, nil
}
