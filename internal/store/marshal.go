package store

import (
	"fmt"

	"github.com/roach88/outbox/internal/payload"
)

// marshalArgs converts a payload to its storage TEXT form.
func marshalArgs(args payload.Value) (string, error) {
	if args == nil {
		args = payload.Null{}
	}
	data, err := payload.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	return string(data), nil
}

// unmarshalArgs parses stored TEXT back into a payload.
func unmarshalArgs(data string) (payload.Value, error) {
	if data == "" {
		return payload.Null{}, nil
	}
	v, err := payload.Parse([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal args: %w", err)
	}
	return v, nil
}
