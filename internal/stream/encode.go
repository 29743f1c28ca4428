package stream

import (
	"encoding/json"
	"fmt"
)

// EncodeFrame renders one event in the wire format Parse accepts.
func EncodeFrame(eventType string, data any) (string, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload), nil
}
