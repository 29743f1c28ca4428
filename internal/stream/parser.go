package stream

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/runwatch/internal/domain"
)

// ParseError reports a frame that could not be decoded into an event. It is
// never fatal to the stream.
type ParseError struct {
	Frame  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse frame: %s: %v", e.Reason, e.Err)
	}
	return "parse frame: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes one frame. The frame must carry an event line and at least one
// data line holding a JSON document.
func Parse(frame string) (domain.Event, error) {
	name, data, err := fields(frame)
	if err != nil {
		return nil, err
	}
	ev, err := decode(name, []byte(data))
	if err != nil {
		return nil, &ParseError{Frame: frame, Reason: "invalid " + name + " payload", Err: err}
	}
	return ev, nil
}

func fields(frame string) (name, data string, err error) {
	var (
		hasData bool
		lines   []string
	)
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			name = strings.TrimSpace(value)
		case "data":
			hasData = true
			lines = append(lines, value)
		}
	}
	if name == "" {
		return "", "", &ParseError{Frame: frame, Reason: "missing event line"}
	}
	if !hasData {
		return "", "", &ParseError{Frame: frame, Reason: "missing data line"}
	}
	return name, strings.Join(lines, "\n"), nil
}

func decode(name string, data []byte) (domain.Event, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("malformed JSON")
	}

	switch domain.EventType(name) {
	case domain.EventTypeStart:
		return domain.StartEvent{}, nil

	case domain.EventTypeProgress:
		var ev domain.ProgressEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case domain.EventTypeComplete:
		var ev domain.CompleteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, err
		}
		return ev, nil

	case domain.EventTypeError:
		var body struct {
			Error json.RawMessage `json:"error"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, err
		}
		return domain.ErrorEvent{Message: errorText(body.Error)}, nil

	default:
		return domain.UnknownEvent{Name: name, Data: append(json.RawMessage(nil), data...)}, nil
	}
}

// errorText accepts both {"error":"msg"} and structured error objects.
func errorText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
