package channel

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ErrorCodeException is the only error code the bridge reports
const ErrorCodeException = "exception"

// MethodCall is an inbound remote procedure call
type MethodCall struct {
	ID        json.RawMessage `json:"id,omitempty"`
	Method    string          `json:"method"`
	Arguments map[string]any  `json:"arguments,omitempty"`
}

// ErrorBody is the payload of an error response
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

// Envelope is any frame on the wire. Exactly one of Method, Event, Result,
// Error or NotImplemented is meaningful for a given frame.
type Envelope struct {
	ID             json.RawMessage `json:"id,omitempty"`
	Method         string          `json:"method,omitempty"`
	Arguments      json.RawMessage `json:"arguments,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          *ErrorBody      `json:"error,omitempty"`
	NotImplemented bool            `json:"notImplemented,omitempty"`
	Event          string          `json:"event,omitempty"`
}

type successFrame struct {
	ID     json.RawMessage `json:"id"`
	Result any             `json:"result"`
}

type errorFrame struct {
	ID    json.RawMessage `json:"id"`
	Error ErrorBody       `json:"error"`
}

type notImplementedFrame struct {
	ID             json.RawMessage `json:"id"`
	NotImplemented bool            `json:"notImplemented"`
}

type eventFrame struct {
	Event     string `json:"event"`
	Arguments any    `json:"arguments"`
}

// DecodeCall parses a call frame. Numbers in the arguments are kept as
// json.Number so that integer handles survive intact.
func DecodeCall(frame []byte) (*MethodCall, error) {
	dec := json.NewDecoder(bytes.NewReader(frame))
	dec.UseNumber()

	var call MethodCall
	if err := dec.Decode(&call); err != nil {
		return nil, fmt.Errorf("failed to decode call: %w", err)
	}
	if call.Method == "" {
		return nil, fmt.Errorf("call has no method")
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}
	return &call, nil
}

// normalizeID maps an absent ID to JSON null
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
