package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"mailreel/internal/mailbox"
	"mailreel/internal/message"
)

// ConvertRequest is the body accepted by the single-message endpoint. Either
// Text (a raw email with headers) or Message (a message object) is set. A
// body that matches neither shape is read as a bare message object.
type ConvertRequest struct {
	Text    string      `json:"text,omitempty"`
	Message message.Raw `json:"message,omitempty"`
}

// BatchRequest is the body accepted by the batch endpoint.
type BatchRequest struct {
	Messages []message.Raw `json:"messages"`
}

// ErrEmptyRequest is returned for an empty request body.
var ErrEmptyRequest = errors.New("request body is empty")

// DecodeMessage parses a single-message request body.
func DecodeMessage(body []byte) (message.Raw, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, ErrEmptyRequest
	}
	if body[0] != '{' {
		// Plain email text.
		return message.ParseText(string(body)), nil
	}
	var req ConvertRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(req.Text) != "":
		return message.ParseText(req.Text), nil
	case len(req.Message) > 0:
		return req.Message, nil
	}
	var raw message.Raw
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DecodeBatch parses a batch request body: {"messages": [...]} or a bare
// array of message objects.
func DecodeBatch(body []byte) ([]message.Raw, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyRequest
	}
	return mailbox.DecodeJSON(body)
}
