package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"mailreel/internal/message"
	"mailreel/internal/services"
)

// JSONFile reads messages from a JSON export holding either an array of
// message objects or an object with a "messages" array.
type JSONFile struct {
	path       string
	normalizer message.Normalizer
}

// NewJSONFile returns a mailbox backed by the JSON file at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// ListRecentMessages returns up to limit messages ordered by received time,
// newest first. A limit of zero or less returns every message.
func (m *JSONFile) ListRecentMessages(ctx context.Context, limit int) ([]message.Raw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "mailbox", "read", fmt.Sprintf("read %q", m.path), err)
	}
	raws, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(raws, m.normalizer)
	return applyLimit(raws, limit), nil
}

// DecodeJSON parses a message array or a {"messages": [...]} envelope.
func DecodeJSON(data []byte) ([]message.Raw, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '[' {
		var raws []message.Raw
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, services.Wrap(services.ErrValidation, "mailbox", "decode", "invalid message array", err)
		}
		return raws, nil
	}
	var envelope struct {
		Messages []message.Raw `json:"messages"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, services.Wrap(services.ErrValidation, "mailbox", "decode", "invalid message envelope", err)
	}
	if envelope.Messages == nil {
		// A single message object.
		var raw message.Raw
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, services.Wrap(services.ErrValidation, "mailbox", "decode", "invalid message object", err)
		}
		return []message.Raw{raw}, nil
	}
	return envelope.Messages, nil
}

func sortNewestFirst(raws []message.Raw, normalizer message.Normalizer) {
	received := make(map[int]int64, len(raws))
	for i, raw := range raws {
		received[i] = normalizer.Normalize(raw).ReceivedAt.UnixNano()
	}
	indexes := make([]int, len(raws))
	for i := range indexes {
		indexes[i] = i
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		return received[indexes[a]] > received[indexes[b]]
	})
	sorted := make([]message.Raw, len(raws))
	for pos, idx := range indexes {
		sorted[pos] = raws[idx]
	}
	copy(raws, sorted)
}
