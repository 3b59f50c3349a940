package message

import (
	"fmt"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	UnknownSender   = "Unknown"
	NoSubject       = "No subject"
	MaxBodyRunes    = 500
	MaxSubjectRunes = 200
)

// idNamespace scopes content-derived identifiers.
var idNamespace = uuid.MustParse("6f1c2b9e-4a53-5d1e-9c7a-2e0f1d8b7a64")

// Raw is an inbound message of unspecified shape, typically decoded JSON.
type Raw map[string]any

// Canonical is the normalized, field-complete representation of a message.
type Canonical struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// IsEmpty reports whether the message carries no content worth narrating.
func (c Canonical) IsEmpty() bool {
	return c.Body == "" && (c.Subject == "" || c.Subject == NoSubject)
}

var (
	idKeys      = []string{"id", "email_id", "message_id", "messageId"}
	senderKeys  = []string{"from", "sender"}
	subjectKeys = []string{"subject", "title"}
	bodyKeys    = []string{"body", "content", "text", "snippet"}
	timeKeys    = []string{"timestamp", "date", "received_at", "receivedAt"}
)

// Normalizer converts Raw messages to Canonical records. Now supplies the
// receive time for messages that carry none.
type Normalizer struct {
	Now func() time.Time
}

// Normalize converts raw using the wall clock for missing timestamps.
func Normalize(raw Raw) Canonical {
	return Normalizer{}.Normalize(raw)
}

// Normalize converts raw into a Canonical record. It never fails.
func (n Normalizer) Normalize(raw Raw) Canonical {
	sender := strings.TrimSpace(lookup(raw, senderKeys))
	if sender == "" {
		sender = UnknownSender
	}
	subject := collapseSpace(lookup(raw, subjectKeys))
	if subject == "" {
		subject = NoSubject
	}
	subject = truncateRunes(subject, MaxSubjectRunes)
	body := CleanBody(lookup(raw, bodyKeys))

	received, ok := parseTime(first(raw, timeKeys))
	if !ok {
		now := time.Now
		if n.Now != nil {
			now = n.Now
		}
		received = now()
	}

	id := strings.TrimSpace(lookup(raw, idKeys))
	if id == "" {
		id = DeriveID(sender, subject, body, lookup(raw, timeKeys))
	}

	return Canonical{
		ID:         id,
		Sender:     sender,
		SenderName: DisplayName(sender),
		Subject:    subject,
		Body:       body,
		ReceivedAt: received.UTC(),
	}
}

// DeriveID builds a deterministic identifier from message content so that a
// message without a source id still de-duplicates across runs.
func DeriveID(sender, subject, body, timestamp string) string {
	key := strings.Join([]string{sender, subject, body, timestamp}, "\x1f")
	return "msg-" + uuid.NewSHA1(idNamespace, []byte(key)).String()
}

func first(raw Raw, keys []string) any {
	for _, key := range keys {
		if value, ok := raw[key]; ok && value != nil {
			return value
		}
	}
	return nil
}

func lookup(raw Raw, keys []string) string {
	for _, key := range keys {
		value, ok := raw[key]
		if !ok || value == nil {
			continue
		}
		if text := stringify(value); strings.TrimSpace(text) != "" {
			return text
		}
	}
	return ""
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return v, !v.IsZero()
	case float64:
		return unixTime(int64(v))
	case int64:
		return unixTime(v)
	case int:
		return unixTime(int64(v))
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return time.Time{}, false
		}
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return unixTime(n)
		}
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, text); err == nil {
				return ts, true
			}
		}
		if ts, err := mail.ParseDate(text); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// unixTime accepts seconds or milliseconds since the epoch.
func unixTime(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e12 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}
