package message

import (
	"bufio"
	"io"
	"mime"
	"net/mail"
	"strings"
)

// ParseText parses raw email text ("From:", "Subject:", ... headers, a blank
// line, then the body) into a Raw message. Text without recognizable headers
// is treated entirely as body.
func ParseText(text string) Raw {
	text = strings.TrimLeft(text, "\r\n\t ")
	if msg, err := mail.ReadMessage(strings.NewReader(text)); err == nil && len(msg.Header) > 0 {
		if raw, err := FromMail(msg); err == nil {
			return raw
		}
	}
	return scanHeaders(text)
}

// FromMail converts a parsed RFC 822 message into a Raw message.
func FromMail(msg *mail.Message) (Raw, error) {
	body, err := io.ReadAll(io.LimitReader(msg.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	raw := Raw{"body": string(body)}
	setHeader(raw, "from", msg.Header.Get("From"))
	setHeader(raw, "subject", decodeHeader(msg.Header.Get("Subject")))
	setHeader(raw, "date", msg.Header.Get("Date"))
	setHeader(raw, "id", strings.Trim(strings.TrimSpace(msg.Header.Get("Message-Id")), "<>"))
	return raw, nil
}

// scanHeaders is the lenient path for text that net/mail rejects, such as
// pasted messages with stray lines before the body.
func scanHeaders(text string) Raw {
	raw := Raw{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var body []string
	inBody := false
	for scanner.Scan() {
		line := scanner.Text()
		if inBody {
			body = append(body, line)
			continue
		}
		if strings.TrimSpace(line) == "" {
			inBody = true
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			inBody = true
			body = append(body, line)
			continue
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "from":
			setHeader(raw, "from", value)
		case "subject":
			setHeader(raw, "subject", decodeHeader(value))
		case "date":
			setHeader(raw, "date", value)
		case "message-id":
			setHeader(raw, "id", strings.Trim(strings.TrimSpace(value), "<>"))
		default:
			inBody = true
			body = append(body, line)
		}
	}
	raw["body"] = strings.Join(body, "\n")
	return raw
}

func decodeHeader(value string) string {
	decoded, err := new(mime.WordDecoder).DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

func setHeader(raw Raw, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		raw[key] = value
	}
}
