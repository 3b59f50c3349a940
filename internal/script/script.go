package script

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"mailreel/internal/message"
	"mailreel/internal/stage"
	"mailreel/internal/textutil"
)

const (
	// MaxChars bounds narration length in runes.
	MaxChars = 150
	// MinChars is the shortest generated text accepted.
	MinChars = 5

	maxPromptContent = 200
	ellipsis         = "..."
)

// Script is the narration text for one message.
type Script struct {
	MessageID   string       `json:"messageId"`
	Text        string       `json:"text"`
	GeneratedBy stage.Origin `json:"generatedBy"`
	Attempts    int          `json:"attempts"`
}

// Origin reports whether the text came from the generator or the template.
func (s Script) Origin() stage.Origin { return s.GeneratedBy }

// TextGenerator produces narration text from a system and user prompt.
// Errors should carry services markers so transient failures can be retried.
type TextGenerator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}

// SystemPrompt instructs the generator how to write narration.
func SystemPrompt(maxChars int) string {
	return fmt.Sprintf(
		"You narrate short vertical videos that summarize emails. "+
			"Write one or two lively sentences a narrator can read aloud. "+
			"Stay under %d characters. Do not use hashtags, emojis, or quotation marks.",
		maxChars,
	)
}

// UserPrompt renders the message fields the generator summarizes.
func UserPrompt(msg message.Canonical) string {
	content := textutil.Truncate(msg.Body, maxPromptContent, ellipsis)
	if content == "" {
		content = "(no content)"
	}
	return fmt.Sprintf("From: %s\nSubject: %s\nContent: %s", displaySender(msg), msg.Subject, content)
}

// Clean normalizes generated text: wrapping quotes are removed, whitespace is
// collapsed, and oversize text is cut to maxChars with an ellipsis.
func Clean(text string, maxChars int) string {
	text = strings.Join(strings.Fields(text), " ")
	for {
		trimmed := trimQuotes(text)
		if trimmed == text {
			break
		}
		text = strings.TrimSpace(trimmed)
	}
	return textutil.Truncate(text, maxChars, ellipsis)
}

// Acceptable reports whether cleaned text can be used as narration.
func Acceptable(text string, maxChars int) bool {
	n := utf8.RuneCountInString(text)
	return n >= MinChars && n <= maxChars
}

// Fallback builds the template narration for msg.
func Fallback(msg message.Canonical, maxChars int) string {
	sender := displaySender(msg)
	if msg.IsEmpty() {
		return textutil.Truncate("New message from "+sender, maxChars, ellipsis)
	}
	return textutil.Truncate(fmt.Sprintf("New message from %s: %s", sender, msg.Subject), maxChars, ellipsis)
}

func displaySender(msg message.Canonical) string {
	if name := strings.TrimSpace(msg.SenderName); name != "" {
		return name
	}
	if sender := strings.TrimSpace(msg.Sender); sender != "" {
		return sender
	}
	return message.UnknownSender
}

var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
	{"‘", "’"},
	{"«", "»"},
}

func trimQuotes(text string) string {
	for _, pair := range quotePairs {
		if len(text) >= len(pair[0])+len(pair[1]) && strings.HasPrefix(text, pair[0]) && strings.HasSuffix(text, pair[1]) {
			return text[len(pair[0]) : len(text)-len(pair[1])]
		}
	}
	return text
}
