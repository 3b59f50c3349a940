package message_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"mailreel/internal/message"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func normalizer() message.Normalizer {
	return message.Normalizer{Now: func() time.Time { return fixedNow }}
}

func TestNormalizeFillsPlaceholders(t *testing.T) {
	inputs := []message.Raw{
		nil,
		{},
		{"from": "", "subject": "   ", "body": nil},
		{"subject": 42, "timestamp": "not a date"},
		{"body": []any{"a", 1.0}},
	}
	for _, raw := range inputs {
		got := normalizer().Normalize(raw)
		if got.ID == "" {
			t.Fatalf("expected derived id for %v", raw)
		}
		if got.Sender != message.UnknownSender {
			t.Fatalf("expected placeholder sender for %v, got %q", raw, got.Sender)
		}
		if got.Subject == "" {
			t.Fatalf("expected subject placeholder for %v", raw)
		}
		if !got.ReceivedAt.Equal(fixedNow) {
			t.Fatalf("expected clock fallback for %v, got %v", raw, got.ReceivedAt)
		}
	}
	empty := normalizer().Normalize(message.Raw{})
	if empty.Subject != message.NoSubject || empty.Body != "" {
		t.Fatalf("unexpected placeholders: %+v", empty)
	}
	if !empty.IsEmpty() {
		t.Fatal("expected empty message to report IsEmpty")
	}
}

func TestNormalizeAliasesAndTimestamps(t *testing.T) {
	raw := message.Raw{
		"email_id":   "abc-1",
		"sender":     "Jane Doe <jane@example.com>",
		"subject":    "Quarterly   review",
		"snippet":    "See you at 3pm",
		"receivedAt": "2026-02-03T04:05:06Z",
	}
	got := normalizer().Normalize(raw)
	if got.ID != "abc-1" {
		t.Fatalf("unexpected id: %q", got.ID)
	}
	if got.SenderName != "Jane Doe" {
		t.Fatalf("unexpected sender name: %q", got.SenderName)
	}
	if got.Subject != "Quarterly review" {
		t.Fatalf("expected collapsed subject, got %q", got.Subject)
	}
	if got.Body != "See you at 3pm" {
		t.Fatalf("unexpected body: %q", got.Body)
	}
	want := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	if !got.ReceivedAt.Equal(want) {
		t.Fatalf("unexpected time: %v", got.ReceivedAt)
	}

	unix := normalizer().Normalize(message.Raw{"id": 7.0, "timestamp": 1767225600.0})
	if unix.ID != "7" {
		t.Fatalf("expected numeric id to stringify, got %q", unix.ID)
	}
	if unix.ReceivedAt.Unix() != 1767225600 {
		t.Fatalf("unexpected unix time: %v", unix.ReceivedAt)
	}
}

func TestDerivedIDIsStable(t *testing.T) {
	raw := message.Raw{"from": "a@b.c", "subject": "hi", "body": "hello"}
	first := normalizer().Normalize(raw)
	second := message.Normalizer{Now: time.Now}.Normalize(raw)
	if first.ID != second.ID {
		t.Fatalf("expected stable derived id, got %q vs %q", first.ID, second.ID)
	}
	other := normalizer().Normalize(message.Raw{"from": "a@b.c", "subject": "hi", "body": "bye"})
	if other.ID == first.ID {
		t.Fatal("expected different content to derive a different id")
	}
	if !strings.HasPrefix(first.ID, "msg-") {
		t.Fatalf("unexpected derived id format: %q", first.ID)
	}
}

func TestCleanBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "   ", ""},
		{"html", "<html><head><style>p{}</style></head><body><p>Hello&nbsp;<b>team</b></p><p>Launch is Friday</p></body></html>", "Hello team Launch is Friday"},
		{"quotes", "Sounds good.\n> previous message\n>> older", "Sounds good."},
		{"signature", "Ship it today.\n\nThanks,\n--\nSent from my iPhone", "Ship it today."},
		{"reply header", "Yes.\nOn Mon, Jan 5, 2026 at 9:00 AM Bob wrote:\n> hi", "Yes."},
		{"whitespace", "a\t\tb\r\n\r\nc", "a b c"},
		{"heart", "I <3 this plan, it's > last one", "I <3 this plan, it's > last one"},
		{"comparisons", "Revenue grew <5% this quarter vs >3% last year, great work", "Revenue grew <5% this quarter vs >3% last year, great work"},
		{"html with comparison", "<div>Latency is <10ms &amp; stable</div><div>Ship it</div>", "Latency is <10ms & stable Ship it"},
		{"unclosed head", "<html><head><title>Weekly</title><body><p>Numbers are in</p></body></html>", "Numbers are in"},
		{"entities", "Tom &amp; Jerry", "Tom & Jerry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := message.CleanBody(tt.in); got != tt.want {
				t.Fatalf("CleanBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCleanBodyTruncates(t *testing.T) {
	got := message.CleanBody(strings.Repeat("é", 800))
	if n := utf8.RuneCountInString(got); n != message.MaxBodyRunes {
		t.Fatalf("expected %d runes, got %d", message.MaxBodyRunes, n)
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"":                             message.UnknownSender,
		"Jane Doe <jane@example.com>":  "Jane Doe",
		`"Ops Team" <ops@example.com>`: "Ops Team",
		"jane.doe@example.com":         "Jane Doe",
		"<boss@co>":                    "Boss",
		"Newsletter":                   "Newsletter",
	}
	for in, want := range tests {
		if got := message.DisplayName(in); got != want {
			t.Fatalf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseText(t *testing.T) {
	text := "From: Boss <boss@co.example>\r\nSubject: Meeting moved\r\nDate: Mon, 02 Mar 2026 10:00:00 +0000\r\nMessage-ID: <m-42@co.example>\r\n\r\nThe standup moves to 10am.\r\n"
	raw := message.ParseText(text)
	got := normalizer().Normalize(raw)
	if got.ID != "m-42@co.example" {
		t.Fatalf("unexpected id: %q", got.ID)
	}
	if got.Subject != "Meeting moved" || got.SenderName != "Boss" {
		t.Fatalf("unexpected headers: %+v", got)
	}
	if got.Body != "The standup moves to 10am." {
		t.Fatalf("unexpected body: %q", got.Body)
	}
	if got.ReceivedAt.Hour() != 10 {
		t.Fatalf("unexpected date: %v", got.ReceivedAt)
	}
}

func TestParseTextWithoutHeaders(t *testing.T) {
	raw := message.ParseText("just a note to self")
	got := normalizer().Normalize(raw)
	if got.Sender != message.UnknownSender || got.Body != "just a note to self" {
		t.Fatalf("unexpected parse: %+v", got)
	}
}

func TestParseTextEncodedSubject(t *testing.T) {
	raw := message.ParseText("From: a@b.c\nSubject: =?utf-8?q?Caf=C3=A9_news?=\n\nbody")
	if raw["subject"] != "Café news" {
		t.Fatalf("expected decoded subject, got %v", raw["subject"])
	}
}
