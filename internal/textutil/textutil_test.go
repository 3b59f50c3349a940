package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		limit  int
		suffix string
		want   string
	}{
		{name: "short", value: "hello", limit: 10, want: "hello"},
		{name: "exact", value: "hello", limit: 5, suffix: "...", want: "hello"},
		{name: "ellipsis", value: "hello world", limit: 8, suffix: "...", want: "hello..."},
		{name: "no suffix", value: "hello world", limit: 5, want: "hello"},
		{name: "runes", value: "ééééé", limit: 3, want: "ééé"},
		{name: "zero limit", value: "abc", limit: 0, want: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.value, tt.limit, tt.suffix); got != tt.want {
				t.Fatalf("Truncate(%q, %d, %q) = %q, want %q", tt.value, tt.limit, tt.suffix, got, tt.want)
			}
		})
	}
}

func TestTruncateRespectsLimit(t *testing.T) {
	value := strings.Repeat("narration ", 40)
	got := Truncate(value, 150, "...")
	if n := utf8.RuneCountInString(got); n > 150 {
		t.Fatalf("expected at most 150 runes, got %d", n)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestFileStem(t *testing.T) {
	for _, id := range []string{"m1", "msg-7f3a", "abc.123@mail.host"} {
		if got := FileStem(id); got != id {
			t.Fatalf("FileStem(%q) = %q, want unchanged", id, got)
		}
	}

	prefixes := map[string]string{
		"<abc.123@mail.host>": "abc.123@mail.host-",
		"../etc/passwd":       "-etc-passwd-",
		"  ":                  "unknown-",
		"id with spaces":      "id_with_spaces-",
		".hidden":             "hidden-",
	}
	for in, prefix := range prefixes {
		got := FileStem(in)
		if !strings.HasPrefix(got, prefix) || len(got) != len(prefix)+stemHashLen {
			t.Fatalf("FileStem(%q) = %q, want %q plus a %d-char hash", in, got, prefix, stemHashLen)
		}
		if strings.ContainsAny(got, "/\\") {
			t.Fatalf("FileStem(%q) = %q contains a path separator", in, got)
		}
	}

	long := strings.Repeat("x", 300)
	if got := FileStem(long); utf8.RuneCountInString(got) != maxStemRunes {
		t.Fatalf("expected stem bounded to %d runes, got %d", maxStemRunes, utf8.RuneCountInString(got))
	}
	if FileStem(long) == FileStem(long+"y") {
		t.Fatal("truncated identifiers must keep distinct stems")
	}
}

func TestFileStemKeepsCollidingIdentifiersApart(t *testing.T) {
	seen := map[string]string{}
	for _, id := range []string{"team-42", "team/42", "team:42", "team*42", "team\\42", "team?-42", "<team-42>"} {
		stem := FileStem(id)
		if other, ok := seen[stem]; ok {
			t.Fatalf("FileStem(%q) and FileStem(%q) both produced %q", id, other, stem)
		}
		seen[stem] = id
	}
	if FileStem("team/42") != FileStem("team/42") {
		t.Fatal("FileStem must be deterministic")
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("Work Stuff!"); got != "work_stuff" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := SanitizeToken(""); got != "unknown" {
		t.Fatalf("unexpected empty token %q", got)
	}
}
