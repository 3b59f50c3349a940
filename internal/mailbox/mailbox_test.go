package mailbox_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mailreel/internal/mailbox"
)

func writeFile(t *testing.T, path, content string, modTime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if !modTime.IsZero() {
		if err := os.Chtimes(path, modTime, modTime); err != nil {
			t.Fatalf("chtimes: %v", err)
		}
	}
}

func TestJSONFileAcceptsArrayAndEnvelope(t *testing.T) {
	dir := t.TempDir()
	arrayPath := filepath.Join(dir, "array.json")
	writeFile(t, arrayPath, `[
		{"id": "old", "sender": "a@example.com", "timestamp": "2024-01-01T10:00:00Z"},
		{"id": "new", "sender": "b@example.com", "timestamp": "2024-03-01T10:00:00Z"}
	]`, time.Time{})
	envelopePath := filepath.Join(dir, "envelope.json")
	writeFile(t, envelopePath, `{"messages": [{"id": "only", "subject": "hi"}]}`, time.Time{})

	raws, err := mailbox.NewJSONFile(arrayPath).ListRecentMessages(context.Background(), 0)
	if err != nil {
		t.Fatalf("list array: %v", err)
	}
	if len(raws) != 2 || raws[0]["id"] != "new" || raws[1]["id"] != "old" {
		t.Fatalf("expected newest first, got %v", raws)
	}

	raws, err = mailbox.NewJSONFile(envelopePath).ListRecentMessages(context.Background(), 5)
	if err != nil {
		t.Fatalf("list envelope: %v", err)
	}
	if len(raws) != 1 || raws[0]["id"] != "only" {
		t.Fatalf("unexpected envelope messages: %v", raws)
	}
}

func TestJSONFileAppliesLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "box.json")
	writeFile(t, path, `[{"id":"1","timestamp":1700000001},{"id":"2","timestamp":1700000002},{"id":"3","timestamp":1700000003}]`, time.Time{})

	raws, err := mailbox.NewJSONFile(path).ListRecentMessages(context.Background(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(raws) != 2 || raws[0]["id"] != "3" || raws[1]["id"] != "2" {
		t.Fatalf("unexpected limited messages: %v", raws)
	}
}

func TestDecodeJSONRejectsGarbage(t *testing.T) {
	if _, err := mailbox.DecodeJSON([]byte("[not json")); err == nil {
		t.Fatal("expected decode error")
	}
	raws, err := mailbox.DecodeJSON([]byte("   "))
	if err != nil || len(raws) != 0 {
		t.Fatalf("expected empty result for blank input, got %v %v", raws, err)
	}
}

func TestDirReadsEMLNewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFile(t, filepath.Join(dir, "a.eml"), "From: Alice <alice@example.com>\r\nSubject: First\r\n\r\nHello one", base)
	writeFile(t, filepath.Join(dir, "b.eml"), "From: Bob <bob@example.com>\r\nSubject: Second\r\n\r\nHello two", base.Add(time.Minute))
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored", base.Add(2*time.Minute))

	raws, err := mailbox.NewDir(dir).ListRecentMessages(context.Background(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(raws) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(raws))
	}
	if raws[0]["subject"] != "Second" || raws[1]["subject"] != "First" {
		t.Fatalf("unexpected order: %v", raws)
	}
	if raws[0]["from"] != "Bob <bob@example.com>" {
		t.Fatalf("unexpected sender: %v", raws[0]["from"])
	}
}

func TestDirScansMaildirSubfolders(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	writeFile(t, filepath.Join(dir, "cur", "1700000000.M1.host:2,S"), "From: a@example.com\r\nSubject: Seen\r\n\r\nbody", base)
	writeFile(t, filepath.Join(dir, "new", "1700000100.M2.host"), "From: b@example.com\r\nSubject: Unseen\r\n\r\nbody", base.Add(time.Minute))
	if err := os.MkdirAll(filepath.Join(dir, "tmp"), 0o755); err != nil {
		t.Fatalf("mkdir tmp: %v", err)
	}

	raws, err := mailbox.NewDir(dir).ListRecentMessages(context.Background(), 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(raws) != 1 || raws[0]["subject"] != "Unseen" {
		t.Fatalf("expected newest maildir message, got %v", raws)
	}
}

func TestOpenSelectsImplementation(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "box.json")
	writeFile(t, jsonPath, `[]`, time.Time{})

	box, err := mailbox.Open(dir)
	if err != nil {
		t.Fatalf("open dir: %v", err)
	}
	if _, ok := box.(*mailbox.Dir); !ok {
		t.Fatalf("expected Dir mailbox, got %T", box)
	}
	box, err = mailbox.Open(jsonPath)
	if err != nil {
		t.Fatalf("open json: %v", err)
	}
	if _, ok := box.(*mailbox.JSONFile); !ok {
		t.Fatalf("expected JSONFile mailbox, got %T", box)
	}
	if _, err := mailbox.Open(filepath.Join(dir, "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
}
