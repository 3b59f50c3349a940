package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFixture writes data to path, creating parent directories, and
// returns path.
func WriteFixture(t testing.TB, path string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// WriteAudio writes a placeholder mp3 of roughly size bytes. The content
// starts with an ID3 tag so sniffers accept it; a size below the tag length
// writes the bare tag.
func WriteAudio(t testing.TB, path string, size int) string {
	t.Helper()
	data := []byte("ID3")
	for len(data) < size {
		data = append(data, 0)
	}
	return WriteFixture(t, path, data)
}

// WithBackgrounds writes a placeholder clip for every configured background
// of the named categories. Without names, all categories are written.
func WithBackgrounds(categories ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(categories) == 0 {
			for category := range b.cfg.Video.Backgrounds {
				categories = append(categories, category)
			}
		}
		for _, category := range categories {
			files := b.cfg.Video.Backgrounds[category]
			if len(files) == 0 {
				b.t.Fatalf("no backgrounds configured for %q", category)
			}
			for _, file := range files {
				WriteFixture(b.t, file, []byte("mp4-"+category))
			}
		}
	}
}
