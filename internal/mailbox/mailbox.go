package mailbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"mailreel/internal/message"
	"mailreel/internal/services"
)

// Mailbox lists messages for a batch run.
type Mailbox interface {
	ListRecentMessages(ctx context.Context, limit int) ([]message.Raw, error)
}

// Open picks a mailbox implementation for path: directories are read as
// .eml stores, files as JSON exports.
func Open(path string) (Mailbox, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mailbox", "open", "mailbox path is empty", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "mailbox", "open", fmt.Sprintf("stat %q", path), err)
	}
	if info.IsDir() {
		return NewDir(path), nil
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".eml" {
		return NewDir(filepath.Dir(path), WithPattern(filepath.Base(path))), nil
	}
	return NewJSONFile(path), nil
}

func applyLimit(raws []message.Raw, limit int) []message.Raw {
	if limit > 0 && len(raws) > limit {
		return raws[:limit]
	}
	return raws
}
