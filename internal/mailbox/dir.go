package mailbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mailreel/internal/message"
	"mailreel/internal/services"
)

// Dir reads messages stored one per file. When the directory has maildir
// "cur" and "new" subdirectories, both are scanned and every file counts as a
// message; otherwise only files matching the pattern (default "*.eml") are
// read.
type Dir struct {
	root    string
	pattern string
}

// DirOption customizes a Dir mailbox.
type DirOption func(*Dir)

// WithPattern restricts plain directories to files matching a glob pattern.
func WithPattern(pattern string) DirOption {
	return func(d *Dir) {
		if strings.TrimSpace(pattern) != "" {
			d.pattern = pattern
		}
	}
}

// NewDir returns a mailbox rooted at root.
func NewDir(root string, opts ...DirOption) *Dir {
	d := &Dir{root: root, pattern: "*.eml"}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type entry struct {
	path    string
	modTime time.Time
}

// ListRecentMessages returns up to limit messages ordered by file
// modification time, newest first. Unreadable files are skipped.
func (d *Dir) ListRecentMessages(ctx context.Context, limit int) ([]message.Raw, error) {
	entries, err := d.scan()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].path < entries[j].path
		}
		return entries[i].modTime.After(entries[j].modTime)
	})

	raws := make([]message.Raw, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if limit > 0 && len(raws) >= limit {
			break
		}
		raw, err := ReadFile(e.path)
		if err != nil {
			continue
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

func (d *Dir) scan() ([]entry, error) {
	info, err := os.Stat(d.root)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "mailbox", "scan", fmt.Sprintf("stat %q", d.root), err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "mailbox", "scan", fmt.Sprintf("%q is not a directory", d.root), nil)
	}

	if isMaildir(d.root) {
		var entries []entry
		for _, sub := range []string{"new", "cur"} {
			found, err := listFiles(filepath.Join(d.root, sub), "*")
			if err != nil {
				return nil, err
			}
			entries = append(entries, found...)
		}
		return entries, nil
	}
	return listFiles(d.root, d.pattern)
}

func isMaildir(root string) bool {
	for _, sub := range []string{"cur", "new"} {
		info, err := os.Stat(filepath.Join(root, sub))
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

func listFiles(dir, pattern string) ([]entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "mailbox", "scan", fmt.Sprintf("read %q", dir), err)
	}
	var entries []entry
	for _, de := range dirEntries {
		if de.IsDir() || strings.HasPrefix(de.Name(), ".") {
			continue
		}
		if ok, _ := filepath.Match(pattern, de.Name()); !ok {
			continue
		}
		info, err := de.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, services.Wrap(services.ErrExternalTool, "mailbox", "scan", "stat entry", err)
		}
		entries = append(entries, entry{path: filepath.Join(dir, de.Name()), modTime: info.ModTime()})
	}
	return entries, nil
}

// ReadFile parses one RFC 822 message file. Files that are not valid RFC
// 822 fall back to lenient header scanning.
func ReadFile(path string) (message.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	msg, err := mail.ReadMessage(f)
	if err == nil {
		return message.FromMail(msg)
	}
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, readErr
	}
	return message.ParseText(string(data)), nil
}
