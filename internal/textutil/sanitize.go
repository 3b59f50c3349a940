package textutil

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// maxStemRunes bounds file name stems derived from message identifiers.
const maxStemRunes = 96

// stemHashLen is the number of hex characters appended to rewritten stems.
const stemHashLen = 10

var stemNamespace = uuid.MustParse("0b6f3a8e-58c1-5a27-8e4d-91c2f7d3a610")

// fileNameReplacer replaces filesystem-unsafe characters with safe alternatives.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces filesystem-unsafe characters in a filename.
// Slashes, backslashes, colons, and asterisks become dashes; other unsafe
// characters are removed. The result is trimmed of leading/trailing whitespace.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.TrimSpace(fileNameReplacer.Replace(name))
}

// SanitizeToken converts a string to a lowercase filesystem-safe token.
// Letters are lowercased, digits and hyphens/underscores are kept, everything
// else becomes an underscore. Returns "unknown" for empty input.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_-")
	if out == "" {
		return "unknown"
	}
	return out
}

// FileStem turns a message identifier into a file name stem. Identifiers
// that are already safe are used as-is. Anything rewritten along the way
// (unsafe characters, Message-ID brackets, truncation) gets a short hash of
// the original identifier appended, so distinct identifiers never share a
// stem. The result never contains path separators or leading dots.
func FileStem(id string) string {
	stem := SanitizeFileName(id)
	stem = strings.Map(func(r rune) rune {
		switch {
		case r == ' ' || r == '\t':
			return '_'
		case r < 0x20:
			return -1
		}
		return r
	}, stem)
	stem = strings.TrimLeft(stem, ".")
	if stem == id && len([]rune(stem)) <= maxStemRunes {
		return stem
	}
	stem = Truncate(stem, maxStemRunes-stemHashLen-1, "")
	if stem == "" {
		stem = "unknown"
	}
	return stem + "-" + stemHash(id)
}

func stemHash(id string) string {
	sum := uuid.NewSHA1(stemNamespace, []byte(id))
	return hex.EncodeToString(sum[:])[:stemHashLen]
}
