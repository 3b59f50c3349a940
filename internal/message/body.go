package message

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
)

var (
	markupPattern     = regexp.MustCompile(`<[A-Za-z!/][^<>]*>`)
	spacePattern      = regexp.MustCompile(`[\s\p{Zs}]+`)
	signaturePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^sent from my\b`),
		regexp.MustCompile(`^get outlook for\b`),
		regexp.MustCompile(`^on .+ wrote:$`),
		regexp.MustCompile(`^-- ?$`),
		regexp.MustCompile(`^(best|kind|warm)?\s*regards\b`),
		regexp.MustCompile(`^(sincerely|cheers|thanks|thank you)[,.!]?$`),
	}
)

// CleanBody strips HTML, quoted replies, and signature lines, collapses
// whitespace, and bounds the result to MaxBodyRunes.
func CleanBody(body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	var text string
	if markupPattern.MatchString(body) {
		text = htmlText(body)
	} else {
		text = html.UnescapeString(body)
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	kept := make([]string, 0, 16)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, ">") {
			continue
		}
		if isSignatureLine(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}

	cleaned := norm.NFC.String(collapseSpace(strings.Join(kept, " ")))
	return truncateRunes(cleaned, MaxBodyRunes)
}

// hiddenElements never contribute visible text.
var hiddenElements = map[atom.Atom]bool{
	atom.Head:     true,
	atom.Script:   true,
	atom.Style:    true,
	atom.Template: true,
}

// lineElements start or end a line of text.
var lineElements = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Tr: true,
	atom.Table: true, atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Hr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
}

// htmlText returns the visible text of an HTML body. A '<' that does not
// open a tag ("<3", "<5%") stays part of the text.
func htmlText(body string) string {
	z := xhtml.NewTokenizer(strings.NewReader(body))
	var b strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return b.String()
		case xhtml.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken, xhtml.EndTagToken, xhtml.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := atom.Lookup(name)
			if tag == atom.Body && tt == xhtml.StartTagToken {
				hidden = 0
			}
			if hiddenElements[tag] {
				switch {
				case tt == xhtml.StartTagToken:
					hidden++
				case tt == xhtml.EndTagToken && hidden > 0:
					hidden--
				}
			}
			if lineElements[tag] {
				b.WriteByte('\n')
			}
		}
	}
}

func isSignatureLine(line string) bool {
	lower := strings.ToLower(line)
	for _, pattern := range signaturePatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

func collapseSpace(value string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(value, " "))
}

func truncateRunes(value string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimSpace(string(runes[:limit]))
}
