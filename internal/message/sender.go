package message

import (
	"net/mail"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// DisplayName extracts a human friendly name from a From header value.
// "Jane Doe <jane@x.io>" yields "Jane Doe"; a bare "jane.doe@x.io" yields
// "Jane Doe".
func DisplayName(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return UnknownSender
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		if name := strings.TrimSpace(addr.Name); name != "" {
			return name
		}
		return localPartName(addr.Address)
	}
	if idx := strings.Index(from, "<"); idx > 0 && strings.HasSuffix(from, ">") {
		if name := strings.Trim(strings.TrimSpace(from[:idx]), `"'`); name != "" {
			return name
		}
	}
	if strings.Contains(from, "@") {
		return localPartName(from)
	}
	return from
}

func localPartName(address string) string {
	local, _, _ := strings.Cut(address, "@")
	local = strings.Trim(local, "<> ")
	if local == "" {
		return UnknownSender
	}
	spaced := strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-', '+':
			return ' '
		}
		return r
	}, local)
	spaced = collapseSpace(spaced)
	if spaced == "" {
		return local
	}
	return titleCaser.String(spaced)
}
