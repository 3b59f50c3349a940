package assembly

import (
	"hash/fnv"
	"sort"
	"strings"

	"mailreel/internal/message"
)

// DefaultCategory is used when no keyword category matches.
const DefaultCategory = "default"

// Catalog maps a background category to candidate video files.
type Catalog map[string][]string

// Selection is the background chosen for a message. Path is empty when no
// candidate exists and the muxer should render a solid colour instead.
type Selection struct {
	Category string
	Path     string
}

type keywordCategory struct {
	name     string
	keywords []string
}

// keywordCategories are checked in order; the first match wins.
var keywordCategories = []keywordCategory{
	{name: "gaming", keywords: []string{"game", "gaming", "play", "fun", "entertainment"}},
	{name: "work", keywords: []string{"meeting", "work", "project", "deadline", "urgent"}},
	{name: "satisfying", keywords: []string{"relax", "calm", "peaceful", "satisfying"}},
}

// Categorize returns the background category whose keywords appear in the
// message subject or body.
func Categorize(msg message.Canonical) string {
	if matched := matchingCategories(msg); len(matched) > 0 {
		return matched[0]
	}
	return DefaultCategory
}

func matchingCategories(msg message.Canonical) []string {
	content := strings.ToLower(msg.Subject + " " + msg.Body)
	var matched []string
	for _, category := range keywordCategories {
		for _, keyword := range category.keywords {
			if strings.Contains(content, keyword) {
				matched = append(matched, category.name)
				break
			}
		}
	}
	return matched
}

// SelectBackground picks a background for msg from catalog. Matching
// categories without clips fall through to the next match, then to the
// default category. The choice is deterministic: the same message always
// gets the same clip.
func SelectBackground(msg message.Canonical, catalog Catalog) Selection {
	category := DefaultCategory
	var candidates []string
	for _, name := range matchingCategories(msg) {
		if len(catalog[name]) > 0 {
			category, candidates = name, catalog[name]
			break
		}
	}
	if len(candidates) == 0 {
		category = DefaultCategory
		candidates = catalog[DefaultCategory]
	}
	if len(candidates) == 0 {
		for _, name := range sortedCategories(catalog) {
			if len(catalog[name]) > 0 {
				category, candidates = name, catalog[name]
				break
			}
		}
	}
	if len(candidates) == 0 {
		return Selection{Category: category}
	}

	h := fnv.New32a()
	_, _ = h.Write([]byte(msg.ID))
	return Selection{
		Category: category,
		Path:     candidates[int(h.Sum32()%uint32(len(candidates)))],
	}
}

func sortedCategories(catalog Catalog) []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
