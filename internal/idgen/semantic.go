package idgen

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// nonAlphanumericRegex matches any non-alphanumeric character.
var nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9]+`)

// multipleUnderscoreRegex matches multiple consecutive underscores.
var multipleUnderscoreRegex = regexp.MustCompile(`_+`)

// SliceIDGenerator generates human-readable slice-tree node ids from a
// hypernode state name and the action that spawned the slice, so a log
// line or JetStream subject names a slice by what it IS rather than an
// opaque counter.
type SliceIDGenerator struct {
	maxSlugLength int
}

// NewSliceIDGenerator creates a generator with default settings.
func NewSliceIDGenerator() *SliceIDGenerator {
	return &SliceIDGenerator{maxSlugLength: 46}
}

// GenerateSlug converts free text (a state name, an action) to a slug:
// lowercase, underscore-separated, letter-leading.
func (g *SliceIDGenerator) GenerateSlug(text string) string {
	if text == "" {
		return "untitled"
	}

	slug := strings.ToLower(text)
	slug = nonAlphanumericRegex.ReplaceAllString(slug, " ")
	words := strings.Fields(slug)
	slug = strings.Join(words, "_")

	if len(slug) > 0 && !unicode.IsLetter(rune(slug[0])) {
		slug = "n" + slug
	}

	if len(slug) > g.maxSlugLength {
		truncated := slug[:g.maxSlugLength]
		if lastUnderscore := strings.LastIndex(truncated, "_"); lastUnderscore > g.maxSlugLength/2 {
			truncated = truncated[:lastUnderscore]
		}
		slug = truncated
	}

	if len(slug) < 3 {
		slug = slug + strings.Repeat("x", 3-len(slug))
	}

	slug = strings.Trim(slug, "_")
	slug = multipleUnderscoreRegex.ReplaceAllString(slug, "_")
	return slug
}

// GenerateSliceID builds a readable slice id from the target hypernode
// state and the action that spawned it (e.g. "shareloc-share"), appending
// a numeric suffix on collision against existingIDs -- the same
// incrementing-suffix collision strategy as a semantic issue ID, just
// without the issue-type abbreviation this domain has no equivalent of.
func (g *SliceIDGenerator) GenerateSliceID(stateID, action string, existingIDs []string) string {
	baseID := g.GenerateSlug(stateID) + "-" + g.GenerateSlug(action)

	id := baseID
	suffix := 2
	for contains(existingIDs, id) {
		id = baseID + "_" + strconv.Itoa(suffix)
		suffix++
		if suffix > 99 {
			break
		}
	}
	return id
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
