// Package content extracts hashtags and mentions from snap text.
package content

import "strings"

// stripped lists the punctuation removed before tokenizing, so "#go," and
// "(#go)" both yield "#go".
var stripped = strings.NewReplacer(
	",", "",
	".", "",
	"!", "",
	"?", "",
	"%", "",
	"(", "",
	")", "",
)

// Parsed holds the signals found in a piece of content. Both slices are
// lowercase, keep first-occurrence order and contain no duplicates.
type Parsed struct {
	Hashtags []string
	Mentions []string
}

// Parse extracts "#hashtag" and "@mention" tokens from s.
func Parse(s string) Parsed {
	out := Parsed{Hashtags: []string{}, Mentions: []string{}}
	seen := make(map[string]struct{})

	for _, word := range strings.Fields(stripped.Replace(s)) {
		token := strings.ToLower(strings.TrimSpace(word))
		if token == "" {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		switch token[0] {
		case '#':
			out.Hashtags = append(out.Hashtags, token)
		case '@':
			out.Mentions = append(out.Mentions, token)
		default:
			continue
		}
		seen[token] = struct{}{}
	}
	return out
}

// Hashtags is shorthand for Parse(s).Hashtags.
func Hashtags(s string) []string {
	return Parse(s).Hashtags
}

// NormalizeHashtag lowercases tag and adds the leading "#" when missing, so
// a filter of "Go" matches the stored "#go".
func NormalizeHashtag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" || strings.HasPrefix(tag, "#") {
		return tag
	}
	return "#" + tag
}

// MentionUsername strips the leading "@" from a mention token.
func MentionUsername(token string) string {
	return strings.TrimPrefix(token, "@")
}
