// Package post defines the social-media post model and its content identity.
//
// A post's identity is derived from its normalized text, image description,
// and social network. Engagement metadata (likes, upvotes, share counts) is
// deliberately excluded from identity so that the same content reposted with
// different counters resolves to one cache entry.
package post

import (
	"strings"
	"unicode"
)

// Post is the input to an analysis. It is immutable once submitted.
type Post struct {
	// Text is the post body. Required; must be non-empty after
	// normalization.
	Text string `json:"text"`

	// Metadata carries arbitrary scalar fields (engagement counters,
	// author info). Not identity-bearing by default.
	Metadata map[string]any `json:"metadata,omitempty"`

	// ImageDescription is an optional textual description of an attached
	// image. Identity-bearing.
	ImageDescription string `json:"image_description,omitempty"`

	// SocialNetwork is the originating platform name. Identity-bearing.
	SocialNetwork string `json:"social_network,omitempty"`

	// Trend is an optional topic label used only for browsing previously
	// analyzed posts. Never part of identity.
	Trend string `json:"trend,omitempty"`
}

// NormalizeText trims the text and collapses internal whitespace runs to a
// single space. Case is preserved: conflating distinct capitalizations would
// merge semantically different posts ("BREAKING" vs "breaking"), so only
// whitespace participates in normalization.
func NormalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}

	return b.String()
}

// NormalizedText returns the post's text after normalization.
func (p Post) NormalizedText() string {
	return NormalizeText(p.Text)
}

// EngagementCount extracts a numeric engagement metric from metadata,
// tolerating the numeric types JSON decoding produces. Returns 0, false when
// the key is absent or non-numeric.
func (p Post) EngagementCount(key string) (int64, bool) {
	v, ok := p.Metadata[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
