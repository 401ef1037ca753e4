package post

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ContentKey is the stable identity of a post's analyzable content: a
// lowercase hex SHA-256 digest of the canonical identity document.
type ContentKey string

// Short returns an abbreviated form suitable for log fields.
func (k ContentKey) Short() string {
	if len(k) <= 12 {
		return string(k)
	}
	return string(k[:12])
}

func (k ContentKey) String() string { return string(k) }

// IdentityConfig controls which fields participate in content identity.
type IdentityConfig struct {
	// MetadataKeys lists metadata fields that are identity-bearing in
	// addition to the built-in text, image description, and social
	// network. Order does not matter; values are compared as their JSON
	// encoding.
	MetadataKeys []string `koanf:"metadata_keys"`
}

// Hasher derives ContentKeys from posts. The zero value uses only the
// built-in identity fields.
type Hasher struct {
	metadataKeys []string
}

// NewHasher builds a Hasher from identity configuration. Duplicate metadata
// keys are collapsed; ordering is canonicalized so two configurations listing
// the same keys produce identical digests.
func NewHasher(cfg IdentityConfig) *Hasher {
	seen := make(map[string]struct{}, len(cfg.MetadataKeys))
	keys := make([]string, 0, len(cfg.MetadataKeys))
	for _, k := range cfg.MetadataKeys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &Hasher{metadataKeys: keys}
}

// identityDoc is the canonical document hashed to produce a ContentKey.
// Fields marshal in struct order with fixed names, so the byte stream is
// deterministic for a given identity.
type identityDoc struct {
	Text             string            `json:"text"`
	ImageDescription string            `json:"image_description"`
	SocialNetwork    string            `json:"social_network"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// Key computes the ContentKey for a post. The post's text is normalized
// before hashing; identity-bearing metadata values are folded in as their
// JSON encoding. Returns an error only when a configured metadata value
// cannot be JSON-encoded.
func (h *Hasher) Key(p Post) (ContentKey, error) {
	doc := identityDoc{
		Text:             p.NormalizedText(),
		ImageDescription: strings.TrimSpace(p.ImageDescription),
		SocialNetwork:    strings.TrimSpace(p.SocialNetwork),
	}

	if len(h.metadataKeys) > 0 {
		for _, k := range h.metadataKeys {
			v, ok := p.Metadata[k]
			if !ok {
				continue
			}
			enc, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("encoding identity metadata %q: %w", k, err)
			}
			if doc.Metadata == nil {
				doc.Metadata = make(map[string]string, len(h.metadataKeys))
			}
			doc.Metadata[k] = string(enc)
		}
	}

	// encoding/json emits map keys in sorted order, so the document bytes
	// are canonical without further work.
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encoding identity document: %w", err)
	}

	sum := sha256.Sum256(raw)
	return ContentKey(hex.EncodeToString(sum[:])), nil
}
