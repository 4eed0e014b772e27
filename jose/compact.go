package jose

import (
	"encoding/base64"
	"strings"
)

// Segment counts of the compact serializations.
const (
	JWESegments = 5
	JWSSegments = 3
)

// CompactToken is a compact JOSE serialization split into its base64url segments.
type CompactToken []string

// ParseCompact splits text on ".". It never fails; segment counts are checked by the
// operation that needs them.
func ParseCompact(text string) CompactToken {
	return CompactToken(strings.Split(text, "."))
}

// Len returns the number of segments.
func (t CompactToken) Len() int {
	return len(t)
}

// Segment returns the raw text of segment i, or "" when it does not exist.
func (t CompactToken) Segment(i int) string {
	if i < 0 || i >= len(t) {
		return ""
	}
	return t[i]
}

// Decode base64url-decodes segment i. Padding is accepted but not required.
func (t CompactToken) Decode(i int) ([]byte, error) {
	return decodeSegment(t.Segment(i))
}

// String re-joins the segments.
func (t CompactToken) String() string {
	return strings.Join(t, ".")
}

func decodeSegment(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

// EncodeSegment base64url-encodes b without padding.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}
