package geometry

import "strings"

// Type is a resolved geometry type name such as "POINT" or "POINT Z".
type Type string

// Supported types.
const (
	Unknown         Type = ""
	Point           Type = "POINT"
	MultiLineString Type = "MULTILINESTRING"
	MultiPolygon    Type = "MULTIPOLYGON"
)

// ResolveType upper-cases name and rewrites a trailing ZM, Z or M into a space
// separated suffix.
func ResolveType(name string) Type {
	s := strings.ToUpper(strings.TrimSpace(name))
	for _, suffix := range []string{"ZM", "Z", "M"} {
		if strings.HasSuffix(s, suffix) {
			return Type(strings.TrimSpace(strings.TrimSuffix(s, suffix)) + " " + suffix)
		}
	}
	return Type(s)
}

// Supported reports whether t can be decoded.
func (t Type) Supported() bool {
	switch t {
	case Point, MultiLineString, MultiPolygon:
		return true
	default:
		return false
	}
}

// WKBCode returns the OGC WKB geometry code of t, or 0 when unsupported.
func (t Type) WKBCode() uint32 {
	switch t {
	case Point:
		return 1
	case MultiLineString:
		return 5
	case MultiPolygon:
		return 6
	default:
		return 0
	}
}

func (t Type) String() string {
	if t == Unknown {
		return "UNKNOWN"
	}
	return string(t)
}
