package testutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/stanagfeed/jose"
)

// Sealer encrypts records, registering one key per kid on its server.
type Sealer struct {
	server *KeyServer
	alg    string
}

// Seal encrypts record under kid. The key is created on first use of kid.
func (s *Sealer) Seal(t testing.TB, kid string, record any) string {
	t.Helper()
	s.server.mu.Lock()
	rec, ok := s.server.keys[kid]
	s.server.mu.Unlock()
	if !ok {
		rec = s.server.AddKey(t, kid, s.alg)
	}

	var plain []byte
	switch r := record.(type) {
	case string:
		plain = []byte(r)
	case []byte:
		plain = r
	default:
		var err error
		plain, err = json.Marshal(record)
		require.NoError(t, err)
	}

	token, err := jose.Encrypt(rec, kid, plain, nil)
	require.NoError(t, err)
	return token
}

// Envelope wraps tokens in a STANAG 4778 envelope.
func Envelope(tokens ...string) []byte {
	objects := make([]map[string]string, len(tokens))
	for i, tok := range tokens {
		objects[i] = map[string]string{"Data": tok}
	}
	out, _ := json.Marshal(map[string]any{"type": "STANAG4778", "objects": objects})
	return out
}

// SignEnvelope returns envelope as an RS256 JWS signed by the server key.
func (ks *KeyServer) SignEnvelope(t testing.TB, envelope []byte) []byte {
	t.Helper()
	token, err := jose.Sign(ks.private, []byte(`{"alg":"RS256","typ":"JOSE"}`), envelope)
	require.NoError(t, err)
	return []byte(token)
}

// PointRecord builds a decrypted Point record.
func PointRecord(id any, x, y float64, props map[string]any) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	return map[string]any{
		"id":         id,
		"geometry":   map[string]any{"type": "Point", "coordinates": []float64{x, y}},
		"properties": props,
	}
}

// CorruptTag flips the first byte of a JWE token's tag.
func CorruptTag(token string) string {
	parts := jose.ParseCompact(token)
	tag, err := parts.Decode(4)
	if err != nil || len(tag) == 0 {
		return token
	}
	tag[0] ^= 0xff
	parts[4] = jose.EncodeSegment(tag)
	return parts.String()
}
