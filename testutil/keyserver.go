package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/c360/stanagfeed/jose"
)

// KeyServer serves composite keys and a PEM public key over HTTP.
type KeyServer struct {
	*httptest.Server

	challenge string
	private   *rsa.PrivateKey

	mu       sync.Mutex
	keys     map[string]jose.KeyRecord
	requests map[string]int
	broken   map[string]string
}

// NewKeyServer starts a server requiring challenge as key_verifier. It is closed
// when the test ends.
func NewKeyServer(t testing.TB, challenge string) *KeyServer {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ks := &KeyServer{
		challenge: challenge,
		private:   priv,
		keys:      make(map[string]jose.KeyRecord),
		requests:  make(map[string]int),
		broken:    make(map[string]string),
	}
	ks.Server = httptest.NewServer(http.HandlerFunc(ks.serve))
	t.Cleanup(ks.Close)
	return ks
}

func (ks *KeyServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/cert.pem" {
		der, err := x509.MarshalPKIXPublicKey(&ks.private.PublicKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pem-certificate-chain")
		_ = pem.Encode(w, &pem.Block{Type: "PUBLIC KEY", Bytes: der})
		return
	}

	kid, ok := strings.CutPrefix(r.URL.Path, "/keys/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.URL.Query().Get("key_verifier") != ks.challenge {
		http.Error(w, "bad verifier", http.StatusForbidden)
		return
	}

	ks.mu.Lock()
	ks.requests[kid]++
	rec, found := ks.keys[kid]
	body, isBroken := ks.broken[kid]
	ks.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if isBroken {
		_, _ = w.Write([]byte(body))
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"alg": rec.Algorithm,
		"k":   base64.RawURLEncoding.EncodeToString(rec.Raw()),
	})
}

// AddKey generates and registers a key for kid.
func (ks *KeyServer) AddKey(t testing.TB, kid, alg string) jose.KeyRecord {
	t.Helper()
	raw, err := jose.GenerateKey(alg)
	require.NoError(t, err)
	rec, err := jose.NewKeyRecord(kid, alg, raw)
	require.NoError(t, err)

	ks.mu.Lock()
	ks.keys[kid] = rec
	ks.mu.Unlock()
	return rec
}

// Break makes kid answer with body instead of a valid key document.
func (ks *KeyServer) Break(kid, body string) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.broken[kid] = body
}

// Requests returns how many times the key for kid was requested.
func (ks *KeyServer) Requests(kid string) int {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	return ks.requests[kid]
}

// Auth returns settings pointing at this server.
func (ks *KeyServer) Auth() jose.AuthSettings {
	return jose.AuthSettings{KmsURL: ks.URL, KeyChallenge: ks.challenge}
}

// PEMURL returns the URL of the public key.
func (ks *KeyServer) PEMURL() string {
	return ks.URL + "/cert.pem"
}

// PrivateKey returns the signing key matching the served certificate.
func (ks *KeyServer) PrivateKey() *rsa.PrivateKey {
	return ks.private
}

// Sealer returns a sealer that registers keys of alg on this server.
func (ks *KeyServer) Sealer(alg string) *Sealer {
	return &Sealer{server: ks, alg: alg}
}
