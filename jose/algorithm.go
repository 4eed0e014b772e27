package jose

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"io"
	"sort"

	"github.com/c360/stanagfeed/errors"
)

// Composite AES-CBC + HMAC-SHA2 content encryption algorithms (RFC 7518 §5.2).
const (
	A128CBCHS256 = "A128CBC-HS256"
	A192CBCHS384 = "A192CBC-HS384"
	A256CBCHS512 = "A256CBC-HS512"
)

// Algorithm describes one composite CBC-HMAC algorithm.
type Algorithm struct {
	Name    string
	KeySize int // bytes of each of the MAC and the AES key
	TagSize int // bytes of the truncated HMAC output
	Hash    func() hash.Hash
}

var algorithms = map[string]Algorithm{
	A128CBCHS256: {Name: A128CBCHS256, KeySize: 16, TagSize: 16, Hash: sha256.New},
	A192CBCHS384: {Name: A192CBCHS384, KeySize: 24, TagSize: 24, Hash: sha512.New384},
	A256CBCHS512: {Name: A256CBCHS512, KeySize: 32, TagSize: 32, Hash: sha512.New},
}

// LookupAlgorithm returns the algorithm registered under name.
func LookupAlgorithm(name string) (Algorithm, bool) {
	alg, ok := algorithms[name]
	return alg, ok
}

// Algorithms returns the supported algorithm names in sorted order.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// KeyRecord is the key material for one key id.
type KeyRecord struct {
	KeyID     string
	Algorithm string
	MACKey    []byte
	EncKey    []byte
}

// NewKeyRecord splits raw composite key material: the left half is the HMAC key and
// the right half the AES key.
func NewKeyRecord(keyID, algorithm string, raw []byte) (KeyRecord, error) {
	alg, ok := LookupAlgorithm(algorithm)
	if !ok {
		return KeyRecord{}, errors.WrapInvalid(
			fmt.Errorf("%w: unsupported algorithm %q", errors.ErrKeyFetch, algorithm),
			"KeyRecord", "New", "algorithm lookup")
	}
	if len(raw) != 2*alg.KeySize {
		return KeyRecord{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s requires %d key bytes, got %d", errors.ErrKeyFetch, algorithm, 2*alg.KeySize, len(raw)),
			"KeyRecord", "New", "key length")
	}

	half := len(raw) / 2
	rec := KeyRecord{
		KeyID:     keyID,
		Algorithm: algorithm,
		MACKey:    make([]byte, half),
		EncKey:    make([]byte, half),
	}
	copy(rec.MACKey, raw[:half])
	copy(rec.EncKey, raw[half:])
	return rec, nil
}

// Raw returns the composite key material MAC key ∥ AES key.
func (r KeyRecord) Raw() []byte {
	raw := make([]byte, 0, len(r.MACKey)+len(r.EncKey))
	raw = append(raw, r.MACKey...)
	return append(raw, r.EncKey...)
}

// GenerateKey returns fresh random composite key material for algorithm.
func GenerateKey(algorithm string) ([]byte, error) {
	alg, ok := LookupAlgorithm(algorithm)
	if !ok {
		return nil, fmt.Errorf("unsupported algorithm %q", algorithm)
	}
	raw := make([]byte, 2*alg.KeySize)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
