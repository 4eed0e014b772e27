package jose

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
)

// Encrypt produces a compact JWE token for plaintext under rec. The protected header
// carries alg "dir", the record's algorithm as enc, and kid. A nil iv draws a random one.
func Encrypt(rec KeyRecord, kid string, plaintext, iv []byte) (string, error) {
	alg, ok := LookupAlgorithm(rec.Algorithm)
	if !ok {
		return "", fmt.Errorf("unsupported algorithm %q", rec.Algorithm)
	}
	if iv == nil {
		iv = make([]byte, aes.BlockSize)
		if _, err := io.ReadFull(rand.Reader, iv); err != nil {
			return "", err
		}
	}
	if len(iv) != aes.BlockSize {
		return "", fmt.Errorf("iv must be %d bytes", aes.BlockSize)
	}

	header, err := json.Marshal(map[string]string{"alg": "dir", "enc": alg.Name, "kid": kid})
	if err != nil {
		return "", err
	}
	block, err := aes.NewCipher(rec.EncKey)
	if err != nil {
		return "", err
	}
	padded := pad(append([]byte(nil), plaintext...), block.BlockSize())
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	h := EncodeSegment(header)
	tag := computeTag(alg, rec.MACKey, h, iv, ciphertext)
	return h + ".." + EncodeSegment(iv) + "." + EncodeSegment(ciphertext) + "." + EncodeSegment(tag), nil
}
