package jose

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/transport"
)

// fakeFetcher answers requests from a fixed table and counts calls per URL.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]transport.Result
	calls   map[string]int
	block   chan struct{}
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		results: make(map[string]transport.Result),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) Get(_ context.Context, url, _ string) <-chan transport.Result {
	f.mu.Lock()
	f.calls[url]++
	res, ok := f.results[url]
	block := f.block
	f.mu.Unlock()
	if !ok {
		res = transport.Result{StatusCode: 404, Code: transport.ServerExceptionError, Err: errors.ErrServerException}
	}
	ch := make(chan transport.Result, 1)
	go func() {
		if block != nil {
			<-block
		}
		ch <- res
		close(ch)
	}()
	return ch
}

func (f *fakeFetcher) Post(ctx context.Context, url, _ string, _ []byte) <-chan transport.Result {
	return f.Get(ctx, url, "")
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

var testAuth = AuthSettings{KmsURL: "https://kms.example", KeyChallenge: "challenge"}

func keyResponse(t *testing.T, alg string, raw []byte) transport.Result {
	t.Helper()
	body, err := json.Marshal(map[string]string{"alg": alg, "k": base64.RawURLEncoding.EncodeToString(raw)})
	require.NoError(t, err)
	return transport.Result{Body: body, StatusCode: 200}
}

func sealed(t *testing.T, alg, kid, plaintext string) (string, []byte) {
	t.Helper()
	raw, err := GenerateKey(alg)
	require.NoError(t, err)
	rec, err := NewKeyRecord(kid, alg, raw)
	require.NoError(t, err)
	token, err := Encrypt(rec, kid, []byte(plaintext), nil)
	require.NoError(t, err)
	return token, raw
}

func TestAuthSettings_KeyURL(t *testing.T) {
	auth := AuthSettings{KmsURL: "https://kms.example/", KeyChallenge: "a b&c"}
	assert.Equal(t, "https://kms.example/keys/k1?key_verifier=a+b%26c", auth.KeyURL("k1"))
}

func TestNewKeyRecord(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	rec, err := NewKeyRecord("k", A128CBCHS256, raw)
	require.NoError(t, err)
	assert.Equal(t, raw[:16], rec.MACKey)
	assert.Equal(t, raw[16:], rec.EncKey)
	assert.Equal(t, raw, rec.Raw())

	_, err = NewKeyRecord("k", A256CBCHS512, raw)
	assert.ErrorIs(t, err, errors.ErrKeyFetch)

	_, err = NewKeyRecord("k", "A128GCM", raw)
	assert.ErrorIs(t, err, errors.ErrKeyFetch)
}

func TestCompositeTag_RFC7516Vector(t *testing.T) {
	key := []byte{4, 211, 31, 197, 84, 157, 252, 254, 11, 100, 157, 250, 63, 170, 106, 206,
		107, 124, 212, 45, 111, 107, 9, 219, 200, 177, 0, 240, 143, 156, 44, 207}
	token := ParseCompact("eyJhbGciOiJBMTI4S1ciLCJlbmMiOiJBMTI4Q0JDLUhTMjU2In0." +
		"6KB707dM9YTIgHtLvtgWQ8mKwboJW3of9locizkDTHzBC2IlrT1oOQ." +
		"AxY8DCtDaGlsbGljb3RoZQ." +
		"KDlTtXchhZTGufMYmOYGS4HffxPSUrfmqCHXaI9wOGY." +
		"U0m_YmjN04DJvceFICbCVQ")

	rec, err := NewKeyRecord("", A128CBCHS256, key)
	require.NoError(t, err)
	alg, _ := LookupAlgorithm(A128CBCHS256)

	iv, err := token.Decode(2)
	require.NoError(t, err)
	ciphertext, err := token.Decode(3)
	require.NoError(t, err)
	tag, err := token.Decode(4)
	require.NoError(t, err)

	assert.Equal(t, tag, computeTag(alg, rec.MACKey, token.Segment(0), iv, ciphertext))

	plain, err := decryptCBC(rec.EncKey, iv, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "Live long and prosper.", string(plain))
}

func TestDecryptor_RoundTrip(t *testing.T) {
	for _, alg := range Algorithms() {
		t.Run(alg, func(t *testing.T) {
			token, raw := sealed(t, alg, "kid-"+alg, `{"ok":true}`)
			fetcher := newFakeFetcher()
			fetcher.results[testAuth.KeyURL("kid-"+alg)] = keyResponse(t, alg, raw)

			dec, err := NewDecryptor(fetcher, testAuth)
			require.NoError(t, err)
			defer dec.Close()

			require.NoError(t, dec.SetEncryptedText(context.Background(), token))
			msg, err := dec.Message()
			require.NoError(t, err)
			assert.Equal(t, `{"ok":true}`, msg)
			assert.Equal(t, NoError, dec.ErrorCode())
			assert.Empty(t, dec.ErrorMessage())
			assert.Contains(t, dec.Header(), `"kid":"kid-`+alg+`"`)
		})
	}
}

func TestDecryptor_FetchesEachKidOnce(t *testing.T) {
	token, raw := sealed(t, A256CBCHS512, "k1", "one")
	fetcher := newFakeFetcher()
	url := testAuth.KeyURL("k1")
	fetcher.results[url] = keyResponse(t, A256CBCHS512, raw)

	dec, err := NewDecryptor(fetcher, testAuth)
	require.NoError(t, err)
	defer dec.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, dec.SetEncryptedText(context.Background(), token))
		msg, err := dec.Message()
		require.NoError(t, err)
		assert.Equal(t, "one", msg)
	}
	assert.Equal(t, 1, fetcher.count(url))
	assert.Equal(t, 1, dec.Keys().Len())
}

func TestDecryptor_SharedKeyCache(t *testing.T) {
	token, raw := sealed(t, A128CBCHS256, "shared", "hello")
	fetcher := newFakeFetcher()
	url := testAuth.KeyURL("shared")
	fetcher.results[url] = keyResponse(t, A128CBCHS256, raw)

	keys, err := NewKeyCache()
	require.NoError(t, err)

	first, err := NewDecryptor(fetcher, testAuth, WithKeyCache(keys))
	require.NoError(t, err)
	second, err := NewDecryptor(fetcher, testAuth, WithKeyCache(keys))
	require.NoError(t, err)
	keys.Release()

	require.NoError(t, first.SetEncryptedText(context.Background(), token))
	first.Close()

	require.NoError(t, second.SetEncryptedText(context.Background(), token))
	msg, err := second.Message()
	require.NoError(t, err)
	assert.Equal(t, "hello", msg)
	assert.Equal(t, 1, fetcher.count(url))

	second.Close()
	assert.Equal(t, 0, keys.Len())
}

func TestDecryptor_HeaderErrors(t *testing.T) {
	fetcher := newFakeFetcher()
	dec, err := NewDecryptor(fetcher, testAuth)
	require.NoError(t, err)
	defer dec.Close()

	noKid := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"dir"}`))
	numericKid := base64.RawURLEncoding.EncodeToString([]byte(`{"kid":5}`))
	array := base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`))

	tests := []struct {
		name    string
		text    string
		message string
	}{
		{"not base64", "!!!.a.b.c.d", "Application Error (Message)."},
		{"not json", base64.RawURLEncoding.EncodeToString([]byte("nope")) + "....", "Application Error (Message)."},
		{"array header", array + "....", "Application Error (Message)."},
		{"missing kid", noKid + "....", "Application Error (Key Id)."},
		{"numeric kid", numericKid + "....", "Application Error (Key Id)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dec.SetEncryptedText(context.Background(), tt.text)
			require.Error(t, err)
			assert.Equal(t, ApplicationLevelError, dec.ErrorCode())
			assert.Equal(t, tt.message, dec.ErrorMessage())

			msg, err := dec.Message()
			assert.Error(t, err)
			assert.Empty(t, msg)
		})
	}
	assert.Empty(t, fetcher.calls)
}

func TestDecryptor_KeyFetchFailures(t *testing.T) {
	token, raw := sealed(t, A128CBCHS256, "k", "x")
	url := testAuth.KeyURL("k")

	tests := []struct {
		name    string
		result  transport.Result
		code    ErrorCode
		message string
	}{
		{"server exception", transport.Result{StatusCode: 500, Code: transport.ServerExceptionError, Err: errors.ErrServerException},
			ServerExceptionError, ""},
		{"network", transport.Result{Code: transport.NetworkError, Err: errors.ErrConnectionLost}, NetworkError, ""},
		{"timeout", transport.Result{Code: transport.TimeoutError, Err: errors.ErrConnectionTimeout}, TimeoutError, ""},
		{"not json", transport.Result{Body: []byte("<html>"), StatusCode: 200}, ApplicationLevelError, "Application Error (Key Response)."},
		{"missing alg", transport.Result{Body: []byte(`{"k":"AAAA"}`), StatusCode: 200}, ApplicationLevelError, "Application Error (Algorithm)."},
		{"missing k", transport.Result{Body: []byte(`{"alg":"A128CBC-HS256"}`), StatusCode: 200}, ApplicationLevelError, "Application Error (Key)."},
		{"unknown alg", keyResponse(t, "A128GCM", raw), ApplicationLevelError, "Application Error (Algorithm)."},
		{"short key", keyResponse(t, A128CBCHS256, raw[:16]), ApplicationLevelError, "Application Error (Key)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := newFakeFetcher()
			fetcher.results[url] = tt.result
			dec, err := NewDecryptor(fetcher, testAuth)
			require.NoError(t, err)
			defer dec.Close()

			err = dec.SetEncryptedText(context.Background(), token)
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrKeyFetch)
			assert.Equal(t, tt.code, dec.ErrorCode())
			if tt.message != "" {
				assert.Equal(t, tt.message, dec.ErrorMessage())
			} else {
				assert.Contains(t, dec.ErrorMessage(), "Download of key failed")
			}
			assert.Equal(t, 0, dec.Keys().Len())

			msg, err := dec.Message()
			assert.Error(t, err)
			assert.Empty(t, msg)
		})
	}
}

func TestDecryptor_FailedFetchIsRetriedOnNextToken(t *testing.T) {
	token, raw := sealed(t, A128CBCHS256, "k", "x")
	url := testAuth.KeyURL("k")
	fetcher := newFakeFetcher()
	fetcher.results[url] = transport.Result{Code: transport.NetworkError, Err: errors.ErrConnectionLost}

	dec, err := NewDecryptor(fetcher, testAuth)
	require.NoError(t, err)
	defer dec.Close()

	require.Error(t, dec.SetEncryptedText(context.Background(), token))

	fetcher.mu.Lock()
	fetcher.results[url] = keyResponse(t, A128CBCHS256, raw)
	fetcher.mu.Unlock()

	require.NoError(t, dec.SetEncryptedText(context.Background(), token))
	msg, err := dec.Message()
	require.NoError(t, err)
	assert.Equal(t, "x", msg)
	assert.Equal(t, 2, fetcher.count(url))
}

func TestDecryptor_Tampering(t *testing.T) {
	token, raw := sealed(t, A256CBCHS512, "k", `{"secret":"payload with enough bytes to span blocks"}`)
	fetcher := newFakeFetcher()
	fetcher.results[testAuth.KeyURL("k")] = keyResponse(t, A256CBCHS512, raw)

	dec, err := NewDecryptor(fetcher, testAuth)
	require.NoError(t, err)
	defer dec.Close()

	flip := func(segment, index int) string {
		parts := ParseCompact(token)
		b, err := parts.Decode(segment)
		require.NoError(t, err)
		b[index%len(b)] ^= 0x01
		parts[segment] = base64.RawURLEncoding.EncodeToString(b)
		return parts.String()
	}

	for _, tc := range []struct {
		name    string
		segment int
		index   int
	}{
		{"iv", 2, 0},
		{"ciphertext first block", 3, 0},
		{"ciphertext last byte", 3, -1},
		{"tag", 4, 7},
	} {
		t.Run(tc.name, func(t *testing.T) {
			index := tc.index
			if index < 0 {
				b, _ := ParseCompact(token).Decode(tc.segment)
				index = len(b) - 1
			}
			require.NoError(t, dec.SetEncryptedText(context.Background(), flip(tc.segment, index)))
			msg, err := dec.Message()
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrAuthentication)
			assert.Empty(t, msg)
			assert.Equal(t, ApplicationLevelError, dec.ErrorCode())
			assert.Equal(t, "Application Error (Authentication).", dec.ErrorMessage())
		})
	}

	t.Run("truncated tag", func(t *testing.T) {
		parts := ParseCompact(token)
		parts[4] = parts[4][:10]
		require.NoError(t, dec.SetEncryptedText(context.Background(), parts.String()))
		_, err := dec.Message()
		assert.ErrorIs(t, err, errors.ErrAuthentication)
	})

	t.Run("segment count", func(t *testing.T) {
		parts := ParseCompact(token)
		require.NoError(t, dec.SetEncryptedText(context.Background(), parts[0]+"."+parts[2]+"."+parts[3]))
		_, err := dec.Message()
		assert.ErrorIs(t, err, errors.ErrDecryption)
		assert.Equal(t, "Application Error (Segments).", dec.ErrorMessage())
	})

	t.Run("untouched token still opens", func(t *testing.T) {
		require.NoError(t, dec.SetEncryptedText(context.Background(), token))
		msg, err := dec.Message()
		require.NoError(t, err)
		assert.Contains(t, msg, "payload")
	})
}

func TestDecryptor_OneFetchInFlight(t *testing.T) {
	token, raw := sealed(t, A128CBCHS256, "slow", "x")
	fetcher := newFakeFetcher()
	fetcher.results[testAuth.KeyURL("slow")] = keyResponse(t, A128CBCHS256, raw)
	fetcher.block = make(chan struct{})

	dec, err := NewDecryptor(fetcher, testAuth)
	require.NoError(t, err)
	defer dec.Close()

	done := make(chan error, 1)
	go func() {
		done <- dec.SetEncryptedText(context.Background(), token)
	}()
	require.Eventually(t, func() bool { return fetcher.count(testAuth.KeyURL("slow")) == 1 }, timeout, tick)

	assert.True(t, dec.fetching.Load())
	assert.ErrorIs(t, dec.fetchKey(context.Background(), "other"), ErrFetchInFlight)

	close(fetcher.block)
	require.NoError(t, <-done)
	assert.False(t, dec.fetching.Load())
}

func rsaPEM(t *testing.T, key *rsa.PublicKey) []byte {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(key)
	require.NoError(t, err)
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
}

func TestVerifier(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	const pemURL = "https://pki.example/signer.pem"
	fetcher := newFakeFetcher()
	fetcher.results[pemURL] = transport.Result{Body: rsaPEM(t, &priv.PublicKey), StatusCode: 200}

	header := []byte(`{"alg":"RS256"}`)
	payload := []byte(`{"MESSAGE":{}}`)
	signed, err := Sign(priv, header, payload)
	require.NoError(t, err)
	forged, err := Sign(other, header, payload)
	require.NoError(t, err)

	v := NewVerifier(context.Background(), fetcher, pemURL, signed)
	assert.True(t, v.ValidSignature())
	assert.Equal(t, string(header), v.Header())
	assert.Equal(t, string(payload), v.Message())
	assert.Equal(t, NoError, v.ErrorCode())

	v.SetSignedText(forged)
	assert.False(t, v.ValidSignature())
	assert.Equal(t, string(payload), v.Message())

	headerFlip := ParseCompact(signed)
	headerFlip[0] = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","x":1}`))
	v.SetSignedText(headerFlip.String())
	assert.False(t, v.ValidSignature())
	assert.Equal(t, `{"alg":"RS256","x":1}`, v.Header())

	parts := ParseCompact(signed)
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"MESSAGE":{"x":1}}`))
	v.SetSignedText(parts.String())
	assert.False(t, v.ValidSignature())

	v.SetSignedText(parts[0] + "." + parts[1])
	assert.False(t, v.ValidSignature())

	v.SetSignedText("")
	assert.False(t, v.ValidSignature())
	assert.Empty(t, v.Header())

	assert.Equal(t, 1, fetcher.count(pemURL))
}

func TestVerifier_KeyUnavailable(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	signed, err := Sign(priv, []byte(`{"alg":"RS256"}`), []byte("body"))
	require.NoError(t, err)

	fetcher := newFakeFetcher()
	fetcher.results["https://pki.example/garbage.pem"] = transport.Result{Body: []byte("not a pem"), StatusCode: 200}

	missing := NewVerifier(context.Background(), fetcher, "https://pki.example/missing.pem", signed)
	assert.False(t, missing.ValidSignature())
	assert.Equal(t, ServerExceptionError, missing.ErrorCode())
	assert.Equal(t, "body", missing.Message())

	garbage := NewVerifier(context.Background(), fetcher, "https://pki.example/garbage.pem", signed)
	assert.False(t, garbage.ValidSignature())
	assert.Equal(t, ApplicationLevelError, garbage.ErrorCode())
	assert.ErrorIs(t, garbage.Verify(), errors.ErrSignature)

	nilFetcher := NewVerifier(context.Background(), nil, "", signed)
	assert.False(t, nilFetcher.ValidSignature())
}

func ExampleEncrypt() {
	raw := make([]byte, 32)
	rec, _ := NewKeyRecord("demo", A128CBCHS256, raw)
	token, _ := Encrypt(rec, "demo", []byte("hi"), make([]byte, 16))
	fmt.Println(ParseCompact(token).Len())
	// Output: 5
}

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond
)
