package jose

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"encoding/binary"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/metric"
	"github.com/c360/stanagfeed/transport"
)

// ErrorCode is the outcome of the last decryptor or verifier call.
type ErrorCode = transport.ErrorCode

// Re-exported outcome codes.
const (
	NoError               = transport.NoError
	NetworkError          = transport.NetworkError
	TimeoutError          = transport.TimeoutError
	ServerExceptionError  = transport.ServerExceptionError
	ApplicationLevelError = transport.ApplicationLevelError
)

// ErrFetchInFlight is returned when a decryptor is asked to fetch a key while another
// fetch on the same instance has not completed.
var ErrFetchInFlight = stderrors.New("key fetch already in flight")

// Application error messages reported through ErrorMessage.
const (
	msgMessage        = "Application Error (Message)."
	msgKeyID          = "Application Error (Key Id)."
	msgKeyResponse    = "Application Error (Key Response)."
	msgAlgorithm      = "Application Error (Algorithm)."
	msgKey            = "Application Error (Key)."
	msgSegments       = "Application Error (Segments)."
	msgAuthentication = "Application Error (Authentication)."
	msgDecryption     = "Application Error (Decryption)."
)

// AuthSettings locates the key server.
type AuthSettings struct {
	KmsURL       string `json:"kms_url" yaml:"kms_url"`
	KeyChallenge string `json:"key_challenge" yaml:"key_challenge"`
}

// KeyURL returns the key request URL for kid.
func (a AuthSettings) KeyURL(kid string) string {
	return fmt.Sprintf("%s/keys/%s?key_verifier=%s",
		strings.TrimRight(a.KmsURL, "/"), url.PathEscape(kid), url.QueryEscape(a.KeyChallenge))
}

// DecryptorOption configures a Decryptor.
type DecryptorOption func(*Decryptor)

// WithKeyCache shares keys with other decryptors. The decryptor retains the cache and
// releases it on Close.
func WithKeyCache(keys *KeyCache) DecryptorOption {
	return func(d *Decryptor) {
		d.keys = keys.Retain()
	}
}

// WithLogger sets the decryptor logger.
func WithLogger(logger *slog.Logger) DecryptorOption {
	return func(d *Decryptor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records key fetch outcomes under service.
func WithMetrics(m *metric.Metrics, service string) DecryptorOption {
	return func(d *Decryptor) {
		d.metrics = m
		d.service = service
	}
}

// Decryptor opens compact JWE tokens, fetching keys on first use of each kid.
// A Decryptor is not safe for concurrent use beyond the in-flight fetch guard.
type Decryptor struct {
	fetcher transport.Fetcher
	auth    AuthSettings
	keys    *KeyCache
	logger  *slog.Logger
	metrics *metric.Metrics
	service string

	fetching  atomic.Bool
	closeOnce sync.Once

	token   CompactToken
	header  []byte
	keyID   string
	code    ErrorCode
	message string
	err     error
}

// NewDecryptor creates a decryptor bound to a key server.
func NewDecryptor(fetcher transport.Fetcher, auth AuthSettings, opts ...DecryptorOption) (*Decryptor, error) {
	if fetcher == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Decryptor", "New", "fetcher check")
	}
	d := &Decryptor{
		fetcher: fetcher,
		auth:    auth,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.keys == nil {
		keys, err := NewKeyCache()
		if err != nil {
			return nil, errors.WrapFatal(err, "Decryptor", "New", "key cache creation")
		}
		d.keys = keys
	}
	return d, nil
}

// Close releases the decryptor's reference to its key cache.
func (d *Decryptor) Close() {
	d.closeOnce.Do(d.keys.Release)
}

// Keys returns the key cache in use.
func (d *Decryptor) Keys() *KeyCache {
	return d.keys
}

// SetEncryptedText parses text and makes sure the key for its kid is available,
// fetching it when needed. It blocks until a fetch completes.
func (d *Decryptor) SetEncryptedText(ctx context.Context, text string) error {
	d.reset()
	d.token = ParseCompact(text)

	header, err := d.token.Decode(0)
	if err != nil {
		return d.fail(ApplicationLevelError, msgMessage, errors.ErrDecryption, "header decode", err)
	}
	d.header = header

	var fields map[string]any
	if err := json.Unmarshal(header, &fields); err != nil || fields == nil {
		return d.fail(ApplicationLevelError, msgMessage, errors.ErrDecryption, "header parse", err)
	}
	kid, ok := fields["kid"].(string)
	if !ok {
		return d.fail(ApplicationLevelError, msgKeyID, errors.ErrDecryption, "kid lookup", nil)
	}
	d.keyID = kid

	if d.keys.Contains(kid) {
		return nil
	}
	return d.fetchKey(ctx, kid)
}

func (d *Decryptor) fetchKey(ctx context.Context, kid string) error {
	if !d.fetching.CompareAndSwap(false, true) {
		return errors.Wrap(ErrFetchInFlight, "Decryptor", "SetEncryptedText", "key fetch")
	}
	defer d.fetching.Store(false)

	d.logger.Debug("Fetching decryption key", "kid", kid, "kms_url", d.auth.KmsURL)
	res := <-d.fetcher.Get(ctx, d.auth.KeyURL(kid), "application/json")
	err := d.readKey(kid, res)
	if d.metrics != nil {
		d.metrics.RecordKeyFetch(d.service, d.code.String())
	}
	return err
}

func (d *Decryptor) readKey(kid string, res transport.Result) error {
	if res.Code != transport.NoError {
		msg := "Download of key failed."
		if res.Err != nil {
			msg = fmt.Sprintf("Download of key failed: %v", res.Err)
		}
		d.logger.Warn("Key fetch failed", "kid", kid, "code", res.Code.String(), "error", res.Err)
		return d.fail(res.Code, msg, errors.ErrKeyFetch, "key download", res.Err)
	}

	var body struct {
		Alg *string `json:"alg"`
		K   *string `json:"k"`
	}
	if err := json.Unmarshal(res.Body, &body); err != nil {
		return d.fail(ApplicationLevelError, msgKeyResponse, errors.ErrKeyFetch, "key response parse", err)
	}
	if body.Alg == nil {
		return d.fail(ApplicationLevelError, msgAlgorithm, errors.ErrKeyFetch, "alg lookup", nil)
	}
	if body.K == nil {
		return d.fail(ApplicationLevelError, msgKey, errors.ErrKeyFetch, "k lookup", nil)
	}
	raw, err := decodeSegment(*body.K)
	if err != nil {
		return d.fail(ApplicationLevelError, msgKey, errors.ErrKeyFetch, "k decode", err)
	}
	defer wipe(raw)

	if _, ok := LookupAlgorithm(*body.Alg); !ok {
		return d.fail(ApplicationLevelError, msgAlgorithm, errors.ErrKeyFetch, "algorithm lookup",
			fmt.Errorf("unsupported algorithm %q", *body.Alg))
	}
	rec, err := NewKeyRecord(kid, *body.Alg, raw)
	if err != nil {
		return d.fail(ApplicationLevelError, msgKey, errors.ErrKeyFetch, "key split", err)
	}
	if err := d.keys.Put(rec); err != nil {
		return d.fail(ApplicationLevelError, msgKey, errors.ErrKeyFetch, "key store", err)
	}
	d.logger.Debug("Decryption key cached", "kid", kid, "alg", rec.Algorithm)
	return nil
}

// Message authenticates and decrypts the token set by SetEncryptedText.
func (d *Decryptor) Message() (string, error) {
	if d.err != nil {
		return "", d.err
	}
	if d.token.Len() != JWESegments {
		return "", d.fail(ApplicationLevelError, msgSegments, errors.ErrDecryption, "segment count",
			fmt.Errorf("expected %d segments, got %d", JWESegments, d.token.Len()))
	}
	rec, ok := d.keys.Get(d.keyID)
	if !ok {
		return "", d.fail(ApplicationLevelError, msgKeyID, errors.ErrDecryption, "key lookup", errors.ErrKeyNotFound)
	}
	alg, ok := LookupAlgorithm(rec.Algorithm)
	if !ok {
		return "", d.fail(ApplicationLevelError, msgAlgorithm, errors.ErrDecryption, "algorithm lookup", nil)
	}

	iv, errIV := d.token.Decode(2)
	ciphertext, errCT := d.token.Decode(3)
	tag, errTag := d.token.Decode(4)
	if err := stderrors.Join(errIV, errCT, errTag); err != nil {
		return "", d.fail(ApplicationLevelError, msgMessage, errors.ErrDecryption, "segment decode", err)
	}

	expected := computeTag(alg, rec.MACKey, d.token.Segment(0), iv, ciphertext)
	if !hmac.Equal(expected, tag) {
		return "", d.fail(ApplicationLevelError, msgAuthentication, errors.ErrAuthentication, "tag verification", nil)
	}

	plain, err := decryptCBC(rec.EncKey, iv, ciphertext)
	if err != nil {
		return "", d.fail(ApplicationLevelError, msgDecryption, errors.ErrDecryption, "cbc decrypt", err)
	}
	return string(plain), nil
}

// Header returns the decoded protected header of the current token.
func (d *Decryptor) Header() string {
	return string(d.header)
}

// KeyID returns the kid of the current token.
func (d *Decryptor) KeyID() string {
	return d.keyID
}

// ErrorCode returns the outcome of the last call.
func (d *Decryptor) ErrorCode() ErrorCode {
	return d.code
}

// ErrorMessage returns the message of the last failure, or "".
func (d *Decryptor) ErrorMessage() string {
	return d.message
}

// Err returns the error of the last failure, or nil.
func (d *Decryptor) Err() error {
	return d.err
}

func (d *Decryptor) reset() {
	d.token = nil
	d.header = nil
	d.keyID = ""
	d.code = NoError
	d.message = ""
	d.err = nil
}

func (d *Decryptor) fail(code ErrorCode, message string, sentinel error, action string, cause error) error {
	var err error
	if cause != nil {
		err = fmt.Errorf("%w: %s: %v", sentinel, message, cause)
	} else {
		err = fmt.Errorf("%w: %s", sentinel, message)
	}
	if code == ApplicationLevelError {
		err = errors.WrapInvalid(err, "Decryptor", "Open", action)
	} else {
		err = errors.WrapTransient(err, "Decryptor", "FetchKey", action)
	}
	d.code = code
	d.message = message
	d.err = err
	return err
}

// computeTag returns the truncated HMAC over header ∥ IV ∥ ciphertext ∥ AL.
func computeTag(alg Algorithm, macKey []byte, header string, iv, ciphertext []byte) []byte {
	var al [8]byte
	binary.BigEndian.PutUint64(al[:], uint64(len(header))*8)

	mac := hmac.New(alg.Hash, macKey)
	mac.Write([]byte(header))
	mac.Write(iv)
	mac.Write(ciphertext)
	mac.Write(al[:])
	return mac.Sum(nil)[:alg.TagSize]
}

func decryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("iv length %d", len(iv))
	}
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("ciphertext length %d", len(ciphertext))
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)
	return unpad(plain, block.BlockSize())
}

func unpad(b []byte, blockSize int) ([]byte, error) {
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, fmt.Errorf("bad padding")
	}
	if !bytes.Equal(b[len(b)-n:], bytes.Repeat([]byte{byte(n)}, n)) {
		return nil, fmt.Errorf("bad padding")
	}
	return b[:len(b)-n], nil
}

func pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}
