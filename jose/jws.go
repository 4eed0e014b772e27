package jose

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt"

	"github.com/c360/stanagfeed/errors"
	"github.com/c360/stanagfeed/transport"
)

// PEMAccept is the Accept header sent with public key requests.
const PEMAccept = "text/plain,application/pem-certificate-chain"

// Verifier checks RS256 signatures of compact JWS tokens against one public key.
type Verifier struct {
	key   *rsa.PublicKey
	token CompactToken
	code  ErrorCode
	err   error
}

// NewVerifier fetches the PEM at pemURL and blocks until it is parsed. Fetch and parse
// failures are recorded and make every ValidSignature call return false.
func NewVerifier(ctx context.Context, fetcher transport.Fetcher, pemURL, signedText string) *Verifier {
	v := &Verifier{token: ParseCompact(signedText)}
	if fetcher == nil {
		v.code = ApplicationLevelError
		v.err = errors.WrapFatal(errors.ErrMissingConfig, "Verifier", "New", "fetcher check")
		return v
	}

	res := <-fetcher.Get(ctx, pemURL, PEMAccept)
	v.readPEM(res)
	if v.err != nil {
		slog.Default().Warn("Public key unavailable", "url", pemURL, "code", v.code.String(), "error", v.err)
	}
	return v
}

// NewVerifierWithKey creates a verifier for an already loaded key.
func NewVerifierWithKey(key *rsa.PublicKey, signedText string) *Verifier {
	return &Verifier{key: key, token: ParseCompact(signedText)}
}

func (v *Verifier) readPEM(res transport.Result) {
	if res.Code != transport.NoError {
		v.code = res.Code
		v.err = errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrKeyFetch, res.Err), "Verifier", "New", "pem download")
		return
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(res.Body)
	if err != nil {
		v.code = ApplicationLevelError
		v.err = errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrSignature, err), "Verifier", "New", "pem parse")
		return
	}
	v.key = key
}

// SetSignedText replaces the token checked by the verifier, keeping the key.
func (v *Verifier) SetSignedText(signedText string) {
	v.token = ParseCompact(signedText)
}

// ValidSignature reports whether the current token carries a valid RS256 signature.
func (v *Verifier) ValidSignature() bool {
	return v.Verify() == nil
}

// Verify returns why the current token does not verify, or nil.
func (v *Verifier) Verify() error {
	if v.err != nil {
		return v.err
	}
	if v.key == nil {
		return errors.WrapInvalid(errors.ErrSignature, "Verifier", "Verify", "key check")
	}
	if v.token.Len() != JWSSegments {
		return errors.WrapInvalid(
			fmt.Errorf("%w: expected %d segments, got %d", errors.ErrSignature, JWSSegments, v.token.Len()),
			"Verifier", "Verify", "segment count")
	}
	signing := v.token.Segment(0) + "." + v.token.Segment(1)
	if err := jwt.SigningMethodRS256.Verify(signing, v.token.Segment(2), v.key); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrSignature, err), "Verifier", "Verify", "rs256")
	}
	return nil
}

// Header returns the decoded segment 0. It implies nothing about validity.
func (v *Verifier) Header() string {
	b, _ := v.token.Decode(0)
	return string(b)
}

// Message returns the decoded segment 1. It implies nothing about validity.
func (v *Verifier) Message() string {
	b, _ := v.token.Decode(1)
	return string(b)
}

// ErrorCode returns the outcome of the key fetch.
func (v *Verifier) ErrorCode() ErrorCode {
	return v.code
}

// Sign produces a compact RS256 JWS over header and payload.
func Sign(priv *rsa.PrivateKey, header, payload []byte) (string, error) {
	signing := EncodeSegment(header) + "." + EncodeSegment(payload)
	sig, err := jwt.SigningMethodRS256.Sign(signing, priv)
	if err != nil {
		return "", errors.Wrap(err, "jose", "Sign", "rs256")
	}
	return signing + "." + sig, nil
}
