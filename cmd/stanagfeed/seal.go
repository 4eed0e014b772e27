package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt"
	"github.com/spf13/cobra"

	"github.com/c360/stanagfeed/jose"
)

type sealOptions struct {
	KeyID     string
	Algorithm string
	Key       string
	Envelope  bool
	SignKey   string
}

// sealedKey is printed when seal generates a key, in the key server response format.
type sealedKey struct {
	KeyID     string `json:"kid"`
	Algorithm string `json:"alg"`
	K         string `json:"k"`
}

func newSealCommand(root *rootOptions) *cobra.Command {
	opts := &sealOptions{}

	cmd := &cobra.Command{
		Use:   "seal <record-file|->...",
		Short: "Encrypt feature records into compact JWE tokens",
		Long: `Encrypt each record file into a compact JWE token (alg "dir", AES-CBC with
HMAC-SHA2). Tokens are printed one per line, or wrapped into an envelope with
--envelope. Without --key a fresh key is generated and printed to stderr in the
key server response format.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeal(cmd, root, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.KeyID, "kid", "", "Key id written to the token header (required)")
	flags.StringVar(&opts.Algorithm, "alg", jose.A256CBCHS512, fmt.Sprintf("Content encryption algorithm %v", jose.Algorithms()))
	flags.StringVar(&opts.Key, "key", getEnv("STANAGFEED_SEAL_KEY", ""), "Base64url composite key (env: STANAGFEED_SEAL_KEY)")
	flags.BoolVar(&opts.Envelope, "envelope", false, "Wrap the tokens in a STANAG 4778 envelope")
	flags.StringVar(&opts.SignKey, "sign-key", "", "PEM RSA private key signing the envelope as RS256 JWS")
	_ = cmd.MarkFlagRequired("kid")

	return cmd
}

func runSeal(cmd *cobra.Command, root *rootOptions, opts *sealOptions, paths []string) error {
	if opts.SignKey != "" && !opts.Envelope {
		return fmt.Errorf("--sign-key requires --envelope")
	}
	if _, ok := jose.LookupAlgorithm(opts.Algorithm); !ok {
		return fmt.Errorf("unsupported algorithm %q: must be one of %v", opts.Algorithm, jose.Algorithms())
	}

	raw, err := opts.keyMaterial(cmd)
	if err != nil {
		return err
	}
	rec, err := jose.NewKeyRecord(opts.KeyID, opts.Algorithm, raw)
	if err != nil {
		return err
	}

	tokens := make([]string, 0, len(paths))
	for _, path := range paths {
		plain, err := readInput(cmd.InOrStdin(), path)
		if err != nil {
			return err
		}
		if !json.Valid(plain) {
			root.logger.Warn("Record is not valid JSON", "path", path)
		}
		token, err := jose.Encrypt(rec, opts.KeyID, plain, nil)
		if err != nil {
			return fmt.Errorf("seal %s: %w", path, err)
		}
		tokens = append(tokens, token)
	}
	root.logger.Debug("Records sealed", "kid", opts.KeyID, "alg", opts.Algorithm, "count", len(tokens))

	w := cmd.OutOrStdout()
	if !opts.Envelope {
		for _, token := range tokens {
			if _, err := fmt.Fprintln(w, token); err != nil {
				return err
			}
		}
		return nil
	}

	env, err := buildEnvelope(tokens)
	if err != nil {
		return err
	}
	if opts.SignKey != "" {
		env, err = signEnvelope(opts.SignKey, env)
		if err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, string(env))
	return err
}

func (o *sealOptions) keyMaterial(cmd *cobra.Command) ([]byte, error) {
	if o.Key != "" {
		raw, err := base64.RawURLEncoding.DecodeString(o.Key)
		if err != nil {
			return nil, fmt.Errorf("decode --key: %w", err)
		}
		return raw, nil
	}
	raw, err := jose.GenerateKey(o.Algorithm)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(sealedKey{KeyID: o.KeyID, Algorithm: o.Algorithm, K: jose.EncodeSegment(raw)})
	if err != nil {
		return nil, err
	}
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), string(out))
	return raw, nil
}

func buildEnvelope(tokens []string) ([]byte, error) {
	objects := make([]map[string]string, len(tokens))
	for i, token := range tokens {
		objects[i] = map[string]string{"Data": token}
	}
	return json.Marshal(map[string]any{"type": "STANAG4778", "objects": objects})
}

func signEnvelope(keyPath string, env []byte) ([]byte, error) {
	pemBytes, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read --sign-key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(pemBytes)
	if err != nil {
		return nil, fmt.Errorf("parse --sign-key: %w", err)
	}
	token, err := jose.Sign(priv, []byte(`{"alg":"RS256","typ":"JOSE"}`), env)
	if err != nil {
		return nil, err
	}
	return []byte(token), nil
}
