package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/spf13/cobra"

	"github.com/c360/stanagfeed/jose"
)

type verifyOptions struct {
	PEMURL  string
	PEMFile string
	Payload bool
}

type verifyOutput struct {
	Valid  bool   `json:"valid"`
	Header string `json:"header,omitempty"`
	Error  string `json:"error,omitempty"`
}

func newVerifyCommand(root *rootOptions) *cobra.Command {
	opts := &verifyOptions{}

	cmd := &cobra.Command{
		Use:   "verify <jws-file|->",
		Short: "Check the RS256 signature of a compact JWS",
		Long: `Check the RS256 signature of a compact JWS against a PEM public key, fetched from
--pem-url (default signature.pem_url) or read from --pem-file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.PEMURL, "pem-url", "", "URL of the PEM public key")
	flags.StringVar(&opts.PEMFile, "pem-file", "", "Local PEM public key")
	flags.BoolVar(&opts.Payload, "payload", false, "Print the decoded payload instead of the result")
	cmd.MarkFlagsMutuallyExclusive("pem-url", "pem-file")

	return cmd
}

func runVerify(cmd *cobra.Command, root *rootOptions, opts *verifyOptions, path string) error {
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	signed := strings.TrimSpace(string(data))

	var v *jose.Verifier
	if opts.PEMFile != "" {
		pemBytes, err := os.ReadFile(opts.PEMFile)
		if err != nil {
			return fmt.Errorf("read --pem-file: %w", err)
		}
		key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes)
		if err != nil {
			return fmt.Errorf("parse --pem-file: %w", err)
		}
		v = jose.NewVerifierWithKey(key, signed)
	} else {
		pemURL := opts.PEMURL
		if pemURL == "" {
			pemURL = root.cfg.Signature.PEMURL
		}
		if pemURL == "" {
			return fmt.Errorf("no public key: set --pem-url, --pem-file or signature.pem_url")
		}
		client, err := root.fetcher()
		if err != nil {
			return err
		}
		v = jose.NewVerifier(cmd.Context(), client, pemURL, signed)
	}

	verr := v.Verify()
	if verr == nil && opts.Payload {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), v.Message())
		return err
	}

	out := verifyOutput{Valid: verr == nil, Header: v.Header()}
	if verr != nil {
		out.Error = verr.Error()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if verr != nil {
		root.logger.Warn("Signature rejected", "code", v.ErrorCode().String(), "error", verr)
		return fmt.Errorf("signature invalid")
	}
	return nil
}
