package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"

	"github.com/c360/stanagfeed/expression"
	"github.com/c360/stanagfeed/featurestore"
	"github.com/c360/stanagfeed/ingest"
	"github.com/c360/stanagfeed/schema"
)

type ingestOptions struct {
	BBox      string
	Filter    string
	IDs       []int64
	Limit     int
	Publish   bool
	Summary   bool
	Challenge string
}

// ingestOutput is what the ingest command prints.
type ingestOutput struct {
	Report   *ingest.Report         `json:"report"`
	Store    *storeSummary          `json:"store,omitempty"`
	Features []featurestore.Feature `json:"features,omitempty"`
}

type storeSummary struct {
	Name         string         `json:"name"`
	StorageType  string         `json:"storage_type"`
	CRS          string         `json:"crs"`
	Valid        bool           `json:"valid"`
	FeatureCount int            `json:"feature_count"`
	WKBType      string         `json:"wkb_type,omitempty"`
	Extent       string         `json:"extent"`
	Fields       []schema.Field `json:"fields"`
	Errors       []string       `json:"errors,omitempty"`
}

func summarize(s *featurestore.Store) *storeSummary {
	return &storeSummary{
		Name:         s.Name(),
		StorageType:  s.StorageType(),
		CRS:          s.CRS(),
		Valid:        s.IsValid(),
		FeatureCount: s.FeatureCount(),
		WKBType:      string(s.WKBType()),
		Extent:       s.Extent().String(),
		Fields:       s.Fields(),
		Errors:       s.Errors(),
	}
}

func newIngestCommand(root *rootOptions) *cobra.Command {
	opts := &ingestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest <envelope-file|->",
		Short: "Parse an envelope and print the resulting features",
		Long: `Parse a STANAG 4778 JSON envelope, decrypting every object with keys fetched
from the configured key server, and print the run report and the selected features.

The envelope is verified as an RS256 JWS first when signature.pem_url is configured.
Features can be selected by id, bounding box and attribute filter.`,
		Example: `  stanagfeed ingest envelope.json --bbox 0,0,10,10
  stanagfeed ingest - --filter '{"logic":"and","conditions":[{"field":"name","operator":"eq","value":"a"}]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.BBox, "bbox", "", "Only features intersecting minx,miny,maxx,maxy")
	flags.StringVar(&opts.Filter, "filter", "", "Attribute filter as a JSON logical expression")
	flags.Int64SliceVar(&opts.IDs, "id", nil, "Only these feature ids, in order")
	flags.IntVar(&opts.Limit, "limit", 0, "Maximum number of features to print, 0 for all")
	flags.BoolVar(&opts.Publish, "publish", false, "Publish the features to the configured NATS subject")
	flags.BoolVar(&opts.Summary, "summary", false, "Print the report and store summary without features")
	flags.StringVar(&opts.Challenge, "key-challenge", "", "Key verifier overriding key_server.key_challenge")

	return cmd
}

func runIngest(cmd *cobra.Command, root *rootOptions, opts *ingestOptions, path string) error {
	req, err := opts.request()
	if err != nil {
		return err
	}
	data, err := readInput(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	data = bytes.TrimSpace(data)

	var extra []ingest.Option
	if opts.Publish {
		if root.cfg.NATS.URL == "" {
			return fmt.Errorf("--publish requires nats.url")
		}
		pub, conn, err := root.connectPublisher(cmd.Context(), nil, "ingest")
		if err != nil {
			return err
		}
		defer conn.Close()
		extra = append(extra, ingest.WithPublisher(pub))
	}

	p, err := root.newPipeline("ingest", extra...)
	if err != nil {
		return err
	}
	defer p.Close()

	auth := root.cfg.Auth()
	if opts.Challenge != "" {
		auth.KeyChallenge = opts.Challenge
	}

	store, report := p.Parse(cmd.Context(), data, auth)
	out := ingestOutput{Report: report}
	if store != nil {
		defer store.Close()
		out.Store = summarize(store)
		if store.IsValid() && !opts.Summary {
			it := store.GetFeatures(req)
			defer it.Close()
			out.Features = it.Collect()
			if err := it.Err(); err != nil {
				return fmt.Errorf("select features: %w", err)
			}
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if !report.Valid {
		return fmt.Errorf("envelope rejected: %s", report.EnvelopeError)
	}
	return nil
}

func (o *ingestOptions) request() (featurestore.Request, error) {
	req := featurestore.Request{FeatureIDs: o.IDs, Limit: o.Limit}
	if o.Limit < 0 {
		return req, fmt.Errorf("--limit must not be negative")
	}
	if o.BBox != "" {
		b, err := parseBBox(o.BBox)
		if err != nil {
			return req, err
		}
		req.FilterRect = &b
	}
	if o.Filter != "" {
		var expr expression.LogicalExpression
		if err := json.Unmarshal([]byte(o.Filter), &expr); err != nil {
			return req, fmt.Errorf("parse --filter: %w", err)
		}
		req.Filter = &expr
	}
	return req, nil
}

// parseBBox reads "minx,miny,maxx,maxy".
func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("--bbox needs minx,miny,maxx,maxy, got %q", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("--bbox value %q: %w", p, err)
		}
		v[i] = f
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("--bbox minimum exceeds maximum in %q", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}
