// Package testutil provides fixtures for stanagfeed tests.
//
// KeyServer is an httptest key management service that serves generated composite
// keys at /keys/{kid} and an RSA public key at /cert.pem. Sealer encrypts records
// with those keys, Envelope wraps the tokens in a STANAG 4778 envelope, and
// SignEnvelope wraps an envelope in a JWS verifiable against the served certificate.
//
//	ks := testutil.NewKeyServer(t, "challenge")
//	sealer := ks.Sealer(jose.A128CBCHS256)
//	msg := testutil.Envelope(sealer.Seal(t, "kid-1", testutil.PointRecord(1, 1.5, 2.5, nil)))
//
// MockConn is an in-memory stand-in for a NATS connection.
package testutil
