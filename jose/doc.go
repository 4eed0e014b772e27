// Package jose implements the compact JWE decryption and JWS verification used to open
// STANAG 4778 records.
//
// # Decryption
//
// A Decryptor is reused across the records of one envelope. SetEncryptedText parses the
// protected header, and when its kid has not been seen yet, fetches the key from
//
//	{kmsUrl}/keys/{kid}?key_verifier={challenge}
//
// and blocks until the fetch completes. Message then authenticates and decrypts the
// token using the composite AES-CBC + HMAC-SHA2 algorithms of RFC 7518 §5.2. The tag is
// always checked before any decryption takes place.
//
// Neither call panics on bad input. Callers inspect the returned error, or ErrorCode and
// ErrorMessage, after every call:
//
//	if err := dec.SetEncryptedText(ctx, token); err != nil {
//	    return err
//	}
//	plain, err := dec.Message()
//
// # Verification
//
// A Verifier fetches an RSA public key in PEM form once and checks RS256 signatures over
// the literal "header.payload" text of compact JWS tokens. Header and Message decode the
// segments without implying validity; callers must call ValidSignature.
package jose
