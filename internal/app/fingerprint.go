package app

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Client is what the transport knows about the caller.
type Client struct {
	Address   string
	UserAgent string
}

// Fingerprinter derives an anonymous, stable token from a Client.
// With a secret the token is an HMAC, so it cannot be brute-forced from the
// small space of (address, user agent) pairs without the key.
type Fingerprinter struct {
	secret []byte
}

func NewFingerprinter(secret string) *Fingerprinter {
	f := &Fingerprinter{}
	if secret != "" {
		f.secret = []byte(secret)
	}
	return f
}

// Fingerprint returns a 64-character hex token.
func (f *Fingerprinter) Fingerprint(c Client) string {
	var h hash.Hash
	if f.secret != nil {
		h = hmac.New(sha256.New, f.secret)
	} else {
		h = sha256.New()
	}

	// NUL separator keeps ("1.2.3.4", "5x") and ("1.2.3.45", "x") apart.
	h.Write([]byte(c.Address))
	h.Write([]byte{0})
	h.Write([]byte(c.UserAgent))
	return hex.EncodeToString(h.Sum(nil))
}
