// Package signature verifies catalog webhook bodies.
//
// The catalog signs each webhook body with HMAC-SHA256 keyed by the shared
// webhook secret and sends the standard base64 encoding of the MAC in the
// X-Exl-Signature header.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
)

// Sign returns the base64 HMAC-SHA256 of body keyed by secret.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify reports whether received is the signature of body under secret.
// It returns false when secret or received is empty, and compares in
// constant time.
func Verify(body []byte, secret, received string) bool {
	if secret == "" || received == "" {
		return false
	}
	expected := Sign(body, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}
