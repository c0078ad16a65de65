// Package signing computes and verifies the HMAC-SHA256 signature used
// on both sides of a delivery: the ingestion handler verifies it against
// the exact bytes it is about to persist, and the delivery engine
// recomputes it against those same persisted bytes before every outbound
// POST. Using one function on both sides rules out the class of bug
// where one path signs raw bytes and the other signs a reserialized copy.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// Sign returns the hex-encoded HMAC-SHA256 of body under secret, without
// the "sha256=" prefix.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header returns the full X-Hub-Signature-256 header value.
func Header(secret, body []byte) string {
	return signaturePrefix + Sign(secret, body)
}

// Verify reports whether signature (with or without the "sha256="
// prefix) matches body under secret, compared in constant time.
func Verify(secret, body []byte, signature string) bool {
	received := strings.TrimPrefix(signature, signaturePrefix)
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(received))
}
