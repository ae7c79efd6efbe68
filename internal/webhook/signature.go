// Package webhook implements the signed webhook dispatcher (C10): it
// drains hand-off tasks from the webhook queue, re-reads the terminal job
// record, and POSTs a signed JSON payload to the caller's URL with a
// bounded retry schedule.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the HMAC-SHA256 signature over body || "." || timestamp,
// returning the "sha256=<hex>" header value documented for receivers.
func Sign(secret []byte, body []byte, timestamp string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it to want using a
// constant-time comparison, as receivers are expected to do.
func Verify(secret []byte, body []byte, timestamp, want string) bool {
	got := Sign(secret, body, timestamp)
	return hmac.Equal([]byte(got), []byte(want))
}
