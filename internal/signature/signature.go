// Package signature verifies Ghost webhook signatures.
//
// Ghost signs each webhook delivery with an HMAC-SHA256 over the raw
// request body concatenated with a unix timestamp, and sends the result
// in the X-Ghost-Signature header:
//
//	X-Ghost-Signature: sha256=<hex digest>, t=<unix seconds>
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Header is the request header carrying the Ghost webhook signature.
const Header = "X-Ghost-Signature"

// Verify reports whether header is a valid signature for rawBody under
// secret. It never panics: a missing header, empty secret, malformed
// header, or undecodable hex all yield false.
//
// The expected MAC is HMAC-SHA256 over rawBody followed by the timestamp
// string, with no separator. Comparison is constant-time.
func Verify(rawBody []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}

	var hexDigest, timestamp string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "sha256":
			hexDigest = strings.TrimSpace(value)
		case "t":
			timestamp = strings.TrimSpace(value)
		}
	}
	if hexDigest == "" || timestamp == "" {
		return false
	}

	provided, err := hex.DecodeString(hexDigest)
	if err != nil {
		return false
	}

	return hmac.Equal(provided, mac(rawBody, timestamp, secret))
}

// Sign produces a header value that Verify accepts for rawBody under
// secret at the given time. Used by the relayctl sign command and tests.
func Sign(rawBody []byte, t time.Time, secret string) string {
	timestamp := strconv.FormatInt(t.Unix(), 10)
	digest := hex.EncodeToString(mac(rawBody, timestamp, secret))
	return fmt.Sprintf("sha256=%s, t=%s", digest, timestamp)
}

func mac(rawBody []byte, timestamp, secret string) []byte {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(rawBody)
	h.Write([]byte(timestamp))
	return h.Sum(nil)
}
