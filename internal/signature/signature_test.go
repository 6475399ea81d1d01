package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func validHeader(body []byte, timestamp, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	h.Write([]byte(timestamp))
	return fmt.Sprintf("sha256=%s, t=%s", hex.EncodeToString(h.Sum(nil)), timestamp)
}

func TestVerify_ValidSignature(t *testing.T) {
	body := []byte(`{"post":{"current":{"title":"Hi"}}}`)
	header := validHeader(body, "1700000000", "shh")

	if !Verify(body, header, "shh") {
		t.Error("Verify() = false for a valid signature, want true")
	}
}

func TestVerify_SignRoundTrip(t *testing.T) {
	body := []byte(`{"hello":"world"}`)
	header := Sign(body, time.Unix(1700000000, 0), "secret-key")

	if !Verify(body, header, "secret-key") {
		t.Error("Verify() rejected a header produced by Sign()")
	}
}

func TestVerify_MutatedDigest(t *testing.T) {
	body := []byte(`{}`)
	header := validHeader(body, "1700000000", "shh")

	// Flip one hex character of the digest.
	mutated := []byte(header)
	if mutated[7] == 'a' {
		mutated[7] = 'b'
	} else {
		mutated[7] = 'a'
	}

	if Verify(body, string(mutated), "shh") {
		t.Error("Verify() = true for a mutated digest, want false")
	}
}

func TestVerify_Failures(t *testing.T) {
	body := []byte(`{}`)

	tests := []struct {
		name   string
		header string
		secret string
	}{
		{
			name:   "empty header",
			header: "",
			secret: "shh",
		},
		{
			name:   "empty secret",
			header: validHeader(body, "1700000000", "shh"),
			secret: "",
		},
		{
			name:   "missing timestamp",
			header: "sha256=deadbeef",
			secret: "shh",
		},
		{
			name:   "missing digest",
			header: "t=1700000000",
			secret: "shh",
		},
		{
			name:   "malformed hex",
			header: "sha256=not-hex-at-all, t=1700000000",
			secret: "shh",
		},
		{
			name:   "wrong digest",
			header: "sha256=deadbeef,t=1000000000",
			secret: "x",
		},
		{
			name:   "garbage header",
			header: "sha256",
			secret: "shh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Verify(body, tt.header, tt.secret) {
				t.Error("Verify() = true, want false")
			}
		})
	}
}

func TestVerify_IgnoresUnrecognizedKeys(t *testing.T) {
	body := []byte(`{"a":1}`)
	header := validHeader(body, "1700000000", "shh") + ", kid=abc"

	if !Verify(body, header, "shh") {
		t.Error("Verify() = false when header carries extra keys, want true")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte(`{"a":1}`)
	header := validHeader(body, "1700000000", "right")

	if Verify(body, header, "wrong") {
		t.Error("Verify() = true with the wrong secret, want false")
	}
}
