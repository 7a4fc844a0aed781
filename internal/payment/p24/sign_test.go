package p24

import (
	"strings"
	"testing"
)

func TestCanonicalJSONLeavesSlashesAndUnicodeAlone(t *testing.T) {
	payload, err := canonicalJSON([]signField{
		{"sessionId", "a/b/c"},
		{"statement", "Ogłoszenie: matematyka"},
		{"amount", int64(2900)},
	})
	if err != nil {
		t.Fatalf("canonicalJSON: %v", err)
	}

	got := string(payload)
	want := `{"sessionId":"a/b/c","statement":"Ogłoszenie: matematyka","amount":2900}`
	if got != want {
		t.Fatalf("canonical payload = %s, want %s", got, want)
	}
	if strings.Contains(got, `\/`) {
		t.Fatal("slashes must not be escaped")
	}
	if strings.Contains(got, `\u`) {
		t.Fatal("non-ASCII text must stay raw UTF-8")
	}
}

func TestSignDigestStable(t *testing.T) {
	fields := []signField{
		{"sessionId", "sess-1"},
		{"merchantId", int64(12345)},
		{"amount", int64(2900)},
		{"currency", "PLN"},
		{"crc", "secret"},
	}

	a, err := signDigest(fields)
	if err != nil {
		t.Fatalf("signDigest: %v", err)
	}
	b, err := signDigest(fields)
	if err != nil {
		t.Fatalf("signDigest: %v", err)
	}
	if a != b {
		t.Fatal("digest must be deterministic")
	}
	// SHA-384 hex is 96 characters.
	if len(a) != 96 {
		t.Fatalf("digest length = %d, want 96", len(a))
	}

	fields[4].value = "other"
	c, err := signDigest(fields)
	if err != nil {
		t.Fatalf("signDigest: %v", err)
	}
	if a == c {
		t.Fatal("digest must depend on the crc")
	}
}
