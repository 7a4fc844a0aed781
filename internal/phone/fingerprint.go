package phone

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/nyaruka/phonenumbers"
)

// Fingerprint is a one-way, keyed identity of a phone number. Key is what we
// store and look up; the number itself is never persisted beyond the display
// form the advertiser chose to publish anyway.
type Fingerprint struct {
	Key     string
	Display string
	Valid   bool
}

// Hasher derives fingerprints under a fixed regional numbering plan. The HMAC
// key prevents offline dictionary enumeration of fingerprints against guessed
// numbers, so it must be secret in production.
type Hasher struct {
	secret []byte
	region string
}

func NewHasher(secret, region string) *Hasher {
	return &Hasher{secret: []byte(secret), region: region}
}

// Fingerprint parses raw under the configured numbering plan and returns the
// keyed digest of its E.164 form plus a national-format display string.
// Every spelling of the same number ("+48 500 600 700", "500-600-700")
// yields the same key. Invalid input yields the zero value, never an error.
func (h *Hasher) Fingerprint(raw string) Fingerprint {
	num, err := phonenumbers.Parse(raw, h.region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return Fingerprint{}
	}

	canonical := phonenumbers.Format(num, phonenumbers.E164)
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(canonical))

	return Fingerprint{
		Key:     hex.EncodeToString(mac.Sum(nil)),
		Display: phonenumbers.Format(num, phonenumbers.NATIONAL),
		Valid:   true,
	}
}
