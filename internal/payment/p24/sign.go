package p24

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

type signField struct {
	key   string
	value any
}

// canonicalJSON serializes sign fields as a JSON object with the exact byte
// layout Przelewy24's own signer produces: fixed field order, forward slashes
// left unescaped and non-ASCII text as raw UTF-8. Any deviation breaks
// signature matching for payloads containing slashes or Polish diacritics.
func canonicalJSON(fields []signField) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(f.key)
		buf.WriteString(`":`)
		value, err := encodeValue(f.value)
		if err != nil {
			return nil, fmt.Errorf("encode sign field %s: %w", f.key, err)
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// signDigest is the provider-mandated SHA-384 over the canonical JSON, hex.
func signDigest(fields []signField) (string, error) {
	payload, err := canonicalJSON(fields)
	if err != nil {
		return "", err
	}
	sum := sha512.Sum384(payload)
	return hex.EncodeToString(sum[:]), nil
}
