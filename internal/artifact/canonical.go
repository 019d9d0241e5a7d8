package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalBytes serializes v as canonical JSON: sorted keys at every
// level, no insignificant whitespace, UTF-8, no HTML escaping. The value
// is round-tripped through generic maps so struct field order never leaks
// into the byte form; fingerprints stay stable across insertion orders
// and formatting choices.
func CanonicalBytes(v any) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	return marshalNoEscape(generic)
}

// Fingerprint returns the hex SHA-256 over the canonical JSON bytes of v.
func Fingerprint(v any) (string, error) {
	b, err := CanonicalBytes(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// FingerprintRaw fingerprints an already-serialized JSON document by
// canonicalizing its parsed form, so formatting differences in the
// source file never change the fingerprint.
func FingerprintRaw(data []byte) (string, error) {
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return "", fmt.Errorf("artifact: parse for fingerprint: %w", err)
	}
	b, err := marshalNoEscape(generic)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// MarshalIndentCanonical renders v as sorted-key, 2-space-indented JSON
// without HTML escaping. Used for both artifact files and the user prompt
// payload.
func MarshalIndentCanonical(v any) ([]byte, error) {
	generic, err := toGeneric(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(generic); err != nil {
		return nil, err
	}
	// json.Encoder appends a newline; keep exactly one.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func toGeneric(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("artifact: marshal: %w", err)
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, fmt.Errorf("artifact: canonicalize: %w", err)
	}
	return generic, nil
}

// marshalNoEscape encodes without the <-style escaping of <, >, &.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
