package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrDecode is returned for input that is not valid unpadded base64url, or
// whose decoded bytes are not valid UTF-8 when text was requested.
var ErrDecode = errors.New("malformed base64url segment")

// segmentEncoding is the alphabet used for every token segment.  Strict
// decoding rejects non-zero trailing bits, so each encoded form maps to
// exactly one byte sequence.
var segmentEncoding = base64.RawURLEncoding.Strict()

// EncodeSegment encodes raw bytes as base64url without padding.
func EncodeSegment(b []byte) string {
	return segmentEncoding.EncodeToString(b)
}

// DecodeSegment reverses EncodeSegment.  Trailing '=' padding is tolerated.
func DecodeSegment(s string) ([]byte, error) {
	b, err := segmentEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return b, nil
}

// EncodeURLSafe encodes the UTF-8 bytes of text.  Multi-byte characters are
// encoded byte for byte, so non-Latin claims round-trip exactly.
func EncodeURLSafe(text string) string {
	return EncodeSegment([]byte(text))
}

// DecodeURLSafe decodes a segment produced by EncodeURLSafe back to text.
func DecodeURLSafe(s string) (string, error) {
	b, err := DecodeSegment(s)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: invalid utf-8", ErrDecode)
	}
	return string(b), nil
}
