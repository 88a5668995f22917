package pix

import (
	"errors"
	"fmt"
)

// MaxValueLength is the largest value a TLV field can carry, bounded by its
// two-digit decimal length prefix.
const MaxValueLength = 99

var (
	// ErrInvalidTag is returned when a tag is not exactly two ASCII digits.
	ErrInvalidTag = errors.New("pix: tag must be two digits")
	// ErrFieldOverflow is returned when a value does not fit in a two-digit length.
	ErrFieldOverflow = errors.New("pix: field value exceeds 99 bytes")
)

// EncodeTLV encodes a tag/value pair as tag + zero-padded two-digit length + value.
// Lengths count bytes; callers are expected to pass ASCII values.
func EncodeTLV(tag, value string) (string, error) {
	if len(tag) != 2 || !isDigit(tag[0]) || !isDigit(tag[1]) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTag, tag)
	}
	if len(value) > MaxValueLength {
		return "", fmt.Errorf("%w: tag %s has %d bytes", ErrFieldOverflow, tag, len(value))
	}
	return fmt.Sprintf("%s%02d%s", tag, len(value), value), nil
}

// mustTLV is reserved for fields whose tag and value are package constants.
func mustTLV(tag, value string) string {
	s, err := EncodeTLV(tag, value)
	if err != nil {
		panic(err)
	}
	return s
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
