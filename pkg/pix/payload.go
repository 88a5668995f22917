// Package pix builds BR Code ("Pix copia e cola") payloads: EMV-style TLV fields
// terminated by a CRC16-CCITT-FFFF checksum field.
package pix

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Field tags, in the order they are emitted.
const (
	TagPayloadFormat       = "00"
	TagMerchantAccount     = "26"
	TagTransactionGroup    = "27"
	TagMerchantCategory    = "52"
	TagCurrency            = "53"
	TagAmount              = "54"
	TagCountry             = "58"
	TagMerchantName        = "59"
	TagMerchantCity        = "60"
	TagCRC                 = "63"
	subTagGUI              = "00"
	subTagKey              = "01"
	subTagTxID             = "01"
	payloadFormatIndicator = "01"
	pixGUI                 = "BR.GOV.BCB.PIX"
	merchantCategoryCode   = "0000"
	currencyBRL            = "986"
	countryBR              = "BR"
)

// Field budgets defined by the BR Code layout.
const (
	MaxMerchantName = 25
	MaxMerchantCity = 15
	MaxKey          = 77
	MaxTxID         = 25
)

// crcPrefix is the checksum tag and its fixed length, included in the CRC input.
const crcPrefix = TagCRC + "04"

var (
	ErrMissingKey       = errors.New("pix: key is required")
	ErrInvalidAmount    = errors.New("pix: amount must not be negative")
	ErrInvalidTxID      = errors.New("pix: txid must be 1-25 alphanumeric characters")
	ErrChecksumMismatch = errors.New("pix: checksum mismatch")
)

// Payload holds the inputs of a single BR Code. It is never persisted: the same
// inputs always rebuild the same string.
type Payload struct {
	Key          string // Pix key of the receiving account
	AmountCents  int64
	MerchantName string
	MerchantCity string
	TxID         string // order id, echoed back by the gateway
}

// Build renders p as a complete payload string ending with its checksum field.
// Merchant name and city are folded to ASCII and truncated to their budgets;
// every other oversize field is an error.
func Build(p Payload) (string, error) {
	if p.Key == "" {
		return "", ErrMissingKey
	}
	if len(p.Key) > MaxKey {
		return "", fmt.Errorf("%w: key has %d bytes, max %d", ErrFieldOverflow, len(p.Key), MaxKey)
	}
	if !validTxID(p.TxID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTxID, p.TxID)
	}
	if p.AmountCents < 0 {
		return "", ErrInvalidAmount
	}

	account, err := group(TagMerchantAccount,
		field{subTagGUI, pixGUI},
		field{subTagKey, p.Key},
	)
	if err != nil {
		return "", err
	}
	txGroup, err := group(TagTransactionGroup, field{subTagTxID, p.TxID})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(mustTLV(TagPayloadFormat, payloadFormatIndicator))
	b.WriteString(account)
	b.WriteString(txGroup)
	b.WriteString(mustTLV(TagMerchantCategory, merchantCategoryCode))
	b.WriteString(mustTLV(TagCurrency, currencyBRL))
	if p.AmountCents > 0 {
		b.WriteString(mustTLV(TagAmount, FormatAmount(p.AmountCents)))
	}
	b.WriteString(mustTLV(TagCountry, countryBR))
	b.WriteString(mustTLV(TagMerchantName, truncate(asciiFold(p.MerchantName), MaxMerchantName)))
	b.WriteString(mustTLV(TagMerchantCity, truncate(asciiFold(p.MerchantCity), MaxMerchantCity)))

	b.WriteString(crcPrefix)
	body := b.String()
	return body + Checksum(body), nil
}

// FormatAmount renders integer cents as a fixed two-decimal string with a dot
// separator and no grouping, e.g. 150050 -> "1500.50".
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// Verify checks that payload ends with a checksum field matching the bytes before it.
func Verify(payload string) error {
	n := len(payload)
	if n < len(crcPrefix)+4 || payload[n-8:n-4] != crcPrefix {
		return fmt.Errorf("%w: missing checksum field", ErrChecksumMismatch)
	}
	want := payload[n-4:]
	got := Checksum(payload[:n-4])
	if got != want {
		return fmt.Errorf("%w: got %s, payload carries %s", ErrChecksumMismatch, got, want)
	}
	return nil
}

type field struct {
	tag, value string
}

// group encodes nested fields and wraps them in an outer TLV.
func group(tag string, fields ...field) (string, error) {
	var inner strings.Builder
	for _, f := range fields {
		enc, err := EncodeTLV(f.tag, f.value)
		if err != nil {
			return "", err
		}
		inner.WriteString(enc)
	}
	return EncodeTLV(tag, inner.String())
}

func validTxID(s string) bool {
	if s == "" || len(s) > MaxTxID {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}
