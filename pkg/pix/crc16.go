package pix

import "fmt"

const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
)

// CRC16 computes the CRC16-CCITT-FFFF checksum used by BR Code payloads:
// polynomial 0x1021, initial register 0xFFFF, MSB first, no reflection and no final XOR.
func CRC16(data []byte) uint16 {
	reg := uint32(crcInitial)
	for _, b := range data {
		reg ^= uint32(b) << 8
		for i := 0; i < 8; i++ {
			if reg&0x8000 != 0 {
				reg = (reg << 1) ^ crcPolynomial
			} else {
				reg <<= 1
			}
			reg &= 0xFFFF
		}
	}
	return uint16(reg)
}

// Checksum returns the CRC16 of s rendered as four uppercase hex digits.
func Checksum(s string) string {
	return fmt.Sprintf("%04X", CRC16([]byte(s)))
}
