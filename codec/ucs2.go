package codec

import (
	"encoding/binary"
	"unicode/utf16"
)

// decodeUCS2 converts octetCount octets of UCS-2 (treated as UTF-16 BE per
// §4.1) user data into a UTF-8 string, handling surrogate pairs and
// rejecting a dangling high surrogate at the end of the payload.
func decodeUCS2(data []byte) (string, error) {
	if len(data)%2 != 0 {
		return "", newDecodeError(KindFailed, "UCS-2 payload has odd octet length")
	}

	units := make([]uint16, 0, len(data)/2)
	for i := 0; i < len(data); i += 2 {
		units = append(units, binary.BigEndian.Uint16(data[i:]))
	}

	runes := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if utf16.IsSurrogate(r) {
			if i+1 >= len(units) {
				return "", newDecodeError(KindFailed, "UCS-2 payload ends on a dangling surrogate")
			}
			i++
			decoded := utf16.DecodeRune(r, rune(units[i]))
			if decoded == 0xFFFD {
				return "", newDecodeError(KindFailed, "UCS-2 payload contains an invalid surrogate pair")
			}
			runes = append(runes, decoded)
			continue
		}
		runes = append(runes, r)
	}
	return string(runes), nil
}
