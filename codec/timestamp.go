package codec

import "time"

// decodeBCDPair decodes one swapped-nibble BCD octet into its two-digit
// decimal value: the low nibble is the tens digit, the high nibble the
// units digit (TS 23.040 §9.1.2.3).
func decodeBCDPair(b byte) (int, error) {
	tens := b & 0x0f
	units := b >> 4
	if tens > 9 || units > 9 {
		return 0, newDecodeError(KindFailed, "invalid BCD octet %#02x", b)
	}
	return int(tens)*10 + int(units), nil
}

// decodeBCDPairSigned decodes a BCD octet where bit 3 of the low nibble
// carries the sign, as used by TP-SCTS's time-zone octet.
func decodeBCDPairSigned(b byte) (int, error) {
	tens := b & 0x07
	units := b >> 4
	if units > 9 {
		return 0, newDecodeError(KindFailed, "invalid BCD octet %#02x", b)
	}
	v := int(tens)*10 + int(units)
	if b&0x08 != 0 {
		v = -v
	}
	return v, nil
}

// decodeTimestamp decodes a seven-octet TP-SCTS (or TP-VP absolute-format)
// field into Unix seconds, UTC.
func decodeTimestamp(data []byte) (int64, error) {
	if len(data) < 7 {
		return 0, newDecodeError(KindFailed, "timestamp field requires 7 octets")
	}

	yy, err := decodeBCDPair(data[0])
	if err != nil {
		return 0, err
	}
	mm, err := decodeBCDPair(data[1])
	if err != nil {
		return 0, err
	}
	dd, err := decodeBCDPair(data[2])
	if err != nil {
		return 0, err
	}
	hh, err := decodeBCDPair(data[3])
	if err != nil {
		return 0, err
	}
	mi, err := decodeBCDPair(data[4])
	if err != nil {
		return 0, err
	}
	ss, err := decodeBCDPair(data[5])
	if err != nil {
		return 0, err
	}
	quarters, err := decodeBCDPairSigned(data[6])
	if err != nil {
		return 0, err
	}

	if mm < 1 || mm > 12 || dd < 1 || dd > 31 || hh > 23 || mi > 59 || ss > 59 {
		return 0, newDecodeError(KindFailed, "service centre timestamp field out of range")
	}

	year := 1900 + yy
	if yy <= 37 {
		year = 2000 + yy
	}

	loc := time.FixedZone("", quarters*15*60)
	t := time.Date(year, time.Month(mm), dd, hh, mi, ss, 0, loc)
	return t.Unix(), nil
}
