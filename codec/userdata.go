package codec

import "github.com/smsgwd/smsgwd/udh"

// DCS coding-group bits (bits 3:2 of a general-group DCS byte, §4.1).
const (
	dcsGroupGSM7  byte = 0x00
	dcsGroupBin8  byte = 0x01
	dcsGroupUCS2  byte = 0x02
	dcsGroupRsvd  byte = 0x03
	dcsGroupShift      = 2
	dcsGroupMask       = 0x03
)

// decodeUserData dispatches on the data coding scheme to decode the
// TP-UD payload (already past the TP-UDL octet) into an optional
// user-data-header chain and the decoded UTF-8 text.
func decodeUserData(data []byte, udl int, dcs byte, udhi bool) (udh.Chain, string, error) {
	if dcs&0xf0 != 0 {
		return udh.Chain{}, "", newDecodeError(KindNotImplemented, "DCS high nibble set: %#02x", dcs)
	}

	switch (dcs >> dcsGroupShift) & dcsGroupMask {
	case dcsGroupGSM7:
		octets := (udl*7 + 7) / 8
		if len(data) < octets {
			return udh.Chain{}, "", newDecodeError(KindFailed, "7-bit user data shorter than TP-UDL declares")
		}
		return decode7BitUserData(data[:octets], udl, udhi)

	case dcsGroupBin8:
		if len(data) < udl {
			return udh.Chain{}, "", newDecodeError(KindFailed, "8-bit user data shorter than TP-UDL declares")
		}
		return decodeBinaryUserData(data[:udl], udhi)

	case dcsGroupUCS2:
		if len(data) < udl {
			return udh.Chain{}, "", newDecodeError(KindFailed, "UCS-2 user data shorter than TP-UDL declares")
		}
		return decodeUCS2UserData(data[:udl], udhi)

	default:
		return udh.Chain{}, "", newDecodeError(KindNotImplemented, "unsupported DCS coding group %d", dcsGroupRsvd)
	}
}

// parseOptionalUDH splits the leading user-data-header (UDHL octet plus L
// raw octets) off data when udhi is set, returning the parsed chain, the
// UDH's declared octet length (0 when udhi is false), and the remaining
// bytes.
func parseOptionalUDH(data []byte, udhi bool) (udh.Chain, int, []byte, error) {
	if !udhi {
		return udh.Chain{}, 0, data, nil
	}
	if len(data) < 1 {
		return udh.Chain{}, 0, nil, newDecodeError(KindFailed, "missing user-data-header length octet")
	}
	l := int(data[0])
	if len(data) < 1+l {
		return udh.Chain{}, 0, nil, newDecodeError(KindFailed, "user-data-header length overruns user data")
	}
	chain, err := udh.Parse(data[1 : 1+l])
	if err != nil {
		return udh.Chain{}, 0, nil, newDecodeError(KindFailed, "user-data-header: %v", err)
	}
	return chain, l, data[1+l:], nil
}

// decode7BitUserData decodes a GSM-7 payload. octets is exactly the
// ceil(7*udl/8)-byte packed septet stream (UDH included, byte-aligned at
// its front per §4.1). The UDH occupies whole octets, but the text must
// start on the next SEPTET boundary, which generally falls inside the byte
// immediately following the UDH rather than at its byte-aligned edge — the
// encoder pads with fillBits zero bits to make up the difference, and rest
// (the byte-sliced remainder after the UDH) still carries those fillBits at
// its front.
func decode7BitUserData(octets []byte, udl int, udhi bool) (udh.Chain, string, error) {
	chain, l, rest, err := parseOptionalUDH(octets, udhi)
	if err != nil {
		return udh.Chain{}, "", err
	}

	skipSeptets := 0
	fillBits := 0
	if udhi {
		headerBits := 8 * (l + 1)
		skipSeptets = (headerBits + 6) / 7
		fillBits = skipSeptets*7 - headerBits
	}
	textSeptets := udl - skipSeptets
	if textSeptets < 0 {
		return udh.Chain{}, "", newDecodeError(KindFailed, "user-data-header consumes more septets than TP-UDL declares")
	}

	text, err := unpack7Bit(rest, textSeptets, fillBits)
	if err != nil {
		return udh.Chain{}, "", err
	}
	return chain, text, nil
}

// decodeBinaryUserData decodes an 8-bit payload: copied verbatim after any
// UDH prefix is stripped.
func decodeBinaryUserData(octets []byte, udhi bool) (udh.Chain, string, error) {
	chain, _, rest, err := parseOptionalUDH(octets, udhi)
	if err != nil {
		return udh.Chain{}, "", err
	}
	return chain, string(rest), nil
}

// decodeUCS2UserData decodes a UCS-2 (UTF-16 BE) payload after any UDH
// prefix is stripped.
func decodeUCS2UserData(octets []byte, udhi bool) (udh.Chain, string, error) {
	chain, _, rest, err := parseOptionalUDH(octets, udhi)
	if err != nil {
		return udh.Chain{}, "", err
	}
	text, err := decodeUCS2(rest)
	if err != nil {
		return udh.Chain{}, "", err
	}
	return chain, text, nil
}
