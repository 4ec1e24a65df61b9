package codec

// gsm7Default is the GSM 7-bit default alphabet (TS 23.038 §6.2.1), indexed
// by septet value. Index 0x00 is '@' and must never be confused with NUL.
var gsm7Default = [128]rune{
	'@', '£', '$', '¥', 'è', 'é', 'ù', 'ì', 'ò', 'Ç', '\n', 'Ø', 'ø', '\r', 'Å', 'å',
	'Δ', '_', 'Φ', 'Γ', 'Λ', 'Ω', 'Π', 'Ψ', 'Σ', 'Θ', 'Ξ', '\x1b', 'Æ', 'æ', 'ß', 'É',
	' ', '!', '"', '#', '¤', '%', '&', '\'', '(', ')', '*', '+', ',', '-', '.', '/',
	'0', '1', '2', '3', '4', '5', '6', '7', '8', '9', ':', ';', '<', '=', '>', '?',
	'¡', 'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H', 'I', 'J', 'K', 'L', 'M', 'N', 'O',
	'P', 'Q', 'R', 'S', 'T', 'U', 'V', 'W', 'X', 'Y', 'Z', 'Ä', 'Ö', 'Ñ', 'Ü', '§',
	'¿', 'a', 'b', 'c', 'd', 'e', 'f', 'g', 'h', 'i', 'j', 'k', 'l', 'm', 'n', 'o',
	'p', 'q', 'r', 's', 't', 'u', 'v', 'w', 'x', 'y', 'z', 'ä', 'ö', 'ñ', 'ü', 'à',
}

// gsm7Ext maps the extension table reached via the ESC (0x1B) escape septet
// (TS 23.038 §6.2.1.1). Septets not present here follow an ESC and decode to
// '?' (unknown extension).
var gsm7Ext = map[byte]rune{
	0x0a: '\f',
	0x14: '^',
	0x1b: ' ', // double escape: the default-alphabet space
	0x28: '{',
	0x29: '}',
	0x2f: '\\',
	0x3c: '[',
	0x3d: '~',
	0x3e: ']',
	0x40: '|',
	0x65: '€',
}

const gsm7Esc = 0x1b

// gsm7DefaultRev and gsm7ExtRev are the reverse (encode) tables, built once
// and used only by the pack side of the codec's round-trip property tests.
var (
	gsm7DefaultRev = func() map[rune]byte {
		m := make(map[rune]byte, len(gsm7Default))
		for i, r := range gsm7Default {
			m[r] = byte(i)
		}
		return m
	}()
	gsm7ExtRev = func() map[rune]byte {
		m := make(map[rune]byte, len(gsm7Ext))
		for k, v := range gsm7Ext {
			if v != ' ' { // the double-escape space is not a round-trippable encode target
				m[v] = k
			}
		}
		return m
	}()
)

// septetsToText maps a sequence of already-unpacked septets through the GSM
// default alphabet, honoring the ESC extension escape. An extension septet
// with no mapping decodes as '?' rather than failing: TS 23.038 leaves
// unassigned extension codes to be treated this way by a conforming reader.
func septetsToText(septets []byte) string {
	out := make([]rune, 0, len(septets))
	escaped := false
	for _, s := range septets {
		if escaped {
			escaped = false
			if r, ok := gsm7Ext[s]; ok {
				out = append(out, r)
				continue
			}
			out = append(out, '?')
			continue
		}
		if s == gsm7Esc {
			escaped = true
			continue
		}
		out = append(out, gsm7Default[s&0x7f])
	}
	if escaped {
		// a dangling ESC with nothing following decodes as the plain space
		// the double-escape sequence would have produced.
		out = append(out, ' ')
	}
	return string(out)
}

// packText encodes a string of GSM default-alphabet (plus extension)
// characters into unpacked septets. It is used only by this package's
// round-trip property tests; the production decode path never packs.
func packText(s string) ([]byte, bool) {
	septets := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := gsm7DefaultRev[r]; ok {
			septets = append(septets, b)
			continue
		}
		if b, ok := gsm7ExtRev[r]; ok {
			septets = append(septets, gsm7Esc, b)
			continue
		}
		return nil, false
	}
	return septets, true
}

// unpack7Bit unpacks count tightly-packed septets (LSB-first within each
// octet, TS 23.038 §6.1.2.1) out of data. fillBits is the number of padding
// bits (0..6) at the very front of data before the septet stream starts —
// non-zero when a preceding UDH does not end on a septet boundary, so the
// encoder inserted fill bits to realign the text to the next septet. It
// returns exactly count septets — no phantom trailing septet synthesized
// from leftover padding bits.
func unpack7Bit(data []byte, count int, fillBits int) (string, error) {
	needBits := count*7 + fillBits
	if len(data)*8 < needBits {
		return "", newDecodeError(KindFailed, "7-bit payload shorter than declared septet count")
	}

	var acc uint32
	var accBits uint
	bi := 0
	fill := func(want uint) error {
		for accBits < want {
			if bi >= len(data) {
				return newDecodeError(KindFailed, "7-bit payload truncated mid-septet")
			}
			acc |= uint32(data[bi]) << accBits
			accBits += 8
			bi++
		}
		return nil
	}

	if fillBits > 0 {
		if err := fill(uint(fillBits)); err != nil {
			return "", err
		}
		acc >>= uint(fillBits)
		accBits -= uint(fillBits)
	}

	septets := make([]byte, 0, count)
	for len(septets) < count {
		if err := fill(7); err != nil {
			return "", err
		}
		septets = append(septets, byte(acc&0x7f))
		acc >>= 7
		accBits -= 7
	}

	return septetsToText(septets), nil
}

// pack7Bit packs septets tightly (LSB-first within each octet), the inverse
// of unpack7Bit's bit layout. fillBits pads the front with that many zero
// bits before the first septet, mirroring the encoder-side realignment
// unpack7Bit's fillBits parameter undoes. Used only by round-trip property
// tests.
func pack7Bit(septets []byte, fillBits int) []byte {
	out := make([]byte, 0, (len(septets)*7+7+fillBits)/8)
	var acc uint32
	var accBits uint
	if fillBits > 0 {
		accBits = uint(fillBits)
	}
	for _, s := range septets {
		acc |= uint32(s&0x7f) << accBits
		accBits += 7
		for accBits >= 8 {
			out = append(out, byte(acc&0xff))
			acc >>= 8
			accBits -= 8
		}
	}
	if accBits > 0 {
		out = append(out, byte(acc&0xff))
	}
	return out
}
