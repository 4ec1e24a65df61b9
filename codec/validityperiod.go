package codec

// TP-VPF values, TS 23.040 §9.2.3.3.
const (
	vpfNotPresent byte = 0x00
	vpfEnhanced   byte = 0x01
	vpfRelative   byte = 0x02
	vpfAbsolute   byte = 0x03
)

// decodeValidityPeriod consumes the TP-VP field (if any) indicated by vpf
// and returns the validity as Unix seconds (absolute form), a non-positive
// relative offset in seconds (relative form), or 0 (not present).
func decodeValidityPeriod(vpf byte, data []byte) (int64, []byte, error) {
	switch vpf {
	case vpfNotPresent:
		return 0, data, nil

	case vpfRelative:
		if len(data) < 1 {
			return 0, nil, newDecodeError(KindFailed, "missing relative TP-VP octet")
		}
		offset := relativeValidityOffset(data[0])
		return offset, data[1:], nil

	case vpfAbsolute:
		if len(data) < 7 {
			return 0, nil, newDecodeError(KindFailed, "truncated absolute TP-VP field")
		}
		abs, err := decodeTimestamp(data[:7])
		if err != nil {
			return 0, nil, err
		}
		return abs, data[7:], nil

	case vpfEnhanced:
		return 0, nil, newDecodeError(KindNotImplemented, "enhanced-format TP-VP")

	default:
		return 0, nil, newDecodeError(KindFailed, "invalid TP-VPF value %#x", vpf)
	}
}

// relativeValidityOffset converts a relative TP-VP octet into a
// non-positive second offset, per the table in TS 23.040 §9.2.3.12.1.
func relativeValidityOffset(vp byte) int64 {
	var minutes int64
	switch {
	case vp <= 143:
		minutes = (int64(vp) + 1) * 5
	case vp <= 167:
		minutes = 12*60 + (int64(vp)-143)*30
	case vp <= 196:
		minutes = (int64(vp) - 166) * 24 * 60
	default:
		minutes = (int64(vp) - 192) * 7 * 24 * 60
	}
	return -minutes * 60
}
