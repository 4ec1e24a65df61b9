package codec_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsgwd/smsgwd/codec"
)

func TestDecode_SinglePartInternationalDeliver(t *testing.T) {
	pdu, err := codec.DecodeHex(
		"040B916407281553F80000990121314195400AE8329BFD4697D9EC37",
		codec.Incoming, false,
	)
	require.NoError(t, err)
	require.NotNil(t, pdu.Deliver)
	require.Nil(t, pdu.Submit)

	d := pdu.Deliver
	assert.Equal(t, "+46708251358", d.OriginatingAddress)
	assert.Equal(t, byte(0x00), d.DCS)
	assert.Equal(t, "hellohello", d.UserData)

	want := time.Date(1999, time.February, 13, 19, 14, 59, 0, time.FixedZone("", 2*60*60)).Unix()
	assert.Equal(t, want, d.ServiceCentreTimestamp)
}

func TestDecode_SMSCPrefixStripped(t *testing.T) {
	// A zero-length SMSC prefix (one byte, value 0x00) followed by the same
	// deliver TPDU as above must decode identically to the no-SMSC case.
	pdu, err := codec.DecodeHex(
		"00040B916407281553F80000990121314195400AE8329BFD4697D9EC37",
		codec.Incoming, true,
	)
	require.NoError(t, err)
	require.NotNil(t, pdu.Deliver)
	assert.Equal(t, "hellohello", pdu.Deliver.UserData)
}

func TestDecode_UnsupportedMTI(t *testing.T) {
	// MTI=10 (status report) on incoming direction is recognized but rejected.
	_, err := codec.Decode([]byte{0x02}, codec.Incoming, false)
	var de *codec.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, codec.KindNotImplemented, de.Kind)
}

func TestDecode_TruncatedPDU(t *testing.T) {
	_, err := codec.Decode([]byte{0x00}, codec.Incoming, false)
	var de *codec.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, codec.KindFailed, de.Kind)
}

func TestDecode_AddressRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		digits string
		ton    byte
		npi    byte
		prefix string
	}{
		{"international odd-length", "46708251358", 1, 1, "+"},
		{"international even-length", "4670825135", 1, 1, "+"},
		{"national", "0708251358", 2, 1, ""},
		{"subscriber isdn", "708251358", 4, 1, "+"},
		{"subscriber national", "708251358", 4, 8, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := encodeSemiOctetDigitsForTest(t, tc.digits)
			toa := byte(0x80) | (tc.ton << 4) | tc.npi
			data := append([]byte{byte(len(tc.digits)), toa}, encoded...)
			// wrap in a minimal deliver PDU to reach address decoding through
			// the public surface: first octet (MTI=DELIVER, no flags), then
			// the address field, then PID/DCS/SCTS/UDL=0.
			raw := append([]byte{0x00}, data...)
			raw = append(raw, 0x00, 0x00) // PID, DCS
			raw = append(raw, 0x99, 0x01, 0x21, 0x31, 0x41, 0x95, 0x40)
			raw = append(raw, 0x00) // UDL=0

			pdu, err := codec.Decode(raw, codec.Incoming, false)
			require.NoError(t, err)
			assert.Equal(t, tc.prefix+tc.digits, pdu.Deliver.OriginatingAddress)
		})
	}
}

// encodeSemiOctetDigitsForTest packs digits low-nibble-first, padding an odd
// count with a 0xF fill nibble — the inverse of the codec's own
// decodeSemiOctetDigits, reimplemented here (not exported) so the test
// exercises the public Decode surface rather than internals.
func encodeSemiOctetDigitsForTest(t *testing.T, digits string) []byte {
	t.Helper()
	out := make([]byte, 0, (len(digits)+1)/2)
	for i := 0; i < len(digits); i += 2 {
		lo := digits[i] - '0'
		hi := byte(0x0f)
		if i+1 < len(digits) {
			hi = digits[i+1] - '0'
		}
		out = append(out, lo|hi<<4)
	}
	return out
}

func TestDecode_NotImplementedAddressCombination(t *testing.T) {
	toa := byte(0x80) | (3 << 4) // type-of-number 3 is reserved
	raw := []byte{0x00, 0x02, toa, 0x12}
	_, err := codec.Decode(raw, codec.Incoming, false)
	var de *codec.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, codec.KindNotImplemented, de.Kind)
}
