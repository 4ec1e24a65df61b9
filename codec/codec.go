// Package codec decodes 3GPP TS 23.040 SMS PDUs. It is pure and
// allocation-light: no I/O, no shared state, and every failure is reported
// through a typed DecodeError rather than a partially-filled result.
package codec

import (
	"encoding/hex"
	"fmt"

	"github.com/smsgwd/smsgwd/udh"
)

// Direction distinguishes incoming (SMS-DELIVER) from outgoing (SMS-SUBMIT)
// traffic; it selects which TPDU variant the first octet's TP-MTI is
// expected to carry.
type Direction int

const (
	Incoming Direction = iota
	Outgoing
)

// Kind classifies why a decode failed.
type Kind int

const (
	// KindFailed means the bytes are malformed: length overruns, bad
	// semi-octet nibbles, an out-of-range timestamp, invalid UTF-16.
	KindFailed Kind = iota
	// KindNotImplemented means the bytes are well-formed but describe a
	// PDU variant this codec intentionally does not decode (status
	// reports, enhanced validity period, unsupported DCS groups).
	KindNotImplemented
)

// DecodeError reports a codec failure. The codec never returns a partially
// populated Pdu alongside a non-nil error.
type DecodeError struct {
	Kind   Kind
	Reason string
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case KindNotImplemented:
		return fmt.Sprintf("codec: not implemented: %s", e.Reason)
	default:
		return fmt.Sprintf("codec: decode failed: %s", e.Reason)
	}
}

func newDecodeError(kind Kind, format string, args ...interface{}) *DecodeError {
	return &DecodeError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Deliver is a decoded SMS-DELIVER TPDU (TS 23.040 §9.2.2.1).
type Deliver struct {
	UDHI                   bool
	ReplyPath              bool
	MoreMessages           bool
	StatusReportIndication bool
	OriginatingAddress     string
	ProtocolID             byte
	DCS                    byte
	ServiceCentreTimestamp int64 // Unix seconds, UTC
	UserDataHeader         udh.Chain
	UserData               string
}

// Submit is a decoded SMS-SUBMIT TPDU (TS 23.040 §9.2.2.2).
type Submit struct {
	UDHI                bool
	ReplyPath           bool
	RejectDuplicates    bool
	StatusReportRequest bool
	ValidityFormat      byte
	MessageReference    byte
	DestinationAddress  string
	ProtocolID          byte
	DCS                 byte
	ValidityPeriod      int64 // Unix seconds (absolute), negative seconds (relative offset), or 0 (absent)
	UserDataHeader      udh.Chain
	UserData            string
}

// Pdu is the tagged-union decode result: exactly one of Deliver or Submit
// is non-nil.
type Pdu struct {
	Deliver *Deliver
	Submit  *Submit
}

// message type bits, TS 23.040 §9.2.3.1.
const (
	mtiSMSDeliverOrReport = 0x00 // incoming: SMS-DELIVER; outgoing: SMS-DELIVER-REPORT
	mtiSMSSubmitOrReport  = 0x01 // outgoing: SMS-SUBMIT; incoming: SMS-SUBMIT-REPORT
	mtiStatusReportOrCmd  = 0x02
	mtiReserved           = 0x03
)

// first-octet bit fields, TS 23.040 §9.2.3.1.
const (
	foMTIMask  = 0x03
	foMMSOrRD  = 0x04
	foVPFMask  = 0x18
	foVPFShift = 3
	foSRIOrSRR = 0x20
	foUDHI     = 0x40
	foRP       = 0x80
)

// DecodeHex decodes a hex-encoded wire PDU. strip_smsc indicates that the
// PDU is prefixed with an SMSC address length octet, per the per-device
// modem convention §4.1 describes.
func DecodeHex(hexBytes string, direction Direction, stripSMSC bool) (Pdu, error) {
	raw, err := hex.DecodeString(hexBytes)
	if err != nil {
		return Pdu{}, newDecodeError(KindFailed, "invalid hex encoding: %v", err)
	}
	return Decode(raw, direction, stripSMSC)
}

// Decode decodes a raw PDU byte sequence.
func Decode(raw []byte, direction Direction, stripSMSC bool) (Pdu, error) {
	data := raw
	if stripSMSC {
		rest, err := skipSMSC(data)
		if err != nil {
			return Pdu{}, err
		}
		data = rest
	}

	if len(data) < 1 {
		return Pdu{}, newDecodeError(KindFailed, "empty PDU after SMSC prefix")
	}

	first := data[0]
	mti := first & foMTIMask
	data = data[1:]

	switch direction {
	case Incoming:
		switch mti {
		case mtiSMSDeliverOrReport:
			d, err := decodeDeliver(first, data)
			if err != nil {
				return Pdu{}, err
			}
			return Pdu{Deliver: d}, nil
		case mtiSMSSubmitOrReport:
			return Pdu{}, newDecodeError(KindNotImplemented, "SMS-SUBMIT-REPORT on incoming direction")
		default:
			return Pdu{}, newDecodeError(KindNotImplemented, "status report / command TPDU (MTI=%#x)", mti)
		}
	default: // Outgoing
		switch mti {
		case mtiSMSSubmitOrReport:
			s, err := decodeSubmit(first, data)
			if err != nil {
				return Pdu{}, err
			}
			return Pdu{Submit: s}, nil
		case mtiSMSDeliverOrReport:
			return Pdu{}, newDecodeError(KindNotImplemented, "SMS-DELIVER-REPORT on outgoing direction")
		default:
			return Pdu{}, newDecodeError(KindNotImplemented, "status report / command TPDU (MTI=%#x)", mti)
		}
	}
}

// skipSMSC consumes the optional SMSC address prefix: one length octet
// (count of octets that follow, 0 meaning "no SMSC, one byte consumed"),
// then that many octets (type-of-address + semi-octet digits), which are
// skipped after a length check without being decoded or kept — the SMSC
// address plays no role in the functional path.
func skipSMSC(data []byte) ([]byte, error) {
	if len(data) < 1 {
		return nil, newDecodeError(KindFailed, "missing SMSC length octet")
	}
	n := int(data[0])
	data = data[1:]
	if n == 0 {
		return data, nil
	}
	if len(data) < n {
		return nil, newDecodeError(KindFailed, "SMSC address length overruns PDU")
	}
	return data[n:], nil
}

func decodeDeliver(first byte, data []byte) (*Deliver, error) {
	d := &Deliver{
		UDHI:                   first&foUDHI != 0,
		ReplyPath:              first&foRP != 0,
		MoreMessages:           first&foMMSOrRD == 0,
		StatusReportIndication: first&foSRIOrSRR != 0,
	}

	addr, rest, err := decodeAddressField(data)
	if err != nil {
		return nil, err
	}
	d.OriginatingAddress = addr
	data = rest

	if len(data) < 2 {
		return nil, newDecodeError(KindFailed, "truncated PDU before protocol identifier / DCS")
	}
	d.ProtocolID = data[0]
	d.DCS = data[1]
	data = data[2:]

	if len(data) < 7 {
		return nil, newDecodeError(KindFailed, "truncated PDU before service centre timestamp")
	}
	scts, err := decodeTimestamp(data[:7])
	if err != nil {
		return nil, err
	}
	d.ServiceCentreTimestamp = scts
	data = data[7:]

	if len(data) < 1 {
		return nil, newDecodeError(KindFailed, "missing TP-UDL octet")
	}
	udl := int(data[0])
	data = data[1:]

	chain, text, err := decodeUserData(data, udl, d.DCS, d.UDHI)
	if err != nil {
		return nil, err
	}
	d.UserDataHeader = chain
	d.UserData = text
	return d, nil
}

func decodeSubmit(first byte, data []byte) (*Submit, error) {
	s := &Submit{
		RejectDuplicates:    first&foMMSOrRD != 0,
		ValidityFormat:      (first & foVPFMask) >> foVPFShift,
		StatusReportRequest: first&foSRIOrSRR != 0,
		UDHI:                first&foUDHI != 0,
		ReplyPath:           first&foRP != 0,
	}

	if len(data) < 1 {
		return nil, newDecodeError(KindFailed, "missing TP-Message-Reference octet")
	}
	s.MessageReference = data[0]
	data = data[1:]

	addr, rest, err := decodeAddressField(data)
	if err != nil {
		return nil, err
	}
	s.DestinationAddress = addr
	data = rest

	if len(data) < 2 {
		return nil, newDecodeError(KindFailed, "truncated PDU before protocol identifier / DCS")
	}
	s.ProtocolID = data[0]
	s.DCS = data[1]
	data = data[2:]

	vp, rest, err := decodeValidityPeriod(s.ValidityFormat, data)
	if err != nil {
		return nil, err
	}
	s.ValidityPeriod = vp
	data = rest

	if len(data) < 1 {
		return nil, newDecodeError(KindFailed, "missing TP-UDL octet")
	}
	udl := int(data[0])
	data = data[1:]

	chain, text, err := decodeUserData(data, udl, s.DCS, s.UDHI)
	if err != nil {
		return nil, err
	}
	s.UserDataHeader = chain
	s.UserData = text
	return s, nil
}
