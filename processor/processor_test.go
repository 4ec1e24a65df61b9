package processor_test

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsgwd/smsgwd/codec"
	"github.com/smsgwd/smsgwd/logger"
	"github.com/smsgwd/smsgwd/processor"
	"github.com/smsgwd/smsgwd/store"
)

// fakeStore is an in-memory Store for exercising the processor without a
// database, mirroring the teacher's own preference for small hand-rolled
// fakes over a mocking framework in domain-level tests.
type fakeStore struct {
	mu       sync.Mutex
	nextID   int64
	pdu      map[int64]store.PduRow
	seenPdu  map[string]int64
	sms      []store.Sms
	calls    []store.CallRow
	archived []store.ArchiveTransaction
	failArchive bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pdu:     make(map[int64]store.PduRow),
		seenPdu: make(map[string]int64),
	}
}

func (s *fakeStore) InsertPdu(_ context.Context, device int, ts, uploaded int64, dir codec.Direction, bytes []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d|%d|%x", device, dir, bytes)
	if _, ok := s.seenPdu[key]; ok {
		return 0, nil
	}
	s.nextID++
	id := s.nextID
	s.seenPdu[key] = id
	s.pdu[id] = store.PduRow{ID: id, Device: device, Timestamp: ts, Uploaded: uploaded, Direction: dir, Bytes: bytes}
	return id, nil
}

func (s *fakeStore) InsertSms(_ context.Context, sms store.Sms) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.sms = append(s.sms, sms)
	return s.nextID, nil
}

func (s *fakeStore) InsertCall(_ context.Context, device int, ts, uploaded int64, peer string, duration int64, callType, raw string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.calls = append(s.calls, store.CallRow{ID: s.nextID, Device: device, Timestamp: ts, Uploaded: uploaded, Peer: peer, Duration: duration, Type: callType, Raw: raw})
	return s.nextID, nil
}

func (s *fakeStore) SelectAllPdu(_ context.Context) ([]store.PduRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []store.PduRow
	for _, r := range s.pdu {
		rows = append(rows, r)
	}
	return rows, nil
}

func (s *fakeStore) ArchiveTransaction(_ context.Context, tx store.ArchiveTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failArchive {
		return assert.AnError
	}
	for _, id := range tx.ContributingPduIDs {
		delete(s.pdu, id)
	}
	for _, id := range tx.DuplicatePduIDs {
		delete(s.pdu, id)
	}
	s.archived = append(s.archived, tx)
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *fakeNotifier) Notify(_ context.Context, _ []string, recipient, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, recipient)
	return nil
}

func testLogger() logger.Logger {
	return logger.New(nopWriter{})
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testDevices() processor.DeviceTable {
	return processor.DeviceTable{
		"tok-1": {ID: 1, SMSCPrefix: false, Name: "van-1", Recipients: []string{"ops@example.com"}},
	}
}

const singlePartHex = "040B916407281553F80000990121314195400AE8329BFD4697D9EC37"

// twoPartHex1 and twoPartHex2 are a two-part concatenated SMS-DELIVER PDU
// pair: originating address +15551234567, a UDHL=5 concatenation IE
// (reference 0x2A, 2 parts), GSM 7-bit text. Built by hand to exercise the
// UDH septet-realignment rule (the UDH occupies whole octets, but its
// following text must still begin on a septet boundary, which for a
// 6-octet header falls 1 bit past the octet boundary).
const (
	twoPartHex1 = "400B915155214365F70000240101000000002E0500032A0201A8E8F41C949E83E061391DF47697416F33280CA2DFDF2078584E07B5CBF379F85C7601"
	twoPartHex2 = "400B915155214365F7000024010100000100300500032A0202A8E8F41C949E83E061391D44BFBF59A0F1DB3D66D7C969F71944479741EDF27C1E3E975D"
)

func TestProcessor_ReceiveUnknownTokenIsConfigMissing(t *testing.T) {
	p := processor.New(newFakeStore(), &fakeNotifier{}, testDevices(), testLogger())
	_, err := p.Receive(context.Background(), "nope", processor.PDURecord{Hex: singlePartHex, Direction: codec.Incoming})
	assert.ErrorIs(t, err, processor.ErrConfigMissing)
}

func TestProcessor_SinglePartArchivesOnCleanup(t *testing.T) {
	st := newFakeStore()
	nf := &fakeNotifier{}
	p := processor.New(st, nf, testDevices(), testLogger())

	id, err := p.Receive(context.Background(), "tok-1", processor.PDURecord{
		Timestamp: 1000, Uploaded: 1000, Direction: codec.Incoming, Hex: singlePartHex,
	})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	require.NoError(t, p.Cleanup(context.Background(), time.Unix(0, 1000), false))
	require.Len(t, st.archived, 1)
	assert.Equal(t, "hellohellohellohello"[:10], st.archived[0].Sms.Body)
	assert.Empty(t, st.pdu)
}

func TestProcessor_DuplicateReceiveIsNoop(t *testing.T) {
	st := newFakeStore()
	p := processor.New(st, &fakeNotifier{}, testDevices(), testLogger())

	rec := processor.PDURecord{Timestamp: 1000, Uploaded: 1000, Direction: codec.Incoming, Hex: singlePartHex}
	id1, err := p.Receive(context.Background(), "tok-1", rec)
	require.NoError(t, err)
	id2, err := p.Receive(context.Background(), "tok-1", rec)
	require.NoError(t, err)
	assert.Greater(t, id1, int64(0))
	assert.Equal(t, int64(0), id2)
}

func TestProcessor_RestartRecoveryCompletesOnInitialize(t *testing.T) {
	st := newFakeStore()
	// Pre-populate the store with one part-1-of-2 as if from a prior run.
	st.nextID = 1
	st.pdu[1] = store.PduRow{ID: 1, Device: 1, Timestamp: 1000, Direction: codec.Incoming, Bytes: mustHex(t, twoPartHex1)}

	p := processor.New(st, &fakeNotifier{}, testDevices(), testLogger())
	require.NoError(t, p.Initialize(context.Background()))
	assert.Len(t, st.pdu, 1, "part 1 stays buffered after initialize")

	id, err := p.Receive(context.Background(), "tok-1", processor.PDURecord{
		Timestamp: 2000, Uploaded: 2000, Direction: codec.Incoming, Hex: twoPartHex2,
	})
	require.NoError(t, err)
	require.Greater(t, id, int64(0))

	require.NoError(t, p.Cleanup(context.Background(), time.Unix(0, 2000), false))
	require.Len(t, st.archived, 1)
	assert.Empty(t, st.pdu)
}

func TestProcessor_NotificationChunking(t *testing.T) {
	st := newFakeStore()
	nf := &fakeNotifier{}
	p := processor.New(st, nf, testDevices(), testLogger())

	for i := 0; i < 120; i++ {
		_, err := p.Receive(context.Background(), "tok-1", processor.CallRecord{
			Timestamp: int64(i), Uploaded: int64(i), Peer: "+15551234567", Duration: 10, Type: "Incoming",
		})
		require.NoError(t, err)
	}

	now := time.Unix(0, 0).Add(10 * time.Second)
	require.NoError(t, p.Cleanup(context.Background(), now, true))
	assert.Len(t, nf.calls, 3)
}

func TestProcessor_DecodeFailureRetainsRow(t *testing.T) {
	st := newFakeStore()
	p := processor.New(st, &fakeNotifier{}, testDevices(), testLogger())

	_, err := p.Receive(context.Background(), "tok-1", processor.PDURecord{
		Timestamp: 1000, Direction: codec.Incoming, Hex: "00",
	})
	require.NoError(t, err)

	require.NoError(t, p.Cleanup(context.Background(), time.Unix(0, 1000), false))
	assert.Len(t, st.pdu, 1, "malformed pdu stays in the live table")
	assert.Empty(t, st.archived)
}

func mustHex(t *testing.T, h string) []byte {
	t.Helper()
	b, err := hex.DecodeString(h)
	require.NoError(t, err)
	return b
}
