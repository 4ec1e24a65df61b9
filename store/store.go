// Package store defines the persistence port the processor depends on: a
// small, storage-engine-agnostic contract for the four primitive
// operations described in the specification, plus the atomic archive
// transaction that moves assembled messages (and the PDU rows backing
// them) out of the live table. A relational engine backs it (see
// store/postgres), but nothing above this package depends on that choice.
package store

import (
	"context"

	"github.com/smsgwd/smsgwd/codec"
)

// PduRow is one persisted raw PDU record.
type PduRow struct {
	ID        int64
	Device    int
	Timestamp int64 // arrival wall-clock, ns
	Uploaded  int64 // server receipt wall-clock, ns
	Direction codec.Direction
	Bytes     []byte
}

// CallRow is one persisted voice-call record.
type CallRow struct {
	ID        int64
	Device    int
	Timestamp int64
	Uploaded  int64
	Peer      string
	Duration  int64
	Type      string
	Raw       string
}

// Sms is one logical, fully assembled message ready for archival.
type Sms struct {
	Device    int
	Direction codec.Direction
	Sent      int64
	Received  int64
	Peer      string
	Subject   string
	Body      string
}

// ArchiveTransaction is the input to the five-step atomic move described in
// §4.4: insert the logical message, delete the contributing live PDU rows,
// move them (and the duplicates) into the archive table tagged with the
// new SMS id.
type ArchiveTransaction struct {
	Sms                Sms
	ContributingPduIDs []int64
	DuplicatePduIDs    []int64
}

// Store is the persistence port the processor relies on. Implementations
// must collapse unique-constraint violations on the insert operations to a
// zero id rather than surfacing an error — a duplicate insert is a
// successful no-op, reported as id 0 with a nil error.
type Store interface {
	InsertPdu(ctx context.Context, device int, timestampNs, uploadedNs int64, direction codec.Direction, bytes []byte) (int64, error)
	InsertSms(ctx context.Context, sms Sms) (int64, error)
	InsertCall(ctx context.Context, device int, timestampNs, uploadedNs int64, peer string, durationNs int64, callType, raw string) (int64, error)
	SelectAllPdu(ctx context.Context) ([]PduRow, error)
	ArchiveTransaction(ctx context.Context, tx ArchiveTransaction) error
}
