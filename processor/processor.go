// Package processor is the orchestrator sitting between the ingress,
// codec/splitter reassembly, the persistence store, and the outbound
// notifier. It owns the inbound task queue and the per-device notification
// buffers; the Splitter is fed and drained exclusively from the cleanup
// goroutine, never from an ingress goroutine, per the concurrency model.
package processor

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/smsgwd/smsgwd/codec"
	"github.com/smsgwd/smsgwd/logger"
	"github.com/smsgwd/smsgwd/notifier"
	"github.com/smsgwd/smsgwd/pkg/errors"
	"github.com/smsgwd/smsgwd/splitter"
	"github.com/smsgwd/smsgwd/store"
)

var (
	// ErrConfigMissing indicates an ingress token absent from the device table.
	ErrConfigMissing = errors.New("device token not recognized")
	// ErrMalformedRecord indicates a wire record that cannot be decoded
	// before it ever reaches the codec (e.g. invalid hex).
	ErrMalformedRecord = errors.New("malformed wire record")
)

const flushDelay = 5 * time.Second

// Device is one entry of the statically configured device table: the
// numeric tag persisted alongside every record from this device, whether
// its PDUs are SMSC-prefixed, and where its notifications are delivered.
type Device struct {
	ID         int
	SMSCPrefix bool
	Name       string
	Recipients []string
}

// DeviceTable maps an opaque ingress token to the device it authenticates.
// Built once at startup and never mutated, so it needs no locking.
type DeviceTable map[string]Device

// Record is the tagged union of inbound record kinds the ingress offers to
// Receive.
type Record interface {
	isRecord()
}

// CallRecord is one voice-call event.
type CallRecord struct {
	Timestamp int64
	Uploaded  int64
	Peer      string
	Duration  int64
	Type      string
	Raw       string
}

func (CallRecord) isRecord() {}

// PDURecord is one raw SMS PDU, hex-encoded as received from the ingress.
type PDURecord struct {
	Timestamp int64
	Uploaded  int64
	Direction codec.Direction
	Hex       string
}

func (PDURecord) isRecord() {}

// SmsRecord is a legacy, already-decoded textual SMS. Sent and Received are
// expected in nanoseconds — the ingress adapter is responsible for
// converting the legacy millisecond wire units before constructing this.
type SmsRecord struct {
	Direction codec.Direction
	Sent      int64
	Received  int64
	Peer      string
	Subject   string
	Body      string
}

func (SmsRecord) isRecord() {}

// Service is the front door the ingress and host process depend on.
type Service interface {
	// Receive persists one inbound record synchronously and enqueues its
	// deferred processing. It returns the assigned store id, 0 for an
	// already-present duplicate, or an error.
	Receive(ctx context.Context, token string, rec Record) (int64, error)

	// Initialize replays every live PDU row into the Splitter, archiving
	// whatever is already provably complete. Must run once, before the
	// ingress starts accepting traffic.
	Initialize(ctx context.Context) error

	// Cleanup drains the task queue, feeds the Splitter, archives every
	// completed group, and flushes due notification buffers. force causes
	// every buffer to flush regardless of its deadline (shutdown path).
	Cleanup(ctx context.Context, now time.Time, force bool) error

	// Occupancy reports the number of parts currently buffered in the
	// Splitter, for gauge reporting.
	Occupancy() int
}

var _ Service = (*Processor)(nil)

type taskKind int

const (
	taskCall taskKind = iota
	taskSms
	taskPDU
)

type task struct {
	kind      taskKind
	device    Device
	call      CallRecord
	sms       SmsRecord
	pduID     int64
	pduBytes  []byte
	direction codec.Direction
	arrival   int64
}

// deviceBuffer accumulates calls and messages awaiting a notification
// flush. Owned exclusively by the cleanup goroutine.
type deviceBuffer struct {
	hasDeadline bool
	deadline    time.Time
	calls       []CallRecord
	sms         []SmsRecord
}

// Processor is the concrete Service implementation.
type Processor struct {
	store    store.Store
	notifier notifier.Notifier
	logger   logger.Logger
	splitter *splitter.Splitter

	devices    DeviceTable
	deviceByID map[int]Device

	queueMu   sync.Mutex
	taskQueue []task

	// buffers and pendingSingles are touched only by Cleanup/Initialize,
	// which per the concurrency model run on a single cleanup goroutine.
	buffers        map[int]*deviceBuffer
	pendingSingles []splitter.CompletedGroup
}

// New constructs a Processor over the given store, notifier, and device
// table.
func New(st store.Store, nf notifier.Notifier, devices DeviceTable, log logger.Logger) *Processor {
	byID := make(map[int]Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}
	return &Processor{
		store:      st,
		notifier:   nf,
		logger:     log,
		splitter:   splitter.New(),
		devices:    devices,
		deviceByID: byID,
		buffers:    make(map[int]*deviceBuffer),
	}
}

// Occupancy reports the Splitter's current buffered-part count.
func (p *Processor) Occupancy() int {
	return p.splitter.Occupancy()
}

// Receive resolves token to a device, persists the record synchronously, and
// enqueues its deferred processing for the next cleanup tick.
func (p *Processor) Receive(ctx context.Context, token string, rec Record) (int64, error) {
	dev, ok := p.devices[token]
	if !ok {
		return 0, ErrConfigMissing
	}

	switch r := rec.(type) {
	case CallRecord:
		id, err := p.store.InsertCall(ctx, dev.ID, r.Timestamp, r.Uploaded, r.Peer, r.Duration, r.Type, r.Raw)
		if err != nil || id == 0 {
			return id, err
		}
		p.enqueue(task{kind: taskCall, device: dev, call: r})
		return id, nil

	case SmsRecord:
		id, err := p.store.InsertSms(ctx, store.Sms{
			Device:    dev.ID,
			Direction: r.Direction,
			Sent:      r.Sent,
			Received:  r.Received,
			Peer:      r.Peer,
			Subject:   r.Subject,
			Body:      r.Body,
		})
		if err != nil || id == 0 {
			return id, err
		}
		p.enqueue(task{kind: taskSms, device: dev, sms: r})
		return id, nil

	case PDURecord:
		raw, err := hex.DecodeString(r.Hex)
		if err != nil {
			return 0, errors.Wrap(ErrMalformedRecord, err)
		}
		id, err := p.store.InsertPdu(ctx, dev.ID, r.Timestamp, r.Uploaded, r.Direction, raw)
		if err != nil || id == 0 {
			return id, err
		}
		p.enqueue(task{kind: taskPDU, device: dev, pduID: id, pduBytes: raw, direction: r.Direction, arrival: r.Timestamp})
		return id, nil

	default:
		return 0, errors.Wrap(ErrMalformedRecord, errors.New("unknown record kind"))
	}
}

func (p *Processor) enqueue(t task) {
	p.queueMu.Lock()
	p.taskQueue = append(p.taskQueue, t)
	p.queueMu.Unlock()
}

func (p *Processor) drainQueue() []task {
	p.queueMu.Lock()
	tasks := p.taskQueue
	p.taskQueue = nil
	p.queueMu.Unlock()
	return tasks
}

// Initialize replays every live PDU row through the Splitter before the
// ingress starts accepting traffic, per the restart-recovery requirement.
func (p *Processor) Initialize(ctx context.Context) error {
	rows, err := p.store.SelectAllPdu(ctx)
	if err != nil {
		return err
	}

	for _, row := range rows {
		dev := p.deviceByID[row.Device]
		pdu, err := codec.Decode(row.Bytes, row.Direction, dev.SMSCPrefix)
		if err != nil {
			p.logger.Warn(fmt.Sprintf("restart recovery: decode failed for pdu %d: %s", row.ID, err))
			continue
		}
		part := buildPart(row.ID, row.Device, row.Direction, row.Timestamp, pdu)
		class, cg := p.splitter.Add(part)
		if class == splitter.Single {
			p.archiveOrDefer(ctx, *cg, time.Now())
		}
	}

	for _, cg := range p.splitter.Drain() {
		if err := p.archive(ctx, cg); err != nil {
			p.splitter.Requeue(cg)
		}
	}
	return nil
}

func buildPart(pduID int64, device int, direction codec.Direction, arrival int64, pdu codec.Pdu) splitter.Part {
	part := splitter.Part{
		PduID:     pduID,
		Device:    device,
		Direction: direction,
		Arrival:   arrival,
	}
	switch {
	case pdu.Deliver != nil:
		d := pdu.Deliver
		part.Peer = d.OriginatingAddress
		part.SCTS = d.ServiceCentreTimestamp
		part.Text = d.UserData
		part.PortAddressed = d.UserDataHeader.IsPortAddressed()
		if c, ok := d.UserDataHeader.Concatenation(); ok {
			part.Concatenation = &c
		}
	case pdu.Submit != nil:
		s := pdu.Submit
		part.Peer = s.DestinationAddress
		part.Text = s.UserData
		part.PortAddressed = s.UserDataHeader.IsPortAddressed()
		if c, ok := s.UserDataHeader.Concatenation(); ok {
			part.Concatenation = &c
		}
	}
	return part
}
