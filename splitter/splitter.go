// Package splitter is the concatenation and deduplication reassembly
// engine. It has no I/O and no shared state beyond the buckets it owns: it
// is driven entirely by its caller feeding Add and, once a batch of parts
// has been offered, calling Drain to harvest whichever candidate groups
// have become provably complete. A Splitter value is not safe for
// concurrent use — per the concurrency model, it is owned by a single
// cleanup goroutine.
package splitter

import (
	"sort"
	"strings"
	"time"

	"github.com/smsgwd/smsgwd/codec"
	"github.com/smsgwd/smsgwd/udh"
)

const (
	// sendingWindow bounds how far apart two parts' TP-SCTS values may be
	// and still be considered part of the same sending event.
	sendingWindow = 300 * time.Second
	// receptionWindow bounds how far apart two arrivals of an
	// identical-text, identical-sequence part may be and still be treated
	// as the same transmission retried, rather than a genuine ambiguity.
	receptionWindow = 24 * time.Hour
)

// Classification is the outcome of offering one decoded part to the
// Splitter.
type Classification int

const (
	// Single means the part carried no concatenation coordinates and was
	// emitted immediately as a one-part logical message — the returned
	// CompletedGroup is populated.
	Single Classification = iota
	// Buffered means the part was filed into a candidate group pending its
	// peers; nothing is emitted yet.
	Buffered
	// Mms means the part is port-addressed (WAP/MMS) and was discarded
	// without being buffered or emitted.
	Mms
)

func (c Classification) String() string {
	switch c {
	case Single:
		return "single"
	case Buffered:
		return "buffered"
	case Mms:
		return "mms"
	default:
		return "unknown"
	}
}

// Part is one decoded PDU offered to the Splitter. The caller (Processor)
// is responsible for decoding the PDU and resolving its user-data-header
// before construction; the Splitter itself never touches codec or udh
// decoding logic.
type Part struct {
	PduID         int64
	Device        int
	Direction     codec.Direction
	Arrival       int64 // ns, the PDU record's arrival timestamp
	Peer          string
	SCTS          int64 // Unix seconds UTC; meaningful for Incoming only
	Text          string
	Concatenation *udh.Concatenation // nil when the part is not concatenated
	PortAddressed bool
}

// CompletedGroup is a fully assembled logical SMS, ready for the archive
// transaction. Parts and DuplicateParts are retained (not just their PDU
// ids) so that a failed archive transaction can be requeued exactly via
// Splitter.Requeue rather than lost.
type CompletedGroup struct {
	Device             int
	Direction          codec.Direction
	Peer               string
	Body               string
	Sent               int64 // ns; zero when the direction carries no TP-SCTS
	Received           int64 // ns
	ContributingPduIDs []int64
	DuplicatePduIDs    []int64
	Parts              []Part
	DuplicateParts     []Part
}

// Requeue re-offers every part of a previously drained CompletedGroup back
// into the Splitter, exactly reconstructing its pending state. Callers use
// this when the archive transaction for cg fails: the specification
// requires a failed transaction to leave the group in the Splitter for the
// next cleanup tick to retry, rather than discarding the assembled parts.
func (s *Splitter) Requeue(cg CompletedGroup) {
	for _, p := range cg.Parts {
		s.Add(p)
	}
	for _, p := range cg.DuplicateParts {
		s.Add(p)
	}
}

type bucketKey struct {
	device    int
	direction codec.Direction
	reference uint16
}

// group is a candidate message: parts believed to belong to the same
// logical SMS by virtue of sharing an address and a sending-time window.
type group struct {
	peer       string
	anchorSCTS int64
	hasSCTS    bool
	maximum    uint8
	parts      []Part
}

// Splitter owns reassembly state, partitioned per device, direction, and
// concatenation reference.
type Splitter struct {
	buckets map[bucketKey]*bucket
}

type bucket struct {
	groups []*group
}

// New returns an empty Splitter.
func New() *Splitter {
	return &Splitter{buckets: make(map[bucketKey]*bucket)}
}

// Add files one decoded part into the reassembly state and classifies it.
func (s *Splitter) Add(p Part) (Classification, *CompletedGroup) {
	if p.PortAddressed {
		return Mms, nil
	}

	if p.Concatenation == nil {
		cg := &CompletedGroup{
			Device:             p.Device,
			Direction:          p.Direction,
			Peer:               p.Peer,
			Body:               p.Text,
			Received:           p.Arrival,
			ContributingPduIDs: []int64{p.PduID},
		}
		if p.Direction == codec.Incoming {
			cg.Sent = p.SCTS * int64(time.Second)
		}
		return Single, cg
	}

	key := bucketKey{device: p.Device, direction: p.Direction, reference: p.Concatenation.Reference}
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{}
		s.buckets[key] = b
	}

	target := firstFitGroup(b, p)
	if target == nil {
		target = &group{peer: p.Peer, maximum: p.Concatenation.Maximum}
		if p.Direction == codec.Incoming {
			target.anchorSCTS = p.SCTS
			target.hasSCTS = true
		}
		b.groups = append(b.groups, target)
	}
	target.parts = append(target.parts, p)

	return Buffered, nil
}

// firstFitGroup returns the first existing group in bucket-insertion order
// that p matches: same peer address, and — for Incoming, where TP-SCTS is
// meaningful — within sendingWindow of the group's anchor timestamp.
// Outgoing parts carry no TP-SCTS, so only the address match applies.
func firstFitGroup(b *bucket, p Part) *group {
	for _, g := range b.groups {
		if g.peer != p.Peer {
			continue
		}
		if p.Direction == codec.Incoming {
			if absDuration(p.SCTS-g.anchorSCTS) > int64(sendingWindow/time.Second) {
				continue
			}
		}
		return g
	}
	return nil
}

// Drain returns every candidate group that is now provably complete,
// removing it (and, if now empty, its bucket) from the Splitter's state.
// Incomplete groups are left untouched for the next Drain cycle.
func (s *Splitter) Drain() []CompletedGroup {
	var completed []CompletedGroup
	for key, b := range s.buckets {
		var remaining []*group
		for _, g := range b.groups {
			if cg, ok := tryComplete(g); ok {
				completed = append(completed, cg)
				continue
			}
			remaining = append(remaining, g)
		}
		if len(remaining) == 0 {
			delete(s.buckets, key)
		} else {
			b.groups = remaining
		}
	}
	return completed
}

// tryComplete sorts g's parts by (sequence, arrival), collapses adjacent
// duplicates, and reports whether the surviving parts form a complete
// 1..maximum sequence. It never mutates g: callers only discard g once this
// returns true, so an incomplete group is re-evaluated from its original,
// uncollapsed part list on the next Drain.
func tryComplete(g *group) (CompletedGroup, bool) {
	sorted := append([]Part(nil), g.parts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Concatenation.Sequence, sorted[j].Concatenation.Sequence
		if si != sj {
			return si < sj
		}
		return sorted[i].Arrival < sorted[j].Arrival
	})

	var kept, dup []Part
	for _, p := range sorted {
		if n := len(kept); n > 0 {
			last := kept[n-1]
			if last.Concatenation.Sequence == p.Concatenation.Sequence &&
				last.Text == p.Text &&
				absDuration(p.Arrival-last.Arrival) <= int64(receptionWindow) {
				dup = append(dup, p)
				continue
			}
		}
		kept = append(kept, p)
	}

	if len(kept) == 0 || uint8(len(kept)) != g.maximum {
		return CompletedGroup{}, false
	}
	for i, p := range kept {
		if int(p.Concatenation.Sequence) != i+1 {
			return CompletedGroup{}, false
		}
	}

	cg := CompletedGroup{
		Device:         kept[0].Device,
		Direction:      kept[0].Direction,
		Peer:           g.peer,
		Parts:          kept,
		DuplicateParts: dup,
	}
	var body strings.Builder
	var received int64
	for _, p := range kept {
		body.WriteString(p.Text)
		cg.ContributingPduIDs = append(cg.ContributingPduIDs, p.PduID)
		if p.Arrival > received {
			received = p.Arrival
		}
	}
	cg.Body = body.String()
	cg.Received = received
	for _, p := range dup {
		cg.DuplicatePduIDs = append(cg.DuplicatePduIDs, p.PduID)
	}

	if g.hasSCTS {
		min := kept[0].SCTS
		for _, p := range kept[1:] {
			if p.SCTS < min {
				min = p.SCTS
			}
		}
		cg.Sent = min * int64(time.Second)
	}

	return cg, true
}

// Occupancy returns the total number of parts currently held across every
// candidate group still in the Splitter (including any that are complete
// but not yet harvested by Drain), for gauge reporting.
func (s *Splitter) Occupancy() int {
	n := 0
	for _, b := range s.buckets {
		for _, g := range b.groups {
			n += len(g.parts)
		}
	}
	return n
}

func absDuration(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
