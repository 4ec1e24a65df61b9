package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/smsgwd/smsgwd/codec"
	"github.com/smsgwd/smsgwd/splitter"
	"github.com/smsgwd/smsgwd/store"
)

const chunkSize = 50

// Cleanup is the periodic (1 Hz) and shutdown (force=true) tick. It drains
// the task queue, feeds every PDU task to the Splitter, archives whatever is
// now complete, and flushes any device notification buffer past its
// deadline.
func (p *Processor) Cleanup(ctx context.Context, now time.Time, force bool) error {
	tasks := p.drainQueue()

	var pduTasks []task
	for _, t := range tasks {
		switch t.kind {
		case taskCall:
			p.bufferCall(t.device.ID, t.call, now)
		case taskSms:
			p.bufferSms(t.device.ID, t.sms, now)
		case taskPDU:
			pduTasks = append(pduTasks, t)
		}
	}

	var singles []splitter.CompletedGroup
	for _, t := range pduTasks {
		pdu, err := codec.Decode(t.pduBytes, t.direction, t.device.SMSCPrefix)
		if err != nil {
			p.logger.Warn(fmt.Sprintf("decode failed for pdu %d (device %d): %s", t.pduID, t.device.ID, err))
			continue
		}

		part := buildPart(t.pduID, t.device.ID, t.direction, t.arrival, pdu)
		class, cg := p.splitter.Add(part)
		switch class {
		case splitter.Single:
			singles = append(singles, *cg)
		case splitter.Mms:
			p.logger.Info(fmt.Sprintf("pdu %d is port-addressed, skipped", t.pduID))
		case splitter.Buffered:
		}
	}

	drained := p.splitter.Drain()

	// Completed groups that never made it into the Splitter's bucket state
	// (Single classification) are retried from Processor's own list on
	// archive failure, since there is no bucket entry for Requeue to
	// restore.
	toArchive := append(p.pendingSingles, singles...)
	p.pendingSingles = nil
	for _, cg := range toArchive {
		p.archiveOrDefer(ctx, cg, now)
	}

	for _, cg := range drained {
		if err := p.archive(ctx, cg); err != nil {
			p.logger.Warn(fmt.Sprintf("archive transaction failed, requeued for next tick: %s", err))
			p.splitter.Requeue(cg)
			continue
		}
		p.bufferAssembledSms(cg, now)
	}

	p.flushDue(ctx, now, force)
	return nil
}

func (p *Processor) archive(ctx context.Context, cg splitter.CompletedGroup) error {
	return p.store.ArchiveTransaction(ctx, store.ArchiveTransaction{
		Sms: store.Sms{
			Device:    cg.Device,
			Direction: cg.Direction,
			Sent:      cg.Sent,
			Received:  cg.Received,
			Peer:      cg.Peer,
			Body:      cg.Body,
		},
		ContributingPduIDs: cg.ContributingPduIDs,
		DuplicatePduIDs:    cg.DuplicatePduIDs,
	})
}

// archiveOrDefer archives a Single-origin completed group, keeping it in
// Processor's own retry list on failure since it was never buffered in the
// Splitter to begin with.
func (p *Processor) archiveOrDefer(ctx context.Context, cg splitter.CompletedGroup, now time.Time) {
	if err := p.archive(ctx, cg); err != nil {
		p.logger.Warn(fmt.Sprintf("archive transaction failed, will retry next tick: %s", err))
		p.pendingSingles = append(p.pendingSingles, cg)
		return
	}
	p.bufferAssembledSms(cg, now)
}

func (p *Processor) bufferAssembledSms(cg splitter.CompletedGroup, now time.Time) {
	p.bufferSms(cg.Device, SmsRecord{
		Direction: cg.Direction,
		Sent:      cg.Sent,
		Received:  cg.Received,
		Peer:      cg.Peer,
		Body:      cg.Body,
	}, now)
}

func (p *Processor) bufferFor(deviceID int, now time.Time) *deviceBuffer {
	buf, ok := p.buffers[deviceID]
	if !ok {
		buf = &deviceBuffer{}
		p.buffers[deviceID] = buf
	}
	if !buf.hasDeadline {
		buf.hasDeadline = true
		buf.deadline = now.Add(flushDelay)
	}
	return buf
}

func (p *Processor) bufferCall(deviceID int, rec CallRecord, now time.Time) {
	buf := p.bufferFor(deviceID, now)
	buf.calls = append(buf.calls, rec)
}

func (p *Processor) bufferSms(deviceID int, rec SmsRecord, now time.Time) {
	buf := p.bufferFor(deviceID, now)
	buf.sms = append(buf.sms, rec)
}

// flushDue renders and hands off every device buffer whose deadline has
// elapsed, or every buffer unconditionally when force is set (shutdown).
func (p *Processor) flushDue(ctx context.Context, now time.Time, force bool) {
	for id, buf := range p.buffers {
		if !buf.hasDeadline {
			continue
		}
		if !force && now.Before(buf.deadline) {
			continue
		}
		p.flush(ctx, id, buf)
		delete(p.buffers, id)
	}
}

func (p *Processor) flush(ctx context.Context, deviceID int, buf *deviceBuffer) {
	dev := p.deviceByID[deviceID]
	callChunks := chunkCalls(buf.calls, chunkSize)
	smsChunks := chunkSms(buf.sms, chunkSize)

	n := len(callChunks)
	if len(smsChunks) > n {
		n = len(smsChunks)
	}

	for i := 0; i < n; i++ {
		var calls []CallRecord
		if i < len(callChunks) {
			calls = callChunks[i]
		}
		var msgs []SmsRecord
		if i < len(smsChunks) {
			msgs = smsChunks[i]
		}

		body, err := renderNotification(dev.Name, calls, msgs)
		if err != nil {
			p.logger.Error(fmt.Sprintf("rendering notification for device %d failed: %s", deviceID, err))
			continue
		}
		if err := p.notifier.Notify(ctx, dev.Recipients, dev.Name, body); err != nil {
			p.logger.Warn(fmt.Sprintf("notify failed for device %d: %s", deviceID, err))
		}
	}
}

func chunkCalls(calls []CallRecord, size int) [][]CallRecord {
	var chunks [][]CallRecord
	for len(calls) > 0 {
		n := size
		if n > len(calls) {
			n = len(calls)
		}
		chunks = append(chunks, calls[:n])
		calls = calls[n:]
	}
	return chunks
}

func chunkSms(sms []SmsRecord, size int) [][]SmsRecord {
	var chunks [][]SmsRecord
	for len(sms) > 0 {
		n := size
		if n > len(sms) {
			n = len(sms)
		}
		chunks = append(chunks, sms[:n])
		sms = sms[n:]
	}
	return chunks
}
