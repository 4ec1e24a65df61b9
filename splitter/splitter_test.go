package splitter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smsgwd/smsgwd/codec"
	"github.com/smsgwd/smsgwd/splitter"
	"github.com/smsgwd/smsgwd/udh"
)

const baseSCTS int64 = 1000000000

func concatPart(id int64, arrival int64, scts int64, seq, max uint8, text string) splitter.Part {
	return splitter.Part{
		PduID:     id,
		Device:    1,
		Direction: codec.Incoming,
		Arrival:   arrival,
		Peer:      "+15551234567",
		SCTS:      scts,
		Text:      text,
		Concatenation: &udh.Concatenation{
			Reference: 0x42,
			Maximum:   max,
			Sequence:  seq,
		},
	}
}

func TestSplitter_SinglePartEmitsImmediately(t *testing.T) {
	s := splitter.New()
	class, cg := s.Add(splitter.Part{
		PduID:     1,
		Device:    1,
		Direction: codec.Incoming,
		Arrival:   100,
		Peer:      "+46708251358",
		SCTS:      500,
		Text:      "hellohello",
	})
	require.Equal(t, splitter.Single, class)
	require.NotNil(t, cg)
	assert.Equal(t, "hellohello", cg.Body)
	assert.Equal(t, int64(500)*int64(time.Second), cg.Sent)
	assert.Equal(t, []int64{1}, cg.ContributingPduIDs)
	assert.Empty(t, s.Drain())
}

func TestSplitter_TwoPartConcatenation(t *testing.T) {
	s := splitter.New()
	class1, cg1 := s.Add(concatPart(1, 1000, baseSCTS, 1, 2, "Hello, "))
	require.Equal(t, splitter.Buffered, class1)
	require.Nil(t, cg1)

	class2, cg2 := s.Add(concatPart(2, 2000, baseSCTS+10, 2, 2, "world!"))
	require.Equal(t, splitter.Buffered, class2)
	require.Nil(t, cg2)

	completed := s.Drain()
	require.Len(t, completed, 1)
	cg := completed[0]
	assert.Equal(t, "Hello, world!", cg.Body)
	assert.Equal(t, baseSCTS*int64(time.Second), cg.Sent)
	assert.Equal(t, int64(2000), cg.Received)
	assert.Equal(t, []int64{1, 2}, cg.ContributingPduIDs)
	assert.Empty(t, cg.DuplicatePduIDs)

	// the group is gone: a second Drain yields nothing more.
	assert.Empty(t, s.Drain())
}

func TestSplitter_OutOfOrderArrival(t *testing.T) {
	s := splitter.New()
	s.Add(concatPart(2, 2000, baseSCTS+10, 2, 2, "world!"))
	s.Add(concatPart(1, 1000, baseSCTS, 1, 2, "Hello, "))

	completed := s.Drain()
	require.Len(t, completed, 1)
	assert.Equal(t, "Hello, world!", completed[0].Body)
	assert.Equal(t, []int64{1, 2}, completed[0].ContributingPduIDs)
}

func TestSplitter_DuplicatePart(t *testing.T) {
	s := splitter.New()
	s.Add(concatPart(1, 1000, baseSCTS, 1, 2, "Hello, "))
	s.Add(concatPart(2, 2000, baseSCTS+10, 2, 2, "world!"))
	// a re-delivered part 2, identical text, 3s later.
	s.Add(concatPart(3, 2000+3*int64(time.Second), baseSCTS+13, 2, 2, "world!"))

	completed := s.Drain()
	require.Len(t, completed, 1)
	cg := completed[0]
	assert.Equal(t, "Hello, world!", cg.Body)
	assert.Equal(t, []int64{1, 2}, cg.ContributingPduIDs)
	assert.Equal(t, []int64{3}, cg.DuplicatePduIDs)
}

func TestSplitter_AmbiguousDuplicateNeverCompletes(t *testing.T) {
	s := splitter.New()
	s.Add(concatPart(1, 1000, baseSCTS, 1, 2, "Hello, "))
	s.Add(concatPart(2, 2000, baseSCTS+10, 2, 2, "world!"))
	// same sequence, different text: ambiguous, not collapsed.
	s.Add(concatPart(3, 2000+1000, baseSCTS+11, 2, 2, "WORLD!"))

	assert.Empty(t, s.Drain())
}

func TestSplitter_MmsPartNeverBuffered(t *testing.T) {
	s := splitter.New()
	class, cg := s.Add(splitter.Part{
		PduID:         9,
		Device:        1,
		Direction:     codec.Incoming,
		Peer:          "+15551234567",
		PortAddressed: true,
		Concatenation: &udh.Concatenation{Reference: 1, Maximum: 2, Sequence: 1},
	})
	assert.Equal(t, splitter.Mms, class)
	assert.Nil(t, cg)
	assert.Empty(t, s.Drain())
}

func TestSplitter_WindowIsolation(t *testing.T) {
	s := splitter.New()
	s.Add(concatPart(1, 1000, baseSCTS, 1, 2, "a"))
	// 301s later: outside the 300s sending window, opens a new group.
	s.Add(concatPart(2, 2000, baseSCTS+301, 1, 2, "b"))

	assert.Empty(t, s.Drain())
}

func TestSplitter_OrderingAnyPermutation(t *testing.T) {
	parts := []splitter.Part{
		concatPart(1, 1000, baseSCTS, 1, 3, "one-"),
		concatPart(2, 2000, baseSCTS+1, 2, 3, "two-"),
		concatPart(3, 3000, baseSCTS+2, 3, 3, "three"),
	}
	perms := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}, {0, 2, 1}}
	for _, perm := range perms {
		s := splitter.New()
		for _, i := range perm {
			s.Add(parts[i])
		}
		completed := s.Drain()
		require.Len(t, completed, 1)
		assert.Equal(t, "one-two-three", completed[0].Body)
	}
}

func TestSplitter_Idempotence(t *testing.T) {
	s := splitter.New()
	part := concatPart(1, 1000, baseSCTS, 1, 1, "hello")
	s.Add(part)
	completed := s.Drain()
	require.Len(t, completed, 1)
	assert.Equal(t, "hello", completed[0].Body)

	// offering the same PDU id again (as a fresh part, simulating the
	// store's own dedup having already been bypassed) must not duplicate
	// body content within a single completed group.
	s.Add(part)
	completed2 := s.Drain()
	require.Len(t, completed2, 1)
	assert.Equal(t, "hello", completed2[0].Body)
}

func TestSplitter_SubmitSymmetry(t *testing.T) {
	s := splitter.New()
	part1 := splitter.Part{
		PduID: 1, Device: 2, Direction: codec.Outgoing, Arrival: 1000,
		Peer: "+15551234567", Text: "Hello, ",
		Concatenation: &udh.Concatenation{Reference: 7, Maximum: 2, Sequence: 1},
	}
	part2 := splitter.Part{
		PduID: 2, Device: 2, Direction: codec.Outgoing, Arrival: 2000,
		Peer: "+15551234567", Text: "world!",
		Concatenation: &udh.Concatenation{Reference: 7, Maximum: 2, Sequence: 2},
	}
	s.Add(part1)
	s.Add(part2)

	completed := s.Drain()
	require.Len(t, completed, 1)
	assert.Equal(t, "Hello, world!", completed[0].Body)
	assert.Equal(t, int64(0), completed[0].Sent)
}
