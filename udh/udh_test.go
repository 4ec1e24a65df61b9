package udh_test

import (
	"testing"

	"github.com/smsgwd/smsgwd/udh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConcatenated16Bit(t *testing.T) {
	data := []byte{udh.IEIConcatenated16Bit, 0x04, 0x00, 0x42, 0x02, 0x01}
	chain, err := udh.Parse(data)
	require.NoError(t, err)

	c, ok := chain.Concatenation()
	require.True(t, ok)
	assert.Equal(t, udh.Concatenation{Reference: 0x0042, Maximum: 2, Sequence: 1}, c)
	assert.False(t, chain.IsPortAddressed())
}

func TestParseConcatenated8BitZeroExtended(t *testing.T) {
	data := []byte{udh.IEIConcatenated8Bit, 0x03, 0x2A, 0x03, 0x02}
	chain, err := udh.Parse(data)
	require.NoError(t, err)

	c, ok := chain.Concatenation()
	require.True(t, ok)
	assert.Equal(t, udh.Concatenation{Reference: 0x2A, Maximum: 3, Sequence: 2}, c)
}

func TestSixteenBitWinsOverEightBit(t *testing.T) {
	data := []byte{
		udh.IEIConcatenated8Bit, 0x03, 0x01, 0x02, 0x01,
		udh.IEIConcatenated16Bit, 0x04, 0x00, 0x99, 0x02, 0x01,
	}
	chain, err := udh.Parse(data)
	require.NoError(t, err)

	c, ok := chain.Concatenation()
	require.True(t, ok)
	assert.Equal(t, uint16(0x99), c.Reference)
}

func TestPortAddressedDetection(t *testing.T) {
	data := []byte{udh.IEIPort16Bit, 0x04, 0x0B, 0x84, 0xC0, 0x00}
	chain, err := udh.Parse(data)
	require.NoError(t, err)

	assert.True(t, chain.IsPortAddressed())
	_, ok := chain.Concatenation()
	assert.False(t, ok)
}

func TestTruncatedHeaderIsError(t *testing.T) {
	_, err := udh.Parse([]byte{udh.IEIConcatenated16Bit, 0x04, 0x00, 0x01})
	assert.Error(t, err)
}

func TestBadConcatLengthIsError(t *testing.T) {
	_, err := udh.Parse([]byte{udh.IEIConcatenated8Bit, 0x02, 0x01, 0x02})
	assert.Error(t, err)
}

func TestOpaqueElementPreserved(t *testing.T) {
	data := []byte{0x20, 0x02, 0xAA, 0xBB}
	chain, err := udh.Parse(data)
	require.NoError(t, err)
	require.Len(t, chain.Elements, 1)
	assert.Equal(t, []byte{0xAA, 0xBB}, chain.Elements[0].Data)
}
