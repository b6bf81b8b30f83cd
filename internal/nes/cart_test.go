package nes

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildINES(t *testing.T, prgBanks, chrBanks uint8, flags6, flags7 uint8) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write([]byte{'N', 'E', 'S', 0x1a})
	buf.WriteByte(prgBanks)
	buf.WriteByte(chrBanks)
	buf.WriteByte(flags6)
	buf.WriteByte(flags7)
	buf.Write(make([]byte, 8)) // flags 8-15 padding
	buf.Write(make([]byte, int(prgBanks)*prgBankSizeBytes))
	buf.Write(make([]byte, int(chrBanks)*chrBankSizeBytes))
	return buf.Bytes()
}

func TestNewCartFromBytes_NROM(t *testing.T) {
	data := buildINES(t, 2, 1, 0x01, 0x00) // vertical mirroring, mapper 0
	cart, err := NewCartFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), cart.mapperID)
	assert.Equal(t, MirrorVertical, cart.mirror)
	assert.Len(t, cart.pgrMem, 2*prgBankSizeBytes)
	assert.Len(t, cart.chrMem, chrBankSizeBytes)
	assert.False(t, cart.chrIsRAM)
}

func TestNewCartFromBytes_CHRRAMFallback(t *testing.T) {
	data := buildINES(t, 1, 0, 0, 0)
	cart, err := NewCartFromBytes(data)
	require.NoError(t, err)
	assert.True(t, cart.chrIsRAM)
	assert.Len(t, cart.chrMem, chrBankSizeBytes)
}

func TestNewCartFromBytes_BadMagic(t *testing.T) {
	data := buildINES(t, 1, 1, 0, 0)
	data[0] = 'X'
	_, err := NewCartFromBytes(data)
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrBadHeader, loadErr.Kind)
}

func TestNewCartFromBytes_TruncatedRom(t *testing.T) {
	data := buildINES(t, 2, 1, 0, 0)
	data = data[:len(data)-100] // chop off the tail of CHR
	_, err := NewCartFromBytes(data)
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrTruncatedRom, loadErr.Kind)
}

func TestNewCartFromBytes_UnsupportedMapper(t *testing.T) {
	data := buildINES(t, 1, 1, 0xf0, 0xf0) // mapper 255
	_, err := NewCartFromBytes(data)
	require.Error(t, err)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrUnsupportedMapper, loadErr.Kind)
}

func TestCart_HeaderRoundTrip(t *testing.T) {
	data := buildINES(t, 2, 1, 0x13, 0x00) // battery + vertical, mapper 1
	cart, err := NewCartFromBytes(data)
	require.NoError(t, err)

	header := cart.Header()
	assert.Equal(t, data[:inesHeaderSize], header[:])
}

func TestCart_SaveRAM(t *testing.T) {
	data := buildINES(t, 1, 1, 0x02, 0) // battery bit set
	cart, err := NewCartFromBytes(data)
	require.NoError(t, err)

	assert.True(t, cart.HasBattery())
	blob := make([]uint8, prgRAMSizeBytes)
	blob[0] = 0x42
	require.NoError(t, cart.LoadSaveRAM(blob))
	assert.Equal(t, uint8(0x42), cart.SaveRAM()[0])
}

func TestCart_SaveRAM_NoBattery(t *testing.T) {
	data := buildINES(t, 1, 1, 0, 0)
	cart, err := NewCartFromBytes(data)
	require.NoError(t, err)

	assert.Nil(t, cart.SaveRAM())
	assert.Error(t, cart.LoadSaveRAM(make([]uint8, prgRAMSizeBytes)))
}
