package nes

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	inesMagic        = 0x1a53454e
	inesHeaderSize   = 16
	trainerSize      = 512
	prgBankSizeBytes = 0x4000
	chrBankSizeBytes = 0x2000
	prgRAMSizeBytes  = 0x2000
)

// inesHeader is the 16-byte iNES container header, laid out exactly as it
// appears on disk so binary.Read can populate it directly.
type inesHeader struct {
	Magic      uint32
	PrgRomSize uint8
	ChrRomSize uint8
	Flags6     uint8
	Flags7     uint8
	Flags8     uint8 // PRG-RAM size in 8 KiB units (0 implies one bank)
	Flags9     uint8
	Flags10    uint8
	_          [5]uint8 // unused padding
}

// Cart is a loaded cartridge: immutable PRG/CHR ROM contents (CHR may be
// RAM when the file declares zero CHR banks), a mapper, and any optional
// PRG-RAM the mapper exposes for battery-backed saves.
type Cart struct {
	pgrMem []uint8
	chrMem []uint8
	prgRAM []uint8

	pgrBanks uint8
	chrBanks uint8
	mapperID uint8
	mirror   Mirror
	battery  bool
	chrIsRAM bool

	mapper Mapper
}

// NewCartFromFile reads a ROM image (.nes, or a .zip containing one) from
// disk and returns a loaded Cart.
func NewCartFromFile(path string) (*Cart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, newLoadErr(ErrBadHeader, "couldn't open the file: %s", err)
	}
	if strings.HasSuffix(strings.ToLower(path), ".zip") {
		return NewCartFromZip(data)
	}
	return NewCartFromBytes(data)
}

// NewCartFromZip extracts the first ".nes"-suffixed entry from a ZIP
// archive and loads it as an iNES image.
func NewCartFromZip(data []byte) (*Cart, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, newLoadErr(ErrZipDecodeError, "couldn't open archive: %s", err)
	}
	for _, f := range zr.File {
		if !strings.HasSuffix(strings.ToLower(f.Name), ".nes") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, newLoadErr(ErrZipDecodeError, "couldn't open entry %q: %s", f.Name, err)
		}
		defer rc.Close()
		romData, err := io.ReadAll(rc)
		if err != nil {
			return nil, newLoadErr(ErrZipDecodeError, "couldn't decompress entry %q: %s", f.Name, err)
		}
		return NewCartFromBytes(romData)
	}
	return nil, newLoadErr(ErrZipDecodeError, "no .nes entry found in archive")
}

// NewCartFromBytes parses a raw iNES image.
func NewCartFromBytes(data []uint8) (*Cart, error) {
	r := bytes.NewReader(data)

	var header inesHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, newLoadErr(ErrBadHeader, "couldn't read the header: %s", err)
	}
	if header.Magic != inesMagic {
		return nil, newLoadErr(ErrBadHeader, "missing iNES magic")
	}

	hasTrainer := header.Flags6&0x4 != 0
	if hasTrainer {
		if _, err := r.Seek(trainerSize, io.SeekCurrent); err != nil {
			return nil, newLoadErr(ErrTruncatedRom, "couldn't skip the trainer: %s", err)
		}
	}

	mapperID := (header.Flags7 & 0xf0) | (header.Flags6 >> 4)

	mirror := MirrorHorizontal
	switch {
	case header.Flags6&0x8 != 0:
		mirror = MirrorFourScreen
	case header.Flags6&0x1 != 0:
		mirror = MirrorVertical
	}

	prgLen := int(header.PrgRomSize) * prgBankSizeBytes
	chrLen := int(header.ChrRomSize) * chrBankSizeBytes

	remaining := r.Len()
	if remaining < prgLen {
		return nil, newLoadErr(ErrTruncatedRom, "declared %d PRG bytes, only %d available", prgLen, remaining)
	}

	cart := &Cart{
		pgrMem:   make([]uint8, prgLen),
		pgrBanks: header.PrgRomSize,
		chrBanks: header.ChrRomSize,
		mapperID: mapperID,
		mirror:   mirror,
		battery:  header.Flags6&0x2 != 0,
		prgRAM:   make([]uint8, prgRAMSizeBytes),
	}

	if n, err := io.ReadFull(r, cart.pgrMem); n != len(cart.pgrMem) || err != nil {
		return nil, newLoadErr(ErrTruncatedRom, "couldn't read PRG ROM: %s", err)
	}

	if chrLen == 0 {
		cart.chrIsRAM = true
		cart.chrMem = make([]uint8, chrBankSizeBytes)
	} else {
		if r.Len() < chrLen {
			return nil, newLoadErr(ErrTruncatedRom, "declared %d CHR bytes, only %d available", chrLen, r.Len())
		}
		cart.chrMem = make([]uint8, chrLen)
		if n, err := io.ReadFull(r, cart.chrMem); n != len(cart.chrMem) || err != nil {
			return nil, newLoadErr(ErrTruncatedRom, "couldn't read CHR ROM: %s", err)
		}
	}

	mapper, err := newMapper(cart)
	if err != nil {
		return nil, err
	}
	cart.mapper = mapper

	return cart, nil
}

// Header reconstructs the 16-byte iNES header for this cart from the
// parsed magic, bank counts, mirroring, battery flag and mapper number.
// The trainer bit and bytes 8-15 are written as zero, and the vertical
// mirroring bit is not written for a four-screen cart, so the result is
// byte-identical to the loaded header only when the file's header had
// none of those set.
func (c *Cart) Header() [inesHeaderSize]uint8 {
	var flags6 uint8
	switch c.mirror {
	case MirrorVertical:
		flags6 |= 0x1
	case MirrorFourScreen:
		flags6 |= 0x8
	}
	if c.battery {
		flags6 |= 0x2
	}
	flags6 |= (c.mapperID & 0x0f) << 4
	flags7 := c.mapperID & 0xf0

	var buf bytes.Buffer
	h := inesHeader{
		Magic:      inesMagic,
		PrgRomSize: c.pgrBanks,
		ChrRomSize: c.chrBanks,
		Flags6:     flags6,
		Flags7:     flags7,
	}
	_ = binary.Write(&buf, binary.LittleEndian, &h)
	var out [inesHeaderSize]uint8
	copy(out[:], buf.Bytes())
	return out
}

// SaveRAM returns an opaque snapshot of PRG-RAM, for host-side persistence
// when the cartridge has a battery.
func (c *Cart) SaveRAM() []uint8 {
	if !c.battery {
		return nil
	}
	out := make([]uint8, len(c.prgRAM))
	copy(out, c.prgRAM)
	return out
}

// LoadSaveRAM restores PRG-RAM from a blob previously returned by SaveRAM.
func (c *Cart) LoadSaveRAM(data []uint8) error {
	if !c.battery {
		return fmt.Errorf("cart has no battery-backed RAM")
	}
	n := copy(c.prgRAM, data)
	if n != len(c.prgRAM) {
		return fmt.Errorf("expected %d bytes, got %d", len(c.prgRAM), n)
	}
	return nil
}

func (c *Cart) HasBattery() bool { return c.battery }

func (c *Cart) cpuRead(addr uint16) uint8  { return c.mapper.CPURead(addr) }
func (c *Cart) cpuWrite(addr uint16, v uint8) { c.mapper.CPUWrite(addr, v) }
func (c *Cart) ppuRead(addr uint16) uint8  { return c.mapper.PPURead(addr) }
func (c *Cart) ppuWrite(addr uint16, v uint8) { c.mapper.PPUWrite(addr, v) }
func (c *Cart) mirrorMode() Mirror         { return c.mapper.Mirror() }
func (c *Cart) notifyPPUAddr(addr uint16)  { c.mapper.NotifyPPUAddr(addr) }
func (c *Cart) irq() bool                  { return c.mapper.IRQ() }
func (c *Cart) tick()                      { c.mapper.Tick() }
