package nes

// Mirror is the nametable mirroring policy a cartridge (or its mapper)
// selects. The PPU folds its 2 KiB of nametable RAM onto the 4 KiB
// logical nametable space according to this value.
type Mirror uint8

const (
	MirrorHorizontal Mirror = iota
	MirrorVertical
	MirrorFourScreen
	MirrorSingle0
	MirrorSingle1
)

// mirrorLookup maps a Mirror mode to the nametable (0 or 1, or 0-3 for
// four-screen) that backs each of the four logical nametable slots,
// matching the standard four-nametable-slot mirroring table documented by
// NESDev.
var mirrorLookup = map[Mirror][4]uint16{
	MirrorHorizontal: {0, 0, 1, 1},
	MirrorVertical:   {0, 1, 0, 1},
	MirrorSingle0:    {0, 0, 0, 0},
	MirrorSingle1:    {1, 1, 1, 1},
	MirrorFourScreen: {0, 1, 2, 3},
}

// mirrorNametableAddr folds a PPU address in 0x2000-0x2FFF onto the
// physical 2 KiB nametable RAM. For four-screen it returns an offset in
// the full 4 KiB logical space; there is no extra cartridge RAM behind it,
// and the PPU wraps that offset onto its 2 KiB.
func mirrorNametableAddr(mode Mirror, addr uint16) uint16 {
	addr = (addr - 0x2000) % 0x1000
	table := addr / 0x400
	offset := addr % 0x400
	return mirrorLookup[mode][table]*0x400 + offset
}
