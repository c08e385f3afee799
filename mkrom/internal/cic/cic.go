// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cic implements the boot checksum verified by the cartridge CIC
// lockout chip before the program is started.
//
// The boot code (IPL3) computes two 32-bit values (CRC1, CRC2) over the first
// 1 MiB of the program area (ROM offset 0x1000) and compares them with the
// values stored in the ROM header. The seed and the final mixing step depend
// on the CIC variant installed in the cartridge.
package cic

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"
)

// Variant identifies the CIC chip the image is built for.
type Variant uint8

const (
	CIC6101 Variant = iota
	CIC6102
	CIC6103
	CIC6105
	CIC6106
	CIC7102

	nVariants
)

// Default is the variant used when no other one is requested or detected.
const Default = CIC6102

const (
	WindowOffset = 0x1000   // ROM offset of the checksummed area
	WindowSize   = 0x100000 // size of the checksummed area
)

// The 6105 mixes the sixth accumulator with a 64-word table stored in its
// IPL3 at the offset ipl3Table (relative to the IPL3 start).
const (
	ipl3Table     = 452 * 4
	ipl3TableSize = 64
)

var variants = [nVariants]struct {
	name   string
	seed   uint32
	offset uint32 // added to the entry point by the IPL3
}{
	CIC6101: {"6101", 0xf8ca4ddc, 0},
	CIC6102: {"6102", 0xf8ca4ddc, 0},
	CIC6103: {"6103", 0xa3886759, 0x100000},
	CIC6105: {"6105", 0xdf26f436, 0},
	CIC6106: {"6106", 0x1fea617a, 0x200000},
	CIC7102: {"7102", 0xf8ca4ddc, 0},
}

// Variants returns all known variants.
func Variants() []Variant {
	vs := make([]Variant, nVariants)
	for i := range vs {
		vs[i] = Variant(i)
	}
	return vs
}

func (v Variant) String() string {
	if v >= nVariants {
		return fmt.Sprintf("Variant(%d)", uint8(v))
	}
	return "NUS-CIC-" + variants[v].name
}

// ParseVariant accepts the short ("6102") or the full ("NUS-CIC-6102") name
// of a variant.
func ParseVariant(s string) (Variant, error) {
	name := strings.TrimPrefix(strings.ToUpper(s), "NUS-CIC-")
	if n, ok := strings.CutPrefix(name, "CIC"); ok {
		name = strings.TrimPrefix(n, "-")
	}
	for i, vd := range variants {
		if vd.name == name {
			return Variant(i), nil
		}
	}
	return 0, fmt.Errorf("cic: unknown variant %q", s)
}

// Seed returns the initial value of all accumulators.
func (v Variant) Seed() uint32 {
	return variants[v].seed
}

// EntryPoint returns the boot address that must be stored in the header so
// the IPL3 of the variant jumps to entry. The 6103 and 6106 IPL3s subtract a
// fixed offset from the header value.
func (v Variant) EntryPoint(entry uint32) uint32 {
	return entry + variants[v].offset
}

// Checksum computes CRC1 and CRC2 over window. Only the first WindowSize
// bytes are used and a shorter window is extended with zeros. The ipl3 is
// used by CIC6105 only and must contain the whole IPL3 in this case,
// Checksum panics if it is too short to hold the table.
func Checksum(v Variant, ipl3, window []byte) (crc1, crc2 uint32) {
	if len(window) > WindowSize {
		window = window[:WindowSize]
	}
	var table []byte
	if v == CIC6105 {
		if len(ipl3) < ipl3Table+ipl3TableSize*4 {
			panic("cic: 6105 checksum requires the IPL3")
		}
		table = ipl3[ipl3Table : ipl3Table+ipl3TableSize*4]
	}
	seed := v.Seed()
	a1, a2, a3, a4, a5, a6 := seed, seed, seed, seed, seed, seed
	var tail [4]byte
	for i := 0; i < WindowSize/4; i++ {
		var d uint32
		switch o := i * 4; {
		case o+4 <= len(window):
			d = binary.BigEndian.Uint32(window[o:])
		case o < len(window):
			copy(tail[:], window[o:])
			d = binary.BigEndian.Uint32(tail[:])
		}
		r := bits.RotateLeft32(d, int(d&0x1f))
		a1 += d
		if a1 < d {
			a2++
		}
		a3 ^= d
		a4 += r
		if a5 > d {
			a5 ^= r
		} else {
			a5 ^= a1 ^ d
		}
		if table != nil {
			k := i % ipl3TableSize * 4
			a6 += d ^ binary.BigEndian.Uint32(table[k:])
		} else {
			a6 += d ^ a4
		}
	}
	switch v {
	case CIC6103:
		return (a1 ^ a2) + a3, (a4 ^ a5) + a6
	case CIC6106:
		return a1*a2 + a3, a4*a5 + a6
	}
	return a1 ^ a2 ^ a3, a4 ^ a5 ^ a6
}

// ChecksumROM computes the checksums of a complete ROM image (header, IPL3
// and program area).
func ChecksumROM(v Variant, rom []byte) (crc1, crc2 uint32) {
	if len(rom) < WindowOffset {
		panic("cic: ROM image shorter than header and IPL3")
	}
	return Checksum(v, rom[0x40:WindowOffset], rom[WindowOffset:])
}
