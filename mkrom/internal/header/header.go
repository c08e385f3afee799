// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package header builds and decodes the 64-byte ROM header.
//
// The header is described by an explicit table of fields (offset, width,
// kind) instead of a Go struct overlay. A header is built in two phases: Build
// returns an immutable Shell with zeroed checksum fields and Shell.Finalize
// returns the final Header with CRC1 and CRC2 filled in.
package header

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Size is the size of the ROM header.
const Size = 0x40

// Kind describes the encoding of a header field.
type Kind uint8

const (
	Uint     Kind = iota // big-endian unsigned integer
	ASCII                // ASCII string right-padded with TitleFill
	Bytes                // raw bytes, zero padded
	Reserved             // always zero
)

// Field describes the location and the encoding of a header field.
type Field struct {
	Name   string
	Offset int
	Width  int
	Kind   Kind
}

func (f Field) end() int { return f.Offset + f.Width }

// https://n64brew.dev/wiki/ROM_Header
var (
	Config    = Field{"config", 0x00, 4, Uint} // PI BSD DOM1 configuration
	ClockRate = Field{"clock_rate", 0x04, 4, Uint}
	Entry     = Field{"entry", 0x08, 4, Uint}
	Release   = Field{"release", 0x0c, 4, Uint}
	CRC1      = Field{"crc1", 0x10, 4, Uint}
	CRC2      = Field{"crc2", 0x14, 4, Uint}
	Reserved1 = Field{"reserved1", 0x18, 8, Reserved}
	Title     = Field{"title", 0x20, 20, ASCII}
	Reserved2 = Field{"reserved2", 0x34, 7, Reserved}
	Media     = Field{"media", 0x3b, 1, Uint}
	CartID    = Field{"cartridge_id", 0x3c, 2, Bytes}
	Region    = Field{"region", 0x3e, 1, Uint}
	Version   = Field{"version", 0x3f, 1, Uint}
)

// Layout lists all header fields in offset order.
var Layout = []Field{
	Config, ClockRate, Entry, Release, CRC1, CRC2, Reserved1,
	Title, Reserved2, Media, CartID, Region, Version,
}

// TitleFill is used to pad the title.
const TitleFill = ' '

// FieldError is returned if a value cannot be stored in its header field.
type FieldError struct {
	Field  Field
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("header: %s: %v: %s", e.Field.Name, e.Value, e.Reason)
}

// Params contains the values of the header fields. The integer fields are
// wider than the header fields so too large values can be detected.
type Params struct {
	Config    uint64
	ClockRate uint64
	Entry     uint64
	Release   uint64
	Title     string
	Media     uint64
	CartID    string
	Region    uint64
	Version   uint64

	// Strict rejects a title longer than the title field instead of
	// truncating it.
	Strict bool
}

// DefaultParams returns the parameters of a typical Game Pak header. The
// caller must set at least the Entry.
func DefaultParams() Params {
	return Params{
		Config:    0x80371240,
		ClockRate: 0x0000000f,
		Media:     'N',
		CartID:    "\x00\x00",
	}
}

// Canonical returns p in the form reported by Header.Params after Build:
// the trailing spaces of the title are removed and a CartID shorter than
// its field is padded with zeros.
func (p Params) Canonical() Params {
	p.Title = strings.TrimRight(p.Title, string(TitleFill))
	if n := len(p.CartID); n < CartID.Width {
		p.CartID += strings.Repeat("\x00", CartID.Width-n)
	}
	return p
}

// Shell is a header with the checksum fields not set yet.
type Shell struct {
	b [Size]byte
}

// Build encodes p into a header shell. Decoding the shell returns
// p.Canonical() for a printable ASCII title that fits in the title field.
func Build(p Params) (Shell, error) {
	var s Shell
	p = p.Canonical()
	ints := []struct {
		f Field
		v uint64
	}{
		{Config, p.Config},
		{ClockRate, p.ClockRate},
		{Entry, p.Entry},
		{Release, p.Release},
		{Media, p.Media},
		{Region, p.Region},
		{Version, p.Version},
	}
	for _, iv := range ints {
		if err := putUint(s.b[:], iv.f, iv.v); err != nil {
			return Shell{}, err
		}
	}
	title, err := asciiTitle(p.Title, p.Strict)
	if err != nil {
		return Shell{}, err
	}
	putASCII(s.b[:], Title, title)
	if len(p.CartID) > CartID.Width {
		return Shell{}, &FieldError{CartID, fmt.Sprintf("%q", p.CartID),
			fmt.Sprintf("longer than %d bytes", CartID.Width)}
	}
	copy(s.b[CartID.Offset:CartID.end()], p.CartID)
	return s, nil
}

// Bytes returns a copy of the shell bytes.
func (s Shell) Bytes() []byte {
	return append([]byte(nil), s.b[:]...)
}

// Finalize returns the header with the checksum fields set.
func (s Shell) Finalize(crc1, crc2 uint32) Header {
	h := Header(s.b)
	binary.BigEndian.PutUint32(h[CRC1.Offset:], crc1)
	binary.BigEndian.PutUint32(h[CRC2.Offset:], crc2)
	return h
}

func putUint(b []byte, f Field, v uint64) error {
	if f.Width < 8 && v>>(8*f.Width) != 0 {
		return &FieldError{f, fmt.Sprintf("%#x", v),
			fmt.Sprintf("does not fit in %d bytes", f.Width)}
	}
	for i := f.end() - 1; i >= f.Offset; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return nil
}

func putASCII(b []byte, f Field, s string) {
	n := copy(b[f.Offset:f.end()], s)
	for i := f.Offset + n; i < f.end(); i++ {
		b[i] = TitleFill
	}
}

// Header is a complete ROM header.
type Header [Size]byte

// Decode returns the header stored at the beginning of b.
func Decode(b []byte) (Header, error) {
	var h Header
	if len(b) < Size {
		return h, fmt.Errorf("header: %d bytes, want at least %d", len(b), Size)
	}
	copy(h[:], b)
	return h, nil
}

// Uint returns the value of an integer field.
func (h *Header) Uint(f Field) uint64 {
	var v uint64
	for _, c := range h[f.Offset:f.end()] {
		v = v<<8 | uint64(c)
	}
	return v
}

// Title returns the title without the trailing fill.
func (h *Header) Title() string {
	return strings.TrimRight(string(h[Title.Offset:Title.end()]), string(TitleFill)+"\x00")
}

// CartID returns the raw cartridge ID.
func (h *Header) CartID() string {
	return string(h[CartID.Offset:CartID.end()])
}

// Checksums returns the values of the CRC1 and CRC2 fields.
func (h *Header) Checksums() (crc1, crc2 uint32) {
	return uint32(h.Uint(CRC1)), uint32(h.Uint(CRC2))
}

// Params returns the parameters the header was built from.
func (h *Header) Params() Params {
	return Params{
		Config:    h.Uint(Config),
		ClockRate: h.Uint(ClockRate),
		Entry:     h.Uint(Entry),
		Release:   h.Uint(Release),
		Title:     h.Title(),
		Media:     h.Uint(Media),
		CartID:    h.CartID(),
		Region:    h.Uint(Region),
		Version:   h.Uint(Version),
	}
}
