// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gamePak() Params {
	p := DefaultParams()
	p.Entry = 0x80000400
	p.Release = 0x1444
	p.Title = "TESTROM"
	p.CartID = "ED"
	p.Region = 'E'
	p.Version = 1
	return p
}

func TestLayoutCoversHeader(t *testing.T) {
	off := 0
	for _, f := range Layout {
		assert.Equal(t, off, f.Offset, f.Name)
		off = f.end()
	}
	assert.Equal(t, Size, off)
}

func TestGolden(t *testing.T) {
	s, err := Build(gamePak())
	require.NoError(t, err)
	h := s.Finalize(0x12345678, 0x9abcdef0)
	g := goldie.New(t)
	g.Assert(t, "game_pak", []byte(hex.Dump(h[:])))
}

func TestRoundTrip(t *testing.T) {
	tests := []Params{
		gamePak(),
		DefaultParams(),
		{
			Config:    0xffffffff,
			ClockRate: 0,
			Entry:     0x80100400,
			Release:   0xffffffff,
			Title:     "12345678901234567890",
			Media:     'C',
			CartID:    "ZZ",
			Region:    'P',
			Version:   0xff,
		},
	}
	for _, p := range tests {
		s, err := Build(p)
		require.NoError(t, err)
		h, err := Decode(s.Bytes())
		require.NoError(t, err)
		assert.Equal(t, p, h.Params())
		crc1, crc2 := h.Checksums()
		assert.Zero(t, crc1)
		assert.Zero(t, crc2)
	}
}

func TestRoundTripCanonical(t *testing.T) {
	p := gamePak()
	p.Title = "AB  "
	p.CartID = "E"
	s, err := Build(p)
	require.NoError(t, err)
	h, err := Decode(s.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "AB", h.Title())
	assert.Equal(t, "E\x00", h.CartID())
	assert.Equal(t, p.Canonical(), h.Params())

	c := p.Canonical()
	assert.Equal(t, c, c.Canonical())
	s2, err := Build(c)
	require.NoError(t, err)
	assert.Equal(t, s.Bytes(), s2.Bytes())
}

func TestFieldOffsets(t *testing.T) {
	s, err := Build(gamePak())
	require.NoError(t, err)
	b := s.Bytes()
	assert.Equal(t, []byte{0x80, 0x00, 0x04, 0x00}, b[0x08:0x0c])
	assert.Equal(t, []byte("TESTROM             "), b[0x20:0x34])
	assert.Equal(t, byte('N'), b[0x3b])
	assert.Equal(t, []byte("ED"), b[0x3c:0x3e])
	assert.Equal(t, byte('E'), b[0x3e])
	assert.Equal(t, byte(1), b[0x3f])
	assert.Equal(t, make([]byte, 8), b[0x10:0x18], "checksums")
	assert.Equal(t, make([]byte, 8), b[0x18:0x20], "reserved")
	assert.Equal(t, make([]byte, 7), b[0x34:0x3b], "reserved")
}

func TestFinalize(t *testing.T) {
	s, err := Build(gamePak())
	require.NoError(t, err)
	before := s.Bytes()
	h := s.Finalize(0x01020304, 0xa0b0c0d0)
	assert.Equal(t, []byte{1, 2, 3, 4, 0xa0, 0xb0, 0xc0, 0xd0}, h[0x10:0x18])

	// Only the checksum fields differ and the shell is unchanged.
	assert.Equal(t, before[:0x10], h[:0x10])
	assert.Equal(t, before[0x18:], h[0x18:])
	assert.Equal(t, before, s.Bytes())
}

func TestFieldOverflow(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Params)
		f    Field
	}{
		{"entry", func(p *Params) { p.Entry = 1 << 32 }, Entry},
		{"release", func(p *Params) { p.Release = 0x1_0000_0000 }, Release},
		{"version", func(p *Params) { p.Version = 256 }, Version},
		{"region", func(p *Params) { p.Region = 0x100 }, Region},
		{"media", func(p *Params) { p.Media = 0x4e4e }, Media},
		{"cartid", func(p *Params) { p.CartID = "ABC" }, CartID},
		{"title", func(p *Params) { p.Title = "日本語" }, Title},
		{"control", func(p *Params) { p.Title = "A\tB" }, Title},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := gamePak()
			tc.mod(&p)
			_, err := Build(p)
			var fe *FieldError
			require.True(t, errors.As(err, &fe), "%v", err)
			assert.Equal(t, tc.f, fe.Field)
		})
	}
}

func TestTitle(t *testing.T) {
	p := gamePak()
	p.Title = "Crème Brûlée Ｒａｃｅｒ"
	s, err := Build(p)
	require.NoError(t, err)
	h := Header(s.b)
	assert.Equal(t, "Creme Brulee Racer", h.Title())

	p.Title = "A TITLE LONGER THAN TWENTY"
	s, err = Build(p)
	require.NoError(t, err)
	h = Header(s.b)
	assert.Equal(t, "A TITLE LONGER THAN ", string(h[0x20:0x34]))

	p.Strict = true
	_, err = Build(p)
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, Title, fe.Field)
	assert.Contains(t, err.Error(), "longer than 20 characters")

	p.Title = ""
	s, err = Build(p)
	require.NoError(t, err)
	h = Header(s.b)
	assert.Equal(t, []byte("                    "), h[0x20:0x34])
}

func TestDecodeShort(t *testing.T) {
	_, err := Decode(make([]byte, Size-1))
	assert.Error(t, err)
}
