// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package elfimg

import (
	"bytes"
	"debug/elf"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/n64tools/mkrom/internal/elfimg/elftest"
)

func fill(n int, b byte) []byte {
	return bytes.Repeat([]byte{b}, n)
}

func read(t *testing.T, f *elftest.File) (*Program, error) {
	t.Helper()
	return Read(bytes.NewReader(f.Bytes()))
}

func TestSingleSegment(t *testing.T) {
	p, err := read(t, &elftest.File{
		Entry: 0x80000400,
		Progs: []elftest.Prog{{Vaddr: 0x80000400, Data: fill(1024, 0x11)}},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80000400), p.Load)
	assert.Equal(t, uint32(0x80000400), p.Entry)
	assert.Equal(t, 1024, p.Size())
	assert.Equal(t, fill(1024, 0x11), p.Data)
}

func TestGapsAndBSS(t *testing.T) {
	p, err := read(t, &elftest.File{
		Entry: 0x80000400,
		Progs: []elftest.Prog{
			// Out of order on purpose.
			{Vaddr: 0x80001000, Data: fill(0x100, 0x22), Memsz: 0x180},
			{Vaddr: 0x80000400, Data: fill(0x200, 0x11)},
			{Type: elf.PT_NOTE, Vaddr: 0x90000000, Data: fill(16, 0x33)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80000400), p.Load)
	require.Len(t, p.Segments, 2)
	assert.Equal(t, uint32(0x80000400), p.Segments[0].Vaddr)

	// highest end - lowest start
	require.Equal(t, 0x80001180-0x80000400, p.Size())
	assert.Equal(t, fill(0x200, 0x11), p.Data[:0x200])
	assert.Equal(t, fill(0xc00-0x200, 0), p.Data[0x200:0xc00], "gap")
	assert.Equal(t, fill(0x100, 0x22), p.Data[0xc00:0xd00])
	assert.Equal(t, fill(0x80, 0), p.Data[0xd00:], "bss")
}

func TestELF64SignExtended(t *testing.T) {
	p, err := read(t, &elftest.File{
		Class: elf.ELFCLASS64,
		Entry: 0xffffffff80000400,
		Progs: []elftest.Prog{{Vaddr: 0xffffffff80000400, Data: fill(64, 0x44)}},
		Symbols: map[string]uint64{
			"main.cartfs": 0xffffffff80000420,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(0x80000400), p.Load)
	assert.Equal(t, uint32(0x80000400), p.Entry)
	a, ok := p.Lookup("main.cartfs")
	require.True(t, ok)
	assert.Equal(t, uint32(0x80000420), a)
}

func TestMalformed(t *testing.T) {
	tests := []struct {
		name string
		f    elftest.File
	}{
		{"no segments", elftest.File{
			Entry: 0x80000400,
		}},
		{"only non-loadable", elftest.File{
			Entry: 0x80000400,
			Progs: []elftest.Prog{{Type: elf.PT_NOTE, Vaddr: 0x80000400, Data: fill(4, 1)}},
		}},
		{"overlap", elftest.File{
			Entry: 0x80000400,
			Progs: []elftest.Prog{
				{Vaddr: 0x80000400, Data: fill(0x100, 1)},
				{Vaddr: 0x800004f0, Data: fill(0x100, 2)},
			},
		}},
		{"bss overlap", elftest.File{
			Entry: 0x80000400,
			Progs: []elftest.Prog{
				{Vaddr: 0x80000400, Data: fill(0x10, 1), Memsz: 0x200},
				{Vaddr: 0x80000500, Data: fill(0x100, 2)},
			},
		}},
		{"entry before", elftest.File{
			Entry: 0x80000000,
			Progs: []elftest.Prog{{Vaddr: 0x80000400, Data: fill(0x100, 1)}},
		}},
		{"entry in gap", elftest.File{
			Entry: 0x80000600,
			Progs: []elftest.Prog{
				{Vaddr: 0x80000400, Data: fill(0x100, 1)},
				{Vaddr: 0x80000800, Data: fill(0x100, 2)},
			},
		}},
		{"entry at end", elftest.File{
			Entry: 0x80000500,
			Progs: []elftest.Prog{{Vaddr: 0x80000400, Data: fill(0x100, 1)}},
		}},
		{"64-bit address", elftest.File{
			Class: elf.ELFCLASS64,
			Entry: 0x100000400,
			Progs: []elftest.Prog{{Vaddr: 0x100000400, Data: fill(0x100, 1)}},
		}},
		{"too large", elftest.File{
			Entry: 0x80000400,
			Progs: []elftest.Prog{
				{Vaddr: 0x80000400, Data: fill(0x10, 1)},
				{Vaddr: 0xa0000400, Data: fill(0x10, 1)},
			},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := read(t, &tc.f)
			var me *MalformedError
			require.True(t, errors.As(err, &me), "%v", err)
		})
	}
}

func TestHugeFileSize(t *testing.T) {
	f := &elftest.File{
		Entry: 0x80000400,
		Progs: []elftest.Prog{{
			Vaddr:  0x80000400,
			Data:   fill(0x100, 1),
			Filesz: 0x40000000,
			Memsz:  0x40000000,
		}},
	}
	_, err := read(t, f)
	var me *MalformedError
	require.True(t, errors.As(err, &me), "%v", err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestNotELF(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("not an ELF file at all")))
	var me *MalformedError
	assert.True(t, errors.As(err, &me))
}

func TestTruncated(t *testing.T) {
	b := (&elftest.File{
		Entry: 0x80000400,
		Progs: []elftest.Prog{{Vaddr: 0x80000400, Data: fill(0x100, 1)}},
	}).Bytes()
	_, err := Read(bytes.NewReader(b[:len(b)-0x80]))
	var me *MalformedError
	assert.True(t, errors.As(err, &me), "%v", err)
}

func TestReadFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "prog.elf")
	f := &elftest.File{
		Entry:   0x80000400,
		Progs:   []elftest.Prog{{Vaddr: 0x80000400, Data: fill(32, 7)}},
		Symbols: map[string]uint64{"a": 0x80000404, "b": 0x80000408},
	}
	require.NoError(t, os.WriteFile(name, f.Bytes(), 0o666))
	p, err := ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, fill(32, 7), p.Data)
	a, ok := p.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, uint32(0x80000408), a)
	_, ok = p.Lookup("c")
	assert.False(t, ok)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.elf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPatch32(t *testing.T) {
	p, err := read(t, &elftest.File{
		Entry: 0x80000400,
		Progs: []elftest.Prog{{Vaddr: 0x80000400, Data: fill(16, 0)}},
	})
	require.NoError(t, err)
	np, err := p.Patch32(0x80000408, 0x10201000)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0x20, 0x10, 0x00}, np.Data[8:12])
	assert.Equal(t, fill(16, 0), p.Data, "original unchanged")

	for _, a := range []uint32{0x800003fc, 0x8000040d, 0x80000410} {
		_, err := p.Patch32(a, 1)
		var me *MalformedError
		assert.True(t, errors.As(err, &me), "%#x", a)
	}
	_, err = p.Patch32(0x8000040c, 1)
	assert.NoError(t, err)
}
