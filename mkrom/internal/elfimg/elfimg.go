// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elfimg extracts the loadable segments of an ELF executable into
// a flat memory image.
package elfimg

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// MalformedError is returned for ELF files that cannot be turned into
// a program image.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "elfimg: malformed binary: " + e.Reason
}

func malformed(f string, args ...any) error {
	return &MalformedError{fmt.Sprintf(f, args...)}
}

// MaxSize limits the address range spanned by the loadable segments.
const MaxSize = 1 << 28

// Segment is a loadable (PT_LOAD) segment of the program.
type Segment struct {
	Vaddr uint32 // address in the memory during execution
	Memsz uint32 // size in the memory, the bytes after Data are zeroed
	Data  []byte // file backed segment data
}

func (s *Segment) end() uint64 { return uint64(s.Vaddr) + uint64(s.Memsz) }

type Segments []*Segment

// SortByVaddr sorts segments according to the Vaddr field.
func (ss Segments) SortByVaddr() {
	sort.Slice(
		ss,
		func(i, j int) bool {
			return ss[i].Vaddr < ss[j].Vaddr
		},
	)
}

// Program is the memory image of all loadable segments.
type Program struct {
	Load     uint32   // address of Data[0]
	Entry    uint32   // program entry point
	Data     []byte   // segment data with zero filled gaps
	Segments Segments // sorted by Vaddr

	symbols map[string]uint32
}

// ReadFile reads the named ELF file.
func ReadFile(name string) (*Program, error) {
	r, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Read(r)
}

// Read reads the program headers of the ELF file and builds the program
// image from all PT_LOAD segments.
func Read(r io.ReaderAt) (*Program, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, malformed("%v", err)
	}
	defer f.Close()
	ss := make(Segments, 0, 4)
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD || p.Memsz == 0 {
			continue
		}
		if p.Filesz > p.Memsz {
			return nil, malformed(
				"segment at %#x: file size %#x > memory size %#x",
				p.Vaddr, p.Filesz, p.Memsz,
			)
		}
		vaddr, ok := addr32(p.Vaddr)
		if !ok || uint64(vaddr)+p.Memsz > 1<<32 {
			return nil, malformed(
				"segment at %#x does not fit in the 32-bit address space",
				p.Vaddr,
			)
		}
		if p.Filesz > MaxSize {
			return nil, malformed(
				"segment at %#x: file size %#x exceeds %#x",
				p.Vaddr, p.Filesz, MaxSize,
			)
		}
		data := make([]byte, p.Filesz)
		if _, err := io.ReadFull(p.Open(), data); err != nil {
			return nil, malformed("segment at %#x: %v", p.Vaddr, err)
		}
		ss = append(ss, &Segment{vaddr, uint32(p.Memsz), data})
	}
	if len(ss) == 0 {
		return nil, malformed("no loadable segments")
	}
	ss.SortByVaddr()
	prog := &Program{Load: ss[0].Vaddr, Segments: ss}
	end := ss[0].end()
	for _, s := range ss[1:] {
		if uint64(s.Vaddr) < end {
			return nil, malformed(
				"segment at %#x overlaps the previous one (ends at %#x)",
				s.Vaddr, end,
			)
		}
		end = s.end()
	}
	if end-uint64(prog.Load) > MaxSize {
		return nil, malformed(
			"segments span %#x bytes from %#x, more than %#x",
			end-uint64(prog.Load), prog.Load, MaxSize,
		)
	}
	prog.Data = make([]byte, end-uint64(prog.Load))
	for _, s := range ss {
		copy(prog.Data[s.Vaddr-prog.Load:], s.Data)
	}
	entry, ok := addr32(f.Entry)
	if !ok || !prog.contains(entry) {
		return nil, malformed("entry point %#x outside the loadable segments", f.Entry)
	}
	prog.Entry = entry
	prog.symbols = make(map[string]uint32)
	syms, err := f.Symbols()
	if err != nil && !errors.Is(err, elf.ErrNoSymbols) {
		return nil, malformed("symbols: %v", err)
	}
	for _, s := range syms {
		if a, ok := addr32(s.Value); ok && s.Name != "" {
			prog.symbols[s.Name] = a
		}
	}
	return prog, nil
}

// addr32 folds a sign-extended 64-bit KSEG address to 32 bits.
func addr32(a uint64) (uint32, bool) {
	switch a >> 32 {
	case 0:
		return uint32(a), true
	case 0xffffffff:
		if a&0x80000000 != 0 {
			return uint32(a), true
		}
	}
	return 0, false
}

func (p *Program) contains(addr uint32) bool {
	for _, s := range p.Segments {
		if s.Vaddr <= addr && uint64(addr) < s.end() {
			return true
		}
	}
	return false
}

// Size returns the size of the program image.
func (p *Program) Size() int {
	return len(p.Data)
}

// Lookup returns the address of the named symbol.
func (p *Program) Lookup(name string) (uint32, bool) {
	a, ok := p.symbols[name]
	return a, ok
}

// Patch32 returns a copy of the program with the 32-bit big-endian word at
// addr replaced by v.
func (p *Program) Patch32(addr, v uint32) (*Program, error) {
	if addr < p.Load || uint64(addr-p.Load)+4 > uint64(len(p.Data)) {
		return nil, malformed("patch address %#x outside the program image", addr)
	}
	np := *p
	np.Data = append([]byte(nil), p.Data...)
	o := addr - p.Load
	np.Data[o] = byte(v >> 24)
	np.Data[o+1] = byte(v >> 16)
	np.Data[o+2] = byte(v >> 8)
	np.Data[o+3] = byte(v)
	return &np, nil
}
