// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elftest builds minimal big-endian MIPS ELF executables for tests.
package elftest

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"sort"
)

type Prog struct {
	Type  elf.ProgType // PT_LOAD if zero
	Vaddr uint64
	Data   []byte
	Filesz uint64 // len(Data) if zero
	Memsz  uint64 // len(Data) if zero
}

type File struct {
	Class   elf.Class // ELFCLASS32 if zero
	Entry   uint64
	Progs   []Prog
	Symbols map[string]uint64
}

var be = binary.BigEndian

// Bytes returns the ELF file.
func (f *File) Bytes() []byte {
	is64 := f.Class == elf.ELFCLASS64
	ehsize, phentsize, shentsize := 52, 32, 40
	if is64 {
		ehsize, phentsize, shentsize = 64, 56, 64
	}
	phoff := ehsize
	off := align(phoff+len(f.Progs)*phentsize, 16)
	offs := make([]int, len(f.Progs))
	for i, p := range f.Progs {
		offs[i] = off
		off = align(off+len(p.Data), 16)
	}
	var symtab, strtab, shstrtab []byte
	var symOff, strOff, shstrOff, shoff, shnum int
	if len(f.Symbols) != 0 {
		symtab, strtab = symbols(f.Symbols, is64)
		shstrtab = []byte("\x00.symtab\x00.strtab\x00.shstrtab\x00")
		symOff = off
		strOff = symOff + len(symtab)
		shstrOff = strOff + len(strtab)
		shoff = align(shstrOff+len(shstrtab), 8)
		shnum = 4
	}

	buf := new(bytes.Buffer)
	class := byte(elf.ELFCLASS32)
	if is64 {
		class = byte(elf.ELFCLASS64)
	}
	ident := [16]byte{0x7f, 'E', 'L', 'F', class, byte(elf.ELFDATA2MSB), 1}
	buf.Write(ident[:])
	w16(buf, uint16(elf.ET_EXEC))
	w16(buf, uint16(elf.EM_MIPS))
	w32(buf, 1)
	wAddr(buf, is64, f.Entry)
	wAddr(buf, is64, uint64(phoff))
	wAddr(buf, is64, uint64(shoff))
	w32(buf, 0) // flags
	w16(buf, uint16(ehsize))
	w16(buf, uint16(phentsize))
	w16(buf, uint16(len(f.Progs)))
	w16(buf, uint16(shentsize))
	w16(buf, uint16(shnum))
	if shnum != 0 {
		w16(buf, 3)
	} else {
		w16(buf, 0)
	}

	for i, p := range f.Progs {
		typ := p.Type
		if typ == 0 {
			typ = elf.PT_LOAD
		}
		memsz := p.Memsz
		if memsz == 0 {
			memsz = uint64(len(p.Data))
		}
		filesz := p.Filesz
		if filesz == 0 {
			filesz = uint64(len(p.Data))
		}
		flags := uint32(elf.PF_R | elf.PF_W | elf.PF_X)
		if is64 {
			w32(buf, uint32(typ))
			w32(buf, flags)
			w64(buf, uint64(offs[i]))
			w64(buf, p.Vaddr)
			w64(buf, p.Vaddr)
			w64(buf, filesz)
			w64(buf, memsz)
			w64(buf, 16)
		} else {
			w32(buf, uint32(typ))
			w32(buf, uint32(offs[i]))
			w32(buf, uint32(p.Vaddr))
			w32(buf, uint32(p.Vaddr))
			w32(buf, uint32(filesz))
			w32(buf, uint32(memsz))
			w32(buf, flags)
			w32(buf, 16)
		}
	}
	for i, p := range f.Progs {
		zeros(buf, offs[i])
		buf.Write(p.Data)
	}
	if shnum == 0 {
		return buf.Bytes()
	}
	zeros(buf, symOff)
	buf.Write(symtab)
	buf.Write(strtab)
	buf.Write(shstrtab)
	zeros(buf, shoff)
	symEnt := 16
	if is64 {
		symEnt = 24
	}
	shdr(buf, is64, shentsize, 0, elf.SHT_NULL, 0, 0, 0, 0)
	shdr(buf, is64, shentsize, 1, elf.SHT_SYMTAB, symOff, len(symtab), 2, symEnt)
	shdr(buf, is64, shentsize, 9, elf.SHT_STRTAB, strOff, len(strtab), 0, 0)
	shdr(buf, is64, shentsize, 17, elf.SHT_STRTAB, shstrOff, len(shstrtab), 0, 0)
	return buf.Bytes()
}

func symbols(syms map[string]uint64, is64 bool) (symtab, strtab []byte) {
	names := make([]string, 0, len(syms))
	for name := range syms {
		names = append(names, name)
	}
	sort.Strings(names)
	st := new(bytes.Buffer)
	sb := bytes.NewBuffer([]byte{0})
	if is64 {
		st.Write(make([]byte, 24))
	} else {
		st.Write(make([]byte, 16))
	}
	info := elf.ST_INFO(elf.STB_GLOBAL, elf.STT_OBJECT)
	for _, name := range names {
		nameOff := uint32(sb.Len())
		sb.WriteString(name)
		sb.WriteByte(0)
		if is64 {
			w32(st, nameOff)
			st.WriteByte(info)
			st.WriteByte(0)
			w16(st, 1)
			w64(st, syms[name])
			w64(st, 4)
		} else {
			w32(st, nameOff)
			w32(st, uint32(syms[name]))
			w32(st, 4)
			st.WriteByte(info)
			st.WriteByte(0)
			w16(st, 1)
		}
	}
	return st.Bytes(), sb.Bytes()
}

func shdr(buf *bytes.Buffer, is64 bool, size int, name uint32, typ elf.SectionType, off, n int, link uint32, entsize int) {
	start := buf.Len()
	w32(buf, name)
	w32(buf, uint32(typ))
	if is64 {
		w64(buf, 0) // flags
		w64(buf, 0) // addr
		w64(buf, uint64(off))
		w64(buf, uint64(n))
		w32(buf, link)
		w32(buf, 0) // info
		w64(buf, 1) // addralign
		w64(buf, uint64(entsize))
	} else {
		w32(buf, 0)
		w32(buf, 0)
		w32(buf, uint32(off))
		w32(buf, uint32(n))
		w32(buf, link)
		w32(buf, 0)
		w32(buf, 1)
		w32(buf, uint32(entsize))
	}
	zeros(buf, start+size)
}

func align(n, a int) int { return (n + a - 1) &^ (a - 1) }

func zeros(buf *bytes.Buffer, upto int) {
	for buf.Len() < upto {
		buf.WriteByte(0)
	}
}

func w16(buf *bytes.Buffer, v uint16) { buf.Write(be.AppendUint16(nil, v)) }
func w32(buf *bytes.Buffer, v uint32) { buf.Write(be.AppendUint32(nil, v)) }
func w64(buf *bytes.Buffer, v uint64) { buf.Write(be.AppendUint64(nil, v)) }

func wAddr(buf *bytes.Buffer, is64 bool, v uint64) {
	if is64 {
		w64(buf, v)
	} else {
		w32(buf, uint32(v))
	}
}
