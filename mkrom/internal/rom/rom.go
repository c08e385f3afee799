// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rom assembles the cartridge image.
//
// The image layout:
//
//	0x0000  header (64 bytes)
//	0x0040  boot code (IPL3)
//	0x1000  program image
//	        fill up to the boundary
//	        cartfs image (optional, boundary aligned)
//	        fill up to the boundary or to the requested cartridge size
package rom

import (
	"fmt"

	"github.com/embeddedgo/n64tools/mkrom/internal/cic"
	"github.com/embeddedgo/n64tools/mkrom/internal/elfimg"
	"github.com/embeddedgo/n64tools/mkrom/internal/header"
	"github.com/embeddedgo/n64tools/mkrom/internal/ipl3"
)

const (
	BootCodeOffset = header.Size
	ProgramOffset  = cic.WindowOffset

	// PIBase is the PI bus address of the beginning of the cartridge ROM.
	PIBase = 0x10000000
)

// Config contains the build parameters.
type Config struct {
	Header header.Params // the Entry field is ignored

	Entry      uint32      // overrides the ELF entry point if not zero
	Variant    cic.Variant // used if AutoDetect is false or fails
	AutoDetect bool        // detect the CIC variant from the boot code

	Boundary int  // Boundary if zero
	Size     int  // requested cartridge size (power of two), 0 means minimal
	Fill     byte // padding byte

	FS       []byte // cartfs image
	FSSymbol string // program variable that receives the cartfs address
}

// Image is an assembled ROM image.
type Image struct {
	Data     []byte
	Header   header.Header
	Variant  cic.Variant
	Detected bool // Variant detected from the boot code

	ProgramEnd int // end of the program image
	FSOffset   int // offset of the cartfs image, 0 if there is none
	FSSize     int
}

// Build assembles the ROM image.
func Build(prog *elfimg.Program, bootcode []byte, cfg *Config) (*Image, error) {
	boot, err := ipl3.Check(bootcode)
	if err != nil {
		return nil, err
	}
	im := &Image{Variant: cfg.Variant}
	if cfg.AutoDetect {
		if v, ok := ipl3.Detect(boot); ok {
			im.Variant, im.Detected = v, true
		}
	}
	boundary := cfg.Boundary
	if boundary == 0 {
		boundary = Boundary
	}
	if boundary > MaxSize {
		return nil, &OversizeError{boundary, MaxSize}
	}

	entry := prog.Entry
	if cfg.Entry != 0 {
		entry = cfg.Entry
	}
	hp := cfg.Header
	hp.Entry = uint64(im.Variant.EntryPoint(entry))
	shell, err := header.Build(hp)
	if err != nil {
		return nil, err
	}

	im.ProgramEnd = ProgramOffset + prog.Size()
	if len(cfg.FS) != 0 {
		im.FSOffset = alignUp(im.ProgramEnd, boundary)
		im.FSSize = len(cfg.FS)
	}
	if cfg.FSSymbol != "" {
		if im.FSOffset == 0 {
			return nil, fmt.Errorf("rom: symbol %s requested without cartfs image", cfg.FSSymbol)
		}
		addr, ok := prog.Lookup(cfg.FSSymbol)
		if !ok {
			return nil, fmt.Errorf("rom: symbol %s not found", cfg.FSSymbol)
		}
		prog, err = prog.Patch32(addr, uint32(PIBase+im.FSOffset))
		if err != nil {
			return nil, err
		}
	}

	img := make([]byte, BootCodeOffset, alignUp(im.ProgramEnd, boundary)+len(cfg.FS))
	img = append(img, boot...)
	img = append(img, prog.Data...)
	if img, err = Pad(img, boundary, cfg.Fill); err != nil {
		return nil, err
	}
	if len(cfg.FS) != 0 {
		img = append(img, cfg.FS...)
		if img, err = Pad(img, boundary, cfg.Fill); err != nil {
			return nil, err
		}
	}
	if cfg.Size != 0 {
		if img, err = PadTo(img, cfg.Size, cfg.Fill); err != nil {
			return nil, err
		}
	}
	if len(img) > MaxSize {
		return nil, &OversizeError{len(img), MaxSize}
	}

	crc1, crc2 := cic.Checksum(im.Variant, boot, img[ProgramOffset:])
	im.Header = shell.Finalize(crc1, crc2)
	copy(img, im.Header[:])
	im.Data = img
	return im, nil
}
