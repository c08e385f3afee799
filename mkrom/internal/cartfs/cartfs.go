// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cartfs implements a simple read-only file system stored in the
// cartridge ROM after the program image.
//
// All integers are big-endian. The image consists of 512-byte sectors:
//
//	sector 0         superblock
//	DirSector        directory table, 32 bytes per entry
//	NameSector       names of all entries
//	FATSector        allocation table, one uint32 per data sector
//	DataSector       file data
//
// Entry 0 is the root directory. The entries are stored in breadth-first
// order so the children of a directory are contiguous and sorted by name.
// A directory entry stores the index of its first child and the number of
// children. A file entry stores the data sector number of its first sector
// and its size. The allocation table contains the number of the next sector
// of the file or EOC for the last one.
package cartfs

import (
	"fmt"
)

const (
	SectorSize = 512

	// DefaultCapacity is the maximum image size if no other is specified.
	DefaultCapacity = 64 << 20

	// EOC marks the end of an allocation chain and the empty file.
	EOC = 0xffffffff
)

var magic = [4]byte{'C', 'F', 'S', '1'}

// superblock offsets
const (
	sbMagic       = 0x00
	sbSectorSize  = 0x04
	sbSectors     = 0x08
	sbEntries     = 0x0c
	sbDirSector   = 0x10
	sbNameSector  = 0x14
	sbNameSize    = 0x18
	sbFATSector   = 0x1c
	sbDataSectors = 0x20
	sbDataSector  = 0x24
	sbUUID        = 0x28
	sbCRC         = 0x38
)

// directory entry offsets
const (
	deName    = 0x00
	deNameLen = 0x04
	deKind    = 0x06
	deParent  = 0x08
	deFirst   = 0x0c
	deSize    = 0x10
	deCRC     = 0x14

	entrySize = 0x20
)

const (
	kindDir  = 1
	kindFile = 2
)

// CapacityError is returned if the image would be larger than the
// configured capacity.
type CapacityError struct {
	Size, Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf(
		"cartfs: image size %d bytes exceeds capacity %d bytes",
		e.Size, e.Capacity,
	)
}

// DuplicatePathError is returned if two entries have the same path or a path
// is used both as a file and as a directory.
type DuplicatePathError struct {
	Path string
}

func (e *DuplicatePathError) Error() string {
	return "cartfs: duplicate path: " + e.Path
}

func sectors(n int) int {
	return (n + SectorSize - 1) / SectorSize
}
