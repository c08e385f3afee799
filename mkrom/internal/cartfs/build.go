// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cartfs

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io/fs"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Entry is a file to be stored in the image.
type Entry struct {
	Path string // slash separated, relative to the root
	Data []byte
}

type node struct {
	name     string
	data     []byte
	dir      bool
	children map[string]*node
	parent   int

	// assigned during layout
	first  int
	sorted []*node
}

var volumeNS = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/embeddedgo/n64tools/cartfs"))

// Build builds the image of a file system that contains the entries. The
// capacity limits the size of the whole image, DefaultCapacity is used if it
// is not greater than zero.
func Build(entries []Entry, capacity int) ([]byte, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	root := &node{dir: true, children: map[string]*node{}}
	for _, e := range entries {
		if err := root.insert(e); err != nil {
			return nil, err
		}
	}

	// Breadth-first layout.
	list := []*node{root}
	for i := 0; i < len(list); i++ {
		d := list[i]
		if !d.dir {
			continue
		}
		d.sorted = make([]*node, 0, len(d.children))
		for _, c := range d.children {
			d.sorted = append(d.sorted, c)
		}
		slices.SortFunc(d.sorted, func(a, b *node) int {
			return strings.Compare(a.name, b.name)
		})
		d.first = len(list)
		for _, c := range d.sorted {
			c.parent = i
			list = append(list, c)
		}
	}

	var names []byte
	nameOff := make([]int, len(list))
	for i, n := range list {
		nameOff[i] = len(names)
		names = append(names, n.name...)
	}
	dataSectors := 0
	for _, n := range list {
		if !n.dir {
			n.first = dataSectors
			dataSectors += sectors(len(n.data))
		}
	}
	dirSector := 1
	nameSector := dirSector + sectors(len(list)*entrySize)
	fatSector := nameSector + sectors(len(names))
	dataSector := fatSector + sectors(dataSectors*4)
	total := dataSector + dataSectors
	if size := total * SectorSize; size > capacity {
		return nil, &CapacityError{size, capacity}
	}

	img := make([]byte, total*SectorSize)
	be := binary.BigEndian
	sb := img[:SectorSize]
	copy(sb[sbMagic:], magic[:])
	be.PutUint32(sb[sbSectorSize:], SectorSize)
	be.PutUint32(sb[sbSectors:], uint32(total))
	be.PutUint32(sb[sbEntries:], uint32(len(list)))
	be.PutUint32(sb[sbDirSector:], uint32(dirSector))
	be.PutUint32(sb[sbNameSector:], uint32(nameSector))
	be.PutUint32(sb[sbNameSize:], uint32(len(names)))
	be.PutUint32(sb[sbFATSector:], uint32(fatSector))
	be.PutUint32(sb[sbDataSectors:], uint32(dataSectors))
	be.PutUint32(sb[sbDataSector:], uint32(dataSector))

	dir := img[dirSector*SectorSize:]
	fat := img[fatSector*SectorSize:]
	data := img[dataSector*SectorSize:]
	for i, n := range list {
		de := dir[i*entrySize : (i+1)*entrySize]
		be.PutUint32(de[deName:], uint32(nameOff[i]))
		be.PutUint16(de[deNameLen:], uint16(len(n.name)))
		be.PutUint32(de[deParent:], uint32(n.parent))
		if n.dir {
			de[deKind] = kindDir
			be.PutUint32(de[deFirst:], uint32(n.first))
			be.PutUint32(de[deSize:], uint32(len(n.sorted)))
			continue
		}
		de[deKind] = kindFile
		be.PutUint32(de[deSize:], uint32(len(n.data)))
		be.PutUint32(de[deCRC:], crc32.ChecksumIEEE(n.data))
		if len(n.data) == 0 {
			be.PutUint32(de[deFirst:], EOC)
			continue
		}
		be.PutUint32(de[deFirst:], uint32(n.first))
		copy(data[n.first*SectorSize:], n.data)
		last := n.first + sectors(len(n.data)) - 1
		for s := n.first; s < last; s++ {
			be.PutUint32(fat[s*4:], uint32(s+1))
		}
		be.PutUint32(fat[last*4:], EOC)
	}
	copy(img[nameSector*SectorSize:], names)

	id := uuid.NewSHA1(volumeNS, img)
	copy(sb[sbUUID:], id[:])
	be.PutUint32(sb[sbCRC:], crc32.ChecksumIEEE(sb[:sbCRC]))
	return img, nil
}

func (root *node) insert(e Entry) error {
	p := strings.TrimPrefix(e.Path, "/")
	if !fs.ValidPath(p) || p == "." {
		return fmt.Errorf("cartfs: invalid path %q", e.Path)
	}
	elems := strings.Split(p, "/")
	d := root
	for i, name := range elems[:len(elems)-1] {
		c := d.children[name]
		if c == nil {
			c = &node{name: name, dir: true, children: map[string]*node{}}
			d.children[name] = c
		} else if !c.dir {
			return &DuplicatePathError{strings.Join(elems[:i+1], "/")}
		}
		d = c
	}
	name := elems[len(elems)-1]
	if d.children[name] != nil {
		return &DuplicatePathError{p}
	}
	d.children[name] = &node{name: name, data: e.Data}
	return nil
}

// BuildFS builds the image of a file system that contains all files found
// in fsys. Empty directories are omitted.
func BuildFS(fsys fs.FS, capacity int) ([]byte, error) {
	var entries []Entry
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{name, data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Build(entries, capacity)
}
