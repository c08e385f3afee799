// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cartfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type dirent struct {
	name  string
	kind  byte
	first uint32
	size  uint32
	crc   uint32
}

// FS is a file system read from an image.
type FS struct {
	img     []byte
	id      uuid.UUID
	entries []dirent
	fat     []byte
	data    []byte
}

var (
	_ fs.ReadFileFS = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
)

var errCorrupted = errors.New("cartfs: corrupted image")

func corrupted(f string, args ...any) error {
	return fmt.Errorf("%w: "+f, append([]any{errCorrupted}, args...)...)
}

// Open reads the file system stored at the beginning of img.
func Open(img []byte) (*FS, error) {
	if len(img) < SectorSize {
		return nil, corrupted("image too short")
	}
	be := binary.BigEndian
	sb := img[:SectorSize]
	if !bytes.Equal(sb[sbMagic:sbMagic+4], magic[:]) {
		return nil, corrupted("bad magic %q", sb[sbMagic:sbMagic+4])
	}
	if crc := crc32.ChecksumIEEE(sb[:sbCRC]); crc != be.Uint32(sb[sbCRC:]) {
		return nil, corrupted("superblock checksum mismatch")
	}
	if ss := be.Uint32(sb[sbSectorSize:]); ss != SectorSize {
		return nil, corrupted("unsupported sector size %d", ss)
	}
	total := uint64(be.Uint32(sb[sbSectors:]))
	if total*SectorSize > uint64(len(img)) {
		return nil, corrupted("%d sectors in %d bytes", total, len(img))
	}
	img = img[:total*SectorSize]
	n := uint64(be.Uint32(sb[sbEntries:]))
	dirSector := uint64(be.Uint32(sb[sbDirSector:]))
	nameSector := uint64(be.Uint32(sb[sbNameSector:]))
	nameSize := uint64(be.Uint32(sb[sbNameSize:]))
	fatSector := uint64(be.Uint32(sb[sbFATSector:]))
	dataSectors := uint64(be.Uint32(sb[sbDataSectors:]))
	dataSector := uint64(be.Uint32(sb[sbDataSector:]))
	switch {
	case n == 0:
		return nil, corrupted("no root directory")
	case dirSector*SectorSize+n*entrySize > nameSector*SectorSize,
		nameSector*SectorSize+nameSize > fatSector*SectorSize,
		fatSector*SectorSize+dataSectors*4 > dataSector*SectorSize,
		dataSector+dataSectors > total:
		return nil, corrupted("bad layout")
	}
	f := &FS{
		img:  img,
		fat:  img[fatSector*SectorSize : fatSector*SectorSize+dataSectors*4],
		data: img[dataSector*SectorSize:],
	}
	copy(f.id[:], sb[sbUUID:])
	names := img[nameSector*SectorSize : nameSector*SectorSize+nameSize]
	dir := img[dirSector*SectorSize:]
	f.entries = make([]dirent, n)
	for i := range f.entries {
		de := dir[i*entrySize : (i+1)*entrySize]
		off := uint64(be.Uint32(de[deName:]))
		end := off + uint64(be.Uint16(de[deNameLen:]))
		if end > nameSize {
			return nil, corrupted("entry %d: name outside the name table", i)
		}
		e := dirent{
			name:  string(names[off:end]),
			kind:  de[deKind],
			first: be.Uint32(de[deFirst:]),
			size:  be.Uint32(de[deSize:]),
			crc:   be.Uint32(de[deCRC:]),
		}
		switch e.kind {
		case kindDir:
			if uint64(e.first)+uint64(e.size) > n || (e.size != 0 && e.first <= uint32(i)) {
				return nil, corrupted("entry %d: bad children", i)
			}
		case kindFile:
			if e.size != 0 && uint64(e.first) >= dataSectors {
				return nil, corrupted("entry %d: bad first sector", i)
			}
		default:
			return nil, corrupted("entry %d: unknown kind %d", i, e.kind)
		}
		f.entries[i] = e
	}
	if f.entries[0].kind != kindDir {
		return nil, corrupted("root is not a directory")
	}
	return f, nil
}

// UUID returns the volume identifier.
func (f *FS) UUID() uuid.UUID {
	return f.id
}

// Size returns the size of the image.
func (f *FS) Size() int {
	return len(f.img)
}

func (f *FS) children(i int) []dirent {
	e := &f.entries[i]
	return f.entries[e.first : e.first+e.size]
}

// lookup returns the index of the named entry.
func (f *FS) lookup(op, name string) (int, error) {
	if !fs.ValidPath(name) {
		return 0, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	i := 0
	if name == "." {
		return i, nil
	}
	for _, elem := range strings.Split(name, "/") {
		if f.entries[i].kind != kindDir {
			return 0, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		cs := f.children(i)
		k := sort.Search(len(cs), func(k int) bool { return cs[k].name >= elem })
		if k == len(cs) || cs[k].name != elem {
			return 0, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
		}
		i = int(f.entries[i].first) + k
	}
	return i, nil
}

func (f *FS) readData(op, name string, e *dirent) ([]byte, error) {
	buf := make([]byte, e.size)
	be := binary.BigEndian
	s := e.first
	for off := 0; off < len(buf); off += SectorSize {
		if s == EOC || uint64(s)*4 >= uint64(len(f.fat)) {
			return nil, &fs.PathError{Op: op, Path: name, Err: corrupted("broken allocation chain")}
		}
		copy(buf[off:min(off+SectorSize, len(buf))], f.data[s*SectorSize:])
		s = be.Uint32(f.fat[s*4:])
	}
	if s != EOC && e.size != 0 {
		return nil, &fs.PathError{Op: op, Path: name, Err: corrupted("allocation chain too long")}
	}
	if crc32.ChecksumIEEE(buf) != e.crc {
		return nil, &fs.PathError{Op: op, Path: name, Err: corrupted("checksum mismatch")}
	}
	return buf, nil
}

// ReadFile returns the content of the named file.
func (f *FS) ReadFile(name string) ([]byte, error) {
	i, err := f.lookup("read", name)
	if err != nil {
		return nil, err
	}
	e := &f.entries[i]
	if e.kind != kindFile {
		return nil, &fs.PathError{Op: "read", Path: name, Err: errIsDir}
	}
	return f.readData("read", name, e)
}

// ReadDir returns the entries of the named directory sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	i, err := f.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if f.entries[i].kind != kindDir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: errNotDir}
	}
	return f.dirEntries(i), nil
}

func (f *FS) dirEntries(i int) []fs.DirEntry {
	cs := f.children(i)
	des := make([]fs.DirEntry, len(cs))
	for k := range cs {
		des[k] = info(&cs[k], cs[k].name)
	}
	return des
}

// Stat returns the file info of the named file.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	i, err := f.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return info(&f.entries[i], path.Base(name)), nil
}

// Open opens the named file or directory.
func (f *FS) Open(name string) (fs.File, error) {
	i, err := f.lookup("open", name)
	if err != nil {
		return nil, err
	}
	e := &f.entries[i]
	fi := info(e, path.Base(name))
	if e.kind == kindDir {
		return &dirFile{fi: fi, entries: f.dirEntries(i)}, nil
	}
	data, err := f.readData("open", name, e)
	if err != nil {
		return nil, err
	}
	return &file{fi: fi, Reader: bytes.NewReader(data)}, nil
}

var (
	errIsDir  = errors.New("is a directory")
	errNotDir = errors.New("not a directory")
)

type fileInfo struct {
	name string
	size int64
	dir  bool
}

func info(e *dirent, name string) *fileInfo {
	fi := &fileInfo{name: name, dir: e.kind == kindDir}
	if !fi.dir {
		fi.size = int64(e.size)
	}
	return fi
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.size }
func (fi *fileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fileInfo) IsDir() bool        { return fi.dir }
func (fi *fileInfo) Sys() any           { return nil }

func (fi *fileInfo) Mode() fs.FileMode {
	if fi.dir {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (fi *fileInfo) Type() fs.FileMode          { return fi.Mode().Type() }
func (fi *fileInfo) Info() (fs.FileInfo, error) { return fi, nil }

type file struct {
	fi *fileInfo
	*bytes.Reader
}

func (f *file) Stat() (fs.FileInfo, error) { return f.fi, nil }
func (f *file) Close() error               { return nil }

type dirFile struct {
	fi      *fileInfo
	entries []fs.DirEntry
	off     int
}

func (d *dirFile) Stat() (fs.FileInfo, error) { return d.fi, nil }
func (d *dirFile) Close() error               { return nil }

func (d *dirFile) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.fi.name, Err: errIsDir}
}

func (d *dirFile) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.entries[d.off:]
	if n <= 0 {
		d.off = len(d.entries)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	n = min(n, len(rest))
	d.off += n
	return rest[:n], nil
}
