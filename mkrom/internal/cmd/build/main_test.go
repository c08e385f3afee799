// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcinbor85/gohex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/embeddedgo/n64tools/mkrom/internal/cartfs"
	"github.com/embeddedgo/n64tools/mkrom/internal/cic"
	"github.com/embeddedgo/n64tools/mkrom/internal/elfimg/elftest"
	"github.com/embeddedgo/n64tools/mkrom/internal/header"
	"github.com/embeddedgo/n64tools/mkrom/internal/ipl3"
	"github.com/embeddedgo/n64tools/mkrom/internal/rom"
)

const (
	entry = 0x80000400
	fsVar = 0x80000800
)

// project creates the input files of a build in a temporary directory.
func project(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	f := &elftest.File{
		Entry:   entry,
		Progs:   []elftest.Prog{{Vaddr: entry, Data: bytes.Repeat([]byte{0x24, 0x08, 0x00, 0x01}, 1024)}},
		Symbols: map[string]uint64{"main.cartfs": fsVar},
	}
	write := func(name string, data []byte) {
		name = filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, data, 0o644))
	}
	write("game.elf", f.Bytes())
	write("ipl3.bin", bytes.Repeat([]byte{0x3c, 0x08, 0xa4, 0x00}, ipl3.Size/4))
	write("assets/sprites/hero.sprite", bytes.Repeat([]byte{7}, 700))
	write("assets/readme.txt", []byte("hello"))
	write("rom.yaml", []byte(`
elf: game.elf
ipl3: ipl3.bin
header:
  title: TESTROM
  cart_id: ED
  region: E
fs:
  dir: assets
  symbol: main.cartfs
`))
	return dir
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	cmd := Command()
	cmd.SetArgs(args)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	return cmd.Execute()
}

func checkImage(t *testing.T, img []byte, v cic.Variant) header.Header {
	t.Helper()
	h, err := header.Decode(img)
	require.NoError(t, err)
	crc1, crc2 := cic.ChecksumROM(v, img)
	hc1, hc2 := h.Checksums()
	assert.Equal(t, [2]uint32{crc1, crc2}, [2]uint32{hc1, hc2})
	return h
}

func TestBuildManifest(t *testing.T) {
	dir := project(t)
	out := filepath.Join(dir, "game.z64")
	require.NoError(t, execute(t, "--manifest", filepath.Join(dir, "rom.yaml"), filepath.Join(dir, "game.elf"), out))

	img, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Zero(t, len(img)%rom.Boundary)
	h := checkImage(t, img, cic.Default)
	assert.Equal(t, "TESTROM", h.Title())
	assert.Equal(t, "ED", h.CartID())
	assert.Equal(t, uint64('E'), h.Uint(header.Region))
	assert.Equal(t, uint64(entry), h.Uint(header.Entry))
	assert.Equal(t, byte(rom.DefaultFill), img[len(img)-1])

	fsOff := 0x2000
	pi := binary.BigEndian.Uint32(img[rom.ProgramOffset+fsVar-entry:])
	assert.Equal(t, uint32(rom.PIBase+fsOff), pi)
	fsys, err := cartfs.Open(img[fsOff:])
	require.NoError(t, err)
	data, err := fsys.ReadFile("readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	data, err = fsys.ReadFile("sprites/hero.sprite")
	require.NoError(t, err)
	assert.Len(t, data, 700)
}

func TestBuildFlags(t *testing.T) {
	dir := project(t)
	out := filepath.Join(dir, "custom.z64")
	err := execute(t,
		"-m", filepath.Join(dir, "rom.yaml"),
		"--title", "OVERRIDE",
		"--cic", "6103",
		"--size", "1M",
		"--fill", "0",
		"--release", "0x1444",
		"--version", "3",
		filepath.Join(dir, "game.elf"), out,
	)
	require.NoError(t, err)
	img, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, img, 1<<20)
	assert.Equal(t, byte(0), img[len(img)-1])
	h := checkImage(t, img, cic.CIC6103)
	assert.Equal(t, "OVERRIDE", h.Title())
	assert.Equal(t, "ED", h.CartID(), "kept from the manifest")
	assert.Equal(t, uint64(entry+0x100000), h.Uint(header.Entry))
	assert.Equal(t, uint64(0x1444), h.Uint(header.Release))
	assert.Equal(t, uint64(3), h.Uint(header.Version))
}

func TestBuildNoManifest(t *testing.T) {
	dir := project(t)
	out := filepath.Join(dir, "plain.z64")
	err := execute(t,
		"--ipl3", filepath.Join(dir, "ipl3.bin"),
		"--title", "PLAIN",
		filepath.Join(dir, "game.elf"), out,
	)
	require.NoError(t, err)
	img, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, img, 0x2000)
	h := checkImage(t, img, cic.Default)
	assert.Equal(t, "PLAIN", h.Title())
	assert.Equal(t, "\x00\x00", h.CartID())
}

func TestBuildHex(t *testing.T) {
	dir := project(t)
	out := filepath.Join(dir, "game.hex")
	err := execute(t,
		"-m", filepath.Join(dir, "rom.yaml"),
		"--format", "hex",
		filepath.Join(dir, "game.elf"), out,
	)
	require.NoError(t, err)
	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	mem := gohex.NewMemory()
	require.NoError(t, mem.ParseIntelHex(f))
	segs := mem.GetDataSegments()
	require.Len(t, segs, 1)
	assert.Equal(t, uint32(rom.PIBase), segs[0].Address)
	checkImage(t, segs[0].Data, cic.Default)
}

func TestBuildErrors(t *testing.T) {
	dir := project(t)
	elf := filepath.Join(dir, "game.elf")
	out := filepath.Join(dir, "bad.z64")
	manifest := filepath.Join(dir, "rom.yaml")
	tests := map[string][]string{
		"no ipl3":     {elf, out},
		"oversize":    {"-m", manifest, "--size", "4K", elf, out},
		"bad variant": {"-m", manifest, "--cic", "6104", elf, out},
		"bad fill":    {"-m", manifest, "--fill", "0x100", elf, out},
		"bad format":  {"-m", manifest, "--format", "bin", elf, out},
		"long title":  {"-m", manifest, "--strict", "--title", "A TITLE LONGER THAN TWENTY", elf, out},
		"no symbol":   {"-m", manifest, "--fs-symbol", "missing", elf, out},
		"bad ipl3":    {"-m", manifest, "--ipl3", elf, elf, out},
		"bad elf":     {"-m", manifest, filepath.Join(dir, "ipl3.bin"), out},
		"no elf":      {"-m", manifest, filepath.Join(dir, "missing.elf"), out},
		"fs capacity": {"-m", manifest, "--fs-capacity", "1K", elf, out},
		"boundary":    {"-m", manifest, "--boundary", "4G", elf, out},
	}
	for name, args := range tests {
		assert.Error(t, execute(t, args...), name)
		_, err := os.Stat(out)
		assert.ErrorIs(t, err, os.ErrNotExist, name)
	}
}
