// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package build

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/n64tools/mkrom/internal/cartfs"
	"github.com/embeddedgo/n64tools/mkrom/internal/elfimg"
	"github.com/embeddedgo/n64tools/mkrom/internal/ipl3"
	"github.com/embeddedgo/n64tools/mkrom/internal/manifest"
	"github.com/embeddedgo/n64tools/mkrom/internal/rom"
	"github.com/embeddedgo/n64tools/mkrom/internal/util"
)

const Descr = "build a cartridge image from an ELF file"

type options struct {
	manifest string
	flags    map[string]*string
	strict   bool
}

// The flags that override the manifest fields.
var overrides = []struct {
	name, usage string
	apply       func(m *manifest.Manifest, v string) error
}{
	{"ipl3", "IPL3 boot code file", func(m *manifest.Manifest, v string) error {
		m.IPL3 = v
		return nil
	}},
	{"format", "output format: z64 or hex", func(m *manifest.Manifest, v string) error {
		m.Format = v
		return nil
	}},
	{"cic", "CIC variant (6101, 6102, 6103, 6105, 6106, 7102) or auto", func(m *manifest.Manifest, v string) error {
		m.CIC = v
		return nil
	}},
	{"size", "cartridge size, a power of two (e.g. 8M)", func(m *manifest.Manifest, v string) error {
		m.Size = v
		return nil
	}},
	{"boundary", "the image size is a multiple of boundary (default 4K)", func(m *manifest.Manifest, v string) error {
		m.Boundary = v
		return nil
	}},
	{"fill", "padding byte (default 0xff)", func(m *manifest.Manifest, v string) error {
		u, err := strconv.ParseUint(v, 0, 8)
		if err != nil {
			return err
		}
		fill := int(u)
		m.Fill = &fill
		return nil
	}},
	{"title", "game title, up to 20 ASCII characters", func(m *manifest.Manifest, v string) error {
		headerOf(m).Title = v
		return nil
	}},
	{"entry", "boot address (default: ELF entry point)", func(m *manifest.Manifest, v string) error {
		u, err := strconv.ParseUint(v, 0, 32)
		headerOf(m).Entry = uint32(u)
		return err
	}},
	{"release", "release (libultra version) field", func(m *manifest.Manifest, v string) error {
		u, err := strconv.ParseUint(v, 0, 32)
		headerOf(m).Release = uint32(u)
		return err
	}},
	{"version", "ROM version", func(m *manifest.Manifest, v string) error {
		u, err := strconv.ParseUint(v, 0, 8)
		headerOf(m).Version = uint32(u)
		return err
	}},
	{"cart-id", "two character cartridge ID", func(m *manifest.Manifest, v string) error {
		headerOf(m).CartID = v
		return nil
	}},
	{"media", "media (category) code, a character or a number", func(m *manifest.Manifest, v string) error {
		headerOf(m).Media = v
		return nil
	}},
	{"region", "region (destination) code, a character or a number", func(m *manifest.Manifest, v string) error {
		headerOf(m).Region = v
		return nil
	}},
	{"fs", "directory stored in the cartfs image", func(m *manifest.Manifest, v string) error {
		fsOf(m).Dir = v
		return nil
	}},
	{"fs-capacity", "maximum size of the cartfs image (default 64M)", func(m *manifest.Manifest, v string) error {
		fsOf(m).Capacity = v
		return nil
	}},
	{"fs-symbol", "program variable set to the PI address of the cartfs image", func(m *manifest.Manifest, v string) error {
		fsOf(m).Symbol = v
		return nil
	}},
}

func headerOf(m *manifest.Manifest) *manifest.Header {
	if m.Header == nil {
		m.Header = new(manifest.Header)
	}
	return m.Header
}

func fsOf(m *manifest.Manifest) *manifest.FS {
	if m.FS == nil {
		m.FS = new(manifest.FS)
	}
	return m.FS
}

func Command() *cobra.Command {
	opts := &options{flags: make(map[string]*string)}
	cmd := &cobra.Command{
		Use:   "build [ELF [ROM]]",
		Short: Descr,
		Long: `Build a cartridge image from an ELF file.

The build parameters are read from the manifest file (rom.yaml in the current
directory by default) and can be overridden with the command line flags. The
names of the ELF and ROM files are inferred from the name of the current
directory if not given.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.manifest, "manifest", "m", "", "manifest file (default rom.yaml if exists)")
	flags.BoolVar(&opts.strict, "strict", false, "reject a title that does not fit in the header")
	for _, o := range overrides {
		opts.flags[o.name] = flags.String(o.name, "", o.usage)
	}
	return cmd
}

func loadManifest(name string) (*manifest.Manifest, error) {
	if name != "" {
		return manifest.Load(name)
	}
	m, err := manifest.Load(manifest.DefaultName)
	if errors.Is(err, os.ErrNotExist) {
		return new(manifest.Manifest), nil
	}
	return m, err
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	m, err := loadManifest(opts.manifest)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.name) {
			continue
		}
		if err := o.apply(m, *opts.flags[o.name]); err != nil {
			return fmt.Errorf("--%s: %w", o.name, err)
		}
	}
	if opts.strict {
		headerOf(m).Strict = true
	}
	if err := m.Validate(); err != nil {
		return err
	}
	cfg, err := m.Config()
	if err != nil {
		return err
	}

	ext := ".z64"
	write := rom.Binary
	if m.Format == "hex" {
		ext = ".hex"
		write = rom.IntelHex
	}
	elfName, romName := m.ELF, m.Output
	if len(args) > 0 {
		elfName = args[0]
	}
	if len(args) > 1 {
		romName = args[1]
	}
	elfName, romName = util.InOutFiles(elfName, ".elf", romName, ext)
	if m.IPL3 == "" {
		return errors.New("no IPL3 boot code (use --ipl3 or set ipl3 in the manifest)")
	}

	prog, err := elfimg.ReadFile(elfName)
	if err != nil {
		return fmt.Errorf("%s: %w", elfName, err)
	}
	util.Logf("%s: %d segment(s), %#x bytes at %#x, entry %#x",
		elfName, len(prog.Segments), prog.Size(), prog.Load, prog.Entry)
	boot, err := ipl3.ReadFile(m.IPL3)
	if err != nil {
		return fmt.Errorf("%s: %w", m.IPL3, err)
	}
	if m.FS != nil && m.FS.Dir != "" {
		capacity, err := m.FSCapacity()
		if err != nil {
			return err
		}
		if cfg.FS, err = cartfs.BuildFS(os.DirFS(m.FS.Dir), capacity); err != nil {
			return fmt.Errorf("%s: %w", m.FS.Dir, err)
		}
		util.Logf("cartfs: %s: %#x bytes", m.FS.Dir, len(cfg.FS))
	}

	im, err := rom.Build(prog, boot, cfg)
	if err != nil {
		return err
	}
	switch {
	case im.Detected:
		util.Logf("boot code: %v", im.Variant)
	case cfg.AutoDetect:
		util.Warn("unknown boot code, assuming %v", im.Variant)
	}
	if im.FSOffset != 0 {
		util.Logf("cartfs: offset %#x (PI address %#x)", im.FSOffset, rom.PIBase+im.FSOffset)
	}
	crc1, crc2 := im.Header.Checksums()
	util.Logf("%s: %#x bytes, CRC %08x %08x", romName, len(im.Data), crc1, crc2)
	return rom.WriteFile(romName, write(im.Data))
}
