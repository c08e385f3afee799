// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package manifest reads the rom.yaml file that describes how to build the
// cartridge image.
//
// Example:
//
//	elf: game.elf
//	ipl3: ipl3.bin
//	cic: auto
//	size: 8M
//	header:
//	  title: MY GAME
//	  release: 0x1444
//	  cart_id: ED
//	  region: E
//	fs:
//	  dir: assets
//	  symbol: main.cartfs
//
// Relative paths are relative to the directory that contains the manifest.
package manifest

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/embeddedgo/n64tools/mkrom/internal/cic"
	"github.com/embeddedgo/n64tools/mkrom/internal/header"
	"github.com/embeddedgo/n64tools/mkrom/internal/rom"
	"github.com/embeddedgo/n64tools/mkrom/internal/util"
)

// DefaultName is the name of the manifest file looked up in the current
// directory.
const DefaultName = "rom.yaml"

//go:embed schema.cue
var schema string

type Manifest struct {
	ELF      string  `yaml:"elf" json:"elf,omitempty"`
	IPL3     string  `yaml:"ipl3" json:"ipl3,omitempty"`
	Output   string  `yaml:"output" json:"output,omitempty"`
	Format   string  `yaml:"format" json:"format,omitempty"` // z64 or hex
	CIC      string  `yaml:"cic" json:"cic,omitempty"`       // auto or variant
	Size     string  `yaml:"size" json:"size,omitempty"`
	Boundary string  `yaml:"boundary" json:"boundary,omitempty"`
	Fill     *int    `yaml:"fill" json:"fill,omitempty"`
	Header   *Header `yaml:"header" json:"header,omitempty"`
	FS       *FS     `yaml:"fs" json:"fs,omitempty"`
}

type Header struct {
	Title   string `yaml:"title" json:"title,omitempty"`
	Entry   uint32 `yaml:"entry" json:"entry,omitempty"`
	Release uint32 `yaml:"release" json:"release,omitempty"`
	Version uint32 `yaml:"version" json:"version,omitempty"`
	CartID  string `yaml:"cart_id" json:"cart_id,omitempty"`
	Media   string `yaml:"media" json:"media,omitempty"`
	Region  string `yaml:"region" json:"region,omitempty"`
	Strict  bool   `yaml:"strict" json:"strict,omitempty"`
}

// FS describes the asset directory stored in the cartfs image.
type FS struct {
	Dir      string `yaml:"dir" json:"dir"`
	Capacity string `yaml:"capacity" json:"capacity,omitempty"`
	Symbol   string `yaml:"symbol" json:"symbol,omitempty"`
}

// Load reads, decodes and validates the named manifest file.
func Load(name string) (*Manifest, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	m, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	m.resolve(filepath.Dir(name))
	return m, nil
}

// Decode decodes and validates the manifest. Unknown fields are rejected.
func Decode(data []byte) (*Manifest, error) {
	m := new(Manifest)
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(m); err != nil {
		if errors.Is(err, io.EOF) {
			return m, nil // empty manifest
		}
		return nil, fmt.Errorf("manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate checks m against the manifest schema.
func (m *Manifest) Validate() error {
	ctx := cuecontext.New()
	s := ctx.CompileString(schema, cue.Filename("schema.cue"))
	if err := s.Err(); err != nil {
		return fmt.Errorf("manifest: schema: %w", err)
	}
	v := s.LookupPath(cue.ParsePath("#Manifest")).Unify(ctx.Encode(m))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("manifest: %w", err)
	}
	return nil
}

func (m *Manifest) resolve(dir string) {
	abs := func(p *string) {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
	abs(&m.ELF)
	abs(&m.IPL3)
	abs(&m.Output)
	if m.FS != nil {
		abs(&m.FS.Dir)
	}
}

// Config returns the image build configuration described by m. The FS field
// of the returned configuration is left empty, the caller builds the cartfs
// image from m.FS.
func (m *Manifest) Config() (*rom.Config, error) {
	cfg := &rom.Config{
		Header:     header.DefaultParams(),
		Variant:    cic.Default,
		AutoDetect: true,
		Fill:       rom.DefaultFill,
	}
	if m.CIC != "" && !strings.EqualFold(m.CIC, "auto") {
		v, err := cic.ParseVariant(m.CIC)
		if err != nil {
			return nil, err
		}
		cfg.Variant, cfg.AutoDetect = v, false
	}
	var err error
	if m.Size != "" {
		if cfg.Size, err = util.ParseSize(m.Size); err != nil {
			return nil, fmt.Errorf("manifest: size: %w", err)
		}
	}
	if m.Boundary != "" {
		if cfg.Boundary, err = util.ParseSize(m.Boundary); err != nil {
			return nil, fmt.Errorf("manifest: boundary: %w", err)
		}
		if b := cfg.Boundary; b <= 0 || b&(b-1) != 0 || b > rom.MaxSize {
			return nil, fmt.Errorf("manifest: boundary %#x is not a power of two up to %#x", b, rom.MaxSize)
		}
	}
	if m.Fill != nil {
		if *m.Fill < 0 || *m.Fill > 0xff {
			return nil, fmt.Errorf("manifest: fill byte %d out of range", *m.Fill)
		}
		cfg.Fill = byte(*m.Fill)
	}
	if m.FS != nil {
		cfg.FSSymbol = m.FS.Symbol
	}
	if h := m.Header; h != nil {
		p := &cfg.Header
		p.Title = h.Title
		p.Release = uint64(h.Release)
		p.Version = uint64(h.Version)
		p.Strict = h.Strict
		cfg.Entry = h.Entry
		if h.CartID != "" {
			p.CartID = h.CartID
		}
		if h.Media != "" {
			if p.Media, err = util.ParseCode(h.Media); err != nil {
				return nil, fmt.Errorf("manifest: media: %w", err)
			}
		}
		if h.Region != "" {
			if p.Region, err = util.ParseCode(h.Region); err != nil {
				return nil, fmt.Errorf("manifest: region: %w", err)
			}
		}
	}
	return cfg, nil
}

// FSCapacity returns the maximum size of the cartfs image or 0 if m does not
// limit it.
func (m *Manifest) FSCapacity() (int, error) {
	if m.FS == nil || m.FS.Capacity == "" {
		return 0, nil
	}
	n, err := util.ParseSize(m.FS.Capacity)
	if err != nil {
		return 0, fmt.Errorf("manifest: fs capacity: %w", err)
	}
	return n, nil
}
