// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package info

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/n64tools/mkrom/internal/cartfs"
	"github.com/embeddedgo/n64tools/mkrom/internal/cic"
	"github.com/embeddedgo/n64tools/mkrom/internal/header"
	"github.com/embeddedgo/n64tools/mkrom/internal/ipl3"
	"github.com/embeddedgo/n64tools/mkrom/internal/rom"
)

const Descr = "print the header, checksums and cartfs content of an image"

func Command() *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "info ROM",
		Short: Descr,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			v, ok := cic.Variant(0), false
			if variant != "" {
				if v, err = cic.ParseVariant(variant); err != nil {
					return err
				}
				ok = true
			}
			return printInfo(cmd.OutOrStdout(), img, v, ok)
		},
	}
	cmd.Flags().StringVar(&variant, "cic", "", "CIC variant (default: detected from the boot code)")
	return cmd
}

func printInfo(w io.Writer, img []byte, v cic.Variant, forced bool) error {
	if len(img) < rom.ProgramOffset {
		return fmt.Errorf("image too short: %d bytes", len(img))
	}
	h, err := header.Decode(img)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 1, ' ', 0)
	for _, f := range header.Layout {
		switch f.Kind {
		case header.Uint:
			fmt.Fprintf(tw, "%s:\t%#0*x\n", f.Name, 2*f.Width, h.Uint(f))
		case header.ASCII:
			fmt.Fprintf(tw, "%s:\t%q\n", f.Name, h.Title())
		case header.Bytes:
			fmt.Fprintf(tw, "%s:\t%q\n", f.Name, h.CartID())
		}
	}
	boot := img[rom.BootCodeOffset:rom.ProgramOffset]
	how := "forced"
	if !forced {
		var ok bool
		if v, ok = ipl3.Detect(boot); ok {
			how = "detected"
		} else {
			v, how = cic.Default, "unknown boot code, assumed"
		}
	}
	fmt.Fprintf(tw, "cic:\t%v (%s)\n", v, how)
	crc1, crc2 := cic.ChecksumROM(v, img)
	hc1, hc2 := h.Checksums()
	status := "ok"
	if crc1 != hc1 || crc2 != hc2 {
		status = fmt.Sprintf("BAD, want %08x %08x", crc1, crc2)
	}
	fmt.Fprintf(tw, "checksum:\t%08x %08x %s\n", hc1, hc2, status)
	fmt.Fprintf(tw, "size:\t%#x\n", len(img))

	off, fsys := findFS(img)
	if fsys == nil {
		return tw.Flush()
	}
	fmt.Fprintf(tw, "cartfs:\t%#x bytes at %#x (PI address %#x), volume %s\n",
		fsys.Size(), off, rom.PIBase+off, fsys.UUID())
	err = fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil || name == "." {
			return err
		}
		if d.IsDir() {
			fmt.Fprintf(tw, "\t%s/\n", name)
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "\t%s\t%d\n", name, fi.Size())
		return nil
	})
	if err != nil {
		return err
	}
	return tw.Flush()
}

// findFS looks for a cartfs image stored at a sector aligned offset after
// the boot code.
func findFS(img []byte) (int, *cartfs.FS) {
	for off := rom.ProgramOffset; off+cartfs.SectorSize <= len(img); off += cartfs.SectorSize {
		if fsys, err := cartfs.Open(img[off:]); err == nil {
			return off, fsys
		}
	}
	return 0, nil
}
