// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hex

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/n64tools/mkrom/internal/rom"
	"github.com/embeddedgo/n64tools/mkrom/internal/util"
)

const Descr = "convert a cartridge image to the Intel HEX format"

func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "hex [ROM [HEX]]",
		Short: Descr,
		Long: `Convert a cartridge image to the Intel HEX format. The image is placed at
the PI bus address 0x10000000.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			args = append(args, "", "")
			in, out := util.InOutFiles(args[0], ".z64", args[1], ".hex")
			data, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			util.Logf("%s: %#x bytes", in, len(data))
			return rom.WriteFile(out, rom.IntelHex(data))
		},
	}
}
