// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkfs

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/embeddedgo/n64tools/mkrom/internal/cartfs"
	"github.com/embeddedgo/n64tools/mkrom/internal/rom"
	"github.com/embeddedgo/n64tools/mkrom/internal/util"
)

const Descr = "build a standalone cartfs image from a directory"

func Command() *cobra.Command {
	var capacity string
	cmd := &cobra.Command{
		Use:   "mkfs DIR [IMAGE]",
		Short: Descr,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			out := filepath.Base(filepath.Clean(dir)) + ".cfs"
			if len(args) > 1 {
				out = args[1]
			}
			n, err := util.ParseSize(capacity)
			if err != nil {
				return fmt.Errorf("--capacity: %w", err)
			}
			img, err := cartfs.BuildFS(os.DirFS(dir), n)
			if err != nil {
				return fmt.Errorf("%s: %w", dir, err)
			}
			util.Logf("%s: %#x bytes", out, len(img))
			return rom.WriteFile(out, rom.Binary(img))
		},
	}
	cmd.Flags().StringVar(&capacity, "capacity", "64M", "maximum size of the image")
	return cmd
}
