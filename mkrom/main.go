// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Mkrom builds Nintendo 64 cartridge images from ELF executables.
package main

import (
	"github.com/spf13/cobra"

	"github.com/embeddedgo/n64tools/mkrom/internal/cmd/build"
	"github.com/embeddedgo/n64tools/mkrom/internal/cmd/hex"
	"github.com/embeddedgo/n64tools/mkrom/internal/cmd/info"
	"github.com/embeddedgo/n64tools/mkrom/internal/cmd/mkfs"
	"github.com/embeddedgo/n64tools/mkrom/internal/util"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mkrom",
		Short:         "Nintendo 64 cartridge image builder",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&util.Verbose, "verbose", "v", false, "print diagnostic messages")
	root.AddCommand(build.Command(), info.Command(), hex.Command(), mkfs.Command())
	return root
}

func main() {
	util.FatalErr("mkrom", newRootCommand().Execute())
}
