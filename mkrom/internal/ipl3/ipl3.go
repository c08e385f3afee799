// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ipl3 handles the second stage boot code stored in the ROM right
// after the header.
package ipl3

import (
	"fmt"
	"hash/crc32"
	"os"

	"github.com/embeddedgo/n64tools/mkrom/internal/cic"
)

// Size is the size of the boot code area (ROM offsets 0x40 to 0x1000).
const Size = 0xfc0

// SizeError is returned for boot code of the wrong size.
type SizeError struct {
	Got, Want int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("ipl3: boot code is %d bytes, want %d", e.Got, e.Want)
}

// Check returns b unchanged if it has the size of the boot code area.
func Check(b []byte) ([]byte, error) {
	if len(b) != Size {
		return nil, &SizeError{len(b), Size}
	}
	return b, nil
}

// ReadFile reads and checks the boot code stored in the named file.
func ReadFile(name string) ([]byte, error) {
	b, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Check(b)
}

// CRC-32 (IEEE) of the boot code shipped with each CIC.
var known = map[uint32]cic.Variant{
	0x6170a4a1: cic.CIC6101,
	0x90bb6cb5: cic.CIC6102,
	0x0b050ee0: cic.CIC6103,
	0x98bc2c86: cic.CIC6105,
	0xacc8580a: cic.CIC6106,
	0x009e9ea3: cic.CIC7102,
}

// Detect identifies the CIC variant the boot code was written for. It
// reports false for unknown boot code (e.g. a homebrew IPL3).
func Detect(b []byte) (cic.Variant, bool) {
	v, ok := known[crc32.ChecksumIEEE(b)]
	return v, ok
}
