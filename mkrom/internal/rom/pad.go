// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rom

import (
	"bytes"
	"fmt"
)

const (
	// Boundary is the default size of the ROM image is a multiple of.
	Boundary = 0x1000

	// MaxSize is the size of the PI cartridge domain 1 address space
	// (0x10000000 - 0x1fbfffff).
	MaxSize = 0xfc00000

	// DefaultFill is the padding byte used by the command line tools.
	DefaultFill = 0xff
)

// OversizeError is returned if the image does not fit in the available
// space.
type OversizeError struct {
	Size, Max int
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("rom: image size %#x exceeds %#x", e.Size, e.Max)
}

// Pad extends b with the fill byte to a multiple of boundary. An aligned b
// is returned unchanged. The padded size must not exceed MaxSize.
func Pad(b []byte, boundary int, fill byte) ([]byte, error) {
	if boundary <= 0 || boundary&(boundary-1) != 0 {
		return nil, fmt.Errorf("rom: boundary %d is not a power of two", boundary)
	}
	n := alignUp(len(b), boundary)
	if n > MaxSize {
		return nil, &OversizeError{n, MaxSize}
	}
	if n == len(b) {
		return b, nil
	}
	return append(b[:len(b):len(b)], bytes.Repeat([]byte{fill}, n-len(b))...), nil
}

// PadTo extends b with the fill byte to the cartridge size. The size must be
// a power of two.
func PadTo(b []byte, size int, fill byte) ([]byte, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("rom: target size %#x is not a power of two", size)
	}
	if size > MaxSize {
		return nil, &OversizeError{size, MaxSize}
	}
	if len(b) > size {
		return nil, &OversizeError{len(b), size}
	}
	if len(b) == size {
		return b, nil
	}
	return append(b[:len(b):len(b)], bytes.Repeat([]byte{fill}, size-len(b))...), nil
}

func alignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}
