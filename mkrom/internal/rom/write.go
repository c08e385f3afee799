// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rom

import (
	"io"
	"os"
	"path/filepath"

	"github.com/marcinbor85/gohex"
)

// WriteFile writes the output file using the write function. The data is
// written to a temporary file in the same directory which is renamed to name
// only if the write succeeds, so a failed build never leaves a partial image.
func WriteFile(name string, write func(w io.Writer) error) (err error) {
	f, err := os.CreateTemp(filepath.Dir(name), "."+filepath.Base(name)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()
	if err = write(f); err != nil {
		return err
	}
	if err = f.Chmod(0o644); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), name)
}

// Binary returns the write function that writes data as is.
func Binary(data []byte) func(w io.Writer) error {
	return func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	}
}

// IntelHex returns the write function that writes data in the Intel HEX
// format with data[0] at the PI bus address PIBase.
func IntelHex(data []byte) func(w io.Writer) error {
	return func(w io.Writer) error {
		mem := gohex.NewMemory()
		if err := mem.AddBinary(PIBase, data); err != nil {
			return err
		}
		return mem.DumpIntelHex(w, 16)
	}
}
