// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Verbose enables the diagnostic messages printed by Logf.
var Verbose bool

func Warn(f string, args ...any) {
	fmt.Fprintf(os.Stderr, f+"\n", args...)
}

// Logf prints a diagnostic message if Verbose is set.
func Logf(f string, args ...any) {
	if Verbose {
		fmt.Fprintf(os.Stderr, f+"\n", args...)
	}
}

// FatalErr prints an error description and exits the program if the
// err != nil.
func FatalErr(what string, err error) {
	if err == nil {
		return
	}
	s := err.Error() + "\n"
	if what != "" {
		s = what + ": " + s
	}
	os.Stderr.WriteString(s)
	os.Exit(1)
}

// DirName returns the last element of the path to the current working
// directory.
func DirName() string {
	dir, err := os.Getwd()
	FatalErr("", err)
	dir = filepath.Base(dir)
	if dir == "/" || dir == "." {
		dir = ""
	}
	return dir
}

// InOutFiles infers the name of the input and output files from the name of
// the current working directory if the inName is an empty strings.
func InOutFiles(inName, inSuffix, outName, outSuffix string) (string, string) {
	if inName == "" {
		inName = DirName() + inSuffix
	}
	if outName == "" {
		outName = strings.TrimSuffix(inName, inSuffix) + outSuffix
	}
	return inName, outName
}

// ParseSize parses a size with an optional K, M or G suffix (powers of 1024).
func ParseSize(s string) (int, error) {
	mul := 1
	switch {
	case strings.HasSuffix(s, "K"):
		mul = 1 << 10
	case strings.HasSuffix(s, "M"):
		mul = 1 << 20
	case strings.HasSuffix(s, "G"):
		mul = 1 << 30
	}
	if mul != 1 {
		s = s[:len(s)-1]
	}
	u, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad size %q: %w", s, err)
	}
	n := u * uint64(mul)
	if n > 1<<32 {
		return 0, fmt.Errorf("size %d too large", n)
	}
	return int(n), nil
}

// ParseCode parses a one byte header code given as a single character
// (e.g. "E") or as a number (e.g. "0x45").
func ParseCode(s string) (uint64, error) {
	if len(s) == 1 {
		return uint64(s[0]), nil
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad code %q: not a character or a number", s)
	}
	return u, nil
}
