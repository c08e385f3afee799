// Copyright 2026 The Embedded Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package header

import (
	"fmt"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiTitle converts s to printable ASCII. Letters with diacritics are
// replaced by their base letters (é -> e), compatibility characters by their
// plain forms (full-width Ａ -> A).
func asciiTitle(s string, strict bool) (string, error) {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	a, _, err := transform.String(t, s)
	if err != nil {
		return "", &FieldError{Title, fmt.Sprintf("%q", s), err.Error()}
	}
	for _, r := range a {
		if r < 0x20 || r > 0x7e {
			return "", &FieldError{Title, fmt.Sprintf("%q", s),
				fmt.Sprintf("character %q has no ASCII form", r)}
		}
	}
	if len(a) > Title.Width {
		if strict {
			return "", &FieldError{Title, fmt.Sprintf("%q", s),
				fmt.Sprintf("longer than %d characters", Title.Width)}
		}
		a = a[:Title.Width]
	}
	return a, nil
}
