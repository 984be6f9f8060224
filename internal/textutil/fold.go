package textutil

import "golang.org/x/text/cases"

// Fold returns the Unicode case-folded form of s, so "Größe" and "GRÖSSE"
// compare equal. Used for stored search keys.
func Fold(s string) string {
	return cases.Fold().String(s)
}
