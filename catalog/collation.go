package catalog

import (
	"encoding/hex"
	"strings"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Genre names compare at secondary strength: case is ignored, accents are not.
// "Fantasy" and "FANTASY" collide, "Fantasy" and "Fantásy" do not.
//
// A Collator is not safe for concurrent use.
var collators = sync.Pool{
	New: func() any {
		return collate.New(language.English, collate.IgnoreCase)
	},
}

// NormalizeName trims surrounding whitespace and converts to NFC.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.TrimSpace(name))
}

// NameKey returns the collation key of a genre name, hex encoded. Two names
// are the same genre iff their keys are equal.
func NameKey(name string) string {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)

	var buf collate.Buffer
	return hex.EncodeToString(c.KeyFromString(&buf, NormalizeName(name)))
}

// SameName reports whether two genre names collide.
func SameName(a, b string) bool {
	return NameKey(a) == NameKey(b)
}
