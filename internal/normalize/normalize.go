// Package normalize reduces raw field values to canonical comparable forms.
// Every function is total: empty input yields empty output.
package normalize

import (
	"strings"
	"unicode"
)

// accents maps the accented Portuguese letters seen in names to ASCII.
var accents = strings.NewReplacer(
	"á", "a", "à", "a", "ã", "a", "â", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u", "ü", "u",
	"ç", "c",
)

// ID keeps only the digits of a tax or person identifier, so
// "12.345.678/0001-99" and "12345678000199" compare equal.
func ID(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Text lowercases s and collapses runs of whitespace to a single space.
func Text(s string) string {
	if s == "" {
		return ""
	}
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), unicode.IsSpace), " ")
}

// Name is Text plus accent stripping, for matching person names across
// documents written with inconsistent accenting.
func Name(s string) string {
	return accents.Replace(Text(s))
}
