package main

import (
	"testing"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
)

// TestTruncateKeepsRunesIntact ensures truncating a cell never splits
// a multi-byte rune and never exceeds the column width, whatever the
// script of the title.
func TestTruncateKeepsRunesIntact(t *testing.T) {
	cases := []struct {
		name  string
		input string
		width int
	}{
		{name: "ascii shorter than width", input: "Clean Code", width: 30},
		{name: "ascii cut", input: "The Pragmatic Programmer", width: 10},
		{name: "accented latin cut", input: "Précis de littérature française", width: 12},
		{name: "cyrillic cut", input: "Преступление и наказание", width: 9},
		{name: "cjk wide runes cut", input: "吾輩は猫である", width: 8},
		{name: "cut right at a rune boundary", input: "口口口口", width: 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := truncate(tc.input, tc.width)
			assert.True(t, utf8.ValidString(out), "truncated %q to invalid utf8 %q", tc.input, out)
			assert.LessOrEqual(t, runewidth.StringWidth(out), tc.width)
			if runewidth.StringWidth(tc.input) <= tc.width {
				assert.Equal(t, tc.input, out)
			}
		})
	}
}
