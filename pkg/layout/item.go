package layout

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/matzehuels/tokenfield/pkg/errors"
)

// OtherLetter is the letter bucket for names that are empty or do not
// start with a letter.
const OtherLetter = "#"

// Item is one thing to place. Width and Height are measured in grid cells.
type Item struct {
	ID     string `json:"id" toml:"id" yaml:"id"`
	Name   string `json:"name" toml:"name" yaml:"name"`
	Width  int    `json:"width" toml:"width" yaml:"width"`
	Height int    `json:"height" toml:"height" yaml:"height"`
}

// NewItem constructs a validated item.
func NewItem(id, name string, width, height int) (Item, error) {
	it := Item{ID: id, Name: name, Width: width, Height: height}
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	return it, nil
}

// Validate checks that the footprint is at least one cell in each direction.
func (it Item) Validate() error {
	if it.Width < 1 || it.Height < 1 {
		return errors.New(errors.ErrCodeInvalidInput,
			"item %q (%s) has footprint %dx%d, both sides must be at least 1", it.Name, it.ID, it.Width, it.Height)
	}
	return nil
}

// SizeKey returns the size group of the item: the larger footprint side.
// A positive ceiling collapses every key at or above it into one bucket.
func (it Item) SizeKey(ceiling int) int {
	k := max(it.Width, it.Height)
	if ceiling > 0 && k > ceiling {
		return ceiling
	}
	return k
}

// LetterKey returns the uppercased first letter of the trimmed name,
// or OtherLetter.
func (it Item) LetterKey() string {
	name := strings.TrimSpace(it.Name)
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError || !unicode.IsLetter(r) {
		return OtherLetter
	}
	return string(unicode.ToUpper(r))
}
