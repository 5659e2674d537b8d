package layout

import "github.com/matzehuels/tokenfield/pkg/errors"

// Default gaps, in grid units.
const (
	DefaultItemGap        = 0
	DefaultLetterGroupGap = 3
	DefaultRowGap         = 3
	DefaultSizeGroupGap   = 6
)

// Spacing configures the gaps inserted while packing, in grid units.
type Spacing struct {
	Item        int `json:"item" koanf:"item" toml:"item" yaml:"item"`
	LetterGroup int `json:"letter_group" koanf:"letter_group" toml:"letter_group" yaml:"letter_group"`
	Row         int `json:"row" koanf:"row" toml:"row" yaml:"row"`
	SizeGroup   int `json:"size_group" koanf:"size_group" toml:"size_group" yaml:"size_group"`
}

// DefaultSpacing returns the standard gaps.
func DefaultSpacing() Spacing {
	return Spacing{
		Item:        DefaultItemGap,
		LetterGroup: DefaultLetterGroupGap,
		Row:         DefaultRowGap,
		SizeGroup:   DefaultSizeGroupGap,
	}
}

// Validate rejects negative gaps.
func (s Spacing) Validate() error {
	if s.Item < 0 || s.LetterGroup < 0 || s.Row < 0 || s.SizeGroup < 0 {
		return errors.New(errors.ErrCodeConfiguration, "spacing gaps must not be negative: %+v", s)
	}
	return nil
}
