package layout

import (
	"cmp"
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/matzehuels/tokenfield/pkg/errors"
)

// Placement is an item's assigned top-left corner in grid units.
type Placement struct {
	Item  Item `json:"item"`
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Group int  `json:"group"`
}

// Pixels converts the placement's corner to pixel units.
func (p Placement) Pixels(gridSize int) (x, y int) {
	return p.X * gridSize, p.Y * gridSize
}

// Right returns the exclusive right edge of the placement.
func (p Placement) Right() int { return p.X + p.Item.Width }

// Bottom returns the exclusive bottom edge of the placement.
func (p Placement) Bottom() int { return p.Y + p.Item.Height }

// Overlaps reports whether two placement footprints intersect.
func (p Placement) Overlaps(o Placement) bool {
	return p.X < o.Right() && o.X < p.Right() && p.Y < o.Bottom() && o.Y < p.Bottom()
}

// Group summarizes one size group of a layout run.
type Group struct {
	Key   int `json:"key"`
	Count int `json:"count"`
	Rows  int `json:"rows"`
}

// Result holds the placements of a layout run in placement order.
type Result struct {
	Placements []Placement `json:"placements"`
	Groups     []Group     `json:"groups"`
}

// Bounds returns the exclusive bottom-right corner of everything placed.
func (r Result) Bounds() (right, bottom int) {
	for _, p := range r.Placements {
		right = max(right, p.Right())
		bottom = max(bottom, p.Bottom())
	}
	return right, bottom
}

// Engine packs items with a fixed spacing and size policy.
type Engine struct {
	Spacing Spacing
	// SizeCeiling collapses size keys at or above it into one group.
	// Zero disables clamping.
	SizeCeiling int
}

// New creates an engine.
func New(spacing Spacing, sizeCeiling int) *Engine {
	return &Engine{Spacing: spacing, SizeCeiling: sizeCeiling}
}

// Layout packs items with the given spacing and no size ceiling.
func Layout(items []Item, area Area, spacing Spacing) (Result, error) {
	return New(spacing, 0).Layout(items, area)
}

// sizeGroup is a bucket of items sharing one size key, already sorted.
type sizeGroup struct {
	key   int
	items []Item
}

// Layout assigns a position to every item.
//
// On VERTICAL_OVERFLOW the returned Result holds every placement made
// before the failing item. Every other error returns an empty Result.
func (e *Engine) Layout(items []Item, area Area) (Result, error) {
	if err := area.Validate(); err != nil {
		return Result{}, err
	}
	if err := e.Spacing.Validate(); err != nil {
		return Result{}, err
	}
	if e.SizeCeiling < 0 {
		return Result{}, errors.New(errors.ErrCodeConfiguration, "size ceiling must not be negative, got %d", e.SizeCeiling)
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return Result{}, err
		}
	}

	groups := e.group(items)

	for _, g := range groups {
		for _, it := range g.items {
			if area.OriginX+it.Width > area.LimitX {
				return Result{}, &errors.ItemError{
					Kind:     errors.ErrCodeItemTooLarge,
					ItemID:   it.ID,
					ItemName: it.Name,
					Width:    it.Width,
					Height:   it.Height,
					X:        area.OriginX,
					Y:        area.OriginY,
					Limit:    area.Width(),
				}
			}
		}
	}

	res := Result{Placements: make([]Placement, 0, len(items))}
	sp := e.Spacing
	y := area.OriginY

	for _, g := range groups {
		x := area.OriginX
		rowHeight := 0
		lastLetter := ""
		summary := Group{Key: g.key, Rows: 1}

		for _, it := range g.items {
			letter := it.LetterKey()
			if lastLetter != "" && letter != lastLetter {
				x += sp.LetterGroup
			}

			wrapped := false
			if x+it.Width > area.LimitX {
				x = area.OriginX
				y += rowHeight + sp.Row
				rowHeight = 0
				lastLetter = ""
				wrapped = true
			}

			if y+it.Height > area.LimitY {
				if summary.Count > 0 {
					res.Groups = append(res.Groups, summary)
				}
				return res, &errors.ItemError{
					Kind:     errors.ErrCodeVerticalOverflow,
					ItemID:   it.ID,
					ItemName: it.Name,
					Width:    it.Width,
					Height:   it.Height,
					X:        x,
					Y:        y,
					Limit:    area.LimitY,
				}
			}

			if wrapped {
				summary.Rows++
			}
			res.Placements = append(res.Placements, Placement{Item: it, X: x, Y: y, Group: g.key})
			summary.Count++
			rowHeight = max(rowHeight, it.Height)
			lastLetter = letter
			x += it.Width + sp.Item
		}

		res.Groups = append(res.Groups, summary)
		y += rowHeight + sp.SizeGroup
	}

	return res, nil
}

// group partitions items by size key, ascending, each sorted by
// (lowercased name, id).
func (e *Engine) group(items []Item) []sizeGroup {
	lower := cases.Lower(language.Und)
	type keyed struct {
		item Item
		size int
		name string
	}
	sorted := make([]keyed, len(items))
	for i, it := range items {
		sorted[i] = keyed{item: it, size: it.SizeKey(e.SizeCeiling), name: lower.String(it.Name)}
	}
	slices.SortStableFunc(sorted, func(a, b keyed) int {
		return cmp.Or(
			cmp.Compare(a.size, b.size),
			cmp.Compare(a.name, b.name),
			cmp.Compare(a.item.ID, b.item.ID),
		)
	})

	var groups []sizeGroup
	for _, k := range sorted {
		if n := len(groups); n == 0 || groups[n-1].key != k.size {
			groups = append(groups, sizeGroup{key: k.size})
		}
		last := &groups[len(groups)-1]
		last.items = append(last.items, k.item)
	}
	return groups
}
