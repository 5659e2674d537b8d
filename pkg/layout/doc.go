// Package layout packs sized items into a padded grid area.
//
// # Overview
//
// The engine takes an unordered set of [Item] values, each with a footprint
// measured in grid cells, and assigns every item a top-left grid position
// inside an [Area]. Positions never overlap and always lie inside the area.
//
// # Algorithm
//
// Items are partitioned into size groups keyed by the larger footprint
// dimension ([Item.SizeKey]). Groups are laid out smallest first, so small
// tokens always occupy the earlier rows. Inside a group items are sorted by
// lowercased name with the id as a tie-break, which makes the order total.
//
// Each group is row-packed left to right:
//
//   - a letter-group gap separates runs of names with different initials
//   - an item that would cross the right limit wraps to a new row
//   - rows are as tall as their tallest item, plus the row gap
//   - a new group starts below the previous one, plus the size-group gap
//
// # Failure modes
//
// An item wider than the whole usable row can never be placed, so the run
// fails up front with an ITEM_TOO_LARGE [errors.ItemError] and no placements.
//
// An item whose bottom edge would cross the area's bottom limit stops the
// run with a VERTICAL_OVERFLOW [errors.ItemError]. The placements computed
// before it are still returned so the caller can decide whether a truncated
// layout is acceptable.
//
// # Usage
//
//	area, err := layout.AreaFromScene(layout.SceneGeometry{
//	    Width: 4000, Height: 3000, Padding: 0.25, GridSize: 100,
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := layout.New(layout.DefaultSpacing(), 0).Layout(items, area)
//	if errors.Is(err, errors.ErrCodeVerticalOverflow) {
//	    // res.Placements holds the items that did fit
//	}
//
// [errors.ItemError]: github.com/matzehuels/tokenfield/pkg/errors.ItemError
package layout
