package pipeline

import (
	"context"
	"math"
)

// PrototypeFootprint sizes a token from the actor's prototype dimensions.
// Fractional sizes round up to whole cells; missing sizes count as one cell.
type PrototypeFootprint struct{}

// Footprint implements FootprintResolver.
func (PrototypeFootprint) Footprint(_ context.Context, a Actor) (int, int, error) {
	return cells(a.Prototype.Width), cells(a.Prototype.Height), nil
}

// SizeCodeFootprint sizes a token from the actor's numeric size category,
// producing a square footprint.
type SizeCodeFootprint struct{}

// Footprint implements FootprintResolver.
func (SizeCodeFootprint) Footprint(_ context.Context, a Actor) (int, int, error) {
	n := GridSpan(a.SizeCode)
	return n, n, nil
}

// GridSpan maps a size category to the number of cells per side.
// Categories below medium occupy a single cell.
func GridSpan(sizeCode int) int {
	switch sizeCode {
	case 5:
		return 2
	case 6:
		return 3
	case 7:
		return 4
	case 8:
		return 6
	default:
		return 1
	}
}

// IconScale maps a size category to the texture scale inside its cell.
// Only categories below small shrink the icon.
func IconScale(sizeCode int) float64 {
	switch sizeCode {
	case 0:
		return 0.25
	case 1:
		return 0.4
	case 2:
		return 0.55
	case 3:
		return 0.75
	default:
		return 1
	}
}

func cells(v float64) int {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 1
	}
	return max(1, int(math.Ceil(v)))
}
