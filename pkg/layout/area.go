package layout

import (
	"math"

	"github.com/matzehuels/tokenfield/pkg/errors"
)

// Area is the usable rectangle in grid units. Limits are exclusive.
type Area struct {
	OriginX int `json:"origin_x" toml:"origin_x" yaml:"origin_x"`
	OriginY int `json:"origin_y" toml:"origin_y" yaml:"origin_y"`
	LimitX  int `json:"limit_x" toml:"limit_x" yaml:"limit_x"`
	LimitY  int `json:"limit_y" toml:"limit_y" yaml:"limit_y"`
}

// Width returns the number of usable columns.
func (a Area) Width() int { return a.LimitX - a.OriginX }

// Height returns the number of usable rows.
func (a Area) Height() int { return a.LimitY - a.OriginY }

// Validate reports a degenerate area as a configuration error.
func (a Area) Validate() error {
	if a.OriginX >= a.LimitX || a.OriginY >= a.LimitY {
		return errors.New(errors.ErrCodeConfiguration,
			"placement area is empty: origin (%d,%d) must be left of and above limit (%d,%d)",
			a.OriginX, a.OriginY, a.LimitX, a.LimitY)
	}
	if a.OriginX < 0 || a.OriginY < 0 {
		return errors.New(errors.ErrCodeConfiguration,
			"placement area origin (%d,%d) must not be negative", a.OriginX, a.OriginY)
	}
	return nil
}

// SceneGeometry describes a scene in pixels. Padding is the fraction of the
// scene size added as a border on every side, as the host stores it.
type SceneGeometry struct {
	Width    float64 `json:"width" toml:"width" yaml:"width"`
	Height   float64 `json:"height" toml:"height" yaml:"height"`
	Padding  float64 `json:"padding" toml:"padding" yaml:"padding"`
	GridSize int     `json:"grid_size" toml:"grid_size" yaml:"grid_size"`
}

// AreaFromScene derives the padded placement area of a scene.
//
// The origin is the padding border rounded down to whole cells. The usable
// extent is the inner size rounded down to whole cells, and never less
// than one cell.
func AreaFromScene(s SceneGeometry) (Area, error) {
	if s.GridSize <= 0 {
		return Area{}, errors.New(errors.ErrCodeConfiguration, "grid size must be positive, got %d", s.GridSize)
	}
	if s.Width <= 0 || s.Height <= 0 || math.IsInf(s.Width, 0) || math.IsInf(s.Height, 0) {
		return Area{}, errors.New(errors.ErrCodeConfiguration,
			"scene dimensions must be finite and positive, got %gx%g", s.Width, s.Height)
	}
	if s.Padding < 0 || s.Padding >= 0.5 || math.IsNaN(s.Padding) {
		return Area{}, errors.New(errors.ErrCodeConfiguration, "scene padding must be in [0, 0.5), got %g", s.Padding)
	}

	grid := float64(s.GridSize)
	toCells := func(px float64) int { return max(0, int(math.Floor(px/grid))) }

	originX := toCells(s.Width * s.Padding)
	originY := toCells(s.Height * s.Padding)
	spanX := max(1, toCells(s.Width*(1-2*s.Padding)))
	spanY := max(1, toCells(s.Height*(1-2*s.Padding)))

	a := Area{OriginX: originX, OriginY: originY, LimitX: originX + spanX, LimitY: originY + spanY}
	return a, a.Validate()
}
