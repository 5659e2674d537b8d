package pipeline

import (
	"context"
	"fmt"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/layout"
)

// Preview lays out actors on scene and returns the tokens a run would
// create, without reading from or writing to any collaborator other than
// the footprint resolver and the cache. Player-owned actors are skipped.
//
// A vertical overflow is returned as an error unless opts.AllowPartial is
// set, in which case the partial placement is returned with
// Result.Overflow set.
func (r *Runner) Preview(ctx context.Context, scene Scene, actors []Actor, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	area, err := layout.AreaFromScene(scene.Geometry())
	if err != nil {
		return nil, err
	}

	candidates := make([]Actor, 0, len(actors))
	for _, a := range actors {
		if !a.PlayerOwned {
			candidates = append(candidates, a)
		}
	}

	result := &Result{Scene: scene, Area: area}
	result.Stats.Candidates = len(candidates)
	if len(candidates) == 0 {
		return result, nil
	}

	items, err := r.footprints(ctx, candidates)
	if err != nil {
		return nil, err
	}

	engine := layout.New(*opts.Spacing, opts.SizeCeiling)
	res, hit, err := r.ComputeLayoutWithCacheInfo(ctx, engine, items, area, opts.Refresh)
	result.Layout = res
	result.CacheInfo.LayoutHit = hit
	if err != nil {
		if !errors.Is(err, errors.ErrCodeVerticalOverflow) || !opts.AllowPartial {
			return result, fmt.Errorf("layout: %w", err)
		}
		result.Overflow = err
		result.Summary.Skipped = len(items) - len(res.Placements)
	}

	result.Tokens = placedTokens(candidates, res, scene.GridSize, opts.DisplayModeOrDefault())
	result.Summary.Placed = len(result.Tokens)
	return result, nil
}
