package pipeline

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tokenfield/pkg/cache"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/layout"
	"github.com/matzehuels/tokenfield/pkg/mirror"
	"github.com/matzehuels/tokenfield/pkg/observability"
)

// Collaborators are the external systems a run reads from and writes to.
type Collaborators struct {
	Actors     ActorProvider
	Sink       PlacementSink
	Archive    ArchiveStore      // required only when archiving
	Footprints FootprintResolver // defaults to PrototypeFootprint
	Notifier   Notifier          // defaults to NopNotifier
}

// Runner executes runs against one set of collaborators, with layout
// caching.
//
// The Runner holds no per-run state. Layout-only calls are safe for
// concurrent use; Execute mutates the collaborators and callers must not
// run two Executes against the same world at once.
type Runner struct {
	Collaborators

	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(deps Collaborators, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	if deps.Footprints == nil {
		deps.Footprints = PrototypeFootprint{}
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	return &Runner{
		Collaborators: deps,
		Cache:         c,
		Keyer:         keyer,
		Logger:        logger,
	}
}

// plan is everything stage 0 gathers before the first mutation.
type plan struct {
	scene  Scene
	area   layout.Area
	actors []Actor

	snap    *mirror.Snapshot
	seeded  []mirror.Folder
	archive bool
}

// Execute runs the complete validate → clear → layout → place → archive →
// delete sequence.
//
// Errors before the clear stage leave everything untouched and return a nil
// Result. Later errors return the Result so far together with the error.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	hooks := observability.Pipeline()

	// Stage 0: Validate
	start := time.Now()
	hooks.OnStageStart(ctx, observability.StageValidate, 0)
	p, err := r.prepare(ctx, opts)
	hooks.OnStageComplete(ctx, observability.StageValidate, 0, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	result := &Result{Scene: p.scene, Area: p.area}
	result.Stats.Candidates = len(p.actors)
	result.Summary.Target = opts.ArchiveTarget
	result.Summary.Archiving = opts.MoveToArchive
	result.Summary.Deleting = opts.DeleteOriginals

	opts.Logger.Debug("validated run",
		"scene", p.scene.Name,
		"area", fmt.Sprintf("(%d,%d)-(%d,%d)", p.area.OriginX, p.area.OriginY, p.area.LimitX, p.area.LimitY),
		"candidates", len(p.actors))

	// Stage 1: Clear
	if opts.ShouldClear() {
		start = time.Now()
		hooks.OnStageStart(ctx, observability.StageClear, 0)
		n, err := r.clear(ctx)
		result.Stats.ClearTime = time.Since(start)
		hooks.OnStageComplete(ctx, observability.StageClear, n, result.Stats.ClearTime, err)
		if err != nil {
			return result, fmt.Errorf("clear tokens: %w", err)
		}
		result.Summary.Cleared = n
		opts.Logger.Info("cleared tokens", "count", n, "duration", result.Stats.ClearTime)
	}

	if len(p.actors) == 0 {
		r.Notifier.Warn("No non-player actors found.")
		r.Notifier.Info(result.Summary.String())
		return result, nil
	}

	// Stage 2: Footprint
	hooks.OnStageStart(ctx, observability.StageFootprint, len(p.actors))
	start = time.Now()
	items, err := r.footprints(ctx, p.actors)
	hooks.OnStageComplete(ctx, observability.StageFootprint, len(items), time.Since(start), err)
	if err != nil {
		return result, err
	}

	// Stage 3: Layout
	start = time.Now()
	hooks.OnStageStart(ctx, observability.StageLayout, len(items))
	engine := layout.New(*opts.Spacing, opts.SizeCeiling)
	res, hit, err := r.ComputeLayoutWithCacheInfo(ctx, engine, items, p.area, opts.Refresh)
	result.Stats.LayoutTime = time.Since(start)
	result.CacheInfo.LayoutHit = hit
	result.Layout = res
	hooks.OnStageComplete(ctx, observability.StageLayout, len(res.Placements), result.Stats.LayoutTime, err)
	if err != nil {
		if !errors.Is(err, errors.ErrCodeVerticalOverflow) || !opts.AllowPartial {
			return result, fmt.Errorf("layout: %w", err)
		}
		result.Overflow = err
		result.Summary.Skipped = len(items) - len(res.Placements)
		opts.Logger.Warn("area overflow, placing partial layout",
			"placed", len(res.Placements),
			"skipped", result.Summary.Skipped)
	}
	opts.Logger.Info("computed layout",
		"placements", len(res.Placements),
		"groups", len(res.Groups),
		"cached", hit,
		"duration", result.Stats.LayoutTime)

	if len(res.Placements) == 0 {
		r.Notifier.Warn("No tokens to create within padded bounds.")
		r.Notifier.Info(result.Summary.String())
		return result, nil
	}

	// Stage 4: Place
	start = time.Now()
	hooks.OnStageStart(ctx, observability.StagePlace, len(res.Placements))
	created, err := r.place(ctx, p, res, opts)
	result.Stats.PlaceTime = time.Since(start)
	hooks.OnStageComplete(ctx, observability.StagePlace, len(created), result.Stats.PlaceTime, err)
	if err != nil {
		return result, fmt.Errorf("create tokens: %w", err)
	}
	result.Tokens = created
	result.Summary.Placed = len(created)
	opts.Logger.Info("placed tokens", "count", len(created), "duration", result.Stats.PlaceTime)

	// Stage 5: Archive
	toDelete := actorIDs(p.actors)
	if p.archive {
		start = time.Now()
		hooks.OnStageStart(ctx, observability.StageArchive, len(p.actors))
		archived, err := r.archive(ctx, p, opts, result)
		result.Stats.ArchiveTime = time.Since(start)
		hooks.OnStageComplete(ctx, observability.StageArchive, len(archived), result.Stats.ArchiveTime, err)
		result.Summary.Archived = len(archived)
		if err != nil {
			return result, fmt.Errorf("archive: %w", err)
		}
		toDelete = archived
		r.Notifier.Info(fmt.Sprintf("Copied %d actor(s) to archive %s.", len(archived), opts.ArchiveTarget))
		if n := len(result.Summary.Failures); n > 0 {
			r.Notifier.Warn(fmt.Sprintf("%d actor(s) could not be archived and were kept.", n))
		}
		opts.Logger.Info("archived actors",
			"target", opts.ArchiveTarget,
			"archived", len(archived),
			"failed", len(result.Summary.Failures),
			"folders_created", result.Stats.FoldersCreated,
			"duration", result.Stats.ArchiveTime)
	}

	// Stage 6: Delete
	if opts.DeleteOriginals && len(toDelete) > 0 {
		start = time.Now()
		hooks.OnStageStart(ctx, observability.StageDelete, len(toDelete))
		n, err := r.Actors.DeleteActors(ctx, toDelete)
		result.Stats.DeleteTime = time.Since(start)
		hooks.OnStageComplete(ctx, observability.StageDelete, n, result.Stats.DeleteTime, err)
		if err != nil {
			return result, fmt.Errorf("delete actors: %w", err)
		}
		result.Summary.Deleted = n
		r.Notifier.Info(fmt.Sprintf("Deleted %d actor(s) from the world.", n))
		opts.Logger.Info("deleted actors", "count", n, "duration", result.Stats.DeleteTime)
	}

	r.Notifier.Info(result.Summary.String())
	return result, nil
}

// prepare gathers and checks every input without mutating anything.
func (r *Runner) prepare(ctx context.Context, opts Options) (*plan, error) {
	if r.Actors == nil || r.Sink == nil {
		return nil, errors.New(errors.ErrCodeConfiguration, "an actor provider and a placement sink are required")
	}

	scene, err := r.Actors.Scene(ctx)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	area, err := layout.AreaFromScene(scene.Geometry())
	if err != nil {
		return nil, err
	}
	actors, err := r.Actors.Actors(ctx)
	if err != nil {
		return nil, fmt.Errorf("read actors: %w", err)
	}

	p := &plan{scene: scene, area: area, actors: actors, archive: opts.MoveToArchive}
	if !p.archive {
		return p, nil
	}

	if err := r.checkArchive(ctx, opts.ArchiveTarget); err != nil {
		return nil, err
	}
	folders, err := r.Actors.Folders(ctx)
	if err != nil {
		return nil, fmt.Errorf("read folders: %w", err)
	}
	if p.snap, err = mirror.NewSnapshot(folders); err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "actor folders")
	}
	err = cache.RetryWithBackoff(ctx, func() error {
		var ferr error
		p.seeded, ferr = r.Archive.Folders(ctx, opts.ArchiveTarget)
		return ferr
	})
	if err != nil {
		return nil, fmt.Errorf("read archive folders: %w", err)
	}
	return p, nil
}

// checkArchive verifies that target exists, holds actors and is writable.
func (r *Runner) checkArchive(ctx context.Context, target string) error {
	if r.Archive == nil {
		return errors.New(errors.ErrCodeConfiguration, "archiving requested but no archive store is configured")
	}
	var info ArchiveInfo
	err := cache.RetryWithBackoff(ctx, func() error {
		var ierr error
		info, ierr = r.Archive.Inspect(ctx, target)
		return ierr
	})
	if err != nil {
		return fmt.Errorf("inspect archive %s: %w", target, err)
	}
	switch {
	case !info.Exists:
		return errors.Wrap(errors.ErrCodeConfiguration,
			errors.New(errors.ErrCodeArchiveNotFound, "archive %q not found", target), "unusable archive target")
	case info.Kind != KindActor:
		return errors.New(errors.ErrCodeConfiguration, "archive %q holds %s records, not %s", target, info.Kind, KindActor)
	case info.Locked:
		return errors.Wrap(errors.ErrCodeConfiguration,
			errors.New(errors.ErrCodeArchiveLocked, "archive %q is locked", target), "unusable archive target")
	}
	return nil
}

func (r *Runner) clear(ctx context.Context) (int, error) {
	tokens, err := r.Sink.Tokens(ctx)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, nil
	}
	ids := make([]string, len(tokens))
	for i, t := range tokens {
		ids[i] = t.ID
	}
	return r.Sink.DeleteTokens(ctx, ids)
}

func (r *Runner) footprints(ctx context.Context, actors []Actor) ([]layout.Item, error) {
	items := make([]layout.Item, 0, len(actors))
	for _, a := range actors {
		w, h, err := r.Footprints.Footprint(ctx, a)
		if err != nil {
			return nil, fmt.Errorf("footprint of %q: %w", a.Name, err)
		}
		it, err := layout.NewItem(a.ID, strings.TrimSpace(a.Name), w, h)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (r *Runner) place(ctx context.Context, p *plan, res layout.Result, opts Options) ([]Token, error) {
	return r.Sink.CreateTokens(ctx, placedTokens(p.actors, res, p.scene.GridSize, opts.DisplayModeOrDefault()))
}

// placedTokens builds one token per placement, in placement order.
func placedTokens(actors []Actor, res layout.Result, gridSize, displayMode int) []Token {
	byID := make(map[string]Actor, len(actors))
	for _, a := range actors {
		byID[a.ID] = a
	}
	tokens := make([]Token, 0, len(res.Placements))
	for _, pl := range res.Placements {
		tokens = append(tokens, PlacedToken(byID[pl.Item.ID], pl, gridSize, displayMode))
	}
	return tokens
}

// archive files every candidate in the archive, one actor at a time. It
// returns the ids of the actors that were archived. Only cancellation
// aborts the pass; other failures are recorded on result.
func (r *Runner) archive(ctx context.Context, p *plan, opts Options, result *Result) ([]string, error) {
	target := opts.ArchiveTarget
	folders := mirror.NewCache()
	seeded := folders.Seed(p.seeded...)
	opts.Logger.Debug("seeded folder cache", "target", target, "folders", seeded)

	m := mirror.New(p.snap, folders, func(ctx context.Context, parentID, name string) (string, error) {
		var id string
		err := cache.RetryWithBackoff(ctx, func() error {
			var cerr error
			id, cerr = r.Archive.CreateFolder(ctx, target, parentID, name)
			return cerr
		})
		return id, err
	})
	defer func() {
		result.Stats.FoldersCreated = m.Created
		result.Stats.FoldersReused = m.Reused
	}()

	hooks := observability.Pipeline()
	var archived []string
	for _, a := range p.actors {
		if err := ctx.Err(); err != nil {
			return archived, err
		}

		folderID, err := m.EnsureID(ctx, a.FolderID)
		if err == nil {
			rec := NewRecord(a, folderID)
			err = cache.RetryWithBackoff(ctx, func() error {
				_, rerr := r.Archive.CreateRecord(ctx, target, rec)
				return rerr
			})
		}
		if err != nil {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return archived, err
			}
			result.Summary.Failures = append(result.Summary.Failures, Failure{ActorID: a.ID, ActorName: a.Name, Err: err})
			hooks.OnActorFailed(ctx, a.ID, err)
			opts.Logger.Warn("archive failed", "actor", a.Name, "id", a.ID, "err", err)
			continue
		}
		archived = append(archived, a.ID)
	}
	return archived, nil
}

// ComputeLayoutWithCacheInfo lays out items with caching and returns cache
// hit info. Only complete layouts are cached.
func (r *Runner) ComputeLayoutWithCacheInfo(ctx context.Context, engine *layout.Engine, items []layout.Item, area layout.Area, refresh bool) (layout.Result, bool, error) {
	itemsHash, err := cache.HashJSON(items)
	if err != nil {
		return layout.Result{}, false, fmt.Errorf("hash items: %w", err)
	}
	cacheKey := r.Keyer.LayoutKey(itemsHash, LayoutKeyOpts(area, engine.Spacing, engine.SizeCeiling))
	hooks := observability.Cache()

	if !refresh {
		if data, hit, err := r.Cache.Get(ctx, cacheKey); err == nil && hit {
			var cached layout.Result
			if err := json.Unmarshal(data, &cached); err == nil {
				hooks.OnCacheHit(ctx, "layout")
				return cached, true, nil
			}
			// If deserialization fails, fall through to recompute
		}
		hooks.OnCacheMiss(ctx, "layout")
	}

	res, err := engine.Layout(items, area)
	if err != nil {
		return res, false, err
	}

	if data, err := json.Marshal(res); err == nil {
		if err := r.Cache.Set(ctx, cacheKey, data, cache.TTLLayout); err == nil {
			hooks.OnCacheSet(ctx, "layout", len(data))
		}
	}
	return res, false, nil
}

// ComputeLayout is a convenience wrapper that calls ComputeLayoutWithCacheInfo
// and discards the cache hit info.
func (r *Runner) ComputeLayout(ctx context.Context, engine *layout.Engine, items []layout.Item, area layout.Area) (layout.Result, error) {
	res, _, err := r.ComputeLayoutWithCacheInfo(ctx, engine, items, area, false)
	return res, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

func actorIDs(actors []Actor) []string {
	ids := make([]string, len(actors))
	for i, a := range actors {
		ids[i] = a.ID
	}
	return ids
}
