// Package pipeline orchestrates a tokenization run.
//
// A run turns the non-player actors of a world into unlinked tokens laid out
// on a scene, optionally copies every actor into an archive with its folder
// hierarchy mirrored, and optionally deletes the originals. The same Runner
// backs the CLI and the HTTP server.
//
// # Stages
//
// Stages run strictly in order; a fatal error stops the run and nothing that
// already happened is rolled back:
//
//  0. Validate: derive the placement area, check the archive target and
//     snapshot folder trees, all without mutating anything
//  1. Clear: delete the scene's existing tokens (unless KeepExisting)
//  2. Footprint: resolve the grid footprint of every candidate
//  3. Layout: pack the footprints into the area, cached by content hash
//  4. Place: create every token in one bulk call
//  5. Archive: mirror each actor's folder chain and file a copy (MoveToArchive)
//  6. Delete: remove originals that were archived (DeleteOriginals)
//
// Per-actor archive failures do not stop the run. They are collected in
// [Summary.Failures] and the actor is kept in the world.
//
// # Usage
//
//	runner := pipeline.NewRunner(pipeline.Collaborators{
//	    Actors:  w,
//	    Sink:    w,
//	    Archive: store,
//	}, cache, nil, logger)
//	res, err := runner.Execute(ctx, pipeline.Options{MoveToArchive: true})
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Summary)
package pipeline

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/tokenfield/pkg/cache"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/layout"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and API
// =============================================================================

const (
	// DefaultArchiveTarget is the archive key used when none is given.
	DefaultArchiveTarget = "world.actor-archive"

	// DefaultDisplayMode shows token names on hover.
	DefaultDisplayMode = DisplayHover
)

// =============================================================================
// Options - Run Configuration
// =============================================================================

// Options configures a run. The zero value clears existing tokens, places
// every candidate, and neither archives nor deletes anything.
type Options struct {
	// KeepExisting leaves the scene's current tokens in place.
	KeepExisting bool `json:"keep_existing,omitempty"`

	// MoveToArchive copies every candidate into ArchiveTarget.
	MoveToArchive bool `json:"move_to_archive,omitempty"`

	// DeleteOriginals removes candidates from the world after archiving.
	// Without MoveToArchive every candidate is deleted.
	DeleteOriginals bool `json:"delete_originals,omitempty"`

	ArchiveTarget string `json:"archive_target,omitempty"`

	// AllowPartial places the tokens that fit when the area overflows
	// vertically instead of aborting.
	AllowPartial bool `json:"allow_partial,omitempty"`

	// Spacing defaults to layout.DefaultSpacing when nil.
	Spacing     *layout.Spacing `json:"spacing,omitempty"`
	SizeCeiling int             `json:"size_ceiling,omitempty"`

	// DisplayMode is one of DisplayNone, DisplayHover or DisplayAlways.
	// Nil means DefaultDisplayMode; DisplayNone is a real setting.
	DisplayMode *int `json:"display_mode,omitempty"`

	// Refresh recomputes the layout even when it is cached.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults.
// This method is idempotent. Every failure is a CONFIGURATION error.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Spacing == nil {
		sp := layout.DefaultSpacing()
		o.Spacing = &sp
	}
	if err := o.Spacing.Validate(); err != nil {
		return err
	}
	if o.SizeCeiling < 0 {
		return errors.New(errors.ErrCodeConfiguration, "size ceiling must not be negative, got %d", o.SizeCeiling)
	}
	if o.DisplayMode == nil {
		dm := DefaultDisplayMode
		o.DisplayMode = &dm
	}
	if err := ValidateDisplayMode(*o.DisplayMode); err != nil {
		return err
	}
	if o.ArchiveTarget == "" {
		o.ArchiveTarget = DefaultArchiveTarget
	}
	if o.MoveToArchive {
		if err := errors.ValidateArchiveTarget(o.ArchiveTarget); err != nil {
			return err
		}
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// ValidateDisplayMode returns a CONFIGURATION error unless mode is one of
// the token name display modes.
func ValidateDisplayMode(mode int) error {
	switch mode {
	case DisplayNone, DisplayHover, DisplayAlways:
		return nil
	}
	return errors.New(errors.ErrCodeConfiguration, "unknown display mode %d", mode)
}

// DisplayModeOrDefault returns the display mode, DefaultDisplayMode when unset.
func (o *Options) DisplayModeOrDefault() int {
	if o.DisplayMode == nil {
		return DefaultDisplayMode
	}
	return *o.DisplayMode
}

// ShouldClear reports whether existing tokens are deleted before placing.
func (o *Options) ShouldClear() bool {
	return !o.KeepExisting
}

// LayoutKeyOpts returns cache key options for a layout in area.
func (o *Options) LayoutKeyOpts(area layout.Area) cache.LayoutKeyOpts {
	sp := layout.DefaultSpacing()
	if o.Spacing != nil {
		sp = *o.Spacing
	}
	return LayoutKeyOpts(area, sp, o.SizeCeiling)
}

// LayoutKeyOpts returns cache key options for a layout.
func LayoutKeyOpts(area layout.Area, sp layout.Spacing, sizeCeiling int) cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		OriginX:        area.OriginX,
		OriginY:        area.OriginY,
		LimitX:         area.LimitX,
		LimitY:         area.LimitY,
		ItemGap:        sp.Item,
		LetterGroupGap: sp.LetterGroup,
		RowGap:         sp.Row,
		SizeGroupGap:   sp.SizeGroup,
		SizeCeiling:    sizeCeiling,
	}
}

// =============================================================================
// Results
// =============================================================================

// Result contains the outputs of a run.
type Result struct {
	Scene Scene
	Area  layout.Area

	// Layout is the computed placement, possibly truncated.
	Layout layout.Result

	// Tokens are the tokens created on the scene.
	Tokens []Token

	// Overflow holds the VERTICAL_OVERFLOW error of a partial run.
	Overflow error

	Summary   Summary
	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains run timing information.
type Stats struct {
	Candidates  int
	ClearTime   time.Duration
	LayoutTime  time.Duration
	PlaceTime   time.Duration
	ArchiveTime time.Duration
	DeleteTime  time.Duration

	FoldersCreated int
	FoldersReused  int
}

// CacheInfo tracks cache hits for the run.
type CacheInfo struct {
	LayoutHit bool // Whether the layout came from cache
}

// Failure records an actor that could not be archived.
type Failure struct {
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
	Err       error  `json:"-"`
}

// Error implements the error interface.
func (f Failure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.ActorName, f.ActorID, f.Err)
}

// Unwrap returns the underlying error.
func (f Failure) Unwrap() error { return f.Err }

// Summary counts what a run did.
type Summary struct {
	Cleared  int `json:"cleared"`
	Placed   int `json:"placed"`
	Skipped  int `json:"skipped"`
	Archived int `json:"archived"`
	Deleted  int `json:"deleted"`

	Target    string `json:"target,omitempty"`
	Archiving bool   `json:"archiving"`
	Deleting  bool   `json:"deleting"`

	Failures []Failure `json:"failures,omitempty"`
}

// String renders the summary as one line.
func (s Summary) String() string {
	parts := []string{
		fmt.Sprintf("Cleared %d token(s)", s.Cleared),
		fmt.Sprintf("tokenized %d actor(s)", s.Placed),
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d did not fit", s.Skipped))
	}
	if s.Archiving {
		parts = append(parts, fmt.Sprintf("copied %d to %s", s.Archived, s.Target))
	}
	if len(s.Failures) > 0 {
		parts = append(parts, fmt.Sprintf("%d failed to archive", len(s.Failures)))
	}
	if s.Deleting {
		parts = append(parts, fmt.Sprintf("deleted %d original(s)", s.Deleted))
	}
	return strings.Join(parts, "; ") + "."
}
