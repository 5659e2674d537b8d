// Package mirror reproduces a source folder hierarchy inside an archive.
//
// Given the folder an item lives in, [EnsureChain] makes sure the same chain
// of folder names exists in the target, creating only what is missing, and
// returns the id of the deepest target folder. A per-pass [Cache] keyed on
// (parent id, name) guarantees each target folder is created at most once,
// and can be seeded with folders that already exist in the archive.
//
// A pass is strictly sequential: resolve one chain fully before starting the
// next, so two chains never race to create the same folder.
package mirror

import (
	"context"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/observability"
)

// CreateFunc creates a folder named name under parentID in the target and
// returns its id. parentID is RootID for top-level folders.
type CreateFunc func(ctx context.Context, parentID, name string) (string, error)

// EnsureChain resolves leaf against the target and returns the id of the
// mirrored leaf folder. A nil leaf resolves to RootID without creating
// anything.
func EnsureChain(ctx context.Context, snap *Snapshot, leaf *Folder, cache *Cache, create CreateFunc) (string, error) {
	return New(snap, cache, create).Ensure(ctx, leaf)
}

// Mirror carries the state of one mirroring pass.
type Mirror struct {
	snap   *Snapshot
	cache  *Cache
	create CreateFunc
	hooks  observability.MirrorHooks

	// Created counts folders created in the target during this pass.
	Created int
	// Reused counts cache hits during this pass.
	Reused int
}

// New returns a Mirror over snap. A nil cache starts the pass empty.
func New(snap *Snapshot, cache *Cache, create CreateFunc) *Mirror {
	if cache == nil {
		cache = NewCache()
	}
	return &Mirror{
		snap:   snap,
		cache:  cache,
		create: create,
		hooks:  observability.Mirror(),
	}
}

// Cache returns the pass cache.
func (m *Mirror) Cache() *Cache { return m.cache }

// EnsureID resolves the source folder with the given id. An empty id
// resolves to RootID.
func (m *Mirror) EnsureID(ctx context.Context, folderID string) (string, error) {
	if folderID == "" {
		return RootID, nil
	}
	f, ok := m.snap.Get(folderID)
	if !ok {
		return "", errors.New(errors.ErrCodeFolderChain, "source folder %q not found", folderID)
	}
	return m.Ensure(ctx, &f)
}

// Ensure resolves leaf. Every failure, other than cancellation, is a
// FOLDER_CHAIN error. Folders created before the failure stay cached.
func (m *Mirror) Ensure(ctx context.Context, leaf *Folder) (string, error) {
	if leaf == nil {
		return RootID, nil
	}
	names, err := m.snap.Path(*leaf)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeFolderChain, err, "resolve chain of folder %q", leaf.Name)
	}

	parent := RootID
	for _, name := range names {
		if id, ok := m.cache.Lookup(parent, name); ok {
			m.Reused++
			m.hooks.OnFolderReused(ctx, parent, name, id)
			parent = id
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		id, err := m.create(ctx, parent, name)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeFolderChain, err, "create folder %q", name)
		}
		if id == "" {
			return "", errors.New(errors.ErrCodeFolderChain, "create folder %q: no id returned", name)
		}
		m.cache.Store(parent, name, id)
		m.Created++
		m.hooks.OnFolderCreated(ctx, parent, name, id)
		parent = id
	}
	return parent, nil
}
