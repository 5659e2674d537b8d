// Package world provides a file-backed host for tokenization runs.
//
// A [World] wraps a [Document] and serves it through the
// [pipeline.ActorProvider] and [pipeline.PlacementSink] contracts. Changes
// are held in memory until [World.Save] writes them back.
package world

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/tokenfield/pkg/mirror"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

var (
	_ pipeline.ActorProvider = (*World)(nil)
	_ pipeline.PlacementSink = (*World)(nil)
)

// World is a world document opened for a run. It is safe for concurrent use.
type World struct {
	mu   sync.Mutex
	doc  *Document
	path string
}

// New wraps an in-memory document. Save fails until a path is set with
// SaveAs.
func New(doc *Document) *World {
	if doc == nil {
		doc = &Document{}
	}
	return &World{doc: doc}
}

// Open loads the document at path.
func Open(path string) (*World, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &World{doc: doc, path: path}, nil
}

// Path returns the file the world was loaded from.
func (w *World) Path() string { return w.path }

// Document returns a copy of the current document.
func (w *World) Document() *Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	return &Document{
		Scene:   w.doc.Scene,
		Folders: slices.Clone(w.doc.Folders),
		Actors:  slices.Clone(w.doc.Actors),
		Tokens:  slices.Clone(w.doc.Tokens),
	}
}

// Save writes the document back to the file it was loaded from.
func (w *World) Save() error {
	return w.SaveAs(w.path)
}

// SaveAs writes the document to path, which becomes the world's path.
func (w *World) SaveAs(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := Save(path, w.doc); err != nil {
		return err
	}
	w.path = path
	return nil
}

// Scene returns the world's scene.
func (w *World) Scene(context.Context) (pipeline.Scene, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doc.Scene, nil
}

// Actors returns every actor that is not player-owned, in document order.
func (w *World) Actors(context.Context) ([]pipeline.Actor, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]pipeline.Actor, 0, len(w.doc.Actors))
	for _, a := range w.doc.Actors {
		if !a.PlayerOwned {
			out = append(out, a)
		}
	}
	return out, nil
}

// Folders returns the actor folder tree.
func (w *World) Folders(context.Context) ([]mirror.Folder, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.doc.Folders), nil
}

// DeleteActors removes the actors with the given ids. Unknown ids are
// ignored.
func (w *World) DeleteActors(_ context.Context, ids []string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	before := len(w.doc.Actors)
	w.doc.Actors = slices.DeleteFunc(w.doc.Actors, func(a pipeline.Actor) bool {
		return slices.Contains(ids, a.ID)
	})
	return before - len(w.doc.Actors), nil
}

// Tokens returns the tokens on the scene.
func (w *World) Tokens(context.Context) ([]pipeline.Token, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.doc.Tokens), nil
}

// CreateTokens appends tokens to the scene, assigning a fresh id to each
// token that has none.
func (w *World) CreateTokens(_ context.Context, tokens []pipeline.Token) ([]pipeline.Token, error) {
	created := slices.Clone(tokens)
	for i := range created {
		if created[i].ID == "" {
			created[i].ID = uuid.NewString()
		}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.doc.Tokens = append(w.doc.Tokens, created...)
	return created, nil
}

// DeleteTokens removes the tokens with the given ids. Unknown ids are
// ignored.
func (w *World) DeleteTokens(_ context.Context, ids []string) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	before := len(w.doc.Tokens)
	w.doc.Tokens = slices.DeleteFunc(w.doc.Tokens, func(t pipeline.Token) bool {
		return slices.Contains(ids, t.ID)
	})
	return before - len(w.doc.Tokens), nil
}
