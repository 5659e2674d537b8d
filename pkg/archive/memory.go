package archive

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/mirror"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// MemoryStore keeps archives in process memory. It is safe for concurrent
// use.
type MemoryStore struct {
	mu       sync.Mutex
	archives map[string]*memArchive
}

type memArchive struct {
	info    pipeline.ArchiveInfo
	folders []mirror.Folder
	records []pipeline.Record
	entries []Entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{archives: make(map[string]*memArchive)}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, key, kind string) error {
	if err := validateCreate(key, kind); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.archives[key]; ok {
		return exists(key)
	}
	s.archives[key] = &memArchive{info: pipeline.ArchiveInfo{Exists: true, Kind: kind}}
	return nil
}

// SetLocked implements Store.
func (s *MemoryStore) SetLocked(_ context.Context, key string, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[key]
	if !ok {
		return notFound(key)
	}
	a.info.Locked = locked
	return nil
}

// Inspect implements pipeline.ArchiveStore.
func (s *MemoryStore) Inspect(_ context.Context, target string) (pipeline.ArchiveInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.archives[target]; ok {
		return a.info, nil
	}
	return pipeline.ArchiveInfo{}, nil
}

// Folders implements pipeline.ArchiveStore.
func (s *MemoryStore) Folders(_ context.Context, target string) ([]mirror.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[target]
	if !ok {
		return nil, notFound(target)
	}
	return slices.Clone(a.folders), nil
}

// CreateFolder implements pipeline.ArchiveStore.
func (s *MemoryStore) CreateFolder(_ context.Context, target, parentID, name string) (string, error) {
	if err := validateFolderName(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[target]
	if err := writable(infoOf(a, ok), target); err != nil {
		return "", err
	}
	if parentID != mirror.RootID && !slices.ContainsFunc(a.folders, func(f mirror.Folder) bool { return f.ID == parentID }) {
		return "", errors.New(errors.ErrCodeNotFound, "parent folder %q not found in %s", parentID, target)
	}
	if i := slices.IndexFunc(a.folders, func(f mirror.Folder) bool { return f.ParentID == parentID && f.Name == name }); i >= 0 {
		return a.folders[i].ID, nil
	}
	id := uuid.NewString()
	a.folders = append(a.folders, mirror.Folder{ID: id, Name: name, ParentID: parentID})
	return id, nil
}

// CreateRecord implements pipeline.ArchiveStore.
func (s *MemoryStore) CreateRecord(_ context.Context, target string, rec pipeline.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[target]
	if err := writable(infoOf(a, ok), target); err != nil {
		return "", err
	}
	id := recordID(rec)
	if slices.ContainsFunc(a.entries, func(e Entry) bool { return e.ID == id }) {
		return id, nil
	}
	a.records = append(a.records, rec)
	a.entries = append(a.entries, Entry{ID: id, SourceID: rec.SourceID, Name: rec.Name, FolderID: rec.FolderID})
	return id, nil
}

// Records implements Store.
func (s *MemoryStore) Records(_ context.Context, target string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.archives[target]
	if !ok {
		return nil, notFound(target)
	}
	return slices.Clone(a.entries), nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

func infoOf(a *memArchive, ok bool) pipeline.ArchiveInfo {
	if !ok {
		return pipeline.ArchiveInfo{}
	}
	return a.info
}
