package mirror

import (
	"slices"
	"strings"

	"github.com/matzehuels/tokenfield/pkg/errors"
)

// Folder is a node in a folder tree. An empty ParentID marks a top-level
// folder.
type Folder struct {
	ID       string `json:"id" toml:"id" yaml:"id"`
	Name     string `json:"name" toml:"name" yaml:"name"`
	ParentID string `json:"parent_id,omitempty" toml:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

// Snapshot is an immutable id index over a source folder tree, taken once
// before a mirroring pass.
type Snapshot struct {
	byID map[string]Folder
}

// NewSnapshot indexes folders by id. Duplicate ids are rejected.
func NewSnapshot(folders []Folder) (*Snapshot, error) {
	byID := make(map[string]Folder, len(folders))
	for _, f := range folders {
		if f.ID == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "folder %q has no id", f.Name)
		}
		if _, dup := byID[f.ID]; dup {
			return nil, errors.New(errors.ErrCodeInvalidInput, "duplicate folder id %q", f.ID)
		}
		byID[f.ID] = f
	}
	return &Snapshot{byID: byID}, nil
}

// Len returns the number of folders in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.byID)
}

// Get returns the folder with the given id.
func (s *Snapshot) Get(id string) (Folder, bool) {
	if s == nil {
		return Folder{}, false
	}
	f, ok := s.byID[id]
	return f, ok
}

// Chain returns the names from the root down to the folder with leafID.
func (s *Snapshot) Chain(leafID string) ([]string, error) {
	leaf, ok := s.Get(leafID)
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "folder %q not in snapshot", leafID)
	}
	return s.Path(leaf)
}

// Path returns the names from the root down to leaf, following ParentID
// through the snapshot. Names are trimmed and blank names are skipped.
func (s *Snapshot) Path(leaf Folder) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	cur := leaf
	for {
		if cur.ID != "" {
			if seen[cur.ID] {
				return nil, errors.New(errors.ErrCodeInvalidInput, "folder cycle through %q", cur.ID)
			}
			seen[cur.ID] = true
		}
		if name := strings.TrimSpace(cur.Name); name != "" {
			names = append(names, name)
		}
		if cur.ParentID == "" {
			break
		}
		parent, ok := s.Get(cur.ParentID)
		if !ok {
			return nil, errors.New(errors.ErrCodeNotFound,
				"folder %q references missing parent %q", cur.Name, cur.ParentID)
		}
		cur = parent
	}
	slices.Reverse(names)
	return names, nil
}
