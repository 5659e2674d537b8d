package archive

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/tokenfield/pkg/mirror"
)

// Node is an entry in an archive hierarchy: the archive itself, a folder
// or a record.
type Node struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Kind     string  `json:"kind"` // "archive", "folder" or "record"
	Children []*Node `json:"children,omitempty"`
}

// Node kinds.
const (
	NodeArchive = "archive"
	NodeFolder  = "folder"
	NodeRecord  = "record"
)

// Tree assembles the hierarchy of an archive. Folders come before records
// at each level, each sorted by name. Entries whose parent is unknown are
// attached to the root.
func Tree(target string, folders []mirror.Folder, records []Entry) *Node {
	root := &Node{ID: mirror.RootID, Name: target, Kind: NodeArchive}
	byID := map[string]*Node{mirror.RootID: root}
	for _, f := range folders {
		byID[f.ID] = &Node{ID: f.ID, Name: f.Name, Kind: NodeFolder}
	}

	parentOf := func(id string) *Node {
		if p, ok := byID[id]; ok {
			return p
		}
		return root
	}
	parentIDs := make(map[string]string, len(folders))
	for _, f := range folders {
		parentIDs[f.ID] = f.ParentID
	}
	for _, f := range folders {
		p := parentOf(f.ParentID)
		if cyclic(f.ID, parentIDs) {
			p = root
		}
		p.Children = append(p.Children, byID[f.ID])
	}
	for _, r := range records {
		p := parentOf(r.FolderID)
		p.Children = append(p.Children, &Node{ID: r.ID, Name: r.Name, Kind: NodeRecord})
	}

	root.sort()
	return root
}

// LoadTree reads an archive's folders and records from store and assembles
// its hierarchy.
func LoadTree(ctx context.Context, store Store, target string) (*Node, error) {
	folders, err := store.Folders(ctx, target)
	if err != nil {
		return nil, err
	}
	records, err := store.Records(ctx, target)
	if err != nil {
		return nil, err
	}
	return Tree(target, folders, records), nil
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(n *Node, depth int)) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int), depth int) {
	fn(n, depth)
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of folders and records below n.
func (n *Node) Count() (folders, records int) {
	n.Walk(func(c *Node, _ int) {
		switch c.Kind {
		case NodeFolder:
			folders++
		case NodeRecord:
			records++
		}
	})
	return folders, records
}

// cyclic reports whether following parents from id leads back to id.
func cyclic(id string, parentIDs map[string]string) bool {
	cur := parentIDs[id]
	for range len(parentIDs) {
		if cur == id {
			return true
		}
		next, ok := parentIDs[cur]
		if !ok {
			return false
		}
		cur = next
	}
	return true
}

func (n *Node) sort() {
	rank := func(k string) int {
		if k == NodeFolder {
			return 0
		}
		return 1
	}
	slices.SortStableFunc(n.Children, func(a, b *Node) int {
		return cmp.Or(
			cmp.Compare(rank(a.Kind), rank(b.Kind)),
			cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)),
		)
	})
	for _, c := range n.Children {
		c.sort()
	}
}
