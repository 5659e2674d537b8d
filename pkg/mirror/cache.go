package mirror

import "strings"

// RootID is the parent id of top-level folders in the target archive.
const RootID = ""

// Key identifies a target folder within one mirroring pass.
type Key struct {
	ParentID string
	Name     string
}

// Cache maps (parent, name) pairs to target folder ids for one pass.
// It is not safe for concurrent use.
type Cache struct {
	ids map[Key]string
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{ids: make(map[Key]string)}
}

// Seed registers folders that already exist in the target. When two
// folders share a parent and name the first one wins. It returns the
// number of entries added.
func (c *Cache) Seed(folders ...Folder) int {
	n := 0
	for _, f := range folders {
		k := Key{ParentID: f.ParentID, Name: strings.TrimSpace(f.Name)}
		if k.Name == "" || f.ID == "" {
			continue
		}
		if _, ok := c.ids[k]; ok {
			continue
		}
		c.ids[k] = f.ID
		n++
	}
	return n
}

// Lookup returns the cached id for name under parentID.
func (c *Cache) Lookup(parentID, name string) (string, bool) {
	id, ok := c.ids[Key{ParentID: parentID, Name: name}]
	return id, ok
}

// Store records id as the folder for name under parentID.
func (c *Cache) Store(parentID, name, id string) {
	c.ids[Key{ParentID: parentID, Name: name}] = id
}

// Len returns the number of cached folders.
func (c *Cache) Len() int { return len(c.ids) }
