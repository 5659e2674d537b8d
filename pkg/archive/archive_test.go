package archive

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/mirror"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

const target = "world.actor-archive"

func newSQLite(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newMemory(t *testing.T) Store { return NewMemoryStore() }

var backends = map[string]func(t *testing.T) Store{
	"memory": newMemory,
	"sqlite": newSQLite,
}

// testStore runs the behaviour every backend must share.
func testStore(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("inspect missing", func(t *testing.T) {
		s := newStore(t)
		info, err := s.Inspect(ctx, target)
		require.NoError(t, err)
		assert.False(t, info.Exists)

		_, err = s.Folders(ctx, target)
		assert.True(t, errors.Is(err, errors.ErrCodeArchiveNotFound), "got %v", err)
		_, err = s.CreateFolder(ctx, target, "", "Monsters")
		assert.True(t, errors.Is(err, errors.ErrCodeArchiveNotFound), "got %v", err)
	})

	t.Run("create", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, target, pipeline.KindActor))

		info, err := s.Inspect(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, pipeline.ArchiveInfo{Exists: true, Kind: pipeline.KindActor}, info)

		err = s.Create(ctx, target, pipeline.KindActor)
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "duplicate create: %v", err)
		err = s.Create(ctx, "Bad Key", pipeline.KindActor)
		assert.True(t, errors.Is(err, errors.ErrCodeConfiguration), "bad key: %v", err)
		err = s.Create(ctx, "world.items", " ")
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput), "empty kind: %v", err)
	})

	t.Run("folders keep creation order", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, target, pipeline.KindActor))

		monsters, err := s.CreateFolder(ctx, target, mirror.RootID, "Monsters")
		require.NoError(t, err)
		goblins, err := s.CreateFolder(ctx, target, monsters, "Goblins")
		require.NoError(t, err)
		again, err := s.CreateFolder(ctx, target, mirror.RootID, "Monsters")
		require.NoError(t, err)
		assert.Equal(t, monsters, again, "same parent and name resolve to the existing folder")
		other, err := s.CreateFolder(ctx, target, goblins, "Monsters")
		require.NoError(t, err)

		folders, err := s.Folders(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, []mirror.Folder{
			{ID: monsters, Name: "Monsters"},
			{ID: goblins, Name: "Goblins", ParentID: monsters},
			{ID: other, Name: "Monsters", ParentID: goblins},
		}, folders)

		_, err = s.CreateFolder(ctx, target, "no-such-parent", "X")
		assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "got %v", err)
		_, err = s.CreateFolder(ctx, target, mirror.RootID, "  ")
		assert.True(t, errors.Is(err, errors.ErrCodeInvalidName), "got %v", err)
	})

	t.Run("records", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, target, pipeline.KindActor))
		folder, err := s.CreateFolder(ctx, target, mirror.RootID, "Monsters")
		require.NoError(t, err)

		a := pipeline.Actor{ID: "a1", Name: "Ogre", Type: "npc", Prototype: pipeline.Prototype{Width: 2, Height: 2}}
		rec := pipeline.NewRecord(a, folder)
		id1, err := s.CreateRecord(ctx, target, rec)
		require.NoError(t, err)
		assert.Equal(t, rec.ID, id1)
		retried, err := s.CreateRecord(ctx, target, rec)
		require.NoError(t, err, "rewriting a record id is a no-op")
		assert.Equal(t, id1, retried)
		id2, err := s.CreateRecord(ctx, target, pipeline.NewRecord(pipeline.Actor{ID: "a2", Name: "Bat"}, mirror.RootID))
		require.NoError(t, err)

		entries, err := s.Records(ctx, target)
		require.NoError(t, err)
		assert.Equal(t, []Entry{
			{ID: id1, SourceID: "a1", Name: "Ogre", FolderID: folder},
			{ID: id2, SourceID: "a2", Name: "Bat"},
		}, entries)
	})

	t.Run("locked archives reject writes", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, target, pipeline.KindActor))
		require.NoError(t, s.SetLocked(ctx, target, true))

		info, err := s.Inspect(ctx, target)
		require.NoError(t, err)
		assert.True(t, info.Locked)

		_, err = s.CreateFolder(ctx, target, mirror.RootID, "Monsters")
		assert.True(t, errors.Is(err, errors.ErrCodeArchiveLocked), "got %v", err)
		_, err = s.CreateRecord(ctx, target, pipeline.Record{SourceID: "a1"})
		assert.True(t, errors.Is(err, errors.ErrCodeArchiveLocked), "got %v", err)

		require.NoError(t, s.SetLocked(ctx, target, false))
		_, err = s.CreateFolder(ctx, target, mirror.RootID, "Monsters")
		assert.NoError(t, err)

		err = s.SetLocked(ctx, "world.none", true)
		assert.True(t, errors.Is(err, errors.ErrCodeArchiveNotFound), "got %v", err)
	})

	t.Run("archives are isolated", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Create(ctx, target, pipeline.KindActor))
		require.NoError(t, s.Create(ctx, "world.other", pipeline.KindActor))

		id, err := s.CreateFolder(ctx, "world.other", mirror.RootID, "Elsewhere")
		require.NoError(t, err)

		folders, err := s.Folders(ctx, target)
		require.NoError(t, err)
		assert.Empty(t, folders)

		_, err = s.CreateFolder(ctx, target, id, "Child")
		assert.True(t, errors.Is(err, errors.ErrCodeNotFound), "parent from another archive: %v", err)
	})
}

func TestStores(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) { testStore(t, newStore) })
	}
}

func TestRunnerArchivesIntoStore(t *testing.T) {
	for name, newStore := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			require.NoError(t, s.Create(ctx, target, pipeline.KindActor))

			// A previous run left Monsters behind.
			monsters, err := s.CreateFolder(ctx, target, mirror.RootID, "Monsters")
			require.NoError(t, err)

			host := &stubHost{
				folders: []mirror.Folder{
					{ID: "m", Name: "Monsters"},
					{ID: "g", Name: " Goblins ", ParentID: "m"},
				},
				actors: []pipeline.Actor{
					{ID: "a1", Name: "Goblin", FolderID: "g"},
					{ID: "a2", Name: "Goblin Boss", FolderID: "g"},
					{ID: "a3", Name: "Wolf"},
				},
			}
			r := pipeline.NewRunner(pipeline.Collaborators{Actors: host, Sink: host, Archive: s}, nil, nil, nil)
			res, err := r.Execute(ctx, pipeline.Options{MoveToArchive: true, ArchiveTarget: target, DeleteOriginals: true})
			require.NoError(t, err)
			assert.Equal(t, 3, res.Summary.Archived)
			assert.Equal(t, 1, res.Stats.FoldersCreated)
			assert.ElementsMatch(t, []string{"a1", "a2", "a3"}, host.deleted)

			tree, err := LoadTree(ctx, s, target)
			require.NoError(t, err)
			folders, records := tree.Count()
			assert.Equal(t, 2, folders)
			assert.Equal(t, 3, records)

			require.Len(t, tree.Children, 2)
			assert.Equal(t, monsters, tree.Children[0].ID)
			goblins := tree.Children[0].Children[0]
			assert.Equal(t, "Goblins", goblins.Name)
			assert.Len(t, goblins.Children, 2)
			assert.Equal(t, "Wolf", tree.Children[1].Name)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "memory:")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, "sqlite:"+filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	for _, dsn := range []string{"sqlite:", "postgres://localhost/db", "file.db"} {
		_, err := Open(ctx, dsn)
		assert.True(t, errors.Is(err, errors.ErrCodeConfiguration), "%s: %v", dsn, err)
	}
}

func TestEphemeral(t *testing.T) {
	for _, dsn := range []string{"", "memory:", "memory", "sqlite::memory:"} {
		assert.True(t, Ephemeral(dsn), dsn)
	}
	for _, dsn := range []string{"sqlite:archive.db", "mongodb://localhost/tokenfield"} {
		assert.False(t, Ephemeral(dsn), dsn)
	}
}

func TestSQLiteReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "archive.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, target, pipeline.KindActor))
	id, err := s.CreateRecord(ctx, target, pipeline.Record{
		SourceID:  "a1",
		Name:      "Lich",
		Prototype: pipeline.Prototype{Width: 1, Height: 1, Light: &pipeline.Light{Dim: 30}},
		Data:      map[string]any{"cr": "21"},
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	version, err := s.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	rec, err := s.Record(ctx, target, id)
	require.NoError(t, err)
	assert.Equal(t, "Lich", rec.Name)
	assert.Equal(t, 30.0, rec.Prototype.Light.Dim)
	assert.Equal(t, "21", rec.Data["cr"])

	_, err = s.Record(ctx, target, "missing")
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))
}

func TestTree(t *testing.T) {
	folders := []mirror.Folder{
		{ID: "b", Name: "beasts"},
		{ID: "a", Name: "Aberrations"},
		{ID: "x", Name: "Loop1", ParentID: "y"},
		{ID: "y", Name: "Loop2", ParentID: "x"},
		{ID: "o", Name: "Orphan", ParentID: "gone"},
	}
	records := []Entry{
		{ID: "r1", Name: "Wolf", FolderID: "b"},
		{ID: "r2", Name: "Ape", FolderID: "b"},
		{ID: "r3", Name: "Stray"},
	}
	tree := Tree(target, folders, records)

	var names []string
	tree.Walk(func(n *Node, depth int) {
		if depth == 1 {
			names = append(names, n.Name)
		}
	})
	assert.Equal(t, []string{"Aberrations", "beasts", "Loop1", "Loop2", "Orphan", "Stray"}, names)

	beasts := tree.Children[1]
	require.Len(t, beasts.Children, 2)
	assert.Equal(t, "Ape", beasts.Children[0].Name)

	folderCount, recordCount := tree.Count()
	assert.Equal(t, 5, folderCount)
	assert.Equal(t, 3, recordCount)
}

type stubHost struct {
	folders []mirror.Folder
	actors  []pipeline.Actor
	deleted []string
}

func (h *stubHost) Scene(context.Context) (pipeline.Scene, error) {
	return pipeline.Scene{Width: 2000, Height: 2000, GridSize: 100}, nil
}
func (h *stubHost) Actors(context.Context) ([]pipeline.Actor, error)    { return h.actors, nil }
func (h *stubHost) Folders(context.Context) ([]mirror.Folder, error)    { return h.folders, nil }
func (h *stubHost) Tokens(context.Context) ([]pipeline.Token, error)    { return nil, nil }
func (h *stubHost) DeleteTokens(context.Context, []string) (int, error) { return 0, nil }

func (h *stubHost) DeleteActors(_ context.Context, ids []string) (int, error) {
	h.deleted = append(h.deleted, ids...)
	return len(ids), nil
}

func (h *stubHost) CreateTokens(_ context.Context, tokens []pipeline.Token) ([]pipeline.Token, error) {
	return tokens, nil
}

func TestMongoDatabaseName(t *testing.T) {
	assert.Equal(t, "campaign", databaseName("mongodb://localhost:27017/campaign?retryWrites=true"))
	assert.Equal(t, DefaultMongoDatabase, databaseName("mongodb://localhost:27017"))
	assert.Equal(t, DefaultMongoDatabase, databaseName("mongodb://localhost:27017/"))
}
