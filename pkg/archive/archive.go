// Package archive provides persistent stores that receive archived actors.
//
// An archive is addressed by a "<scope>.<name>" key, holds records of one
// kind, and owns a folder tree of its own. The pipeline mirrors source
// folders into that tree and files one record per actor.
//
// Three backends are available:
//
//   - [MemoryStore]: process-local, for tests and dry runs
//   - [SQLiteStore]: a single file, schema managed by goose migrations
//   - [MongoStore]: archives, folders and records collections
//
// [Open] picks a backend from a DSN.
package archive

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// Store is an archive backend.
type Store interface {
	pipeline.ArchiveStore

	// Create registers a new, unlocked archive holding records of kind.
	Create(ctx context.Context, key, kind string) error

	// SetLocked locks or unlocks an archive. Locked archives reject writes.
	SetLocked(ctx context.Context, key string, locked bool) error

	// Records lists the records filed in an archive, oldest first.
	Records(ctx context.Context, target string) ([]Entry, error)

	// Close releases the backend connection.
	Close() error
}

// Entry is the listing view of an archived record.
type Entry struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Name     string `json:"name"`
	FolderID string `json:"folder_id,omitempty"`
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MongoStore)(nil)
)

// Open connects to the store named by dsn:
//
//	memory:                 in-process store
//	sqlite:<path>           SQLite file (sqlite::memory: for a private db)
//	mongodb://host/db       MongoDB (mongodb+srv:// also accepted)
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory:" || dsn == "memory":
		return NewMemoryStore(), nil
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:")
		if path == "" {
			return nil, errors.New(errors.ErrCodeConfiguration, "sqlite archive needs a path, e.g. sqlite:archive.db")
		}
		return NewSQLiteStore(ctx, path)
	case strings.HasPrefix(dsn, "mongodb://"), strings.HasPrefix(dsn, "mongodb+srv://"):
		return NewMongoStore(ctx, dsn)
	}
	return nil, errors.New(errors.ErrCodeConfiguration, "unsupported archive %q (want memory:, sqlite:<path> or mongodb://)", dsn)
}

// Ephemeral reports whether the store named by dsn lives only as long as
// the process that opened it.
func Ephemeral(dsn string) bool {
	switch dsn {
	case "", "memory:", "memory", "sqlite::memory:":
		return true
	}
	return false
}

// recordID returns the caller's record ID, or a fresh one when unset.
func recordID(rec pipeline.Record) string {
	if rec.ID != "" {
		return rec.ID
	}
	return uuid.NewString()
}

// notFound is returned by every scoped operation on a missing archive.
func notFound(target string) error {
	return errors.New(errors.ErrCodeArchiveNotFound, "archive %q not found", target)
}

// writable checks an archive before a write.
func writable(info pipeline.ArchiveInfo, target string) error {
	if !info.Exists {
		return notFound(target)
	}
	if info.Locked {
		return errors.New(errors.ErrCodeArchiveLocked, "archive %q is locked", target)
	}
	return nil
}

func validateCreate(key, kind string) error {
	if err := errors.ValidateArchiveTarget(key); err != nil {
		return err
	}
	if strings.TrimSpace(kind) == "" {
		return errors.New(errors.ErrCodeInvalidInput, "archive %q needs a record kind", key)
	}
	return nil
}

func exists(key string) error {
	return errors.New(errors.ErrCodeInvalidInput, "archive %q already exists", key)
}

func validateFolderName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New(errors.ErrCodeInvalidName, "folder name cannot be empty")
	}
	return errors.ValidateName(name)
}
