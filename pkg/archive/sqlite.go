package archive

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/matzehuels/tokenfield/pkg/cache"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/mirror"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps archives in a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// recordPayload is the JSON column holding the record body.
type recordPayload struct {
	Prototype pipeline.Prototype `json:"prototype"`
	Data      map[string]any     `json:"data,omitempty"`
}

// NewSQLiteStore opens (or creates) the database at path and applies
// pending migrations. Use ":memory:" for a private in-memory database.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite archive: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite archive: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, path: path}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Version returns the applied schema version.
func (s *SQLiteStore) Version() (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersion(s.db)
}

// Create implements Store.
func (s *SQLiteStore) Create(ctx context.Context, key, kind string) error {
	if err := validateCreate(key, kind); err != nil {
		return err
	}
	info, err := s.Inspect(ctx, key)
	if err != nil {
		return err
	}
	if info.Exists {
		return exists(key)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO archives (key, kind, locked, created_at) VALUES (?, ?, 0, ?)`,
		key, kind, now())
	return s.wrap(err, "create archive %s", key)
}

// SetLocked implements Store.
func (s *SQLiteStore) SetLocked(ctx context.Context, key string, locked bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE archives SET locked = ? WHERE key = ?`, locked, key)
	if err != nil {
		return s.wrap(err, "lock archive %s", key)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(key)
	}
	return nil
}

// Inspect implements pipeline.ArchiveStore.
func (s *SQLiteStore) Inspect(ctx context.Context, target string) (pipeline.ArchiveInfo, error) {
	var info pipeline.ArchiveInfo
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, locked FROM archives WHERE key = ?`, target,
	).Scan(&info.Kind, &info.Locked)
	if stderrors.Is(err, sql.ErrNoRows) {
		return pipeline.ArchiveInfo{}, nil
	}
	if err != nil {
		return pipeline.ArchiveInfo{}, s.wrap(err, "inspect archive %s", target)
	}
	info.Exists = true
	return info, nil
}

// Folders implements pipeline.ArchiveStore. Folders are returned in
// creation order.
func (s *SQLiteStore) Folders(ctx context.Context, target string) ([]mirror.Folder, error) {
	if err := s.mustExist(ctx, target); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, parent_id FROM folders WHERE archive_key = ? ORDER BY rowid`, target)
	if err != nil {
		return nil, s.wrap(err, "list folders of %s", target)
	}
	defer rows.Close()

	var folders []mirror.Folder
	for rows.Next() {
		var f mirror.Folder
		if err := rows.Scan(&f.ID, &f.Name, &f.ParentID); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}
	return folders, rows.Err()
}

// CreateFolder implements pipeline.ArchiveStore.
func (s *SQLiteStore) CreateFolder(ctx context.Context, target, parentID, name string) (string, error) {
	if err := validateFolderName(name); err != nil {
		return "", err
	}
	if err := s.mustWrite(ctx, target); err != nil {
		return "", err
	}
	if parentID != mirror.RootID {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM folders WHERE id = ? AND archive_key = ?`, parentID, target).Scan(&n)
		if err != nil {
			return "", s.wrap(err, "check parent folder %s", parentID)
		}
		if n == 0 {
			return "", errors.New(errors.ErrCodeNotFound, "parent folder %q not found in %s", parentID, target)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO folders (id, archive_key, parent_id, name, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (archive_key, parent_id, name) DO NOTHING`,
		uuid.NewString(), target, parentID, name, now())
	if err != nil {
		return "", s.wrap(err, "create folder %q", name)
	}
	var id string
	err = s.db.QueryRowContext(ctx,
		`SELECT id FROM folders WHERE archive_key = ? AND parent_id = ? AND name = ?`,
		target, parentID, name).Scan(&id)
	if err != nil {
		return "", s.wrap(err, "create folder %q", name)
	}
	return id, nil
}

// CreateRecord implements pipeline.ArchiveStore.
func (s *SQLiteStore) CreateRecord(ctx context.Context, target string, rec pipeline.Record) (string, error) {
	if err := s.mustWrite(ctx, target); err != nil {
		return "", err
	}
	payload, err := json.Marshal(recordPayload{Prototype: rec.Prototype, Data: rec.Data})
	if err != nil {
		return "", fmt.Errorf("encode record %s: %w", rec.SourceID, err)
	}

	id := recordID(rec)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, archive_key, folder_id, source_id, name, type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, target, rec.FolderID, rec.SourceID, rec.Name, rec.Type, string(payload), now())
	if err != nil {
		return "", s.wrap(err, "create record for %s", rec.SourceID)
	}
	return id, nil
}

// Records implements Store.
func (s *SQLiteStore) Records(ctx context.Context, target string) ([]Entry, error) {
	if err := s.mustExist(ctx, target); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, name, folder_id FROM records WHERE archive_key = ? ORDER BY rowid`, target)
	if err != nil {
		return nil, s.wrap(err, "list records of %s", target)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.SourceID, &e.Name, &e.FolderID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Record returns the full record with the given id.
func (s *SQLiteStore) Record(ctx context.Context, target, id string) (pipeline.Record, error) {
	var rec pipeline.Record
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, name, type, folder_id, payload FROM records WHERE archive_key = ? AND id = ?`,
		target, id,
	).Scan(&rec.SourceID, &rec.Name, &rec.Type, &rec.FolderID, &payload)
	if stderrors.Is(err, sql.ErrNoRows) {
		return rec, errors.New(errors.ErrCodeNotFound, "record %q not found in %s", id, target)
	}
	if err != nil {
		return rec, s.wrap(err, "read record %s", id)
	}
	var body recordPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return rec, fmt.Errorf("decode record %s: %w", id, err)
	}
	rec.Prototype, rec.Data = body.Prototype, body.Data
	return rec, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) mustExist(ctx context.Context, target string) error {
	info, err := s.Inspect(ctx, target)
	if err != nil {
		return err
	}
	if !info.Exists {
		return notFound(target)
	}
	return nil
}

func (s *SQLiteStore) mustWrite(ctx context.Context, target string) error {
	info, err := s.Inspect(ctx, target)
	if err != nil {
		return err
	}
	return writable(info, target)
}

// wrap adds context to a database error and marks busy or locked
// databases as retryable.
func (s *SQLiteStore) wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	err = fmt.Errorf(format+": %w", append(args, err)...)
	var se *sqlite.Error
	if stderrors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return cache.Retryable(err)
		}
	}
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339Nano) }
