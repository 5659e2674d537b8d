package archive

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/matzehuels/tokenfield/pkg/cache"
	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/mirror"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// DefaultMongoDatabase is used when the connection URI names no database.
const DefaultMongoDatabase = "tokenfield"

// MongoStore keeps archives in three MongoDB collections: archives,
// folders and records.
type MongoStore struct {
	client   *mongo.Client
	archives *mongo.Collection
	folders  *mongo.Collection
	records  *mongo.Collection
}

type archiveDoc struct {
	Key       string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	Locked    bool      `bson:"locked"`
	CreatedAt time.Time `bson:"created_at"`
}

type folderDoc struct {
	ID        string    `bson:"_id"`
	Archive   string    `bson:"archive"`
	ParentID  string    `bson:"parent_id"`
	Name      string    `bson:"name"`
	CreatedAt time.Time `bson:"created_at"`
}

type recordDoc struct {
	ID        string             `bson:"_id"`
	Archive   string             `bson:"archive"`
	FolderID  string             `bson:"folder_id"`
	SourceID  string             `bson:"source_id"`
	Name      string             `bson:"name"`
	Type      string             `bson:"type,omitempty"`
	Prototype pipeline.Prototype `bson:"prototype"`
	Data      map[string]any     `bson:"data,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
}

// NewMongoStore connects to uri, verifies the connection and ensures the
// collection indexes exist. The database is taken from the URI path.
func NewMongoStore(ctx context.Context, uri string) (*MongoStore, error) {
	if err := errors.ValidateURL(uri, "mongodb", "mongodb+srv"); err != nil {
		return nil, err
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeConfiguration, err, "connect to mongodb")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("%w: ping mongodb: %v", cache.ErrNetwork, err)
	}

	s := NewMongoStoreFromClient(client, databaseName(uri))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// NewMongoStoreFromClient wraps an existing client.
func NewMongoStoreFromClient(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:   client,
		archives: db.Collection("archives"),
		folders:  db.Collection("folders"),
		records:  db.Collection("records"),
	}
}

func databaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return DefaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return DefaultMongoDatabase
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.folders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "archive", Value: 1}, {Key: "parent_id", Value: 1}, {Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return mongoErr(err, "index folders")
	}
	_, err = s.records.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "archive", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return mongoErr(err, "index records")
}

// Create implements Store.
func (s *MongoStore) Create(ctx context.Context, key, kind string) error {
	if err := validateCreate(key, kind); err != nil {
		return err
	}
	_, err := s.archives.InsertOne(ctx, archiveDoc{Key: key, Kind: kind, CreatedAt: time.Now().UTC()})
	if mongo.IsDuplicateKeyError(err) {
		return exists(key)
	}
	return mongoErr(err, "create archive %s", key)
}

// SetLocked implements Store.
func (s *MongoStore) SetLocked(ctx context.Context, key string, locked bool) error {
	res, err := s.archives.UpdateByID(ctx, key, bson.M{"$set": bson.M{"locked": locked}})
	if err != nil {
		return mongoErr(err, "lock archive %s", key)
	}
	if res.MatchedCount == 0 {
		return notFound(key)
	}
	return nil
}

// Inspect implements pipeline.ArchiveStore.
func (s *MongoStore) Inspect(ctx context.Context, target string) (pipeline.ArchiveInfo, error) {
	var doc archiveDoc
	err := s.archives.FindOne(ctx, bson.M{"_id": target}).Decode(&doc)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return pipeline.ArchiveInfo{}, nil
	}
	if err != nil {
		return pipeline.ArchiveInfo{}, mongoErr(err, "inspect archive %s", target)
	}
	return pipeline.ArchiveInfo{Exists: true, Locked: doc.Locked, Kind: doc.Kind}, nil
}

// Folders implements pipeline.ArchiveStore. Folders are returned in
// creation order.
func (s *MongoStore) Folders(ctx context.Context, target string) ([]mirror.Folder, error) {
	if err := s.mustExist(ctx, target); err != nil {
		return nil, err
	}
	cur, err := s.folders.Find(ctx, bson.M{"archive": target},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, mongoErr(err, "list folders of %s", target)
	}
	var docs []folderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(err, "list folders of %s", target)
	}
	folders := make([]mirror.Folder, len(docs))
	for i, d := range docs {
		folders[i] = mirror.Folder{ID: d.ID, Name: d.Name, ParentID: d.ParentID}
	}
	return folders, nil
}

// CreateFolder implements pipeline.ArchiveStore.
func (s *MongoStore) CreateFolder(ctx context.Context, target, parentID, name string) (string, error) {
	if err := validateFolderName(name); err != nil {
		return "", err
	}
	if err := s.mustWrite(ctx, target); err != nil {
		return "", err
	}
	if parentID != mirror.RootID {
		n, err := s.folders.CountDocuments(ctx, bson.M{"_id": parentID, "archive": target})
		if err != nil {
			return "", mongoErr(err, "check parent folder %s", parentID)
		}
		if n == 0 {
			return "", errors.New(errors.ErrCodeNotFound, "parent folder %q not found in %s", parentID, target)
		}
	}

	doc := folderDoc{ID: uuid.NewString(), Archive: target, ParentID: parentID, Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.folders.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		var existing folderDoc
		err = s.folders.FindOne(ctx, bson.M{"archive": target, "parent_id": parentID, "name": name}).Decode(&existing)
		if err != nil {
			return "", mongoErr(err, "find folder %q", name)
		}
		return existing.ID, nil
	}
	if err != nil {
		return "", mongoErr(err, "create folder %q", name)
	}
	return doc.ID, nil
}

// CreateRecord implements pipeline.ArchiveStore.
func (s *MongoStore) CreateRecord(ctx context.Context, target string, rec pipeline.Record) (string, error) {
	if err := s.mustWrite(ctx, target); err != nil {
		return "", err
	}
	doc := recordDoc{
		ID:        recordID(rec),
		Archive:   target,
		FolderID:  rec.FolderID,
		SourceID:  rec.SourceID,
		Name:      rec.Name,
		Type:      rec.Type,
		Prototype: rec.Prototype,
		Data:      rec.Data,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.records.InsertOne(ctx, doc); err != nil && !mongo.IsDuplicateKeyError(err) {
		return "", mongoErr(err, "create record for %s", rec.SourceID)
	}
	return doc.ID, nil
}

// Records implements Store.
func (s *MongoStore) Records(ctx context.Context, target string) ([]Entry, error) {
	if err := s.mustExist(ctx, target); err != nil {
		return nil, err
	}
	cur, err := s.records.Find(ctx, bson.M{"archive": target},
		options.Find().
			SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
			SetProjection(bson.M{"prototype": 0, "data": 0}))
	if err != nil {
		return nil, mongoErr(err, "list records of %s", target)
	}
	var docs []recordDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(err, "list records of %s", target)
	}
	entries := make([]Entry, len(docs))
	for i, d := range docs {
		entries[i] = Entry{ID: d.ID, SourceID: d.SourceID, Name: d.Name, FolderID: d.FolderID}
	}
	return entries, nil
}

// Close implements Store.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) mustExist(ctx context.Context, target string) error {
	info, err := s.Inspect(ctx, target)
	if err != nil {
		return err
	}
	if !info.Exists {
		return notFound(target)
	}
	return nil
}

func (s *MongoStore) mustWrite(ctx context.Context, target string) error {
	info, err := s.Inspect(ctx, target)
	if err != nil {
		return err
	}
	return writable(info, target)
}

// mongoErr adds context to a driver error and marks network failures and
// timeouts as retryable.
func mongoErr(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf(format+": %w", append(args, err)...)
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return cache.Retryable(wrapped)
	}
	return wrapped
}
