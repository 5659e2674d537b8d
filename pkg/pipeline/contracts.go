package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/matzehuels/tokenfield/pkg/layout"
	"github.com/matzehuels/tokenfield/pkg/mirror"
)

// =============================================================================
// Domain Records
// =============================================================================

// Token display modes understood by the host.
const (
	DisplayNone   = 0
	DisplayHover  = 30
	DisplayAlways = 50
)

// Token dispositions understood by the host.
const (
	DispositionSecret   = -2
	DispositionHostile  = -1
	DispositionNeutral  = 0
	DispositionFriendly = 1
)

// KindActor is the record kind an archive must hold to receive actors.
const KindActor = "Actor"

// Scene is the canvas tokens are placed on, in pixels.
type Scene struct {
	ID       string  `json:"id" toml:"id" yaml:"id"`
	Name     string  `json:"name" toml:"name" yaml:"name"`
	Width    float64 `json:"width" toml:"width" yaml:"width"`
	Height   float64 `json:"height" toml:"height" yaml:"height"`
	Padding  float64 `json:"padding" toml:"padding" yaml:"padding"`
	GridSize int     `json:"grid_size" toml:"grid_size" yaml:"grid_size"`
}

// Geometry returns the scene's layout geometry.
func (s Scene) Geometry() layout.SceneGeometry {
	return layout.SceneGeometry{Width: s.Width, Height: s.Height, Padding: s.Padding, GridSize: s.GridSize}
}

// Texture is a token image and its scale.
type Texture struct {
	Src    string  `json:"src,omitempty" toml:"src,omitempty" yaml:"src,omitempty"`
	ScaleX float64 `json:"scale_x,omitempty" toml:"scale_x,omitempty" yaml:"scale_x,omitempty"`
	ScaleY float64 `json:"scale_y,omitempty" toml:"scale_y,omitempty" yaml:"scale_y,omitempty"`
}

// Light is a light source carried by a token.
type Light struct {
	Dim    float64 `json:"dim" toml:"dim" yaml:"dim"`
	Bright float64 `json:"bright" toml:"bright" yaml:"bright"`
	Angle  float64 `json:"angle" toml:"angle" yaml:"angle"`
	Color  string  `json:"color" toml:"color" yaml:"color"`
	Alpha  float64 `json:"alpha" toml:"alpha" yaml:"alpha"`
}

// Prototype is the token appearance an actor carries. Width and Height are
// in grid cells and may be fractional for tiny creatures.
type Prototype struct {
	Name        string  `json:"name,omitempty" toml:"name,omitempty" yaml:"name,omitempty"`
	Width       float64 `json:"width,omitempty" toml:"width,omitempty" yaml:"width,omitempty"`
	Height      float64 `json:"height,omitempty" toml:"height,omitempty" yaml:"height,omitempty"`
	Texture     Texture `json:"texture" toml:"texture" yaml:"texture"`
	Disposition int     `json:"disposition" toml:"disposition" yaml:"disposition"`
	DisplayName int     `json:"display_name,omitempty" toml:"display_name,omitempty" yaml:"display_name,omitempty"`
	Light       *Light  `json:"light,omitempty" toml:"light,omitempty" yaml:"light,omitempty"`
}

// Actor is a world entity that can be tokenized and archived.
type Actor struct {
	ID          string         `json:"id" toml:"id" yaml:"id"`
	Name        string         `json:"name" toml:"name" yaml:"name"`
	Type        string         `json:"type,omitempty" toml:"type,omitempty" yaml:"type,omitempty"`
	FolderID    string         `json:"folder_id,omitempty" toml:"folder_id,omitempty" yaml:"folder_id,omitempty"`
	PlayerOwned bool           `json:"player_owned,omitempty" toml:"player_owned,omitempty" yaml:"player_owned,omitempty"`
	SizeCode    int            `json:"size_code,omitempty" toml:"size_code,omitempty" yaml:"size_code,omitempty"`
	Prototype   Prototype      `json:"prototype" toml:"prototype" yaml:"prototype"`
	Data        map[string]any `json:"data,omitempty" toml:"data,omitempty" yaml:"data,omitempty"`
}

// Token is a placed record on a scene. X and Y are the top-left corner in
// pixels; Width and Height are in grid cells. Placed tokens are unlinked:
// they keep an appearance snapshot but no ActorID.
type Token struct {
	ID          string  `json:"id" toml:"id" yaml:"id"`
	Name        string  `json:"name" toml:"name" yaml:"name"`
	X           float64 `json:"x" toml:"x" yaml:"x"`
	Y           float64 `json:"y" toml:"y" yaml:"y"`
	Width       int     `json:"width" toml:"width" yaml:"width"`
	Height      int     `json:"height" toml:"height" yaml:"height"`
	Texture     Texture `json:"texture" toml:"texture" yaml:"texture"`
	Disposition int     `json:"disposition" toml:"disposition" yaml:"disposition"`
	DisplayName int     `json:"display_name" toml:"display_name" yaml:"display_name"`
	Linked      bool    `json:"linked" toml:"linked" yaml:"linked"`
	ActorID     string  `json:"actor_id,omitempty" toml:"actor_id,omitempty" yaml:"actor_id,omitempty"`
	Light       *Light  `json:"light,omitempty" toml:"light,omitempty" yaml:"light,omitempty"`
}

// Record is an actor copy filed in an archive. It carries no archive id;
// the store assigns one.
type Record struct {
	// ID is assigned by the caller. Stores treat a second write with the
	// same ID as a no-op, so a retried insert never files a duplicate.
	ID        string         `json:"id"`
	SourceID  string         `json:"source_id"`
	Name      string         `json:"name"`
	Type      string         `json:"type,omitempty"`
	FolderID  string         `json:"folder_id,omitempty"`
	Prototype Prototype      `json:"prototype"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewRecord copies an actor into an archive record filed under folderID.
// Every call gets a fresh record ID.
func NewRecord(a Actor, folderID string) Record {
	return Record{
		ID:        uuid.NewString(),
		SourceID:  a.ID,
		Name:      a.Name,
		Type:      a.Type,
		FolderID:  folderID,
		Prototype: a.Prototype,
		Data:      a.Data,
	}
}

// ArchiveInfo describes an archive target.
type ArchiveInfo struct {
	Exists bool   `json:"exists"`
	Locked bool   `json:"locked"`
	Kind   string `json:"kind"`
}

// =============================================================================
// Collaborators
// =============================================================================

// ActorProvider supplies the world being tokenized.
type ActorProvider interface {
	// Scene returns the scene tokens are placed on.
	Scene(ctx context.Context) (Scene, error)

	// Actors returns the candidates for tokenization. Player-owned actors
	// are never candidates.
	Actors(ctx context.Context) ([]Actor, error)

	// Folders returns the actor folder tree.
	Folders(ctx context.Context) ([]mirror.Folder, error)

	// DeleteActors removes actors and returns how many were removed.
	DeleteActors(ctx context.Context, ids []string) (int, error)
}

// FootprintResolver decides how many grid cells an actor's token covers.
type FootprintResolver interface {
	Footprint(ctx context.Context, a Actor) (width, height int, err error)
}

// PlacementSink stores tokens on the scene.
type PlacementSink interface {
	// Tokens returns the tokens currently on the scene.
	Tokens(ctx context.Context) ([]Token, error)

	// CreateTokens stores all tokens as one bulk operation and returns them
	// with ids assigned.
	CreateTokens(ctx context.Context, tokens []Token) ([]Token, error)

	// DeleteTokens removes tokens and returns how many were removed.
	DeleteTokens(ctx context.Context, ids []string) (int, error)
}

// ArchiveStore is a persistent secondary store with its own folder tree.
// Every method is scoped to a target archive key.
type ArchiveStore interface {
	Inspect(ctx context.Context, target string) (ArchiveInfo, error)
	Folders(ctx context.Context, target string) ([]mirror.Folder, error)
	CreateFolder(ctx context.Context, target, parentID, name string) (string, error)
	CreateRecord(ctx context.Context, target string, rec Record) (string, error)
}

// Notifier receives human-readable progress lines.
type Notifier interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) Info(string)  {}
func (NopNotifier) Warn(string)  {}
func (NopNotifier) Error(string) {}
