package world

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/tokenfield/pkg/errors"
	"github.com/matzehuels/tokenfield/pkg/mirror"
	"github.com/matzehuels/tokenfield/pkg/pipeline"
)

// Document is the on-disk representation of a world: one scene, the actors
// and their folder tree, and the tokens already placed on the scene.
//
// A minimal YAML document:
//
//	scene:
//	  name: Staging
//	  width: 4000
//	  height: 3000
//	  padding: 0.25
//	  grid_size: 100
//	folders:
//	  - {id: f1, name: Monsters}
//	actors:
//	  - id: a1
//	    name: Goblin
//	    folder_id: f1
//	    prototype: {width: 1, height: 1}
type Document struct {
	Scene   pipeline.Scene   `json:"scene" toml:"scene" yaml:"scene"`
	Folders []mirror.Folder  `json:"folders,omitempty" toml:"folders,omitempty" yaml:"folders,omitempty"`
	Actors  []pipeline.Actor `json:"actors,omitempty" toml:"actors,omitempty" yaml:"actors,omitempty"`
	Tokens  []pipeline.Token `json:"tokens,omitempty" toml:"tokens,omitempty" yaml:"tokens,omitempty"`
}

// Format is a world document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath returns the document format for a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unsupported world format %q", filepath.Ext(path))
}

// Read decodes a document from r.
// Read does not close r.
func Read(r io.Reader, format Format) (*Document, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatTOML:
		_, err = toml.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
		if err == io.EOF {
			err = nil
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported world format %q", format)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode %s world", format)
	}
	return &doc, nil
}

// Write encodes doc to w in the given format.
func Write(w io.Writer, doc *Document, format Format) error {
	var err error
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(doc)
	case FormatTOML:
		err = toml.NewEncoder(w).Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err == nil {
			err = enc.Close()
		}
	default:
		return errors.New(errors.ErrCodeInvalidFormat, "unsupported world format %q", format)
	}
	if err != nil {
		return fmt.Errorf("encode %s world: %w", format, err)
	}
	return nil
}

// Load reads the document at path, choosing the decoder by extension.
func Load(path string) (*Document, error) {
	if err := errors.ValidateWorldPath(path); err != nil {
		return nil, err
	}
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "world %s not found", path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return Read(f, format)
}

// Save writes doc to path in the format named by its extension. The file
// is replaced atomically.
func Save(path string, doc *Document) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".world-*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, doc, format); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
