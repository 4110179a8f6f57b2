// Package production provides production integrations: snapshot
// persistence, event publishing, scene files and text rendering.
package production

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/comalice/timelinex"
)

// ErrNotFound is returned by Load for an unknown snapshot name.
var ErrNotFound = errors.New("production: snapshot not found")

// Persister stores timeline snapshots by name.
type Persister interface {
	Save(ctx context.Context, name string, snapshot timelinex.Snapshot) error
	Load(ctx context.Context, name string) (timelinex.Snapshot, error)
	List(ctx context.Context) ([]string, error)
}

// Format selects the on-disk encoding of a FilePersister.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FilePersister writes one file per snapshot on an afero filesystem.
type FilePersister struct {
	fs     afero.Fs
	dir    string
	format Format
}

// NewFilePersister creates a FilePersister, ensuring the directory exists.
func NewFilePersister(fs afero.Fs, dir string, format Format) (*FilePersister, error) {
	switch format {
	case FormatJSON, FormatYAML:
	case "":
		format = FormatJSON
	default:
		return nil, fmt.Errorf("unknown snapshot format %q", format)
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &FilePersister{fs: fs, dir: dir, format: format}, nil
}

// NewOSFilePersister is NewFilePersister on the real filesystem.
func NewOSFilePersister(dir string, format Format) (*FilePersister, error) {
	return NewFilePersister(afero.NewOsFs(), dir, format)
}

func (p *FilePersister) path(name string) string {
	return filepath.Join(p.dir, name+"."+string(p.format))
}

func (p *FilePersister) Save(ctx context.Context, name string, snapshot timelinex.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validName(name); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if p.format == FormatYAML {
		data, err = yaml.Marshal(snapshot)
	} else {
		data, err = json.MarshalIndent(snapshot, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("%s marshal: %w", p.format, err)
	}

	fn := p.path(name)
	if err := afero.WriteFile(p.fs, fn, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", fn, err)
	}
	return nil
}

func (p *FilePersister) Load(ctx context.Context, name string) (timelinex.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return timelinex.Snapshot{}, err
	}
	fn := p.path(name)
	data, err := afero.ReadFile(p.fs, fn)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return timelinex.Snapshot{}, fmt.Errorf("timeline %q: %w", name, ErrNotFound)
		}
		return timelinex.Snapshot{}, fmt.Errorf("read %s: %w", fn, err)
	}

	var snapshot timelinex.Snapshot
	if p.format == FormatYAML {
		err = yaml.Unmarshal(data, &snapshot)
	} else {
		err = json.Unmarshal(data, &snapshot)
	}
	if err != nil {
		return timelinex.Snapshot{}, fmt.Errorf("%s unmarshal: %w", p.format, err)
	}
	if snapshot.Name == "" {
		snapshot.Name = name
	}
	if err := timelinex.ConfigFromSnapshot(snapshot.Config).Validate(); err != nil {
		return timelinex.Snapshot{}, fmt.Errorf("config validation after load: %w", err)
	}
	return snapshot, nil
}

func (p *FilePersister) List(ctx context.Context) ([]string, error) {
	entries, err := afero.ReadDir(p.fs, p.dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", p.dir, err)
	}
	suffix := "." + string(p.format)
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), suffix))
	}
	sort.Strings(names)
	return names, nil
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid snapshot name %q", name)
	}
	return nil
}
