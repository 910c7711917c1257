// Package storage persists trained models as format-tagged artifacts in a
// single model directory.
package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/haskel/tabml/internal/algo"
)

func init() {
	gob.Register(&algo.LogisticRegression{})
	gob.Register(&algo.RandomForest{})
	gob.Register(&algo.KMeans{})
}

// Envelope is the payload of a generic-object artifact.
type Envelope struct {
	Algorithm string
	Family    algo.Family
	Features  []string
	Model     algo.Predictor
}

// Saveable is implemented by models that write their own native document.
type Saveable interface {
	Save(w io.Writer) error
}

// ArtifactRef describes a stored artifact.
type ArtifactRef struct {
	Name    string      `json:"name"`
	Format  Format      `json:"format"`
	Family  algo.Family `json:"family,omitempty"`
	Path    string      `json:"path"`
	File    string      `json:"file"`
	Size    int64       `json:"size"`
	ModTime time.Time   `json:"mod_time"`
}

// PutOptions controls how an artifact is written.
type PutOptions struct {
	Algorithm string
	Features  []string
	// Overwrite allows replacing an artifact of another format that
	// holds the same name.
	Overwrite bool
}

// ModelStore reads and writes artifacts under dir. It keeps no index and
// takes no locks: the directory is the source of truth and concurrent
// writes to one name are last-write-wins.
type ModelStore struct {
	dir    string
	logger *slog.Logger
}

// NewModelStore creates a ModelStore rooted at dir.
func NewModelStore(dir string, logger *slog.Logger) *ModelStore {
	return &ModelStore{
		dir:    dir,
		logger: logger.With("component", "model_store"),
	}
}

// Dir returns the model directory.
func (ms *ModelStore) Dir() string {
	return ms.dir
}

// Put serializes model under name in the format derived from family.
func (ms *ModelStore) Put(name string, model any, family algo.Family, opts PutOptions) (ArtifactRef, error) {
	if err := ValidateName(name); err != nil {
		return ArtifactRef{}, err
	}

	format := FormatForFamily(family)
	path := filepath.Join(ms.dir, name+format.Extension())

	var write func(w io.Writer) error
	switch format {
	case FormatNeural:
		s, ok := model.(Saveable)
		if !ok {
			return ArtifactRef{}, fmt.Errorf("model of type %T cannot be saved as %s", model, format)
		}
		write = s.Save
	default:
		p, ok := model.(algo.Predictor)
		if !ok {
			return ArtifactRef{}, fmt.Errorf("model of type %T cannot be saved as %s", model, format)
		}
		env := &Envelope{
			Algorithm: opts.Algorithm,
			Family:    family,
			Features:  opts.Features,
			Model:     p,
		}
		write = func(w io.Writer) error {
			return gob.NewEncoder(w).Encode(env)
		}
	}

	siblings := ms.siblings(name, path)
	if len(siblings) > 0 && !opts.Overwrite {
		return ArtifactRef{}, &ArtifactConflictError{Name: name, Existing: filepath.Base(siblings[0])}
	}

	if err := os.MkdirAll(ms.dir, 0755); err != nil {
		return ArtifactRef{}, fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := writeAtomic(path, write); err != nil {
		return ArtifactRef{}, err
	}

	for _, s := range siblings {
		if err := os.Remove(s); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ArtifactRef{}, fmt.Errorf("failed to remove replaced artifact: %w", err)
		}
		ms.logger.Info("removed artifact of other format", "name", name, "path", s)
	}

	info, err := os.Stat(path)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("failed to stat artifact: %w", err)
	}

	ms.logger.Debug("saved model artifact", "name", name, "format", format, "path", path)

	return ArtifactRef{
		Name:    name,
		Format:  format,
		Family:  family,
		Path:    path,
		File:    filepath.Base(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// siblings returns the existing probe candidates for name other than path.
func (ms *ModelStore) siblings(name, path string) []string {
	var out []string
	for _, suffix := range probeOrder {
		candidate := filepath.Join(ms.dir, name+suffix)
		if candidate == path {
			continue
		}
		if isRegular(candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// Resolve finds the artifact for name following the probe order.
func (ms *ModelStore) Resolve(name string) (ArtifactRef, error) {
	if err := ValidateName(name); err != nil {
		return ArtifactRef{}, err
	}

	for _, suffix := range probeOrder {
		path := filepath.Join(ms.dir, name+suffix)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		format := formatFromExt(path)
		if format == FormatUnknown {
			format = sniffFormat(path)
		}

		ref := ArtifactRef{
			Name:    name,
			Format:  format,
			Path:    path,
			File:    filepath.Base(path),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if format == FormatNeural {
			ref.Family = algo.FamilyNeuralClassifier
		}
		return ref, nil
	}

	return ArtifactRef{}, &ModelNotFoundError{Name: name}
}

// LoadGeneric decodes a generic-object artifact.
func (ms *ModelStore) LoadGeneric(ref ArtifactRef) (*Envelope, error) {
	if ref.Format != FormatGeneric {
		return nil, &UnsupportedArtifactFormatError{Name: ref.Name, Format: ref.Format}
	}

	file, err := os.Open(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	var env Envelope
	if err := gob.NewDecoder(file).Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to decode artifact %q: %w", ref.File, err)
	}
	if env.Model == nil {
		return nil, fmt.Errorf("artifact %q holds no model", ref.File)
	}
	return &env, nil
}

// LoadNeural decodes a neural-native artifact.
func (ms *ModelStore) LoadNeural(ref ArtifactRef) (*algo.NeuralNetwork, error) {
	if ref.Format != FormatNeural {
		return nil, &UnsupportedArtifactFormatError{Name: ref.Name, Format: ref.Format}
	}

	file, err := os.Open(ref.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact: %w", err)
	}
	defer file.Close()

	n, err := algo.ReadNeuralNetwork(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode artifact %q: %w", ref.File, err)
	}
	return n, nil
}

// List returns the artifact file names in the model directory, sorted.
func (ms *ModelStore) List() ([]string, error) {
	entries, err := os.ReadDir(ms.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to read model directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if formatFromExt(e.Name()) == FormatUnknown {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes every probe candidate for name.
func (ms *ModelStore) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	removed := 0
	for _, suffix := range probeOrder {
		path := filepath.Join(ms.dir, name+suffix)
		if !isRegular(path) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to delete artifact: %w", err)
		}
		removed++
		ms.logger.Info("deleted model artifact", "name", name, "path", path)
	}

	if removed == 0 {
		return &ModelNotFoundError{Name: name}
	}
	return nil
}

func writeAtomic(path string, write func(w io.Writer) error) error {
	file, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := file.Name()

	if err := write(file); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to save model: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func isRegular(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// sniffFormat inspects the head of a file without a known extension.
func sniffFormat(path string) Format {
	file, err := os.Open(path)
	if err != nil {
		return FormatUnknown
	}
	defer file.Close()

	head := make([]byte, 64)
	n, _ := io.ReadFull(file, head)
	head = bytes.TrimSpace(head[:n])

	if bytes.HasPrefix(head, []byte(`{"format":"`+algo.NeuralFormatName+`"`)) {
		return FormatNeural
	}
	return FormatUnknown
}
