package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/haskel/tabml/internal/algo"
)

// Format tags how an artifact is serialized.
type Format string

const (
	// FormatGeneric is a gob envelope around any registered model type.
	FormatGeneric Format = "generic-object"
	// FormatNeural is the neural network's own JSON document.
	FormatNeural Format = "neural-native"
	// FormatUnknown marks a file whose format cannot be determined.
	FormatUnknown Format = "unknown"
)

const (
	ExtGeneric = ".gob"
	ExtNeural  = ".nnet"
)

// probeOrder lists the suffixes appended to a model name when resolving it,
// in the order they are tried. The first existing regular file wins.
var probeOrder = [...]string{"", ExtGeneric, ExtNeural}

// ProbeOrder returns a copy of the suffixes Resolve tries, in order.
func ProbeOrder() []string {
	order := probeOrder
	return order[:]
}

// Extension returns the file extension of the format.
func (f Format) Extension() string {
	switch f {
	case FormatGeneric:
		return ExtGeneric
	case FormatNeural:
		return ExtNeural
	}
	return ""
}

// String returns string representation.
func (f Format) String() string {
	return string(f)
}

// FormatForFamily derives the artifact format from the algorithm family.
func FormatForFamily(family algo.Family) Format {
	if family == algo.FamilyNeuralClassifier {
		return FormatNeural
	}
	return FormatGeneric
}

// formatFromExt maps a file extension to its format.
func formatFromExt(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtGeneric:
		return FormatGeneric
	case ExtNeural:
		return FormatNeural
	}
	return FormatUnknown
}

// StripExt removes a known artifact extension from name.
func StripExt(name string) string {
	for _, ext := range []string{ExtGeneric, ExtNeural} {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// ValidateName rejects names that would escape the model directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return &InvalidModelNameError{Name: name, Reason: "name is empty"}
	}
	if name == "." || name == ".." {
		return &InvalidModelNameError{Name: name, Reason: "name is a directory reference"}
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return &InvalidModelNameError{Name: name, Reason: "name contains a path separator"}
	}
	return nil
}

// ModelNotFoundError is returned when no probe candidate exists.
type ModelNotFoundError struct {
	Name string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model %q not found", e.Name)
}

// UnsupportedArtifactFormatError is returned for artifacts that cannot be
// loaded by any known format.
type UnsupportedArtifactFormatError struct {
	Name   string
	Format Format
}

func (e *UnsupportedArtifactFormatError) Error() string {
	return fmt.Sprintf("model %q has unsupported artifact format %q", e.Name, e.Format)
}

// ArtifactConflictError is returned when the name is already held by an
// artifact of a different format and overwrite was not requested.
type ArtifactConflictError struct {
	Name     string
	Existing string
}

func (e *ArtifactConflictError) Error() string {
	return fmt.Sprintf("model %q already exists as %q; set overwrite to replace it", e.Name, e.Existing)
}

// InvalidModelNameError is returned for names that are not plain file names.
type InvalidModelNameError struct {
	Name   string
	Reason string
}

func (e *InvalidModelNameError) Error() string {
	return fmt.Sprintf("invalid model name %q: %s", e.Name, e.Reason)
}
