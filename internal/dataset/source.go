package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
)

// Source opens dataset bytes by location. It stands in for whatever
// dataset collaborator the deployment uses.
type Source interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

// FileSource reads datasets from the local filesystem. Locations may be
// plain paths or file:// URIs.
type FileSource struct{}

// Open opens the file behind location.
func (FileSource) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := filePath(location)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &DatasetNotFoundError{Location: location}
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat dataset: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, &DatasetNotFoundError{Location: location}
	}

	return f, nil
}

func filePath(location string) (string, error) {
	if !strings.HasPrefix(location, "file://") {
		return location, nil
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse dataset location: %w", err)
	}
	return u.Path, nil
}
