// Package loader reads named resources, such as trust anchors and fixture
// files, into memory.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gaborage/go-netreq/request"
)

// DefaultMaxSize caps the size of a loaded resource.
const DefaultMaxSize int64 = 1 << 20

// Loader reads resources from a file system.
type Loader struct {
	fsys    fs.FS
	maxSize int64
}

// New creates a loader over fsys. A non-positive maxSize means DefaultMaxSize.
func New(fsys fs.FS, maxSize int64) *Loader {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Loader{fsys: fsys, maxSize: maxSize}
}

// NewDir creates a loader rooted at dir.
func NewDir(dir string) *Loader {
	return New(os.DirFS(dir), DefaultMaxSize)
}

// LoadBytesByName reads the named resource in full. Missing resources yield
// NotFound, oversized ones OutOfResources and read failures IoError.
func (l *Loader) LoadBytesByName(name string) ([]byte, error) {
	if name == "" || !fs.ValidPath(name) {
		return nil, request.NewError(request.KindNotFound, fmt.Sprintf("invalid resource name %q", name), nil)
	}

	info, err := fs.Stat(l.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, request.NewError(request.KindNotFound, fmt.Sprintf("resource %q not found", name), err)
		}
		return nil, request.NewError(request.KindIOError, fmt.Sprintf("failed to stat resource %q", name), err)
	}
	if info.IsDir() {
		return nil, request.NewError(request.KindIOError, fmt.Sprintf("resource %q is a directory", name), nil)
	}
	if info.Size() > l.maxSize {
		return nil, request.NewError(request.KindOutOfResources,
			fmt.Sprintf("resource %q is %d bytes, limit is %d", name, info.Size(), l.maxSize), nil)
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, request.NewError(request.KindIOError, fmt.Sprintf("failed to read resource %q", name), err)
	}
	if int64(len(data)) != info.Size() {
		return nil, request.NewError(request.KindIOError,
			fmt.Sprintf("short read of resource %q: got %d of %d bytes", name, len(data), info.Size()), nil)
	}
	return data, nil
}
