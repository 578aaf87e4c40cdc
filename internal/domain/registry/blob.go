package registry

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

// blobPattern matches stored tarballs relative to the storage root.
const blobPattern = "*/*.tgz"

// BlobStore persists the tarball of each published version.
type BlobStore interface {
	// Put stores data for name@version, replacing any previous content, and
	// returns the public tarball reference.
	Put(ctx context.Context, name, version string, data []byte) (string, error)
	// Open returns the stored tarball of name@version.
	Open(ctx context.Context, name, version string) (io.ReadSeekCloser, error)
	// Location returns the path of the blob of name@version relative to the root.
	Location(name, version string) string
	// Keys lists the locations of every stored blob.
	Keys(ctx context.Context) ([]string, error)
}

// FileStore keeps tarballs on the local filesystem, one directory per package.
type FileStore struct {
	root string
}

var _ BlobStore = (*FileStore)(nil)

// NewFileStore returns a FileStore rooted at root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Root returns the storage root directory.
func (s *FileStore) Root() string {
	return s.root
}

// Location returns "<name>/<escaped name>-<escaped version>.tgz".
func (s *FileStore) Location(name, version string) string {
	return name + "/" + TarballFilename(name, version)
}

func (s *FileStore) path(name, version string) string {
	return filepath.Join(s.root, filepath.FromSlash(s.Location(name, version)))
}

// Put writes data to a temp file beside the target and renames it into place.
func (s *FileStore) Put(ctx context.Context, name, version string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", validationError("Tarball data is missing")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := s.path(name, version)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", storageError("failed to create package directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".*.tmp")
	if err != nil {
		return "", storageError("failed to create tarball", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", storageError("failed to write tarball", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", storageError("failed to sync tarball", err)
	}
	if err := tmp.Close(); err != nil {
		return "", storageError("failed to close tarball", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", storageError("failed to move tarball into place", err)
	}
	return TarballURL(name, version), nil
}

// Open returns the stored tarball, or ErrTarballNotFound.
func (s *FileStore) Open(ctx context.Context, name, version string) (io.ReadSeekCloser, error) {
	f, err := os.Open(s.path(name, version))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrTarballNotFound
		}
		return nil, storageError("failed to open tarball", err)
	}
	return f, nil
}

// Keys walks the storage root and returns the sorted locations of all tarballs.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		keys []string
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, s.root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if ok, _ := doublestar.Match(blobPattern, rel); !ok {
			return nil
		}

		// fastwalk calls this function from several goroutines.
		mu.Lock()
		keys = append(keys, rel)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, storageError("failed to scan tarballs", err)
	}

	sort.Strings(keys)
	return keys, nil
}
