package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/chungindustries/cpm-registry/internal/infrastructure/monitoring"
)

// IndexFile is the name of the index snapshot inside the storage root.
const IndexFile = "registry.json"

// indexJSON rejects unknown fields so a snapshot with a foreign shape is
// treated as corrupt rather than half-read.
var indexJSON = sonic.Config{
	DisallowUnknownFields: true,
	SortMapKeys:           true,
}.Froze()

// Index is the durable registry snapshot. Reads go straight to disk; writes
// are serialized through Mutate.
type Index struct {
	path    string
	logger  *zap.Logger
	metrics *monitoring.Metrics

	mu sync.Mutex // serializes load/mutate/save
}

// NewIndex returns an Index persisted at <root>/registry.json.
func NewIndex(root string) *Index {
	return &Index{
		path:   filepath.Join(root, IndexFile),
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger used to report corrupt snapshots.
func (x *Index) WithLogger(logger *zap.Logger) *Index {
	if logger != nil {
		x.logger = logger
	}
	return x
}

// WithMetrics adds metrics tracking to the index.
func (x *Index) WithMetrics(metrics *monitoring.Metrics) *Index {
	x.metrics = metrics
	return x
}

// Path returns the snapshot file path.
func (x *Index) Path() string {
	return x.path
}

// Load reads the current snapshot. A missing snapshot is an empty registry.
// A snapshot that does not parse or validate is logged and also read as an
// empty registry.
func (x *Index) Load(ctx context.Context) (Registry, error) {
	reg, _, err := x.load(ctx)
	return reg, err
}

func (x *Index) load(ctx context.Context) (reg Registry, corrupt bool, err error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	data, err := os.ReadFile(x.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Registry{}, false, nil
	}
	if err != nil {
		return nil, false, storageError("failed to read package index", err)
	}

	reg, err = decodeRegistry(data)
	if err != nil {
		x.logger.Error("Failed to load package index, treating it as empty",
			zap.String("path", x.path),
			zap.Error(err),
		)
		x.metrics.IncIndexCorrupt()
		return Registry{}, true, nil
	}
	return reg, false, nil
}

func decodeRegistry(data []byte) (Registry, error) {
	var pkgs []*Package
	if err := indexJSON.Unmarshal(data, &pkgs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	reg := make(Registry, len(pkgs))
	for i, pkg := range pkgs {
		if err := validatePackage(pkg); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		reg[pkg.Name] = pkg
	}
	return reg, nil
}

// Save replaces the snapshot with reg.
func (x *Index) Save(ctx context.Context, reg Registry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.saveLocked(ctx, reg)
}

// saveLocked writes reg to a temp file in the index directory and renames it
// over the snapshot, so readers see either the old or the new file.
func (x *Index) saveLocked(ctx context.Context, reg Registry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	data, err := indexJSON.MarshalIndent(reg.Packages(), "", "  ")
	if err != nil {
		return storageError("failed to encode package index", err)
	}

	dir := filepath.Dir(x.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return storageError("failed to create storage directory", err)
	}
	tmp, err := os.CreateTemp(dir, IndexFile+".*.tmp")
	if err != nil {
		return storageError("failed to create package index", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return storageError("failed to write package index", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return storageError("failed to sync package index", err)
	}
	if err := tmp.Close(); err != nil {
		return storageError("failed to close package index", err)
	}
	if err := os.Rename(tmp.Name(), x.path); err != nil {
		return storageError("failed to replace package index", err)
	}

	x.metrics.ObserveIndexSave(time.Since(start))
	x.metrics.SetIndexSize(len(reg), reg.VersionCount())
	return nil
}

// Mutate loads the registry, applies fn and saves the result while holding
// the index lock. Nothing is saved if fn fails. A corrupt snapshot is moved
// aside before it is replaced.
func (x *Index) Mutate(ctx context.Context, fn func(Registry) error) (Registry, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	reg, corrupt, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(reg); err != nil {
		return nil, err
	}
	if corrupt {
		if err := x.quarantineLocked(); err != nil {
			return nil, err
		}
	}
	if err := x.saveLocked(ctx, reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func (x *Index) quarantineLocked() error {
	dst := x.path + ".corrupt-" + time.Now().UTC().Format("20060102T150405.000000000Z")
	if err := os.Rename(x.path, dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageError("failed to quarantine corrupt package index", err)
	}
	x.logger.Warn("Moved corrupt package index aside",
		zap.String("path", x.path),
		zap.String("quarantine", dst),
	)
	return nil
}
