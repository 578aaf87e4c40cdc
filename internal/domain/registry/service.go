package registry

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/chungindustries/cpm-registry/internal/infrastructure/monitoring"
)

// Service publishes packages and answers queries over the index.
type Service struct {
	blobs      BlobStore
	index      *Index
	publishing *keyLock
	logger     *zap.Logger
	metrics    *monitoring.Metrics
}

// NewService creates a registry service over the given blob store and index.
func NewService(blobs BlobStore, index *Index) *Service {
	return &Service{
		blobs:      blobs,
		index:      index,
		publishing: newKeyLock(),
		logger:     zap.NewNop(),
	}
}

// WithLogger sets the service logger.
func (s *Service) WithLogger(logger *zap.Logger) *Service {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMetrics adds metrics tracking to the service
func (s *Service) WithMetrics(metrics *monitoring.Metrics) *Service {
	s.metrics = metrics
	return s
}

// Upsert publishes one version: the tarball is written first, then the index
// entry is created or replaced. Republishing an existing version overwrites
// both. The returned package carries every version.
func (s *Service) Upsert(ctx context.Context, meta Metadata, tarball []byte) (pkg *Package, err error) {
	start := time.Now()
	defer func() {
		s.metrics.RecordPublish(outcome(err), time.Since(start), len(tarball))
	}()

	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if len(tarball) == 0 {
		return nil, validationError("Tarball data is missing")
	}

	// Held across blob write and index update so concurrent republishes of
	// the same version cannot pair one request's blob with another's metadata.
	unlock := s.publishing.Lock(meta.Name + "@" + meta.Version)
	defer unlock()

	if _, err := s.blobs.Put(ctx, meta.Name, meta.Version, tarball); err != nil {
		s.logger.Error("Failed to store tarball",
			zap.String("package", meta.Name),
			zap.String("version", meta.Version),
			zap.Error(err),
		)
		return nil, err
	}

	entry := meta.entry()
	_, err = s.index.Mutate(ctx, func(reg Registry) error {
		existing, ok := reg[meta.Name]
		if !ok {
			pkg = &Package{
				Name:     meta.Name,
				Author:   meta.Author,
				Versions: Versions{meta.Version: entry},
			}
			reg[meta.Name] = pkg
			return nil
		}
		if existing.Versions == nil {
			existing.Versions = make(Versions)
		}
		existing.Versions[meta.Version] = entry
		if meta.Author != "" {
			existing.Author = meta.Author
		}
		pkg = existing
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update package index",
			zap.String("package", meta.Name),
			zap.String("version", meta.Version),
			zap.Error(err),
		)
		return nil, err
	}

	s.logger.Info("Published package",
		zap.String("package", meta.Name),
		zap.String("version", meta.Version),
		zap.Int("size", len(tarball)),
		zap.String("content_type", mimetype.Detect(tarball).String()),
		zap.Int("versions", len(pkg.Versions)),
	)
	return pkg, nil
}

// List returns every package, sorted by name.
func (s *Service) List(ctx context.Context) (pkgs []*Package, err error) {
	defer func() { s.metrics.RecordQuery("list", outcome(err)) }()

	reg, err := s.index.Load(ctx)
	if err != nil {
		return nil, err
	}
	return reg.Packages(), nil
}

// Get returns the package called name.
func (s *Service) Get(ctx context.Context, name string) (pkg *Package, err error) {
	defer func() { s.metrics.RecordQuery("get", outcome(err)) }()
	return s.get(ctx, name)
}

func (s *Service) get(ctx context.Context, name string) (*Package, error) {
	reg, err := s.index.Load(ctx)
	if err != nil {
		return nil, err
	}
	pkg, ok := reg[name]
	if !ok {
		return nil, ErrPackageNotFound
	}
	return pkg, nil
}

// GetVersion returns one version of a package. ErrPackageNotFound and
// ErrVersionNotFound tell the two missing cases apart.
func (s *Service) GetVersion(ctx context.Context, name, version string) (v *PackageVersion, err error) {
	defer func() { s.metrics.RecordQuery("get_version", outcome(err)) }()
	return s.getVersion(ctx, name, version)
}

func (s *Service) getVersion(ctx context.Context, name, version string) (*PackageVersion, error) {
	pkg, err := s.get(ctx, name)
	if err != nil {
		return nil, err
	}
	entry, ok := pkg.Versions[version]
	if !ok {
		return nil, ErrVersionNotFound
	}
	return &entry, nil
}

// OpenTarball returns the tarball of a published version. Blobs that are not
// referenced by the index are never served.
func (s *Service) OpenTarball(ctx context.Context, name, version string) (rc io.ReadSeekCloser, err error) {
	defer func() { s.metrics.RecordQuery("tarball", outcome(err)) }()

	if _, err := s.getVersion(ctx, name, version); err != nil {
		return nil, err
	}
	return s.blobs.Open(ctx, name, version)
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
