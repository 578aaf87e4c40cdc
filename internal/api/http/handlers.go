package http

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chungindustries/cpm-registry/internal/domain/registry"
)

// Multipart field names of a publish request.
const (
	FieldMeta    = "meta"
	FieldTarball = "tarball"
)

// metaJSON rejects unknown metadata fields.
var metaJSON = sonic.Config{DisallowUnknownFields: true}.Froze()

// Options tune the handler set.
type Options struct {
	// MaxUploadBytes caps the size of a publish request body.
	MaxUploadBytes int64
	// Version is reported by the root and health endpoints.
	Version string
	// OpenAPI is served at /openapi.yaml when set.
	OpenAPI []byte
}

// Handlers contains all HTTP handlers
type Handlers struct {
	service *registry.Service
	logger  *zap.Logger
	opts    Options
	started time.Time
}

// NewHandlers creates a new handler set
func NewHandlers(service *registry.Service, logger *zap.Logger, opts Options) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		service: service,
		logger:  logger,
		opts:    opts,
		started: time.Now(),
	}
}

// Register mounts every route on the engine.
func (h *Handlers) Register(router *gin.Engine) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/openapi.yaml", h.OpenAPI)

	packages := router.Group("/packages")
	packages.GET("", h.ListPackages)
	packages.POST("", h.PublishPackage)
	packages.GET("/:name", h.GetPackage)
	packages.GET("/:name/:version", h.GetPackageVersion)
	packages.GET("/:name/:version/dist/tarball", h.DownloadTarball)

	router.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "Route not found")
	})
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		fail(c, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	success(c, http.StatusOK, gin.H{
		"service": "CPM Registry",
		"version": h.opts.Version,
		"docs":    "/openapi.yaml",
	})
}

// Health handles health checks
func (h *Handlers) Health(c *gin.Context) {
	success(c, http.StatusOK, gin.H{
		"status":         "healthy",
		"version":        h.opts.Version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// OpenAPI serves the generated API document
func (h *Handlers) OpenAPI(c *gin.Context) {
	if len(h.opts.OpenAPI) == 0 {
		fail(c, http.StatusNotFound, "API document not available")
		return
	}
	c.Data(http.StatusOK, "application/yaml; charset=utf-8", h.opts.OpenAPI)
}

// ListPackages returns every package in the registry
func (h *Handlers) ListPackages(c *gin.Context) {
	pkgs, err := h.service.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"packages": pkgs})
}

// GetPackage returns one package with all of its versions
func (h *Handlers) GetPackage(c *gin.Context) {
	pkg, err := h.service.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, pkg)
}

// GetPackageVersion returns one version entry
func (h *Handlers) GetPackageVersion(c *gin.Context) {
	version := c.Param("version")
	if err := registry.ValidateVersion(version); err != nil {
		h.writeError(c, err)
		return
	}

	entry, err := h.service.GetVersion(c.Request.Context(), c.Param("name"), version)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusOK, entry)
}

// DownloadTarball streams the tarball of a published version
func (h *Handlers) DownloadTarball(c *gin.Context) {
	name, version := c.Param("name"), c.Param("version")
	if err := registry.ValidateVersion(version); err != nil {
		h.writeError(c, err)
		return
	}

	rc, err := h.service.OpenTarball(c.Request.Context(), name, version)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	mtype, err := mimetype.DetectReader(rc)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if _, err := rc.Seek(0, io.SeekStart); err != nil {
		h.writeError(c, err)
		return
	}

	filename := registry.TarballFilename(name, version)
	c.Header("Content-Type", mtype.String())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeContent(c.Writer, c.Request, filename, time.Time{}, rc)
}

// PublishPackage creates a package or adds/replaces one of its versions.
// The request is multipart/form-data with the metadata JSON in the "meta"
// field and the archive in the "tarball" file field.
func (h *Handlers) PublishPackage(c *gin.Context) {
	if h.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxUploadBytes)
	}

	form, err := c.MultipartForm()
	if err != nil {
		h.formError(c, err)
		return
	}

	meta, err := parseMeta(form)
	if err != nil {
		h.writeError(c, err)
		return
	}

	tarball, err := readTarball(form)
	if err != nil {
		h.formError(c, err)
		return
	}

	pkg, err := h.service.Upsert(c.Request.Context(), meta, tarball)
	if err != nil {
		h.writeError(c, err)
		return
	}
	success(c, http.StatusCreated, pkg)
}

func (h *Handlers) formError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		fail(c, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum allowed size")
	case errors.Is(err, http.ErrNotMultipart), errors.Is(err, http.ErrMissingBoundary):
		fail(c, http.StatusBadRequest, "Request must be multipart/form-data")
	case errors.Is(err, registry.ErrValidation):
		fail(c, http.StatusBadRequest, registry.Message(err))
	default:
		_ = c.Error(err)
		fail(c, http.StatusBadRequest, "Malformed multipart request")
	}
}

type badRequest string

func (e badRequest) Error() string { return string(e) }

func (e badRequest) Is(target error) bool { return target == registry.ErrValidation }

func parseMeta(form *multipart.Form) (registry.Metadata, error) {
	var meta registry.Metadata

	values := form.Value[FieldMeta]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return meta, badRequest("meta is required")
	}
	if err := metaJSON.UnmarshalFromString(values[0], &meta); err != nil {
		return meta, badRequest("meta must be a JSON object with name, version, author and dependencies only")
	}
	return meta, nil
}

func readTarball(form *multipart.Form) ([]byte, error) {
	files := form.File[FieldTarball]
	if len(files) == 0 {
		return nil, badRequest("tarball is required")
	}

	f, err := files[0].Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
