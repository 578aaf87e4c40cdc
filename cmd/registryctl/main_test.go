package main

import (
	"bytes"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apihttp "github.com/chungindustries/cpm-registry/internal/api/http"
	"github.com/chungindustries/cpm-registry/internal/domain/registry"
)

func newRegistry(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)

	root := t.TempDir()
	service := registry.NewService(registry.NewFileStore(root), registry.NewIndex(root))
	router := gin.New()
	apihttp.NewHandlers(service, nil, apihttp.Options{MaxUploadBytes: 1 << 20}).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv.URL
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestPublishGetDownload(t *testing.T) {
	url := newRegistry(t)
	dir := t.TempDir()

	metaPath := filepath.Join(dir, "meta.json")
	require.NoError(t, os.WriteFile(metaPath, []byte(`{"name":"pkg","version":"1.0.0","author":"ada"}`), 0o644))
	tarPath := filepath.Join(dir, "pkg.tgz")
	require.NoError(t, os.WriteFile(tarPath, []byte("archive bytes"), 0o644))

	code, out, errOut := runCmd(t, "-registry", url, "publish", "-meta", metaPath, "-tarball", tarPath)
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "Published pkg@1.0.0")

	code, out, _ = runCmd(t, "-registry", url, "list")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "pkg\t1 version(s)\tada")

	code, out, _ = runCmd(t, "-registry", url, "get", "pkg", "1.0.0")
	require.Equal(t, 0, code)
	assert.Contains(t, out, `"tarball": "/packages/pkg/1.0.0/dist/tarball"`)

	dest := filepath.Join(dir, "out.tgz")
	code, out, errOut = runCmd(t, "-registry", url, "download", "-o", dest, "pkg", "1.0.0")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "13 bytes")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "archive bytes", string(data))
}

func TestErrorsAndUsage(t *testing.T) {
	url := newRegistry(t)

	code, _, errOut := runCmd(t, "-registry", url, "get", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Package not found")

	code, _, _ = runCmd(t, "-registry", url)
	assert.Equal(t, 2, code)

	code, _, errOut = runCmd(t, "-registry", url, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "unknown command")

	code, _, errOut = runCmd(t, "-registry", url, "publish", "-meta", "x.json")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "-meta and -tarball are required")

	code, _, _ = runCmd(t, "-registry", url, "download", "pkg")
	assert.Equal(t, 2, code)
}

func TestPublishRejectsUnknownMetaFields(t *testing.T) {
	url := newRegistry(t)
	dir := t.TempDir()

	metaPath := filepath.Join(dir, "meta.json")
	require.NoError(t, os.WriteFile(metaPath, []byte(`{"name":"pkg","version":"1.0.0","license":"MIT"}`), 0o644))
	tarPath := filepath.Join(dir, "pkg.tgz")
	require.NoError(t, os.WriteFile(tarPath, []byte("x"), 0o644))

	code, _, errOut := runCmd(t, "-registry", url, "publish", "-meta", metaPath, "-tarball", tarPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "failed to parse")
}
