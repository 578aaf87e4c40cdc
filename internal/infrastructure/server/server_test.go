package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chungindustries/cpm-registry/internal/infrastructure/config"
	"github.com/chungindustries/cpm-registry/internal/infrastructure/logging"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Storage.Dir = t.TempDir()
	cfg.RateLimit.Enabled = false
	cfg.Logging.Development = true
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := New(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func publish(t *testing.T, h http.Handler, meta string, tarball []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("meta", meta))
	fw, err := mw.CreateFormFile("tarball", "pkg.tgz")
	require.NoError(t, err)
	_, err = fw.Write(tarball)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/packages", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoutesAndMiddleware(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	h := srv.Handler()

	w := publish(t, h, `{"name":"pkg","version":"1.0.0"}`, []byte("archive"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	for _, path := range []string{"/", "/health", "/openapi.yaml", "/packages", "/packages/pkg", "/packages/pkg/1.0.0"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "registry_http_requests_total")
	assert.Contains(t, w.Body.String(), `registry_publish_total{outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), "registry_index_packages 1")
}

func TestOpenAPIIsCompressed(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
}

func TestCORSToggle(t *testing.T) {
	preflight := func(srv *Server) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/packages", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w
	}

	off := newTestServer(t, testConfig(t))
	assert.Empty(t, preflight(off).Header().Get("Access-Control-Allow-Origin"))

	cfg := testConfig(t)
	cfg.CORS.Enabled = true
	on := newTestServer(t, cfg)
	assert.NotEmpty(t, preflight(on).Header().Get("Access-Control-Allow-Origin"))
}

func TestServeGracefulShutdown(t *testing.T) {
	srv := newTestServer(t, testConfig(t))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `"healthy"`))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunFailsOnBadAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Host = "256.0.0.1"
	srv := newTestServer(t, cfg)

	err := srv.Run(context.Background())
	assert.Error(t, err)
}
