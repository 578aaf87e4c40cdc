package registry

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func samplePackage(name string, versions ...string) *Package {
	pkg := &Package{Name: name, Versions: Versions{}}
	for _, v := range versions {
		pkg.Versions[v] = Metadata{Name: name, Version: v}.entry()
	}
	return pkg
}

func TestIndexLoadMissing(t *testing.T) {
	reg, err := NewIndex(t.TempDir()).Load(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, reg)
	assert.Empty(t, reg)
}

func TestIndexSaveLoad(t *testing.T) {
	root := t.TempDir()
	index := NewIndex(root)
	ctx := context.Background()

	reg := Registry{
		"zeta":  samplePackage("zeta", "1.0.0"),
		"alpha": samplePackage("alpha", "1.0.0", "1.1.0"),
	}
	reg["alpha"].Author = "ada"
	reg["alpha"].Versions["1.1.0"] = Metadata{
		Name:         "alpha",
		Version:      "1.1.0",
		Dependencies: map[string]string{"zeta": "^1.0.0"},
	}.entry()
	require.NoError(t, index.Save(ctx, reg))

	loaded, err := index.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, reg, loaded)

	// On disk: a JSON array sorted by name.
	data, err := os.ReadFile(filepath.Join(root, IndexFile))
	require.NoError(t, err)
	var arr []map[string]any
	require.NoError(t, json.Unmarshal(data, &arr))
	require.Len(t, arr, 2)
	assert.Equal(t, "alpha", arr[0]["name"])
	assert.Equal(t, "zeta", arr[1]["name"])

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestIndexSaveEmpty(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, NewIndex(root).Save(context.Background(), Registry{}))

	data, err := os.ReadFile(filepath.Join(root, IndexFile))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestIndexCorruptSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed", content: `[{"name":`},
		{name: "not an array", content: `{"pkg":{}}`},
		{name: "unknown field", content: `[{"name":"pkg","versions":{},"license":"MIT"}]`},
		{name: "invalid name", content: `[{"name":"bad name","versions":{}}]`},
		{name: "missing versions", content: `[{"name":"pkg"}]`},
		{name: "invalid version key", content: `[{"name":"pkg","versions":{"1.0":{"name":"pkg","version":"1.0","dist":{"tarball":"x"}}}}]`},
		{name: "missing dist", content: `[{"name":"pkg","versions":{"1.0.0":{"name":"pkg","version":"1.0.0","dist":{"tarball":""}}}}]`},
		{name: "null entry", content: `[null]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, IndexFile)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			core, logs := observer.New(zapcore.ErrorLevel)
			index := NewIndex(root).WithLogger(zap.New(core))

			reg, err := index.Load(context.Background())
			require.NoError(t, err)
			assert.Empty(t, reg)
			assert.Equal(t, 1, logs.FilterMessage("Failed to load package index, treating it as empty").Len())

			// Load never touches the file.
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestIndexReadFailureIsStorageFault(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, IndexFile), 0o755))

	_, err := NewIndex(root).Load(context.Background())
	assert.ErrorIs(t, err, ErrStorage)
}

func TestIndexMutate(t *testing.T) {
	index := NewIndex(t.TempDir())
	ctx := context.Background()

	reg, err := index.Mutate(ctx, func(reg Registry) error {
		reg["pkg"] = samplePackage("pkg", "1.0.0")
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, reg, "pkg")

	boom := errors.New("boom")
	_, err = index.Mutate(ctx, func(reg Registry) error {
		reg["other"] = samplePackage("other", "1.0.0")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	loaded, err := index.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1, "a failed mutation must not be saved")
}

func TestIndexMutateQuarantinesCorruptSnapshot(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, IndexFile)
	corrupt := `{"definitely": "not a registry"`
	require.NoError(t, os.WriteFile(path, []byte(corrupt), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	index := NewIndex(root).WithLogger(zap.New(core))

	_, err := index.Mutate(context.Background(), func(reg Registry) error {
		reg["pkg"] = samplePackage("pkg", "1.0.0")
		return nil
	})
	require.NoError(t, err)

	loaded, err := index.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, corrupt, string(data))
	assert.True(t, strings.HasSuffix(matches[0], "Z"))
	assert.Equal(t, 1, logs.FilterMessage("Moved corrupt package index aside").Len())
}

func TestIndexCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	index := NewIndex(t.TempDir())
	_, err := index.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, index.Save(ctx, Registry{}), context.Canceled)
}
