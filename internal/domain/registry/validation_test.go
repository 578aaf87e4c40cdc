package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "pkg"},
		{name: "mixed case", input: "MyPkg"},
		{name: "punctuation", input: "my_pkg-2.lua"},
		{name: "empty", input: "", wantErr: true},
		{name: "space", input: "my pkg", wantErr: true},
		{name: "slash", input: "a/b", wantErr: true},
		{name: "scoped", input: "@scope", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
		{name: "dot dot", input: "..", wantErr: true},
		{name: "unicode", input: "pkgé", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateVersion(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{input: "1.0.0"},
		{input: "0.0.1"},
		{input: "10.20.30"},
		{input: "1.0.0-beta.1"},
		{input: "1.0.0-rc-1"},
		{input: "", wantErr: true},
		{input: "1.0", wantErr: true},
		{input: "v1.0.0", wantErr: true},
		{input: "1.0.0-", wantErr: true},
		{input: "1.0.0+build", wantErr: true},
		{input: "1.0.0-beta_1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			err := ValidateVersion(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateRange(t *testing.T) {
	for _, r := range []string{"^1.2.0", "~1.2", ">=1.0.0 <2.0.0", "1.2.3", "*", "1.x"} {
		assert.NoError(t, ValidateRange(r), r)
	}
	for _, r := range []string{"", "not a range", ">>1"} {
		assert.ErrorIs(t, ValidateRange(r), ErrValidation, r)
	}
}

func TestMetadataValidate(t *testing.T) {
	tests := []struct {
		name    string
		meta    Metadata
		wantMsg string
	}{
		{
			name: "valid with dependencies",
			meta: Metadata{Name: "pkg", Version: "1.0.0", Dependencies: map[string]string{"base": "^1.0.0"}},
		},
		{
			name:    "missing name",
			meta:    Metadata{Version: "1.0.0"},
			wantMsg: "name is required",
		},
		{
			name:    "missing version",
			meta:    Metadata{Name: "pkg"},
			wantMsg: "version is required",
		},
		{
			name:    "bad dependency name",
			meta:    Metadata{Name: "pkg", Version: "1.0.0", Dependencies: map[string]string{"bad name": "1.0.0"}},
			wantMsg: `dependency "bad name"`,
		},
		{
			name:    "bad dependency range",
			meta:    Metadata{Name: "pkg", Version: "1.0.0", Dependencies: map[string]string{"dep": "latest"}},
			wantMsg: `dependency "dep": invalid version range`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.meta.Validate()
			if tt.wantMsg == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.Contains(t, Message(err), tt.wantMsg)
		})
	}
}

func TestErrorClassification(t *testing.T) {
	assert.ErrorIs(t, ErrPackageNotFound, ErrNotFound)
	assert.ErrorIs(t, ErrVersionNotFound, ErrNotFound)
	assert.NotErrorIs(t, ErrVersionNotFound, ErrPackageNotFound)

	cause := errors.New("disk on fire")
	err := storageError("failed to write", cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to write", Message(err))
	assert.Equal(t, "failed to write: disk on fire", err.Error())
}
