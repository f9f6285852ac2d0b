package validation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/uplink/errors"
)

func TestValidateMimeType(t *testing.T) {
	tests := []struct {
		name     string
		mimeType string
		wantErr  bool
	}{
		{"empty is allowed", "", false},
		{"plain type", "image/jpeg", false},
		{"type with parameters", "text/plain; charset=utf-8", false},
		{"missing subtype", "image", true},
		{"garbage", "not a mime type at all", true},
		{"bare slash", "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateMimeType(tt.mimeType)
			if tt.wantErr {
				assert.True(t, errors.IsBadMimeType(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSourceFile(t *testing.T) {
	t.Run("regular file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.bin")
		require.NoError(t, os.WriteFile(path, []byte("content"), 0o600))

		size, err := ValidateSourceFile(path)
		require.NoError(t, err)
		assert.Equal(t, int64(7), size)
	})

	t.Run("empty file passes", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.bin")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		size, err := ValidateSourceFile(path)
		require.NoError(t, err)
		assert.Zero(t, size)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := ValidateSourceFile(filepath.Join(t.TempDir(), "missing.bin"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ValidateSourceFile(t.TempDir())
		assert.ErrorIs(t, err, errors.ErrInvalidInput)
	})
}

func TestValidateObjectKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"empty key is allowed", "", false},
		{"simple key", "photos/cat.jpg", false},
		{"unicode key", "照片/猫.jpg", false},
		{"max length", strings.Repeat("k", 750), false},
		{"too long", strings.Repeat("k", 751), true},
		{"control character", "bad\x00key", true},
		{"newline", "bad\nkey", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateObjectKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
