package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFilePersister(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		path         string
		existingData string
		data         string
		truncates    bool
	}{
		{
			name: "just_file",
			path: "test.png",
			data: "some data",
		},
		{
			name: "with_dir",
			path: "path/test.png",
			data: "some data",
		},
		{
			name:         "truncates",
			path:         "test.png",
			data:         "some data",
			truncates:    true,
			existingData: "existing data",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			p := filepath.Join(dir, tt.path)

			// We want to make sure that the persister truncates the existing
			// data and therefore overwrites existing data. This sets up a file
			// with some existing data that should be overwritten.
			if tt.truncates {
				require.NoError(t, os.WriteFile(p, []byte(tt.existingData), 0o600))
			}

			var l LocalFilePersister
			err := l.Persist(context.Background(), p, strings.NewReader(tt.data))
			assert.NoError(t, err)

			i, err := os.Stat(p)
			require.NoError(t, err)
			assert.False(t, i.IsDir())

			bb, err := os.ReadFile(filepath.Clean(p))
			require.NoError(t, err)

			if tt.truncates {
				assert.NotEqual(t, tt.existingData, string(bb))
			}

			assert.Equal(t, tt.data, string(bb))

			entries, err := os.ReadDir(filepath.Dir(p))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "no temporary files left behind")
		})
	}
}

func TestLocalFilePersister_BaseDir(t *testing.T) {
	dir := t.TempDir()

	l := LocalFilePersister{BaseDir: filepath.Join(dir, "shots")}
	require.NoError(t, l.Persist(context.Background(), "screenshot_mobile.png", bytes.NewReader([]byte("png"))))

	bb, err := os.ReadFile(filepath.Join(dir, "shots", "screenshot_mobile.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(bb))
}

func TestLocalFilePersister_Canceled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var l LocalFilePersister
	err := l.Persist(ctx, filepath.Join(dir, "test.png"), strings.NewReader("data"))
	require.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
