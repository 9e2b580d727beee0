package fileutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	t.Setenv("SITEKIT_TEST_DIR", "/tmp/sitekit")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "Empty", in: "", want: ""},
		{name: "Whitespace", in: "   ", want: ""},
		{name: "Tilde", in: "~/cache", want: filepath.Join(home, "cache")},
		{name: "EnvVar", in: "$SITEKIT_TEST_DIR/cache", want: "/tmp/sitekit/cache"},
		{name: "Unclean", in: "/tmp/a/../b", want: "/tmp/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolvePath(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("Relative", func(t *testing.T) {
		got, err := ResolvePath("cache")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
		assert.True(t, strings.HasSuffix(got, "cache"))
	})
}

func TestWriteFileAtomic(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested")
	path := filepath.Join(dir, "state")

	require.NoError(t, WriteFileAtomic(path, []byte("first"), 0o600))
	require.NoError(t, WriteFileAtomic(path, []byte("second"), 0o600))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	assert.True(t, FileExists(dir))
	assert.True(t, IsDir(dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
	assert.False(t, IsDir(filepath.Join(dir, "missing")))
}
