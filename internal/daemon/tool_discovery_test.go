package daemon

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeTool(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "SumatraPDF.exe")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestNewToolDiscovery(t *testing.T) {
	ttl := 10 * time.Second
	td := NewToolDiscovery("x.exe", ttl)
	assert.Equal(t, ttl, td.cacheTTL)
	assert.Equal(t, "x.exe", td.Path())

	assert.Equal(t, 30*time.Second, NewToolDiscovery("x.exe", 0).cacheTTL)
}

func TestToolDiscoverySummary(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		path := writeFakeTool(t, "MZ-binary")
		s := NewToolDiscovery(path, time.Minute).Summary(false)
		assert.Equal(t, "ok", s.Status)
		assert.True(t, s.Found)
		assert.Equal(t, int64(9), s.SizeBytes)
		assert.Empty(t, s.Error)
	})

	t.Run("missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "SumatraPDF.exe")
		s := NewToolDiscovery(path, time.Minute).Summary(false)
		assert.Equal(t, "error", s.Status)
		assert.False(t, s.Found)
		assert.NotEmpty(t, s.Error)
	})

	t.Run("directory", func(t *testing.T) {
		s := NewToolDiscovery(t.TempDir(), time.Minute).Summary(false)
		assert.Equal(t, "error", s.Status)
		assert.Contains(t, s.Error, "is a directory")
	})

	t.Run("empty file", func(t *testing.T) {
		s := NewToolDiscovery(writeFakeTool(t, ""), time.Minute).Summary(false)
		assert.Equal(t, "warning", s.Status)
		assert.True(t, s.Found)
	})
}

func TestToolDiscoveryCaches(t *testing.T) {
	path := writeFakeTool(t, "MZ")
	td := NewToolDiscovery(path, time.Hour)

	calls := 0
	td.stat = func(name string) (fs.FileInfo, error) {
		calls++
		return os.Stat(name)
	}

	td.Summary(false)
	td.Summary(false)
	assert.Equal(t, 1, calls)

	td.Summary(true)
	assert.Equal(t, 2, calls)

	// Removal is only seen on refresh
	require.NoError(t, os.Remove(path))
	assert.Equal(t, "ok", td.Summary(false).Status)
	assert.Equal(t, "error", td.Summary(true).Status)
}

func TestToolDiscoveryExpires(t *testing.T) {
	td := NewToolDiscovery(writeFakeTool(t, "MZ"), time.Millisecond)

	calls := 0
	td.stat = func(name string) (fs.FileInfo, error) {
		calls++
		return os.Stat(name)
	}

	td.Summary(false)
	time.Sleep(5 * time.Millisecond)
	td.Summary(false)
	assert.Equal(t, 2, calls)
}
