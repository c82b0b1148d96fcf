package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSentenceIndex_SQLiteDefault(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sentences")

	// Given no backend named
	idx, err := NewSentenceIndex(base, "")
	require.NoError(t, err)
	defer idx.Close()

	// Then SQLite is chosen and its file lands next to the base path
	assert.IsType(t, &SQLiteSentenceIndex{}, idx)
	assert.FileExists(t, base+".db")
}

func TestNewSentenceIndex_Bleve(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sentences")

	idx, err := NewSentenceIndex(base, BackendBleve)
	require.NoError(t, err)
	defer idx.Close()

	assert.IsType(t, &BleveSentenceIndex{}, idx)
	assert.DirExists(t, base+".bleve")
}

func TestNewSentenceIndex_UnknownBackend(t *testing.T) {
	_, err := NewSentenceIndex(filepath.Join(t.TempDir(), "sentences"), "lucene")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown index backend")
	assert.Contains(t, err.Error(), "lucene")
}

func TestNewSentenceIndex_InMemory(t *testing.T) {
	for _, backend := range []string{BackendSQLite, BackendBleve} {
		idx, err := NewSentenceIndex("", backend)
		require.NoError(t, err, "backend %s", backend)
		idx.Close()
	}
}

func TestDetectBackend(t *testing.T) {
	t.Run("defaults to sqlite when nothing exists", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "sentences")
		assert.Equal(t, BackendSQLite, DetectBackend(base))
	})

	t.Run("finds an existing sqlite index", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "sentences")
		require.NoError(t, os.WriteFile(base+".db", []byte("x"), 0o644))

		assert.Equal(t, BackendSQLite, DetectBackend(base))
	})

	t.Run("finds an existing bleve index", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "sentences")
		require.NoError(t, os.MkdirAll(base+".bleve", 0o755))

		assert.Equal(t, BackendBleve, DetectBackend(base))
	})

	t.Run("sqlite wins when both exist", func(t *testing.T) {
		base := filepath.Join(t.TempDir(), "sentences")
		require.NoError(t, os.WriteFile(base+".db", []byte("x"), 0o644))
		require.NoError(t, os.MkdirAll(base+".bleve", 0o755))

		assert.Equal(t, BackendSQLite, DetectBackend(base))
	})
}
