package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/pagequery/internal/page"
)

// unitVector returns a 4-dim unit vector pointing along the given axis.
func unitVector(axis int) []float32 {
	vec := make([]float32, 4)
	vec[axis%4] = 1
	return vec
}

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{VectorSize: 4}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func testChunks() []page.Chunk {
	return []page.Chunk{
		{Index: 0, TokenCount: 12, Text: "installation requires go 1.24", HTML: "<p>installation requires go 1.24</p>", DOMPath: "html > body > p"},
		{Index: 1, TokenCount: 9, Text: "configuration lives in a yaml file", HTML: "<p>configuration lives in a yaml file</p>", DOMPath: "html > body > p"},
		{Index: 2, TokenCount: 7, Text: "run the daemon with systemd", HTML: "<p>run the daemon with systemd</p>", DOMPath: "html > body > div.ops > p"},
	}
}

func TestChromemStore_Upsert(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("stores chunks and makes document queryable", func(t *testing.T) {
		chunks := testChunks()
		vectors := [][]float32{unitVector(0), unitVector(1), unitVector(2)}

		err := store.Upsert(ctx, "doc-one", chunks, vectors)
		require.NoError(t, err)

		exists, err := store.Exists(ctx, "doc-one")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("empty chunks", func(t *testing.T) {
		err := store.Upsert(ctx, "doc-two", nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrEmptyChunks)
	})

	t.Run("vector count mismatch", func(t *testing.T) {
		err := store.Upsert(ctx, "doc-three", testChunks(), [][]float32{unitVector(0)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrVectorCountMismatch)
	})

	t.Run("reindexing replaces vectors instead of duplicating", func(t *testing.T) {
		chunks := testChunks()
		vectors := [][]float32{unitVector(0), unitVector(1), unitVector(2)}

		require.NoError(t, store.Upsert(ctx, "doc-four", chunks, vectors))
		require.NoError(t, store.Upsert(ctx, "doc-four", chunks, vectors))

		results, err := store.Query(ctx, "doc-four", unitVector(0), 10)
		require.NoError(t, err)
		assert.Len(t, results, len(chunks))
	})
}

func TestChromemStore_Query(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	chunks := testChunks()
	vectors := [][]float32{unitVector(0), unitVector(1), unitVector(2)}
	require.NoError(t, store.Upsert(ctx, "doc-query", chunks, vectors))

	t.Run("best match first with full payload", func(t *testing.T) {
		results, err := store.Query(ctx, "doc-query", unitVector(1), 3)
		require.NoError(t, err)
		require.Len(t, results, 3)

		top := results[0]
		assert.Equal(t, 1, top.Index)
		assert.Equal(t, "doc-query", top.DocumentID)
		assert.Equal(t, "configuration lives in a yaml file", top.Text)
		assert.Equal(t, "<p>configuration lives in a yaml file</p>", top.HTML)
		assert.Equal(t, "html > body > p", top.DOMPath)
		assert.Equal(t, 9, top.TokenCount)
		assert.InDelta(t, 1.0, top.Score, 0.001)

		for i := 1; i < len(results); i++ {
			assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
		}
	})

	t.Run("topK caps result count", func(t *testing.T) {
		results, err := store.Query(ctx, "doc-query", unitVector(0), 1)
		require.NoError(t, err)
		assert.Len(t, results, 1)
		assert.Equal(t, 0, results[0].Index)
	})

	t.Run("topK above stored count returns all", func(t *testing.T) {
		results, err := store.Query(ctx, "doc-query", unitVector(0), 50)
		require.NoError(t, err)
		assert.Len(t, results, 3)
	})

	t.Run("unknown document", func(t *testing.T) {
		_, err := store.Query(ctx, "never-indexed", unitVector(0), 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNamespaceNotFound)
	})

	t.Run("invalid topK", func(t *testing.T) {
		_, err := store.Query(ctx, "doc-query", unitVector(0), 0)
		require.Error(t, err)
	})
}

func TestChromemStore_Isolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Upsert(ctx, "doc-a",
		[]page.Chunk{{Index: 0, Text: "text from document a with enough length", DOMPath: "html > body > p"}},
		[][]float32{unitVector(0)},
	))
	require.NoError(t, store.Upsert(ctx, "doc-b",
		[]page.Chunk{{Index: 0, Text: "text from document b with enough length", DOMPath: "html > body > p"}},
		[][]float32{unitVector(0)},
	))

	results, err := store.Query(ctx, "doc-a", unitVector(0), 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-a", results[0].DocumentID)
}

func TestChromemStore_Exists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	exists, err := store.Exists(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChromemStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 4}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, "doc-persist",
		[]page.Chunk{{Index: 0, Text: "persisted chunk text of sufficient length", DOMPath: "html > body > p"}},
		[][]float32{unitVector(0)},
	))
	require.NoError(t, store.Close())

	reopened, err := NewChromemStore(ChromemConfig{Path: dir, VectorSize: 4}, zap.NewNop())
	require.NoError(t, err)

	exists, err := reopened.Exists(ctx, "doc-persist")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "doc_abcdef0123456789", false},
		{"empty", "", true},
		{"uppercase", "Doc_ABC", true},
		{"path traversal", "../etc", true},
		{"spaces", "doc name", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCollectionName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCollectionFor(t *testing.T) {
	t.Run("always a valid collection name", func(t *testing.T) {
		for _, docID := range []string{
			"doc-with-hyphens",
			"UPPERCASE",
			"https://example.com/page?q=1",
			"d41d8cd98f00b204e9800998ecf8427e69b3a2c0d41d8cd98f00b204e9800998",
		} {
			assert.NoError(t, ValidateCollectionName(collectionFor(docID)), docID)
		}
	})

	t.Run("deterministic and distinct per document", func(t *testing.T) {
		assert.Equal(t, collectionFor("doc-a"), collectionFor("doc-a"))
		assert.NotEqual(t, collectionFor("doc-a"), collectionFor("doc-b"))
	})
}

func TestPointID(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, pointID("doc", 3), pointID("doc", 3))
	})

	t.Run("distinct per chunk", func(t *testing.T) {
		assert.NotEqual(t, pointID("doc", 0), pointID("doc", 1))
	})

	t.Run("distinct per document", func(t *testing.T) {
		assert.NotEqual(t, pointID("doc-a", 0), pointID("doc-b", 0))
	})
}
