package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
)

func testCases() []*entities.KnowledgeCase {
	return []*entities.KnowledgeCase{
		{CaseID: "case-a", Embedding: []float32{1, 0, 0}},
		{CaseID: "case-b", Embedding: []float32{0, 1, 0}},
		{CaseID: "case-c", Embedding: []float32{0.9, 0.1, 0}},
		{CaseID: "no-embedding"},
	}
}

func TestFlatIndex_BuildAndSearch(t *testing.T) {
	idx := NewFlatIndex(t.TempDir(), 3)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, testCases()))
	assert.Equal(t, 3, idx.Size())

	ids, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"case-a", "case-c"}, ids)
}

func TestFlatIndex_SearchBoundsKToSize(t *testing.T) {
	idx := NewFlatIndex(t.TempDir(), 3)
	ctx := context.Background()

	require.NoError(t, idx.Build(ctx, testCases()))

	ids, err := idx.Search(ctx, []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, "case-b", ids[0])
}

func TestFlatIndex_SearchEmptyIndex(t *testing.T) {
	idx := NewFlatIndex(t.TempDir(), 3)

	ids, err := idx.Search(context.Background(), []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFlatIndex_SearchDimensionMismatch(t *testing.T) {
	idx := NewFlatIndex(t.TempDir(), 3)
	ctx := context.Background()
	require.NoError(t, idx.Build(ctx, testCases()))

	_, err := idx.Search(ctx, []float32{1, 0}, 2)
	assert.Error(t, err)
}

func TestFlatIndex_PersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first := NewFlatIndex(dir, 3)
	require.NoError(t, first.Build(ctx, testCases()))

	second := NewFlatIndex(dir, 3)
	found, err := second.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, second.Size())

	ids, err := second.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"case-a"}, ids)
}

func TestFlatIndex_LoadMissingArtifacts(t *testing.T) {
	idx := NewFlatIndex(t.TempDir(), 3)

	found, err := idx.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, found)
}
