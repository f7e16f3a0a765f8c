package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"notebook-rag-go/pkg/vector"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieve_EmptyScopeSkipsEmbedding(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore() // count = 0

	svc := NewRetrievalService(embedder, store)
	contextText, citedIDs, err := svc.Retrieve(context.Background(), "nb-1", "question", 8)

	require.NoError(t, err)
	assert.Empty(t, contextText)
	assert.Nil(t, citedIDs)
	// 空索引不应触发向量化调用
	assert.Zero(t, embedder.queryCalls)
}

func TestRetrieve_RendersContextInHitOrder(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore()
	store.count = 5
	store.hits = []vector.Hit{
		{ID: "chunk-x", Content: "closest passage", Distance: 0.1},
		{ID: "chunk-y", Content: "second passage", Distance: 0.4},
	}

	svc := NewRetrievalService(embedder, store)
	contextText, citedIDs, err := svc.Retrieve(context.Background(), "nb-1", "question", 8)

	require.NoError(t, err)
	assert.Equal(t, []string{"chunk-x", "chunk-y"}, citedIDs)

	// 编号从 1 开始，且 [1] 在 [2] 之前
	idx1 := strings.Index(contextText, "[1] closest passage")
	idx2 := strings.Index(contextText, "[2] second passage")
	require.GreaterOrEqual(t, idx1, 0)
	require.Greater(t, idx2, idx1)
	// 块之间以空行分隔
	assert.Contains(t, contextText, "\n\n")
}

func TestRetrieve_QueryErrorPropagates(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore()
	store.count = 3
	store.queryErr = &vector.Error{Op: "query", Err: errors.New("es unavailable")}

	svc := NewRetrievalService(embedder, store)
	_, _, err := svc.Retrieve(context.Background(), "nb-1", "question", 8)

	require.Error(t, err)
	var vecErr *vector.Error
	assert.ErrorAs(t, err, &vecErr)
}

func TestRetrieve_ZeroHitsIsNotAnError(t *testing.T) {
	embedder := &fakeEmbedder{}
	store := newFakeVectorStore()
	store.count = 3 // 有分块但均未命中

	svc := NewRetrievalService(embedder, store)
	contextText, citedIDs, err := svc.Retrieve(context.Background(), "nb-1", "question", 8)

	require.NoError(t, err)
	assert.Empty(t, contextText)
	assert.Nil(t, citedIDs)
}
