package embedding

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"notebook-rag-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoServer 返回与输入等量的向量，向量首元素编码了全局序号，便于断言顺序。
func echoServer(t *testing.T, batches *[][]string) *httptest.Server {
	t.Helper()
	counter := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if batches != nil {
			*batches = append(*batches, req.Input)
		}

		resp := embeddingResponse{}
		for range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
			}{Embedding: []float32{float32(counter), 1.0}})
			counter++
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(baseURL string, batchSize int) Client {
	return NewClient(config.EmbeddingConfig{
		APIKey:    "test-key",
		BaseURL:   baseURL,
		Model:     "test-model",
		BatchSize: batchSize,
	})
}

func TestEmbedDocuments_EmptyInputSkipsAPI(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	vectors, err := newTestClient(srv.URL, 100).EmbedDocuments(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.False(t, called)
}

func TestEmbedDocuments_BatchesAtLimitAndPreservesOrder(t *testing.T) {
	var batches [][]string
	srv := echoServer(t, &batches)
	defer srv.Close()

	texts := make([]string, 7)
	for i := range texts {
		texts[i] = fmt.Sprintf("text-%d", i)
	}

	vectors, err := newTestClient(srv.URL, 3).EmbedDocuments(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, 7)

	// 7 条文本、批量上限 3 → 3+3+1
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[1], 3)
	assert.Len(t, batches[2], 1)
	assert.Equal(t, "text-3", batches[1][0])

	// 返回顺序与输入顺序一致
	for i, v := range vectors {
		assert.Equal(t, float32(i), v[0])
	}
}

func TestEmbedDocuments_Non200ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 100).EmbedDocuments(context.Background(), []string{"a"})
	require.Error(t, err)

	var embErr *Error
	assert.ErrorAs(t, err, &embErr)
}

func TestEmbedDocuments_CountMismatchReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 两条输入只回一个向量
		json.NewEncoder(w).Encode(embeddingResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{1}}}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 100).EmbedDocuments(context.Background(), []string{"a", "b"})
	require.Error(t, err)

	var embErr *Error
	assert.ErrorAs(t, err, &embErr)
}

func TestEmbedQuery_UsesQueryIntent(t *testing.T) {
	var gotTextType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotTextType = req.TextType
		json.NewEncoder(w).Encode(embeddingResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{0.5}}}})
	}))
	defer srv.Close()

	vec, err := newTestClient(srv.URL, 100).EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5}, vec)
	assert.Equal(t, textTypeQuery, gotTextType)
}

func TestEmbedDocuments_UsesDocumentIntent(t *testing.T) {
	var gotTextType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotTextType = req.TextType
		json.NewEncoder(w).Encode(embeddingResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: []float32{0.5}}}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 100).EmbedDocuments(context.Background(), []string{"doc"})
	require.NoError(t, err)
	assert.Equal(t, textTypeDocument, gotTextType)
}
