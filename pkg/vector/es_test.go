package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"notebook-rag-go/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scoredDoc 是 fakeES 搜索响应中的一条命中。
type scoredDoc struct {
	doc   esDocument
	score float64
}

// fakeES 模拟本实现用到的那一小部分 Elasticsearch REST 接口：
// 索引存在性检查、建索引、按 ID 写/删文档、kNN 搜索、计数、删索引。
type fakeES struct {
	mu              sync.Mutex
	indices         map[string]map[string]esDocument // 索引名 -> 文档ID -> 文档
	mappings        map[string]string                // 索引名 -> 建索引请求体原文
	searchHits      map[string][]scoredDoc           // 索引名 -> 预设的搜索命中（按返回顺序）
	createCalls     int
	searchedIndices []string
}

func newFakeES() *fakeES {
	return &fakeES{
		indices:    map[string]map[string]esDocument{},
		mappings:   map[string]string{},
		searchHits: map[string][]scoredDoc{},
	}
}

func (f *fakeES) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// 客户端会校验这个产品头，缺了它所有请求都会被拒绝
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")

		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.Method == http.MethodHead && len(parts) == 1:
			if _, ok := f.indices[parts[0]]; ok {
				w.WriteHeader(http.StatusOK)
			} else {
				w.WriteHeader(http.StatusNotFound)
			}

		case r.Method == http.MethodPut && len(parts) == 1:
			body, _ := io.ReadAll(r.Body)
			f.mappings[parts[0]] = string(body)
			f.indices[parts[0]] = map[string]esDocument{}
			f.createCalls++
			w.Write([]byte(`{"acknowledged":true}`))

		case r.Method == http.MethodPut && len(parts) == 3 && parts[1] == "_doc":
			idx, ok := f.indices[parts[0]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
				return
			}
			var doc esDocument
			json.NewDecoder(r.Body).Decode(&doc)
			idx[parts[2]] = doc
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"result":"created"}`))

		case r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "_search":
			f.searchedIndices = append(f.searchedIndices, parts[0])
			if _, ok := f.indices[parts[0]]; !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
				return
			}
			type respHit struct {
				Source esDocument `json:"_source"`
				Score  float64    `json:"_score"`
			}
			var hits []respHit
			for _, h := range f.searchHits[parts[0]] {
				hits = append(hits, respHit{Source: h.doc, Score: h.score})
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"hits": map[string]interface{}{"hits": hits},
			})

		case (r.Method == http.MethodGet || r.Method == http.MethodPost) && len(parts) == 2 && parts[1] == "_count":
			idx, ok := f.indices[parts[0]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
				return
			}
			fmt.Fprintf(w, `{"count":%d}`, len(idx))

		case r.Method == http.MethodDelete && len(parts) == 3 && parts[1] == "_doc":
			idx, ok := f.indices[parts[0]]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"result":"not_found"}`))
				return
			}
			if _, ok := idx[parts[2]]; !ok {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"result":"not_found"}`))
				return
			}
			delete(idx, parts[2])
			w.Write([]byte(`{"result":"deleted"}`))

		case r.Method == http.MethodDelete && len(parts) == 1:
			// 客户端带 ignore_unavailable=true，索引不存在也返回成功
			delete(f.indices, parts[0])
			w.Write([]byte(`{"acknowledged":true}`))

		default:
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unexpected request"}`))
		}
	}
}

func newTestStore(t *testing.T) (Store, *fakeES, func()) {
	t.Helper()
	fake := newFakeES()
	srv := httptest.NewServer(fake.handler())
	store, err := New(config.ElasticsearchConfig{
		Addresses:   srv.URL,
		IndexPrefix: "notebook",
	}, 4)
	require.NoError(t, err)
	return store, fake, srv.Close
}

func entry(id string, vec []float32) Entry {
	return Entry{ID: id, Content: "content of " + id, Vector: vec, SourceID: "src-1", ChunkIndex: 0}
}

func TestQuery_MissingScopeReturnsEmpty(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	hits, err := store.Query(context.Background(), "nb-1", []float32{1, 0, 0, 0}, 8)

	require.NoError(t, err)
	assert.Empty(t, hits)
	// 查询确实落在了该作用域自己的索引上
	assert.Equal(t, []string{"notebook_nb-1"}, fake.searchedIndices)
}

func TestQuery_ConvertsScoreToAscendingDistance(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	fake.indices["notebook_nb-1"] = map[string]esDocument{}
	fake.searchHits["notebook_nb-1"] = []scoredDoc{
		{doc: esDocument{ChunkID: "chunk-x", TextContent: "closest", SourceID: "src-1", ChunkIndex: 0}, score: 0.99},
		{doc: esDocument{ChunkID: "chunk-y", TextContent: "farther", SourceID: "src-2", ChunkIndex: 3}, score: 0.75},
	}

	hits, err := store.Query(context.Background(), "nb-1", []float32{1, 0, 0, 0}, 8)

	require.NoError(t, err)
	require.Len(t, hits, 2)

	// score=(1+cos)/2 → distance=1-cos=2*(1-score)
	assert.InDelta(t, 0.02, hits[0].Distance, 1e-9)
	assert.InDelta(t, 0.50, hits[1].Distance, 1e-9)
	assert.Less(t, hits[0].Distance, hits[1].Distance)

	assert.Equal(t, "chunk-x", hits[0].ID)
	assert.Equal(t, "closest", hits[0].Content)
	assert.Equal(t, "src-2", hits[1].SourceID)
	assert.Equal(t, 3, hits[1].ChunkIndex)
}

func TestUpsert_CreatesCosineIndexOnce(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	require.NoError(t, store.Upsert(context.Background(), "nb-1", []Entry{entry("chunk-a", []float32{1, 0, 0, 0})}))
	require.NoError(t, store.Upsert(context.Background(), "nb-1", []Entry{entry("chunk-b", []float32{0, 1, 0, 0})}))

	// 索引只在首次写入时创建，度量随 mapping 一次性固定
	assert.Equal(t, 1, fake.createCalls)
	mapping := fake.mappings["notebook_nb-1"]
	assert.Contains(t, mapping, `"similarity": "cosine"`)
	assert.Contains(t, mapping, `"dims": 4`)
	assert.Len(t, fake.indices["notebook_nb-1"], 2)
}

func TestUpsert_SameIDReplacesDocument(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	require.NoError(t, store.Upsert(context.Background(), "nb-1", []Entry{entry("chunk-a", []float32{1, 0, 0, 0})}))
	require.NoError(t, store.Upsert(context.Background(), "nb-1", []Entry{entry("chunk-a", []float32{0, 0, 0, 1})}))

	docs := fake.indices["notebook_nb-1"]
	require.Len(t, docs, 1)
	assert.Equal(t, []float32{0, 0, 0, 1}, docs["chunk-a"].Vector)
}

func TestUpsert_ScopesMapToSeparateIndices(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	require.NoError(t, store.Upsert(context.Background(), "nb-a", []Entry{entry("chunk-1", []float32{1, 0, 0, 0})}))
	require.NoError(t, store.Upsert(context.Background(), "NB-B", []Entry{entry("chunk-1", []float32{1, 0, 0, 0})}))

	// 每个作用域一个物理索引，索引名统一小写
	assert.Contains(t, fake.indices, "notebook_nb-a")
	assert.Contains(t, fake.indices, "notebook_nb-b")
	assert.Len(t, fake.indices["notebook_nb-a"], 1)
	assert.Len(t, fake.indices["notebook_nb-b"], 1)

	// 查询一个作用域绝不会触碰另一个作用域的索引
	_, err := store.Query(context.Background(), "nb-a", []float32{1, 0, 0, 0}, 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"notebook_nb-a"}, fake.searchedIndices)
}

func TestCount_MissingIndexIsZero(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	n, err := store.Count(context.Background(), "nb-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, store.Upsert(context.Background(), "nb-1", []Entry{
		entry("chunk-a", []float32{1, 0, 0, 0}),
		entry("chunk-b", []float32{0, 1, 0, 0}),
	}))
	require.Len(t, fake.indices["notebook_nb-1"], 2)

	n, err = store.Count(context.Background(), "nb-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestDelete_MissingIDIsNoOp(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	// 索引都不存在时删除也不是错误
	require.NoError(t, store.Delete(context.Background(), "nb-1", []string{"chunk-missing"}))

	require.NoError(t, store.Upsert(context.Background(), "nb-1", []Entry{entry("chunk-a", []float32{1, 0, 0, 0})}))
	require.NoError(t, store.Delete(context.Background(), "nb-1", []string{"chunk-a", "chunk-missing"}))
	assert.Empty(t, fake.indices["notebook_nb-1"])
}

func TestDropScope_RemovesIndex(t *testing.T) {
	store, fake, done := newTestStore(t)
	defer done()

	require.NoError(t, store.Upsert(context.Background(), "nb-1", []Entry{entry("chunk-a", []float32{1, 0, 0, 0})}))
	require.NoError(t, store.DropScope(context.Background(), "nb-1"))
	assert.NotContains(t, fake.indices, "notebook_nb-1")

	// 作用域不存在时 DropScope 是无操作
	require.NoError(t, store.DropScope(context.Background(), "nb-missing"))
}
