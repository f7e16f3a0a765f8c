package vector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"notebook-rag-go/internal/config"
	"notebook-rag-go/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// esStore 将每个作用域映射到一个独立的 Elasticsearch 索引（<prefix>_<scope>），
// 索引在首次写入时以 cosine 相似度创建，从结构上杜绝跨作用域检索与度量混用。
type esStore struct {
	client *elasticsearch.Client
	prefix string
	dims   int
}

// esDocument 是索引中存储的文档结构。
type esDocument struct {
	ChunkID     string    `json:"chunk_id"`
	SourceID    string    `json:"source_id"`
	ChunkIndex  int       `json:"chunk_index"`
	TextContent string    `json:"text_content"`
	Vector      []float32 `json:"vector"`
}

// New 初始化 Elasticsearch 客户端并返回 Store 实例。
func New(cfg config.ElasticsearchConfig, dims int) (Store, error) {
	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.Addresses},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, &Error{Op: "init", Err: err}
	}
	return &esStore{client: client, prefix: cfg.IndexPrefix, dims: dims}, nil
}

// indexName 作用域到物理索引名的唯一映射。
func (s *esStore) indexName(scope string) string {
	return fmt.Sprintf("%s_%s", s.prefix, strings.ToLower(scope))
}

// ensureIndex 检查索引是否存在，不存在则以 cosine 度量创建。
// 度量在创建时一次性固定，之后不可更换。
func (s *esStore) ensureIndex(ctx context.Context, indexName string) error {
	res, err := s.client.Indices.Exists([]string{indexName}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"chunk_id": { "type": "keyword" },
				"source_id": { "type": "keyword" },
				"chunk_index": { "type": "integer" },
				"text_content": { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				}
			}
		}
	}`, s.dims)

	createRes, err := s.client.Indices.Create(
		indexName,
		s.client.Indices.Create.WithContext(ctx),
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return err
	}
	defer createRes.Body.Close()
	if createRes.IsError() {
		return fmt.Errorf("创建索引时 Elasticsearch 返回错误: %s", createRes.String())
	}
	log.Infof("[VectorStore] 索引 '%s' 创建成功 (dims=%d, similarity=cosine)", indexName, s.dims)
	return nil
}

// Upsert 以分块 ID 为文档 ID 写入，重复写入同一 ID 即整体替换。
func (s *esStore) Upsert(ctx context.Context, scope string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	indexName := s.indexName(scope)
	if err := s.ensureIndex(ctx, indexName); err != nil {
		return &Error{Op: "upsert", Err: err}
	}

	for _, entry := range entries {
		doc := esDocument{
			ChunkID:     entry.ID,
			SourceID:    entry.SourceID,
			ChunkIndex:  entry.ChunkIndex,
			TextContent: entry.Content,
			Vector:      entry.Vector,
		}
		docBytes, err := json.Marshal(doc)
		if err != nil {
			return &Error{Op: "upsert", Err: err}
		}

		req := esapi.IndexRequest{
			Index:      indexName,
			DocumentID: entry.ID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return &Error{Op: "upsert", Err: err}
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			return &Error{Op: "upsert", Err: errors.New(msg)}
		}
		res.Body.Close()
	}
	log.Infof("[VectorStore] 已写入 %d 条向量到索引 '%s'", len(entries), indexName)
	return nil
}

// Query 执行 kNN 检索，返回按余弦距离升序排列的命中。
// Elasticsearch 对 cosine 的打分是 (1+cos)/2，这里换算回余弦距离 1-cos。
func (s *esStore) Query(ctx context.Context, scope string, vec []float32, k int) ([]Hit, error) {
	indexName := s.indexName(scope)

	esQuery := map[string]interface{}{
		"knn": map[string]interface{}{
			"field":          "vector",
			"query_vector":   vec,
			"k":              k,
			"num_candidates": k * 10,
		},
		"size": k,
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, &Error{Op: "query", Err: err}
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, &Error{Op: "query", Err: err}
	}
	defer res.Body.Close()

	// 尚未写入过的作用域没有索引，视为空结果而不是错误
	if res.StatusCode == http.StatusNotFound {
		return []Hit{}, nil
	}
	if res.IsError() {
		bodyBytes, _ := io.ReadAll(res.Body)
		return nil, &Error{Op: "query", Err: fmt.Errorf("elasticsearch returned an error: %s", string(bodyBytes))}
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source esDocument `json:"_source"`
				Score  float64    `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, &Error{Op: "query", Err: err}
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		hits = append(hits, Hit{
			ID:         h.Source.ChunkID,
			Content:    h.Source.TextContent,
			SourceID:   h.Source.SourceID,
			ChunkIndex: h.Source.ChunkIndex,
			Distance:   2 * (1 - h.Score), // score=(1+cos)/2 → distance=1-cos
		})
	}
	return hits, nil
}

// Delete 按 ID 删除向量，不存在的 ID 直接跳过。
func (s *esStore) Delete(ctx context.Context, scope string, ids []string) error {
	indexName := s.indexName(scope)
	for _, id := range ids {
		req := esapi.DeleteRequest{
			Index:      indexName,
			DocumentID: id,
			Refresh:    "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return &Error{Op: "delete", Err: err}
		}
		// 404 表示该 ID（或整个索引）不存在，按无操作处理
		if res.IsError() && res.StatusCode != http.StatusNotFound {
			msg := res.String()
			res.Body.Close()
			return &Error{Op: "delete", Err: errors.New(msg)}
		}
		res.Body.Close()
	}
	return nil
}

// Count 返回作用域内的向量条数，索引不存在时返回 0。
func (s *esStore) Count(ctx context.Context, scope string) (int64, error) {
	indexName := s.indexName(scope)
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(indexName),
	)
	if err != nil {
		return 0, &Error{Op: "count", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, &Error{Op: "count", Err: errors.New(res.String())}
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, &Error{Op: "count", Err: err}
	}
	return countResp.Count, nil
}

// DropScope 删除作用域对应的整个索引。
func (s *esStore) DropScope(ctx context.Context, scope string) error {
	indexName := s.indexName(scope)
	res, err := s.client.Indices.Delete(
		[]string{indexName},
		s.client.Indices.Delete.WithContext(ctx),
		s.client.Indices.Delete.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return &Error{Op: "drop", Err: err}
	}
	defer res.Body.Close()
	if res.IsError() {
		return &Error{Op: "drop", Err: errors.New(res.String())}
	}
	log.Infof("[VectorStore] 索引 '%s' 已删除", indexName)
	return nil
}
