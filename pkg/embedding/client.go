// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"notebook-rag-go/internal/config"
	"notebook-rag-go/pkg/log"
)

// Error 是向量化失败时返回的错误。任何一个批次失败都会中止整次向量化，
// 不存在部分提交。
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("向量化失败: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// 文档向量化与查询向量化使用不同的请求意图，二者不可互换：
// 用错意图不会报错，但会降低检索质量。
const (
	textTypeDocument = "document"
	textTypeQuery    = "query"
)

// Client defines the interface for an embedding client.
type Client interface {
	// EmbedDocuments 以文档意图批量向量化，结果与输入一一对应且保持顺序。
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery 以查询意图向量化单条查询文本。
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type openAICompatibleClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// NewClient creates a new embedding client based on the config.
func NewClient(cfg config.EmbeddingConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
	TextType   string   `json:"text_type,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDocuments 将文本按上游批量上限切分后依次调用，结果按输入顺序拼接。
// 空输入直接返回空结果，不会访问外部接口。
func (c *openAICompatibleClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := c.embed(ctx, texts[start:end], textTypeDocument)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	log.Infof("[EmbeddingClient] 文档向量化完成, 共 %d 条", len(vectors))
	return vectors, nil
}

// EmbedQuery 以检索查询意图向量化单条文本。
func (c *openAICompatibleClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, textTypeQuery)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embed calls the OpenAI-compatible API for one batch.
func (c *openAICompatibleClient) embed(ctx context.Context, texts []string, textType string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Model:      c.cfg.Model,
		Input:      texts,
		Dimensions: c.cfg.Dimensions,
		TextType:   textType,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to marshal embedding request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, &Error{Err: fmt.Errorf("failed to create embedding request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return nil, &Error{Err: fmt.Errorf("failed to call embedding api: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s", resp.Status)
		return nil, &Error{Err: fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)}
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingClient] 解析 Embedding API 响应失败, error: %v", err)
		return nil, &Error{Err: fmt.Errorf("failed to decode embedding response: %w", err)}
	}

	if len(embeddingResp.Data) != len(texts) {
		log.Warnf("[EmbeddingClient] Embedding API 返回数量不匹配: 期望 %d, 实际 %d", len(texts), len(embeddingResp.Data))
		return nil, &Error{Err: fmt.Errorf("embedding api returned %d vectors for %d inputs", len(embeddingResp.Data), len(texts))}
	}

	vectors := make([][]float32, 0, len(embeddingResp.Data))
	for _, d := range embeddingResp.Data {
		if len(d.Embedding) == 0 {
			return nil, &Error{Err: fmt.Errorf("received empty embedding from api")}
		}
		vectors = append(vectors, d.Embedding)
	}
	return vectors, nil
}
