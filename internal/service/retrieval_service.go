package service

import (
	"context"
	"fmt"
	"strings"

	"notebook-rag-go/pkg/embedding"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/vector"
)

// RetrievalService 负责把问题变成可引用的上下文：
// 问题以查询模式向量化，在笔记本自己的索引里做 kNN，
// 命中按距离升序渲染成 "[i] 正文"，编号 i 与返回的分块 ID 列表一一对应。
// 这是引用契约：生成文本里的 [i] 指向上下文中的第 i 块。
type RetrievalService interface {
	// Retrieve 返回渲染好的上下文和与之平行的分块 ID 列表。
	// 笔记本没有任何已索引内容时返回 ("", nil, nil)，
	// 调用方必须把它当作"无依据"处理，而不是错误。
	Retrieve(ctx context.Context, notebookID, query string, topK int) (string, []string, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	vectorStore     vector.Store
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(embeddingClient embedding.Client, vectorStore vector.Store) RetrievalService {
	return &retrievalService{
		embeddingClient: embeddingClient,
		vectorStore:     vectorStore,
	}
}

func (s *retrievalService) Retrieve(ctx context.Context, notebookID, query string, topK int) (string, []string, error) {
	// 空索引直接短路，省掉一次向量化调用
	count, err := s.vectorStore.Count(ctx, notebookID)
	if err != nil {
		return "", nil, fmt.Errorf("查询索引分块数失败: %w", err)
	}
	if count == 0 {
		return "", nil, nil
	}

	queryVector, err := s.embeddingClient.EmbedQuery(ctx, query)
	if err != nil {
		return "", nil, fmt.Errorf("问题向量化失败: %w", err)
	}

	hits, err := s.vectorStore.Query(ctx, notebookID, queryVector, topK)
	if err != nil {
		return "", nil, fmt.Errorf("向量检索失败: %w", err)
	}
	if len(hits) == 0 {
		return "", nil, nil
	}
	log.Infof("[Retrieval] 检索完成, NotebookID: %s, 命中 %d 个分块", notebookID, len(hits))

	blocks := make([]string, 0, len(hits))
	citedIDs := make([]string, 0, len(hits))
	for i, hit := range hits {
		blocks = append(blocks, fmt.Sprintf("[%d] %s", i+1, hit.Content))
		citedIDs = append(citedIDs, hit.ID)
	}
	return strings.Join(blocks, "\n\n"), citedIDs, nil
}
