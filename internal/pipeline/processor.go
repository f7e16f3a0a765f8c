// Package pipeline 定义了来源摄取的核心流程：
// 提取 → 分块 → 向量化 → 元数据落库 → 向量入索引 → 摘要 → ready。
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notebook-rag-go/internal/chunker"
	"notebook-rag-go/internal/config"
	"notebook-rag-go/internal/model"
	"notebook-rag-go/internal/repository"
	"notebook-rag-go/pkg/embedding"
	"notebook-rag-go/pkg/extractor"
	"notebook-rag-go/pkg/llm"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/storage"
	"notebook-rag-go/pkg/tasks"
	"notebook-rag-go/pkg/vector"

	"github.com/google/uuid"
)

// summaryPrompt 用于生成每个来源的简短摘要。
const summaryPrompt = `Summarize the following document in 3-5 concise bullet points.
Focus on the key ideas, findings, and important details.

Document:
%s

Summary:`

// Processor 封装了来源摄取的所有依赖和逻辑。
type Processor struct {
	extractor       extractor.Extractor
	embeddingClient embedding.Client
	vectorStore     vector.Store
	objectStore     storage.ObjectStore
	llmClient       llm.Client
	sourceRepo      repository.SourceRepository
	chunkRepo       repository.ChunkRepository
	cfg             config.IngestConfig
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	ext extractor.Extractor,
	embeddingClient embedding.Client,
	vectorStore vector.Store,
	objectStore storage.ObjectStore,
	llmClient llm.Client,
	sourceRepo repository.SourceRepository,
	chunkRepo repository.ChunkRepository,
	cfg config.IngestConfig,
) *Processor {
	return &Processor{
		extractor:       ext,
		embeddingClient: embeddingClient,
		vectorStore:     vectorStore,
		objectStore:     objectStore,
		llmClient:       llmClient,
		sourceRepo:      sourceRepo,
		chunkRepo:       chunkRepo,
		cfg:             cfg,
	}
}

// Process 是单个来源摄取的主函数。
// 任何一步失败都会把来源置为 failed 并把错误抛给调用方；
// 失败前已写入的分块/向量默认保留，重新摄取时按 ID 覆盖写即可。
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[Processor] 开始摄取来源, SourceID: %s, NotebookID: %s, Kind: %s", task.SourceID, task.NotebookID, task.Kind)

	// 先标记 processing，再开始任何提取工作：摄取中途崩溃时
	// 状态停在 processing 而不是悄悄留在 pending。
	if err := p.sourceRepo.UpdateStatus(task.SourceID, model.SourceProcessing, ""); err != nil {
		return fmt.Errorf("标记 processing 失败: %w", err)
	}

	if err := p.run(ctx, task); err != nil {
		p.cleanupOnFailure(ctx, task)
		if statusErr := p.sourceRepo.UpdateStatus(task.SourceID, model.SourceFailed, ""); statusErr != nil {
			log.Errorf("[Processor] 标记 failed 失败, SourceID: %s, Error: %v", task.SourceID, statusErr)
		}
		return err
	}
	return nil
}

// run 执行摄取的各个步骤，每一步都硬依赖上一步成功。
func (p *Processor) run(ctx context.Context, task tasks.IngestTask) error {
	// 1. 提取文本
	input, err := p.buildInput(ctx, task)
	if err != nil {
		return err
	}
	text, err := p.extractor.Extract(ctx, input)
	if err != nil {
		return fmt.Errorf("提取文本失败: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("提取的文本内容为空")
	}
	log.Infof("[Processor] 步骤1: 文本提取成功, SourceID: %s, 长度: %d 字符", task.SourceID, len(text))

	// 提取文本快照单独存一份，便于将来重新分块而无需重新提取
	extractedObj := storage.ExtractedObjectName(task.NotebookID, task.SourceID)
	if err := p.objectStore.Put(ctx, extractedObj, []byte(text), "text/plain; charset=utf-8"); err != nil {
		return fmt.Errorf("写入提取文本快照失败: %w", err)
	}

	// 2. 文本分块
	drafts := chunker.Chunk(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	if len(drafts) == 0 {
		return errors.New("未生成任何文本分块")
	}
	log.Infof("[Processor] 步骤2: 文本分块完成, SourceID: %s, 共 %d 个分块", task.SourceID, len(drafts))

	// 3. 一次文档模式调用完成全部向量化（批量切分在客户端内部处理）
	contents := make([]string, 0, len(drafts))
	for _, d := range drafts {
		contents = append(contents, d.Content)
	}
	vectors, err := p.embeddingClient.EmbedDocuments(ctx, contents)
	if err != nil {
		return fmt.Errorf("分块向量化失败: %w", err)
	}
	if len(vectors) != len(drafts) {
		return fmt.Errorf("向量数量与分块数量不匹配: %d != %d", len(vectors), len(drafts))
	}
	log.Infof("[Processor] 步骤3: 向量化完成, SourceID: %s", task.SourceID)

	// 4. 分块元数据落库，这一步分配后续作为向量键使用的持久分块 ID。
	//    重新摄取前先清理旧记录，保证幂等。
	if err := p.chunkRepo.DeleteBySource(task.SourceID); err != nil {
		log.Warnf("[Processor] 清理旧分块记录失败 (source=%s): %v", task.SourceID, err)
	}
	dbChunks := make([]*model.Chunk, 0, len(drafts))
	for _, d := range drafts {
		dbChunks = append(dbChunks, &model.Chunk{
			ID:         uuid.NewString(),
			SourceID:   task.SourceID,
			ChunkIndex: d.ChunkIndex,
			Content:    d.Content,
			WordStart:  d.WordStart,
			WordEnd:    d.WordEnd,
		})
	}
	if err := p.chunkRepo.BatchCreate(dbChunks); err != nil {
		return fmt.Errorf("批量保存分块失败: %w", err)
	}
	log.Infof("[Processor] 步骤4: %d 个分块已落库, SourceID: %s", len(dbChunks), task.SourceID)

	// 5. 向量与原文、溯源元数据一起写入笔记本作用域的向量索引
	entries := make([]vector.Entry, 0, len(dbChunks))
	for i, c := range dbChunks {
		entries = append(entries, vector.Entry{
			ID:         c.ID,
			Content:    c.Content,
			Vector:     vectors[i],
			SourceID:   task.SourceID,
			ChunkIndex: c.ChunkIndex,
		})
	}
	if err := p.vectorStore.Upsert(ctx, task.NotebookID, entries); err != nil {
		return fmt.Errorf("写入向量索引失败: %w", err)
	}
	log.Infof("[Processor] 步骤5: 向量已写入索引, SourceID: %s", task.SourceID)

	// 6. 用正文开头生成摘要，控制提示词体积
	summary, err := p.generateSummary(ctx, text)
	if err != nil {
		return fmt.Errorf("生成摘要失败: %w", err)
	}

	// 7. 标记 ready 并保存摘要
	if err := p.sourceRepo.UpdateStatus(task.SourceID, model.SourceReady, summary); err != nil {
		return fmt.Errorf("标记 ready 失败: %w", err)
	}
	log.Infof("[Processor] 来源摄取成功完成, SourceID: %s", task.SourceID)
	return nil
}

// buildInput 把任务转换为提取请求：URL 类来源直接携带 URL，
// 文件类来源从对象存储取回原始字节。
func (p *Processor) buildInput(ctx context.Context, task tasks.IngestTask) (extractor.Input, error) {
	kind := model.SourceKind(task.Kind)
	if kind.IsURLBased() {
		return extractor.Input{Kind: kind, URL: task.URL}, nil
	}
	data, err := p.objectStore.Get(ctx, task.ObjectName)
	if err != nil {
		return extractor.Input{}, fmt.Errorf("读取原始文件失败: %w", err)
	}
	if len(data) == 0 {
		return extractor.Input{}, errors.New("原始文件内容为空")
	}
	return extractor.Input{Kind: kind, Data: data}, nil
}

// generateSummary 取正文前 N 个词交给生成服务做摘要。
func (p *Processor) generateSummary(ctx context.Context, text string) (string, error) {
	words := strings.Fields(text)
	if len(words) > p.cfg.SummaryWords {
		words = words[:p.cfg.SummaryWords]
	}
	prompt := fmt.Sprintf(summaryPrompt, strings.Join(words, " "))
	return p.llmClient.Chat(ctx, []llm.Message{{Role: "user", Content: prompt}})
}

// cleanupOnFailure 按配置决定是否清理失败前已写入的分块与向量。
// 默认保留：failed 的来源不会被检索到，重新摄取会按 ID 覆盖旧数据。
func (p *Processor) cleanupOnFailure(ctx context.Context, task tasks.IngestTask) {
	if !p.cfg.CleanupOnFailure {
		return
	}
	ids, err := p.chunkRepo.IDsBySource(task.SourceID)
	if err != nil {
		log.Warnf("[Processor] 失败清理: 查询分块 ID 失败 (source=%s): %v", task.SourceID, err)
		return
	}
	if len(ids) > 0 {
		if err := p.vectorStore.Delete(ctx, task.NotebookID, ids); err != nil {
			log.Warnf("[Processor] 失败清理: 删除向量失败 (source=%s): %v", task.SourceID, err)
		}
	}
	if err := p.chunkRepo.DeleteBySource(task.SourceID); err != nil {
		log.Warnf("[Processor] 失败清理: 删除分块记录失败 (source=%s): %v", task.SourceID, err)
	}
}
