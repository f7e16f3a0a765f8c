package service

import (
	"context"
	"errors"
	"fmt"

	"notebook-rag-go/internal/model"
	"notebook-rag-go/internal/repository"
	"notebook-rag-go/pkg/kafka"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/storage"
	"notebook-rag-go/pkg/tasks"
	"notebook-rag-go/pkg/vector"

	"github.com/google/uuid"
)

// SubmitFileInput 文件类来源（pdf/docx/text）的提交参数。
type SubmitFileInput struct {
	NotebookID string
	Kind       model.SourceKind
	FileName   string
	Data       []byte
}

// SubmitURLInput URL 类来源（网页/视频转写）的提交参数。
type SubmitURLInput struct {
	NotebookID string
	Kind       model.SourceKind
	Title      string
	URL        string
}

// SourceService 负责来源的提交、查询与删除。
// 提交只做三件事：建 pending 行、存原始字节、投递摄取任务，
// 然后立刻返回来源 ID 作为轮询句柄；重活都在消费端做。
type SourceService interface {
	SubmitFile(ctx context.Context, in SubmitFileInput) (*model.Source, error)
	SubmitURL(ctx context.Context, in SubmitURLInput) (*model.Source, error)
	List(notebookID string) ([]*model.Source, error)
	Get(sourceID string) (*model.Source, error)
	// Delete 删除单个来源：向量按 ID 摘除、对象清理、行级联。
	Delete(ctx context.Context, notebookID, sourceID string) error
}

type sourceService struct {
	sourceRepo  repository.SourceRepository
	chunkRepo   repository.ChunkRepository
	objectStore storage.ObjectStore
	vectorStore vector.Store
	producer    *kafka.Producer
}

// NewSourceService 创建一个新的 SourceService 实例。
func NewSourceService(
	sourceRepo repository.SourceRepository,
	chunkRepo repository.ChunkRepository,
	objectStore storage.ObjectStore,
	vectorStore vector.Store,
	producer *kafka.Producer,
) SourceService {
	return &sourceService{
		sourceRepo:  sourceRepo,
		chunkRepo:   chunkRepo,
		objectStore: objectStore,
		vectorStore: vectorStore,
		producer:    producer,
	}
}

func (s *sourceService) SubmitFile(ctx context.Context, in SubmitFileInput) (*model.Source, error) {
	if in.Kind.IsURLBased() {
		return nil, fmt.Errorf("来源类型 %s 不支持文件上传", in.Kind)
	}
	if len(in.Data) == 0 {
		return nil, errors.New("上传文件内容为空")
	}

	sourceID := uuid.NewString()
	objectName := storage.RawObjectName(in.NotebookID, sourceID, in.FileName)
	src := &model.Source{
		ID:         sourceID,
		NotebookID: in.NotebookID,
		Title:      in.FileName,
		Kind:       in.Kind,
		ObjectName: objectName,
		Status:     model.SourcePending,
	}
	if err := s.sourceRepo.Create(src); err != nil {
		return nil, err
	}
	if err := s.objectStore.Put(ctx, objectName, in.Data, "application/octet-stream"); err != nil {
		return nil, err
	}

	return s.enqueue(ctx, src, tasks.IngestTask{
		NotebookID: in.NotebookID,
		SourceID:   sourceID,
		Kind:       string(in.Kind),
		FileName:   in.FileName,
		ObjectName: objectName,
	})
}

func (s *sourceService) SubmitURL(ctx context.Context, in SubmitURLInput) (*model.Source, error) {
	if !in.Kind.IsURLBased() {
		return nil, fmt.Errorf("来源类型 %s 需要文件上传", in.Kind)
	}
	if in.URL == "" {
		return nil, errors.New("URL 不能为空")
	}

	title := in.Title
	if title == "" {
		title = in.URL
	}
	sourceID := uuid.NewString()
	src := &model.Source{
		ID:          sourceID,
		NotebookID:  in.NotebookID,
		Title:       title,
		Kind:        in.Kind,
		OriginalURL: in.URL,
		Status:      model.SourcePending,
	}
	if err := s.sourceRepo.Create(src); err != nil {
		return nil, err
	}

	return s.enqueue(ctx, src, tasks.IngestTask{
		NotebookID: in.NotebookID,
		SourceID:   sourceID,
		Kind:       string(in.Kind),
		URL:        in.URL,
	})
}

// enqueue 投递摄取任务。投递失败时来源直接置为 failed：
// 没有任务就没有消费者会再碰这条记录。
func (s *sourceService) enqueue(ctx context.Context, src *model.Source, task tasks.IngestTask) (*model.Source, error) {
	if err := s.producer.ProduceIngestTask(ctx, task); err != nil {
		log.Errorf("[Source] 摄取任务投递失败, SourceID: %s, Error: %v", src.ID, err)
		if statusErr := s.sourceRepo.UpdateStatus(src.ID, model.SourceFailed, ""); statusErr != nil {
			log.Errorf("[Source] 标记 failed 失败, SourceID: %s, Error: %v", src.ID, statusErr)
		}
		return nil, fmt.Errorf("摄取任务投递失败: %w", err)
	}
	log.Infof("[Source] 来源已提交, SourceID: %s, Kind: %s", src.ID, src.Kind)
	return src, nil
}

func (s *sourceService) List(notebookID string) ([]*model.Source, error) {
	return s.sourceRepo.FindByNotebook(notebookID)
}

func (s *sourceService) Get(sourceID string) (*model.Source, error) {
	return s.sourceRepo.FindByID(sourceID)
}

func (s *sourceService) Delete(ctx context.Context, notebookID, sourceID string) error {
	src, err := s.sourceRepo.FindByID(sourceID)
	if err != nil {
		return err
	}
	if src.NotebookID != notebookID {
		return ErrNotOwner
	}

	// 1. 向量按分块 ID 从笔记本索引里摘除，不存在的 ID 是空操作
	ids, err := s.chunkRepo.IDsBySource(sourceID)
	if err != nil {
		return err
	}
	if len(ids) > 0 {
		if err := s.vectorStore.Delete(ctx, notebookID, ids); err != nil {
			return err
		}
	}

	// 2. 原始文件和提取文本快照
	if src.ObjectName != "" {
		if err := s.objectStore.Remove(ctx, src.ObjectName); err != nil {
			return err
		}
	}
	if err := s.objectStore.Remove(ctx, storage.ExtractedObjectName(notebookID, sourceID)); err != nil {
		return err
	}

	// 3. 关系表行：分块 → 来源
	if err := s.chunkRepo.DeleteBySource(sourceID); err != nil {
		return err
	}
	if err := s.sourceRepo.Delete(sourceID); err != nil {
		return err
	}
	log.Infof("[Source] 来源已删除, SourceID: %s, 清除 %d 个分块", sourceID, len(ids))
	return nil
}
