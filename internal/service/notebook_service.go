package service

import (
	"context"
	"errors"

	"notebook-rag-go/internal/model"
	"notebook-rag-go/internal/repository"
	"notebook-rag-go/pkg/log"
	"notebook-rag-go/pkg/storage"
	"notebook-rag-go/pkg/vector"

	"github.com/google/uuid"
)

// ErrNotOwner 表示当前用户不是该笔记本的所有者。
var ErrNotOwner = errors.New("无权访问该笔记本")

// NotebookService 接口定义了笔记本的增删查操作。
// 删除是级联的：关系表行、向量索引、对象存储前缀、对话日志一并清除。
type NotebookService interface {
	Create(ownerID, title, description string) (*model.Notebook, error)
	List(ownerID string) ([]*model.Notebook, error)
	// Get 返回笔记本并校验所有权。
	Get(ownerID, notebookID string) (*model.Notebook, error)
	Delete(ctx context.Context, ownerID, notebookID string) error
}

type notebookService struct {
	notebookRepo     repository.NotebookRepository
	sourceRepo       repository.SourceRepository
	chunkRepo        repository.ChunkRepository
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	vectorStore      vector.Store
	objectStore      storage.ObjectStore
}

// NewNotebookService 创建一个新的 NotebookService 实例。
func NewNotebookService(
	notebookRepo repository.NotebookRepository,
	sourceRepo repository.SourceRepository,
	chunkRepo repository.ChunkRepository,
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	vectorStore vector.Store,
	objectStore storage.ObjectStore,
) NotebookService {
	return &notebookService{
		notebookRepo:     notebookRepo,
		sourceRepo:       sourceRepo,
		chunkRepo:        chunkRepo,
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		vectorStore:      vectorStore,
		objectStore:      objectStore,
	}
}

func (s *notebookService) Create(ownerID, title, description string) (*model.Notebook, error) {
	nb := &model.Notebook{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		OwnerID:     ownerID,
	}
	if err := s.notebookRepo.Create(nb); err != nil {
		return nil, err
	}
	return nb, nil
}

func (s *notebookService) List(ownerID string) ([]*model.Notebook, error) {
	return s.notebookRepo.FindByOwner(ownerID)
}

func (s *notebookService) Get(ownerID, notebookID string) (*model.Notebook, error) {
	nb, err := s.notebookRepo.FindByID(notebookID)
	if err != nil {
		return nil, err
	}
	if nb.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return nb, nil
}

// Delete 级联删除笔记本的全部数据。
// 先清外部存储再删行：外部清理失败时行还在，可以重试；
// 反过来会留下再也找不到的孤儿索引和对象。
func (s *notebookService) Delete(ctx context.Context, ownerID, notebookID string) error {
	if _, err := s.Get(ownerID, notebookID); err != nil {
		return err
	}

	// 1. 整个作用域的向量索引直接删除
	if err := s.vectorStore.DropScope(ctx, notebookID); err != nil {
		return err
	}

	// 2. 对象存储里的原始文件和提取文本快照
	for _, prefix := range storage.NotebookPrefix(notebookID) {
		if err := s.objectStore.RemovePrefix(ctx, prefix); err != nil {
			return err
		}
	}

	// 3. 对话日志
	if err := s.conversationRepo.Delete(ctx, notebookID); err != nil {
		return err
	}

	// 4. 关系表行：分块 → 消息 → 来源 → 笔记本
	if err := s.chunkRepo.DeleteByNotebook(notebookID); err != nil {
		return err
	}
	if err := s.messageRepo.DeleteByNotebook(notebookID); err != nil {
		return err
	}
	if err := s.sourceRepo.DeleteByNotebook(notebookID); err != nil {
		return err
	}
	if err := s.notebookRepo.Delete(notebookID); err != nil {
		return err
	}
	log.Infof("[Notebook] 笔记本已级联删除, NotebookID: %s", notebookID)
	return nil
}
