package service

import (
	"context"
	"testing"

	"notebook-rag-go/internal/model"
	"notebook-rag-go/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNotebookFixture() (NotebookService, *fakeNotebookRepo, *fakeSourceRepo, *fakeChunkRepo, *fakeMessageRepo, *fakeConversationRepo, *fakeVectorStore, *fakeObjectStore) {
	notebookRepo := newFakeNotebookRepo(&model.Notebook{ID: "nb-1", OwnerID: "user-1", Title: "research"})
	sourceRepo := newFakeSourceRepo(&model.Source{ID: "src-1", NotebookID: "nb-1"})
	chunkRepo := newFakeChunkRepo()
	messageRepo := &fakeMessageRepo{}
	conversationRepo := newFakeConversationRepo()
	vectorStore := newFakeVectorStore()
	objectStore := newFakeObjectStore()
	svc := NewNotebookService(notebookRepo, sourceRepo, chunkRepo, messageRepo, conversationRepo, vectorStore, objectStore)
	return svc, notebookRepo, sourceRepo, chunkRepo, messageRepo, conversationRepo, vectorStore, objectStore
}

func TestNotebookGet_OwnershipEnforced(t *testing.T) {
	svc, _, _, _, _, _, _, _ := newNotebookFixture()

	nb, err := svc.Get("user-1", "nb-1")
	require.NoError(t, err)
	assert.Equal(t, "research", nb.Title)

	_, err = svc.Get("user-2", "nb-1")
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestNotebookDelete_CascadesEverything(t *testing.T) {
	svc, notebookRepo, sourceRepo, chunkRepo, messageRepo, conversationRepo, vectorStore, objectStore := newNotebookFixture()

	// 预置两类对象和一条对话
	objectStore.objects[storage.RawObjectName("nb-1", "src-1", "a.pdf")] = []byte("x")
	objectStore.objects[storage.ExtractedObjectName("nb-1", "src-1")] = []byte("y")
	conversationRepo.logs["nb-1"] = []model.ChatMessage{{Role: "user", Content: "q"}}

	require.NoError(t, svc.Delete(context.Background(), "user-1", "nb-1"))

	// 向量索引整体删除
	assert.Equal(t, []string{"nb-1"}, vectorStore.droppedScope)
	// 对象存储按前缀清空
	assert.Empty(t, objectStore.objects)
	assert.Len(t, objectStore.removedPrefixes, 2)
	// 对话日志删除
	assert.Equal(t, []string{"nb-1"}, conversationRepo.deleted)
	// 关系表行级联删除
	assert.Contains(t, chunkRepo.deletedByNB, "nb-1")
	assert.Contains(t, messageRepo.deletedByNB, "nb-1")
	assert.Contains(t, sourceRepo.deletedByNB, "nb-1")
	assert.Contains(t, notebookRepo.deleted, "nb-1")
}

func TestNotebookDelete_NonOwnerRejected(t *testing.T) {
	svc, _, _, _, _, _, vectorStore, _ := newNotebookFixture()

	err := svc.Delete(context.Background(), "user-2", "nb-1")
	assert.ErrorIs(t, err, ErrNotOwner)
	// 校验失败时不得触碰任何外部存储
	assert.Empty(t, vectorStore.droppedScope)
}
