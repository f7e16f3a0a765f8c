package service

import (
	"context"
	"errors"
	"strings"

	"notebook-rag-go/internal/model"
	"notebook-rag-go/pkg/llm"
	"notebook-rag-go/pkg/vector"

	"gorm.io/gorm"
)

// 本文件是 service 层测试共用的内存假实现。

type fakeEmbedder struct {
	queryCalls int
	queryVec   []float32
	err        error
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.queryVec != nil {
		return f.queryVec, nil
	}
	return []float32{1, 0}, nil
}

type fakeVectorStore struct {
	count        int64
	hits         []vector.Hit
	queryErr     error
	upserted     map[string][]vector.Entry // scope -> entries
	deleted      map[string][]string       // scope -> ids
	droppedScope []string
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		upserted: map[string][]vector.Entry{},
		deleted:  map[string][]string{},
	}
}

func (f *fakeVectorStore) Upsert(ctx context.Context, scope string, entries []vector.Entry) error {
	f.upserted[scope] = append(f.upserted[scope], entries...)
	return nil
}

func (f *fakeVectorStore) Query(ctx context.Context, scope string, vec []float32, k int) ([]vector.Hit, error) {
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return f.hits, nil
}

func (f *fakeVectorStore) Delete(ctx context.Context, scope string, ids []string) error {
	f.deleted[scope] = append(f.deleted[scope], ids...)
	return nil
}

func (f *fakeVectorStore) Count(ctx context.Context, scope string) (int64, error) {
	return f.count, nil
}

func (f *fakeVectorStore) DropScope(ctx context.Context, scope string) error {
	f.droppedScope = append(f.droppedScope, scope)
	return nil
}

type fakeLLM struct {
	reply    string
	err      error
	received [][]llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.received = append(f.received, messages)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type fakeNotebookRepo struct {
	notebooks map[string]*model.Notebook
	deleted   []string
}

func newFakeNotebookRepo(nbs ...*model.Notebook) *fakeNotebookRepo {
	r := &fakeNotebookRepo{notebooks: map[string]*model.Notebook{}}
	for _, nb := range nbs {
		r.notebooks[nb.ID] = nb
	}
	return r
}

func (r *fakeNotebookRepo) Create(nb *model.Notebook) error {
	r.notebooks[nb.ID] = nb
	return nil
}

func (r *fakeNotebookRepo) FindByID(id string) (*model.Notebook, error) {
	nb, ok := r.notebooks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return nb, nil
}

func (r *fakeNotebookRepo) FindByOwner(ownerID string) ([]*model.Notebook, error) {
	var out []*model.Notebook
	for _, nb := range r.notebooks {
		if nb.OwnerID == ownerID {
			out = append(out, nb)
		}
	}
	return out, nil
}

func (r *fakeNotebookRepo) Delete(id string) error {
	delete(r.notebooks, id)
	r.deleted = append(r.deleted, id)
	return nil
}

type fakeSourceRepo struct {
	sources        map[string]*model.Source
	statusChanges  map[string][]string // sourceID -> statuses in order
	deletedByNB    []string
	deletedSources []string
}

func newFakeSourceRepo(srcs ...*model.Source) *fakeSourceRepo {
	r := &fakeSourceRepo{
		sources:       map[string]*model.Source{},
		statusChanges: map[string][]string{},
	}
	for _, s := range srcs {
		r.sources[s.ID] = s
	}
	return r
}

func (r *fakeSourceRepo) Create(s *model.Source) error {
	r.sources[s.ID] = s
	return nil
}

func (r *fakeSourceRepo) FindByID(id string) (*model.Source, error) {
	s, ok := r.sources[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return s, nil
}

func (r *fakeSourceRepo) FindByNotebook(notebookID string) ([]*model.Source, error) {
	var out []*model.Source
	for _, s := range r.sources {
		if s.NotebookID == notebookID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSourceRepo) UpdateStatus(sourceID, status, summary string) error {
	s, ok := r.sources[sourceID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.Status = status
	if summary != "" {
		s.Summary = summary
	}
	r.statusChanges[sourceID] = append(r.statusChanges[sourceID], status)
	return nil
}

func (r *fakeSourceRepo) Delete(id string) error {
	delete(r.sources, id)
	r.deletedSources = append(r.deletedSources, id)
	return nil
}

func (r *fakeSourceRepo) DeleteByNotebook(notebookID string) error {
	for id, s := range r.sources {
		if s.NotebookID == notebookID {
			delete(r.sources, id)
		}
	}
	r.deletedByNB = append(r.deletedByNB, notebookID)
	return nil
}

type fakeChunkRepo struct {
	chunks          map[string][]*model.Chunk // sourceID -> chunks
	deletedBySource []string
	deletedByNB     []string
}

func newFakeChunkRepo() *fakeChunkRepo {
	return &fakeChunkRepo{chunks: map[string][]*model.Chunk{}}
}

func (r *fakeChunkRepo) BatchCreate(chunks []*model.Chunk) error {
	for _, c := range chunks {
		r.chunks[c.SourceID] = append(r.chunks[c.SourceID], c)
	}
	return nil
}

func (r *fakeChunkRepo) FindBySource(sourceID string) ([]*model.Chunk, error) {
	return r.chunks[sourceID], nil
}

func (r *fakeChunkRepo) IDsBySource(sourceID string) ([]string, error) {
	var ids []string
	for _, c := range r.chunks[sourceID] {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (r *fakeChunkRepo) IDsByNotebook(notebookID string) ([]string, error) {
	var ids []string
	for _, cs := range r.chunks {
		for _, c := range cs {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (r *fakeChunkRepo) DeleteBySource(sourceID string) error {
	delete(r.chunks, sourceID)
	r.deletedBySource = append(r.deletedBySource, sourceID)
	return nil
}

func (r *fakeChunkRepo) DeleteByNotebook(notebookID string) error {
	r.deletedByNB = append(r.deletedByNB, notebookID)
	return nil
}

type fakeMessageRepo struct {
	saved       []*model.Message
	deletedByNB []string
}

func (r *fakeMessageRepo) Save(notebookID, role, content string, citedIDs []string) error {
	r.saved = append(r.saved, &model.Message{
		NotebookID: notebookID,
		Role:       role,
		Content:    content,
		CitedIDs:   strings.Join(citedIDs, ","),
	})
	return nil
}

func (r *fakeMessageRepo) FindByNotebook(notebookID string) ([]*model.Message, error) {
	return r.saved, nil
}

func (r *fakeMessageRepo) DeleteByNotebook(notebookID string) error {
	r.deletedByNB = append(r.deletedByNB, notebookID)
	return nil
}

type fakeConversationRepo struct {
	logs    map[string][]model.ChatMessage
	deleted []string
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{logs: map[string][]model.ChatMessage{}}
}

func (r *fakeConversationRepo) Append(ctx context.Context, notebookID string, msg model.ChatMessage) error {
	r.logs[notebookID] = append(r.logs[notebookID], msg)
	return nil
}

func (r *fakeConversationRepo) History(ctx context.Context, notebookID string) ([]model.ChatMessage, error) {
	return r.logs[notebookID], nil
}

func (r *fakeConversationRepo) Recent(ctx context.Context, notebookID string, n int) ([]model.ChatMessage, error) {
	msgs := r.logs[notebookID]
	if n <= 0 {
		return nil, nil
	}
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

func (r *fakeConversationRepo) Delete(ctx context.Context, notebookID string) error {
	r.deleted = append(r.deleted, notebookID)
	return nil
}

type fakeObjectStore struct {
	objects         map[string][]byte
	removedPrefixes []string
	removed         []string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: map[string][]byte{}}
}

func (s *fakeObjectStore) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	s.objects[objectName] = data
	return nil
}

func (s *fakeObjectStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	data, ok := s.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *fakeObjectStore) Remove(ctx context.Context, objectName string) error {
	delete(s.objects, objectName)
	s.removed = append(s.removed, objectName)
	return nil
}

func (s *fakeObjectStore) RemovePrefix(ctx context.Context, prefix string) error {
	for name := range s.objects {
		if strings.HasPrefix(name, prefix) {
			delete(s.objects, name)
		}
	}
	s.removedPrefixes = append(s.removedPrefixes, prefix)
	return nil
}

func (s *fakeObjectStore) Exists(ctx context.Context, objectName string) (bool, error) {
	_, ok := s.objects[objectName]
	return ok, nil
}

// fakeRetrieval 直接返回预设的上下文与引用，供 ChatService 测试使用。
type fakeRetrieval struct {
	contextText string
	citedIDs    []string
	err         error
	gotTopK     int
}

func (f *fakeRetrieval) Retrieve(ctx context.Context, notebookID, query string, topK int) (string, []string, error) {
	f.gotTopK = topK
	if f.err != nil {
		return "", nil, f.err
	}
	return f.contextText, f.citedIDs, nil
}
