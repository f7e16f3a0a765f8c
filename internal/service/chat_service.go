package service

import (
	"context"
	"fmt"

	"notebook-rag-go/internal/config"
	"notebook-rag-go/internal/model"
	"notebook-rag-go/internal/repository"
	"notebook-rag-go/pkg/llm"
	"notebook-rag-go/pkg/log"
)

// groundingPrompt 约束模型只依据给定上下文作答并按编号引用。
const groundingPrompt = `You are a research assistant answering questions about a user's notebook sources.
Answer using ONLY the numbered context blocks below. When you use information
from a block, cite it inline with its number, e.g. [1] or [2].
If the context does not contain the answer, say so plainly instead of guessing.

Context:
%s`

// noGroundingReply 是笔记本没有任何已索引内容时的固定回复，不经过模型。
const noGroundingReply = "这个笔记本还没有任何可用的资料，请先添加来源并等待处理完成。"

// ChatService 实现依据来源回答问题的完整回合：
// 检索 → 组装提示词（系统指令 + 上下文 + 最近历史 + 问题）→ 一次阻塞生成 →
// 成功后把问答两条消息同时写入消息表和对话日志。
type ChatService interface {
	// Answer 返回答案和按上下文顺序排列的被引分块 ID。
	Answer(ctx context.Context, notebookID, question string) (string, []string, error)
	// History 按追加顺序返回笔记本的完整对话记录。
	History(ctx context.Context, notebookID string) ([]model.ChatMessage, error)
}

type chatService struct {
	notebookRepo     repository.NotebookRepository
	messageRepo      repository.MessageRepository
	conversationRepo repository.ConversationRepository
	retrieval        RetrievalService
	llmClient        llm.Client
	cfg              config.IngestConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	notebookRepo repository.NotebookRepository,
	messageRepo repository.MessageRepository,
	conversationRepo repository.ConversationRepository,
	retrieval RetrievalService,
	llmClient llm.Client,
	cfg config.IngestConfig,
) ChatService {
	return &chatService{
		notebookRepo:     notebookRepo,
		messageRepo:      messageRepo,
		conversationRepo: conversationRepo,
		retrieval:        retrieval,
		llmClient:        llmClient,
		cfg:              cfg,
	}
}

func (s *chatService) Answer(ctx context.Context, notebookID, question string) (string, []string, error) {
	if _, err := s.notebookRepo.FindByID(notebookID); err != nil {
		return "", nil, fmt.Errorf("笔记本不存在: %w", err)
	}

	contextText, citedIDs, err := s.retrieval.Retrieve(ctx, notebookID, question, s.cfg.TopK)
	if err != nil {
		return "", nil, err
	}
	// 无依据时返回固定回复：不调用模型，也不落任何记录
	if contextText == "" {
		return noGroundingReply, nil, nil
	}

	messages := make([]llm.Message, 0, s.cfg.HistoryTurns+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: fmt.Sprintf(groundingPrompt, contextText),
	})
	history, err := s.conversationRepo.Recent(ctx, notebookID, s.cfg.HistoryTurns)
	if err != nil {
		return "", nil, fmt.Errorf("读取对话历史失败: %w", err)
	}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})

	answer, err := s.llmClient.Chat(ctx, messages)
	if err != nil {
		return "", nil, err
	}

	s.persistTurn(ctx, notebookID, "user", question, nil)
	s.persistTurn(ctx, notebookID, "assistant", answer, citedIDs)
	return answer, citedIDs, nil
}

func (s *chatService) History(ctx context.Context, notebookID string) ([]model.ChatMessage, error) {
	if _, err := s.notebookRepo.FindByID(notebookID); err != nil {
		return nil, fmt.Errorf("笔记本不存在: %w", err)
	}
	return s.conversationRepo.History(ctx, notebookID)
}

// persistTurn 把一条消息同时写入消息表和对话日志。
// 记录失败不影响本次回答，只记日志。
func (s *chatService) persistTurn(ctx context.Context, notebookID, role, content string, citedIDs []string) {
	if err := s.messageRepo.Save(notebookID, role, content, citedIDs); err != nil {
		log.Errorf("[Chat] 保存消息记录失败, NotebookID: %s, Role: %s, Error: %v", notebookID, role, err)
	}
	if err := s.conversationRepo.Append(ctx, notebookID, model.ChatMessage{
		Role:     role,
		Content:  content,
		CitedIDs: citedIDs,
	}); err != nil {
		log.Errorf("[Chat] 追加对话日志失败, NotebookID: %s, Role: %s, Error: %v", notebookID, role, err)
	}
}
