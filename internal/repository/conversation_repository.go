package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"notebook-rag-go/internal/model"

	"github.com/go-redis/redis/v8"
)

// ConversationRepository 是按笔记本隔离的追加型对话日志。
// 每条消息序列化为一行 JSON 以 RPUSH 追加，LRANGE 读回即为原始顺序。
type ConversationRepository interface {
	// Append 追加一条消息到笔记本的对话日志尾部。
	Append(ctx context.Context, notebookID string, msg model.ChatMessage) error
	// History 按追加顺序返回完整对话日志。
	History(ctx context.Context, notebookID string) ([]model.ChatMessage, error)
	// Recent 返回最近的 n 条消息（仍按时间升序），用于提示词的历史窗口。
	Recent(ctx context.Context, notebookID string, n int) ([]model.ChatMessage, error)
	// Delete 删除笔记本的整个对话日志。
	Delete(ctx context.Context, notebookID string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func conversationKey(notebookID string) string {
	return fmt.Sprintf("notebook:%s:conversation", notebookID)
}

func (r *redisConversationRepository) Append(ctx context.Context, notebookID string, msg model.ChatMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	line, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal chat message: %w", err)
	}
	if err := r.redisClient.RPush(ctx, conversationKey(notebookID), line).Err(); err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

func (r *redisConversationRepository) History(ctx context.Context, notebookID string) ([]model.ChatMessage, error) {
	return r.rangeMessages(ctx, notebookID, 0, -1)
}

func (r *redisConversationRepository) Recent(ctx context.Context, notebookID string, n int) ([]model.ChatMessage, error) {
	if n <= 0 {
		return []model.ChatMessage{}, nil
	}
	return r.rangeMessages(ctx, notebookID, int64(-n), -1)
}

func (r *redisConversationRepository) rangeMessages(ctx context.Context, notebookID string, start, stop int64) ([]model.ChatMessage, error) {
	lines, err := r.redisClient.LRange(ctx, conversationKey(notebookID), start, stop).Result()
	if err != nil {
		if err == redis.Nil {
			return []model.ChatMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read conversation log: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(lines))
	for _, line := range lines {
		var msg model.ChatMessage
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			// 单行损坏不影响整体读取
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (r *redisConversationRepository) Delete(ctx context.Context, notebookID string) error {
	return r.redisClient.Del(ctx, conversationKey(notebookID)).Err()
}
