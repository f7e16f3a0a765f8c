package model

import "time"

// ChatMessage 代表对话日志中的一条消息，按创建时间追加、只增不改。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	CitedIDs  []string  `json:"cited_ids,omitempty"` // assistant 消息引用的分块 ID，顺序与上下文编号一致
	Timestamp time.Time `json:"timestamp"`
}

// Message 对应于数据库中的 messages 表，是对话日志的关系型副本，
// 随笔记本级联删除。CitedIDs 以 JSON 数组序列化存储。
type Message struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	NotebookID string    `gorm:"type:varchar(36);not null;index" json:"notebookId"`
	Role       string    `gorm:"type:varchar(20);not null" json:"role"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	CitedIDs   string    `gorm:"type:text" json:"-"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Message) TableName() string {
	return "messages"
}
