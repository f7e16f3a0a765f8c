package repository

import (
	"encoding/json"

	"notebook-rag-go/internal/model"

	"gorm.io/gorm"
)

// MessageRepository 定义了对 messages 表的数据操作接口。
// 消息只追加不修改，按创建时间读取即为原始顺序。
type MessageRepository interface {
	Save(notebookID, role, content string, citedIDs []string) error
	FindByNotebook(notebookID string) ([]*model.Message, error)
	DeleteByNotebook(notebookID string) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建一个新的 MessageRepository 实例。
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Save(notebookID, role, content string, citedIDs []string) error {
	var cited string
	if len(citedIDs) > 0 {
		b, err := json.Marshal(citedIDs)
		if err != nil {
			return err
		}
		cited = string(b)
	}
	msg := &model.Message{
		NotebookID: notebookID,
		Role:       role,
		Content:    content,
		CitedIDs:   cited,
	}
	return r.db.Create(msg).Error
}

func (r *messageRepository) FindByNotebook(notebookID string) ([]*model.Message, error) {
	var msgs []*model.Message
	err := r.db.Where("notebook_id = ?", notebookID).Order("created_at ASC, id ASC").Find(&msgs).Error
	return msgs, err
}

func (r *messageRepository) DeleteByNotebook(notebookID string) error {
	return r.db.Where("notebook_id = ?", notebookID).Delete(&model.Message{}).Error
}
