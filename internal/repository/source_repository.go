package repository

import (
	"notebook-rag-go/internal/model"

	"gorm.io/gorm"
)

// SourceRepository 定义了对 sources 表的数据操作接口。
// 状态列只允许通过 UpdateStatus 推进，其余字段在创建后不再修改。
type SourceRepository interface {
	Create(source *model.Source) error
	FindByID(id string) (*model.Source, error)
	FindByNotebook(notebookID string) ([]*model.Source, error)
	// UpdateStatus 更新来源的生命周期状态；summary 非空时一并写入。
	UpdateStatus(sourceID, status, summary string) error
	Delete(id string) error
	DeleteByNotebook(notebookID string) error
}

type sourceRepository struct {
	db *gorm.DB
}

// NewSourceRepository 创建一个新的 SourceRepository 实例。
func NewSourceRepository(db *gorm.DB) SourceRepository {
	return &sourceRepository{db: db}
}

func (r *sourceRepository) Create(source *model.Source) error {
	return r.db.Create(source).Error
}

func (r *sourceRepository) FindByID(id string) (*model.Source, error) {
	var src model.Source
	err := r.db.Where("id = ?", id).First(&src).Error
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (r *sourceRepository) FindByNotebook(notebookID string) ([]*model.Source, error) {
	var srcs []*model.Source
	err := r.db.Where("notebook_id = ?", notebookID).Order("created_at ASC").Find(&srcs).Error
	return srcs, err
}

func (r *sourceRepository) UpdateStatus(sourceID, status, summary string) error {
	updates := map[string]interface{}{"status": status}
	if summary != "" {
		updates["summary"] = summary
	}
	return r.db.Model(&model.Source{}).Where("id = ?", sourceID).Updates(updates).Error
}

func (r *sourceRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Source{}).Error
}

func (r *sourceRepository) DeleteByNotebook(notebookID string) error {
	return r.db.Where("notebook_id = ?", notebookID).Delete(&model.Source{}).Error
}
