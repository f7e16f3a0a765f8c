package repository

import (
	"notebook-rag-go/internal/model"

	"gorm.io/gorm"
)

// NotebookRepository 定义了对 notebooks 表的数据操作接口。
type NotebookRepository interface {
	Create(notebook *model.Notebook) error
	FindByID(id string) (*model.Notebook, error)
	FindByOwner(ownerID string) ([]*model.Notebook, error)
	Delete(id string) error
}

type notebookRepository struct {
	db *gorm.DB
}

// NewNotebookRepository 创建一个新的 NotebookRepository 实例。
func NewNotebookRepository(db *gorm.DB) NotebookRepository {
	return &notebookRepository{db: db}
}

func (r *notebookRepository) Create(notebook *model.Notebook) error {
	return r.db.Create(notebook).Error
}

func (r *notebookRepository) FindByID(id string) (*model.Notebook, error) {
	var nb model.Notebook
	err := r.db.Where("id = ?", id).First(&nb).Error
	if err != nil {
		return nil, err
	}
	return &nb, nil
}

func (r *notebookRepository) FindByOwner(ownerID string) ([]*model.Notebook, error) {
	var nbs []*model.Notebook
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&nbs).Error
	return nbs, err
}

func (r *notebookRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&model.Notebook{}).Error
}
