package repository

import (
	"notebook-rag-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 定义了对 chunks 表的数据操作接口。
// 分块一经创建即不可变，只会随来源一起删除。
type ChunkRepository interface {
	// BatchCreate 批量写入分块记录，写入前必须已分配好 ID。
	BatchCreate(chunks []*model.Chunk) error
	FindBySource(sourceID string) ([]*model.Chunk, error)
	// IDsBySource 返回来源名下所有分块 ID，按 chunk_index 升序。
	IDsBySource(sourceID string) ([]string, error)
	IDsByNotebook(notebookID string) ([]string, error)
	DeleteBySource(sourceID string) error
	DeleteByNotebook(notebookID string) error
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

func (r *chunkRepository) BatchCreate(chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error // 每100条记录一批
}

func (r *chunkRepository) FindBySource(sourceID string) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	err := r.db.Where("source_id = ?", sourceID).Order("chunk_index ASC").Find(&chunks).Error
	return chunks, err
}

func (r *chunkRepository) IDsBySource(sourceID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.Chunk{}).
		Where("source_id = ?", sourceID).
		Order("chunk_index ASC").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *chunkRepository) IDsByNotebook(notebookID string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.Chunk{}).
		Joins("JOIN sources ON sources.id = chunks.source_id").
		Where("sources.notebook_id = ?", notebookID).
		Pluck("chunks.id", &ids).Error
	return ids, err
}

func (r *chunkRepository) DeleteBySource(sourceID string) error {
	return r.db.Where("source_id = ?", sourceID).Delete(&model.Chunk{}).Error
}

func (r *chunkRepository) DeleteByNotebook(notebookID string) error {
	return r.db.
		Where("source_id IN (?)", r.db.Model(&model.Source{}).Select("id").Where("notebook_id = ?", notebookID)).
		Delete(&model.Chunk{}).Error
}
