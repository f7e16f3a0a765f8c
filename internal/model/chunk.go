package model

// Chunk 对应于数据库中的 chunks 表。
// 它是一个来源提取文本中连续、有序的切片，也是向量化与检索的最小单元。
// 真正的向量存放在 Elasticsearch 中，以本记录的 ID 为键，元数据中不重复保存。
type Chunk struct {
	ID         string `gorm:"type:varchar(36);primaryKey" json:"id"`
	SourceID   string `gorm:"type:varchar(36);not null;index" json:"sourceId"`
	ChunkIndex int    `gorm:"not null" json:"chunkIndex"` // 同一来源内从 0 开始连续递增
	Content    string `gorm:"type:text;not null" json:"content"`
	WordStart  int    `gorm:"not null" json:"wordStart"` // [wordStart, wordEnd) 是在全文词序列中的区间
	WordEnd    int    `gorm:"not null" json:"wordEnd"`
	PageNumber *int   `gorm:"default:null" json:"pageNumber"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chunk) TableName() string {
	return "chunks"
}
