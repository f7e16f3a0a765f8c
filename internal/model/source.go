package model

import (
	"fmt"
	"time"
)

// SourceKind 是资料来源类型的封闭枚举。
// 新增类型时必须同步修改 extractor 的分发逻辑，否则会得到 unsupported kind 错误。
type SourceKind string

const (
	KindPDF     SourceKind = "pdf"
	KindDOCX    SourceKind = "docx"
	KindText    SourceKind = "text"
	KindWebPage SourceKind = "url"
	KindYouTube SourceKind = "youtube"
)

// ParseSourceKind 校验外部传入的来源类型字符串。
func ParseSourceKind(s string) (SourceKind, error) {
	switch SourceKind(s) {
	case KindPDF, KindDOCX, KindText, KindWebPage, KindYouTube:
		return SourceKind(s), nil
	default:
		return "", fmt.Errorf("不支持的来源类型: %q", s)
	}
}

// IsURLBased 返回该类型的来源是否以 URL 而非上传文件为载体。
func (k SourceKind) IsURLBased() bool {
	return k == KindWebPage || k == KindYouTube
}

// Source 生命周期状态。
const (
	SourcePending    = "pending"
	SourceProcessing = "processing"
	SourceReady      = "ready"
	SourceFailed     = "failed"
)

// Source 对应于数据库中的 sources 表，代表一份已提交的文档或链接。
// 状态只由摄取管道推进：pending → processing → ready|failed。
type Source struct {
	ID          string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	NotebookID  string     `gorm:"type:varchar(36);not null;index" json:"notebookId"`
	Title       string     `gorm:"type:varchar(500);not null" json:"title"`
	Kind        SourceKind `gorm:"type:varchar(20);not null" json:"kind"`
	ObjectName  string     `gorm:"type:varchar(1000)" json:"-"`    // MinIO 中原始文件的对象名，URL 来源为空
	OriginalURL string     `gorm:"type:varchar(2000)" json:"originalUrl"`
	Status      string     `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	Summary     string     `gorm:"type:text" json:"summary"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Source) TableName() string {
	return "sources"
}
