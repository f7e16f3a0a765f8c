// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestTask represents one source ingestion job.
// 文件类来源携带 ObjectName（MinIO 中的原始对象），URL 类来源携带 URL。
type IngestTask struct {
	NotebookID string `json:"notebook_id"`
	SourceID   string `json:"source_id"`
	Kind       string `json:"kind"`
	FileName   string `json:"file_name"`
	ObjectName string `json:"object_name"`
	URL        string `json:"url"`
}
