// Package vector 提供按笔记本隔离的向量索引，基于 Elasticsearch dense_vector 实现。
package vector

import (
	"context"
	"fmt"
)

// Error 是向量索引操作失败时返回的错误，携带失败的操作名。
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("向量索引 %s 失败: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Entry 是一次写入的完整载荷：分块 ID 为键，向量、原文与溯源元数据随行。
type Entry struct {
	ID         string
	Content    string
	Vector     []float32
	SourceID   string
	ChunkIndex int
}

// Hit 是一次查询命中，Distance 为余弦距离（1 - 余弦相似度），越小越相近。
type Hit struct {
	ID         string
	Content    string
	SourceID   string
	ChunkIndex int
	Distance   float64
}

// Store 定义了按作用域隔离的向量索引操作。
// 作用域（笔记本 ID）由实现映射到独立的物理索引，公开接口上不存在跨作用域查询。
// 距离度量在索引创建时固定为余弦距离，生命周期内不可更换。
type Store interface {
	// Upsert 按 ID 幂等写入：重复写入同一 ID 会整体替换其向量、原文与元数据。
	Upsert(ctx context.Context, scope string, entries []Entry) error
	// Query 返回至多 min(k, 索引大小) 条命中，按余弦距离升序排列；
	// 空索引返回空切片而不是错误。
	Query(ctx context.Context, scope string, vec []float32, k int) ([]Hit, error)
	// Delete 按 ID 删除，删除不存在的 ID 是无操作。
	Delete(ctx context.Context, scope string, ids []string) error
	// Count 返回作用域内的向量条数。
	Count(ctx context.Context, scope string) (int64, error)
	// DropScope 删除整个作用域的索引，作用域不存在时是无操作。
	DropScope(ctx context.Context, scope string) error
}
