// Package storage 提供了与对象存储服务（MinIO）交互的功能。
// 这里保存两类产物：原始上传文件和每个来源的提取文本快照
// （后者用于在不重新提取的前提下重新分块）。
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"notebook-rag-go/internal/config"
	"notebook-rag-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore 定义了核心依赖的对象存储操作。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, data []byte, contentType string) error
	Get(ctx context.Context, objectName string) ([]byte, error)
	Remove(ctx context.Context, objectName string) error
	// RemovePrefix 删除指定前缀下的所有对象，用于笔记本级联清理。
	RemovePrefix(ctx context.Context, prefix string) error
	// Exists 判断对象是否存在。
	Exists(ctx context.Context, objectName string) (bool, error)
}

// RawObjectName 原始上传文件的对象名。
func RawObjectName(notebookID, sourceID, fileName string) string {
	return fmt.Sprintf("raw/%s/%s/%s", notebookID, sourceID, fileName)
}

// ExtractedObjectName 提取文本快照的对象名，每个来源一份。
func ExtractedObjectName(notebookID, sourceID string) string {
	return fmt.Sprintf("extracted/%s/%s.txt", notebookID, sourceID)
}

// NotebookPrefix 笔记本名下全部对象的公共前缀集合。
func NotebookPrefix(notebookID string) []string {
	return []string{
		fmt.Sprintf("raw/%s/", notebookID),
		fmt.Sprintf("extracted/%s/", notebookID),
	}
}

type minioStore struct {
	client *minio.Client
	bucket string
}

// New 初始化 MinIO 客户端并确保存储桶存在。
func New(cfg config.MinIOConfig) (ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
	}

	log.Info("MinIO 客户端初始化成功")
	return &minioStore{client: client, bucket: cfg.BucketName}, nil
}

func (s *minioStore) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("写入对象 %s 失败: %w", objectName, err)
	}
	return nil
}

func (s *minioStore) Get(ctx context.Context, objectName string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 失败: %w", objectName, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s 内容失败: %w", objectName, err)
	}
	return data, nil
}

func (s *minioStore) Remove(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象 %s 失败: %w", objectName, err)
	}
	return nil
}

func (s *minioStore) RemovePrefix(ctx context.Context, prefix string) error {
	objectCh := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for obj := range objectCh {
		if obj.Err != nil {
			return fmt.Errorf("列举前缀 %s 失败: %w", prefix, obj.Err)
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("删除对象 %s 失败: %w", obj.Key, err)
		}
	}
	return nil
}

func (s *minioStore) Exists(ctx context.Context, objectName string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
