// Package storage 定义对象存储的通用接口，快照等大对象通过它落到 MinIO / S3。
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound 对象不存在。
var ErrObjectNotFound = errors.New("object not found")

// Storage 定义了对象存储的通用接口，支持多驱动扩展。
type Storage interface {
	// Upload 简单上传文件
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error

	// Download 下载文件，对象不存在时返回 ErrObjectNotFound
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)

	// Exists 检查对象是否存在
	Exists(ctx context.Context, objectName string) (bool, error)

	// Delete 删除文件
	Delete(ctx context.Context, objectName string) error
}
