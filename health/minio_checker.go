package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/wyfcoding/versioned/config"
)

// MinioChecker 返回快照桶的健康检查函数。
func MinioChecker(cfg config.MinioConfig) (Checker, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("minio endpoint is empty")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client init failed: %w", err)
	}
	return func(ctx context.Context) error {
		ok, err := client.BucketExists(ctx, cfg.BucketName)
		if err != nil {
			return fmt.Errorf("minio bucket check failed: %w", err)
		}
		if !ok {
			return fmt.Errorf("minio bucket %s missing", cfg.BucketName)
		}
		return nil
	}, nil
}
