package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wyfcoding/versioned/retry"
	"github.com/wyfcoding/versioned/storage"
	"github.com/wyfcoding/versioned/xerrors"
)

// Store 镜像的持久化后端。
type Store interface {
	Save(ctx context.Context, name string, img *Image) error
	Load(ctx context.Context, name string) (*Image, error)
}

const objectSuffix = ".snap.json"

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return xerrors.InvalidArg(fmt.Sprintf("invalid snapshot name %q", name))
	}
	return nil
}

// FileStore 将镜像保存为目录下的 JSON 文件。
type FileStore struct {
	dir string
}

// NewFileStore 创建文件存储，目录不存在时自动创建。
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xerrors.WrapInternal(err, "create snapshot dir")
	}
	return &FileStore{dir: dir}, nil
}

// Save 先写临时文件再重命名，读者不会看到写了一半的镜像。
func (s *FileStore) Save(ctx context.Context, name string, img *Image) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := img.Encode(&buf); err != nil {
		return xerrors.WrapInternal(err, "encode snapshot")
	}

	final := filepath.Join(s.dir, name+objectSuffix)
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return xerrors.WrapInternal(err, "write snapshot")
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return xerrors.WrapInternal(err, "commit snapshot")
	}
	slog.Debug("snapshot saved", "store", "file", "name", name, "bytes", buf.Len())
	return nil
}

// Load 读取镜像。
func (s *FileStore) Load(ctx context.Context, name string) (*Image, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, name+objectSuffix))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, xerrors.NotFound("snapshot " + name)
		}
		return nil, xerrors.WrapInternal(err, "open snapshot")
	}
	defer f.Close()
	return Decode(f)
}

// ObjectStore 将镜像保存到对象存储 (MinIO / S3)。
type ObjectStore struct {
	backend storage.Storage
	prefix  string
	policy  retry.Policy
}

// NewObjectStore 创建对象存储后端，prefix 为对象名前缀。上传下载按 retry.DefaultPolicy 重试。
func NewObjectStore(backend storage.Storage, prefix string) *ObjectStore {
	return &ObjectStore{backend: backend, prefix: strings.TrimSuffix(prefix, "/"), policy: retry.DefaultPolicy()}
}

// WithRetry 替换重试策略。
func (s *ObjectStore) WithRetry(p retry.Policy) *ObjectStore {
	s.policy = p
	return s
}

func retryable(err error) bool {
	return !errors.Is(err, storage.ErrObjectNotFound) && !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}

func (s *ObjectStore) objectName(name string) string {
	if s.prefix == "" {
		return name + objectSuffix
	}
	return s.prefix + "/" + name + objectSuffix
}

// Save 上传镜像。
func (s *ObjectStore) Save(ctx context.Context, name string, img *Image) error {
	if err := checkName(name); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := img.Encode(&buf); err != nil {
		return xerrors.WrapInternal(err, "encode snapshot")
	}
	start := time.Now()
	data := buf.Bytes()
	size := int64(len(data))
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		return s.backend.Upload(ctx, s.objectName(name), bytes.NewReader(data), size, "application/json")
	}, retryable)
	if err != nil {
		return xerrors.WrapInternal(err, "upload snapshot")
	}
	slog.Debug("snapshot saved", "store", "object", "name", name, "bytes", size, "duration", time.Since(start))
	return nil
}

// Load 下载镜像。
func (s *ObjectStore) Load(ctx context.Context, name string) (*Image, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	var rc io.ReadCloser
	err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		var err error
		rc, err = s.backend.Download(ctx, s.objectName(name))
		return err
	}, retryable)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, xerrors.NotFound("snapshot " + name)
		}
		return nil, xerrors.WrapInternal(err, fmt.Sprintf("download snapshot %s", name))
	}
	defer rc.Close()
	img, err := Decode(rc)
	if err != nil {
		return nil, err
	}
	return img, nil
}
