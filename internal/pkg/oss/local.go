package oss

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalStore 未配置 OSS 时的本地存储，返回 local:// 链接
type LocalStore struct {
	dir    string
	prefix string
}

func NewLocalStore(dir, prefix string) *LocalStore {
	return &LocalStore{dir: dir, prefix: prefix}
}

func (s *LocalStore) ObjectKey(email string, at time.Time) string {
	return ObjectKey(s.prefix, email, at)
}

func (s *LocalStore) Publish(ctx context.Context, objectKey string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(objectKey))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return "local://" + objectKey, nil
}

// Path 本地链接对应的文件路径
func (s *LocalStore) Path(objectKey string) string {
	return filepath.Join(s.dir, filepath.FromSlash(objectKey))
}
