package oss

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/dieta_server/config"
)

// Bucket 客户端用到的 bucket 操作，*oss.Bucket 满足该接口
type Bucket interface {
	PutObject(objectKey string, reader io.Reader, options ...oss.Option) error
	SignURL(objectKey string, method oss.HTTPMethod, expiredInSec int64, options ...oss.Option) (string, error)
}

type Client struct {
	bucket        Bucket
	bucketName    string
	endpoint      string
	cdnDomain     string
	prefix        string
	private       bool
	expireSeconds int64
}

func NewClient(cfg *config.OSSConfig) (*Client, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return NewClientWithBucket(bucket, cfg), nil
}

func NewClientWithBucket(bucket Bucket, cfg *config.OSSConfig) *Client {
	expire := cfg.SignedURLExpireSeconds
	if expire <= 0 {
		expire = 3600
	}
	return &Client{
		bucket:        bucket,
		bucketName:    cfg.BucketName,
		endpoint:      cfg.Endpoint,
		cdnDomain:     cfg.CDNDomain,
		prefix:        cfg.Prefix,
		private:       cfg.Private(),
		expireSeconds: expire,
	}
}

// ObjectKey 同一身份同一时间戳得到相同的 key，key 中不含原始邮箱
func ObjectKey(prefix, email string, at time.Time) string {
	sum := sha256.Sum256([]byte(email))
	name := fmt.Sprintf("%d.pdf", at.UnixMilli())
	return path.Join(prefix, hex.EncodeToString(sum[:])[:16], name)
}

func (c *Client) ObjectKey(email string, at time.Time) string {
	return ObjectKey(c.prefix, email, at)
}

// Publish 覆盖写入文档并返回当前访问链接：私有 bucket 为签名链接，否则为公开/CDN 地址
func (c *Client) Publish(ctx context.Context, objectKey string, data []byte) (string, error) {
	err := c.bucket.PutObject(objectKey, bytes.NewReader(data),
		oss.ContentType("application/pdf"),
		oss.ForbidOverWrite(false),
		oss.WithContext(ctx),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload document: %w", err)
	}

	if c.private {
		return c.GetSignedURL(objectKey)
	}
	return c.GetURL(objectKey), nil
}

// GetURL 获取文件访问 URL
func (c *Client) GetURL(objectKey string) string {
	if c.cdnDomain != "" {
		return fmt.Sprintf("https://%s/%s", c.cdnDomain, objectKey)
	}
	return fmt.Sprintf("https://%s.%s/%s", c.bucketName, c.endpoint, objectKey)
}

// GetSignedURL 生成带签名的临时访问URL
func (c *Client) GetSignedURL(objectKey string) (string, error) {
	signedURL, err := c.bucket.SignURL(objectKey, oss.HTTPGet, c.expireSeconds)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return signedURL, nil
}
