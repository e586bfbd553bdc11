// Package storage moves binary assets into Aliyun OSS. Uploaded source
// images and relocated result videos both live behind the same
// Uploader interface so the worker and the upload handler can be
// tested without a bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/pickitchen/pickitchen-backend/internal/config"
)

// Uploader stores an object and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
	UploadFromURL(ctx context.Context, key, sourceURL string) (string, error)
}

// OSS implements Uploader on an Aliyun bucket.
type OSS struct {
	bucket        *oss.Bucket
	bucketName    string
	endpoint      string
	publicBaseURL string
	httpClient    *http.Client
}

func NewOSS(cfg *config.Config) (*OSS, error) {
	if cfg.OSSEndpoint == "" || cfg.OSSBucket == "" || cfg.OSSAccessKeyID == "" || cfg.OSSAccessKeySecret == "" {
		return nil, fmt.Errorf("oss not configured")
	}

	client, err := oss.New(normalizeEndpoint(cfg.OSSEndpoint), cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss client: %w", err)
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", cfg.OSSBucket, err)
	}

	return &OSS{
		bucket:        bucket,
		bucketName:    cfg.OSSBucket,
		endpoint:      cfg.OSSEndpoint,
		publicBaseURL: cfg.OSSPublicBaseURL,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (o *OSS) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	opts := []oss.Option{oss.ObjectACL(oss.ACLPublicRead)}
	if contentType != "" {
		opts = append(opts, oss.ContentType(contentType))
	}
	if err := o.bucket.PutObject(key, body, opts...); err != nil {
		return "", fmt.Errorf("oss put %s: %w", key, err)
	}
	return o.ObjectURL(key), nil
}

// UploadFromURL streams a remote object into the bucket. Used to move
// vendor result videos, whose URLs expire, onto storage we own.
func (o *OSS) UploadFromURL(ctx context.Context, key, sourceURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: unexpected status %d", sourceURL, resp.StatusCode)
	}

	return o.Upload(ctx, key, resp.Body, resp.Header.Get("Content-Type"))
}

// ObjectURL builds the public URL for a stored key. A configured CDN
// base wins over the virtual-hosted bucket address.
func (o *OSS) ObjectURL(key string) string {
	if o.publicBaseURL != "" {
		return strings.TrimRight(o.publicBaseURL, "/") + "/" + key
	}
	scheme, host := splitEndpoint(o.endpoint)
	return fmt.Sprintf("%s://%s.%s/%s", scheme, o.bucketName, host, key)
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	return "https://" + endpoint
}

func splitEndpoint(endpoint string) (scheme, host string) {
	normalized := normalizeEndpoint(endpoint)
	parts := strings.SplitN(normalized, "://", 2)
	return parts[0], parts[1]
}
