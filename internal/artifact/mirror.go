package artifact

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MirrorConfig configures the optional S3-compatible artifact mirror.
type MirrorConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Mirror uploads written artifacts to an object store so other runs and
// consumers can fetch them without filesystem access. Local artifacts
// remain authoritative; mirroring failures are the caller's to handle.
type Mirror struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// NewMirror builds a mirror from explicit configuration.
func NewMirror(cfg MirrorConfig) (*Mirror, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("artifact: mirror endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("artifact: mirror access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("artifact: mirror bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("artifact: init mirror client: %w", err)
	}
	return &Mirror{client: client, bucket: bucket, region: region}, nil
}

// ObjectKey derives the bucket key for an artifact of a given run.
func ObjectKey(runID, name string) string {
	runID = strings.Trim(strings.TrimSpace(runID), "/")
	name = strings.Trim(strings.TrimSpace(name), "/")
	if runID == "" {
		return name
	}
	return runID + "/" + name
}

func (m *Mirror) ensureBucket(ctx context.Context) error {
	m.initOnce.Do(func() {
		exists, err := m.client.BucketExists(ctx, m.bucket)
		if err != nil {
			m.initErr = err
			return
		}
		if exists {
			return
		}
		m.initErr = m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region})
	})
	return m.initErr
}

// Put uploads one artifact payload under <runID>/<name>.
func (m *Mirror) Put(ctx context.Context, runID, name string, content []byte) error {
	if err := m.ensureBucket(ctx); err != nil {
		return fmt.Errorf("artifact: mirror bucket: %w", err)
	}
	key := ObjectKey(runID, name)
	contentType := "application/octet-stream"
	if strings.HasSuffix(name, ".json") {
		contentType = "application/json"
	} else if strings.HasSuffix(name, ".txt") {
		contentType = "text/plain"
	}
	_, err := m.client.PutObject(ctx, m.bucket, key,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("artifact: mirror put %s: %w", key, err)
	}
	return nil
}

// PutDir uploads every regular file directly inside dir.
func (m *Mirror) PutDir(ctx context.Context, runID, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("artifact: mirror read dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("artifact: mirror read %s: %w", e.Name(), err)
		}
		if err := m.Put(ctx, runID, e.Name(), b); err != nil {
			return err
		}
	}
	return nil
}
