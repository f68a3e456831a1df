package staging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ Provider = (*MinioProvider)(nil)

// MinioConfig holds object-store provider configuration.
type MinioConfig struct {
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	Prefix          string
}

// ParseMinioConfig extracts object-store configuration from a map.
func ParseMinioConfig(m map[string]any) *MinioConfig {
	cfg := &MinioConfig{
		Bucket: "mex-artifacts",
	}
	if v, ok := m["endpoint_url"].(string); ok {
		cfg.EndpointURL = v
	}
	if v, ok := m["access_key_id"].(string); ok {
		cfg.AccessKeyID = v
	}
	if v, ok := m["secret_access_key"].(string); ok {
		cfg.SecretAccessKey = v
	}
	if v, ok := m["bucket"].(string); ok && v != "" {
		cfg.Bucket = v
	}
	if v, ok := m["region"].(string); ok {
		cfg.Region = v
	}
	if v, ok := m["use_ssl"].(bool); ok {
		cfg.UseSSL = v
	}
	if v, ok := m["prefix"].(string); ok {
		cfg.Prefix = strings.Trim(v, "/")
	}
	return cfg
}

// MinioProvider stores artifacts in a MinIO/S3 bucket.
type MinioProvider struct {
	client *minio.Client
	cfg    *MinioConfig
}

// NewMinioProvider creates an object-store provider and ensures the
// bucket exists.
func NewMinioProvider(ctx context.Context, cfg *MinioConfig) (*MinioProvider, error) {
	if cfg == nil || cfg.EndpointURL == "" {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: false, Err: fmt.Errorf("endpoint_url is required")}
	}
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: false, Err: fmt.Errorf("credentials are required")}
	}

	u, err := url.Parse(cfg.EndpointURL)
	if err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: false, Err: fmt.Errorf("invalid endpoint URL: %w", err)}
	}
	endpoint := u.Host
	if endpoint == "" {
		endpoint = cfg.EndpointURL
	}
	useSSL := cfg.UseSSL || u.Scheme == "https"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
		}
	}

	return &MinioProvider{client: client, cfg: cfg}, nil
}

// ID returns the provider identifier.
func (p *MinioProvider) ID() string { return ProviderObjectStore }

func (p *MinioProvider) key(path string) string {
	if p.cfg.Prefix == "" {
		return path
	}
	return p.cfg.Prefix + "/" + path
}

// PutBatch uploads one complete batch as a single object. Object
// uploads are atomic server-side, so there is no partial-artifact
// window.
func (p *MinioProvider) PutBatch(ctx context.Context, req *PutRequest) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := json.Marshal(req.Records)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	path := ArtifactPath(req.RunID, req.EntityType, req.BatchID)

	_, err = p.client.PutObject(ctx, p.cfg.Bucket, p.key(path),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}

	return &Artifact{
		EntityType: req.EntityType,
		RunID:      req.RunID,
		BatchID:    req.BatchID,
		Path:       path,
		Records:    len(req.Records),
		Bytes:      int64(len(data)),
	}, nil
}

// ListBatches returns artifact paths for one run, sorted.
func (p *MinioProvider) ListBatches(ctx context.Context, runID string) ([]string, error) {
	prefix := p.key(runID + "/raw/")

	var paths []string
	for obj := range p.client.ListObjects(ctx, p.cfg.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: obj.Err}
		}
		path := strings.TrimPrefix(obj.Key, p.cfg.Prefix+"/")
		if p.cfg.Prefix == "" {
			path = obj.Key
		}
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths, nil
}

// GetBatch reads one batch back.
func (p *MinioProvider) GetBatch(ctx context.Context, path string) ([]map[string]any, error) {
	obj, err := p.client.GetObject(ctx, p.cfg.Bucket, p.key(path), minio.GetObjectOptions{})
	if err != nil {
		return nil, &Error{Code: CodeStagingUnavailable, Retryable: true, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("artifact not found: %s", path)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	return records, nil
}
