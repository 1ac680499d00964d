package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

const objectStoreStateKey = "linkmark/state.json"

// ObjectStoreConfig captures configuration for the S3-compatible backend.
type ObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	Prefix    string
	UseSSL    bool
	PathStyle bool
}

// ObjectStore keeps the state document as one object in an S3-compatible bucket.
type ObjectStore struct {
	documentStore
}

// NewObjectStore connects to the bucket, creating it when missing.
func NewObjectStore(ctx context.Context, cfg ObjectStoreConfig) (*ObjectStore, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.AccessKey = strings.TrimSpace(cfg.AccessKey)
	cfg.SecretKey = strings.TrimSpace(cfg.SecretKey)
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")

	switch {
	case cfg.Endpoint == "":
		return nil, fmt.Errorf("object store: endpoint is required")
	case cfg.Bucket == "":
		return nil, fmt.Errorf("object store: bucket is required")
	case cfg.AccessKey == "" || cfg.SecretKey == "":
		return nil, fmt.Errorf("object store: access key and secret key are required")
	}

	options := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	}
	if cfg.PathStyle {
		options.BucketLookup = minio.BucketLookupPath
	}
	client, err := minio.New(cfg.Endpoint, options)
	if err != nil {
		return nil, fmt.Errorf("object store: create client: %w", err)
	}

	b := &objectBackend{client: client, bucket: cfg.Bucket, region: cfg.Region, key: objectStoreStateKey}
	if cfg.Prefix != "" {
		b.key = cfg.Prefix + "/" + objectStoreStateKey
	}
	if err = b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	log.Debugf("object store: using s3://%s/%s", b.bucket, b.key)
	return &ObjectStore{documentStore{name: "object", backend: b}}, nil
}

type objectBackend struct {
	client *minio.Client
	bucket string
	region string
	key    string
}

func (b *objectBackend) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("object store: check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err = b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{Region: b.region}); err != nil {
		return fmt.Errorf("object store: create bucket: %w", err)
	}
	return nil
}

func (b *objectBackend) read(ctx context.Context) ([]byte, error) {
	object, err := b.client.GetObject(ctx, b.bucket, b.key, minio.GetObjectOptions{})
	if err != nil {
		if isObjectNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() {
		if errClose := object.Close(); errClose != nil {
			log.Debugf("object store: close object: %v", errClose)
		}
	}()
	data, err := io.ReadAll(object)
	if err != nil {
		if isObjectNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

func (b *objectBackend) write(ctx context.Context, doc []byte) error {
	_, err := b.client.PutObject(ctx, b.bucket, b.key, bytes.NewReader(doc), int64(len(doc)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

func (b *objectBackend) remove(ctx context.Context) error {
	err := b.client.RemoveObject(ctx, b.bucket, b.key, minio.RemoveObjectOptions{})
	if err != nil && !isObjectNotFound(err) {
		return err
	}
	return nil
}

func (b *objectBackend) close() error { return nil }

func isObjectNotFound(err error) bool {
	if err == nil {
		return false
	}
	resp := minio.ToErrorResponse(err)
	if resp.StatusCode == http.StatusNotFound {
		return true
	}
	switch resp.Code {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return true
	}
	return false
}
