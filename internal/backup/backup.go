// Package backup archives snapshot payloads to S3-compatible object
// storage before each sync overwrites the database.
package backup

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type Service struct {
	client *minio.Client
	bucket string
}

// New connects to the object store and ensures the bucket exists.
func New(ctx context.Context, opts Options) (*Service, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &Service{client: client, bucket: opts.Bucket}, nil
}

// ObjectKey names a snapshot object by its UTC timestamp so keys sort
// chronologically.
func ObjectKey(at time.Time) string {
	return "snapshots/" + at.UTC().Format("2006-01-02T15-04-05Z") + ".json"
}

// StoreSnapshot uploads a snapshot payload and returns its object key.
func (s *Service) StoreSnapshot(ctx context.Context, payload []byte) (string, error) {
	key := ObjectKey(time.Now())
	_, err := s.client.PutObject(ctx, s.bucket, key,
		bytes.NewReader(payload), int64(len(payload)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	return key, nil
}

// SnapshotInfo describes one stored snapshot.
type SnapshotInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// List returns stored snapshots, newest first.
func (s *Service) List(ctx context.Context) ([]SnapshotInfo, error) {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    "snapshots/",
		Recursive: true,
	})

	infos := make([]SnapshotInfo, 0)
	for object := range objects {
		if object.Err != nil {
			return nil, fmt.Errorf("list snapshots: %w", object.Err)
		}
		infos = append(infos, SnapshotInfo{
			Key:          object.Key,
			Size:         object.Size,
			LastModified: object.LastModified,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key > infos[j].Key
	})
	return infos, nil
}
