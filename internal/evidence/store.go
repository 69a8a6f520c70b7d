// Package evidence stores files uploaded in support of an appeal.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"

	"lfpappeals/web/internal/appeal"
)

var ErrEmptyObject = errors.New("evidence object is empty")

// Object is an uploaded file on its way to storage.
type Object struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
	// Owner tags the object, usually with the company number.
	Owner string
}

type Store interface {
	Put(ctx context.Context, obj Object) (appeal.Attachment, error)
	Remove(ctx context.Context, id string) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// objectAPI is the part of *minio.Client the store uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
}

// MinioStore keeps evidence in an S3-compatible bucket, one object per
// attachment keyed by the attachment id.
type MinioStore struct {
	client  objectAPI
	bucket  string
	baseURL string
}

// NewMinioStore connects to the object store and creates the bucket if it
// does not exist yet.
func NewMinioStore(ctx context.Context, cfg Config) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("evidence client: %w", err)
	}
	store := newMinioStore(client, cfg.Bucket, client.EndpointURL().String())
	if err := store.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newMinioStore(client objectAPI, bucket, endpoint string) *MinioStore {
	return &MinioStore{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(endpoint, "/") + "/" + bucket,
	}
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	log.WithField("bucket", s.bucket).Info("evidence: created bucket")
	return nil
}

func (s *MinioStore) Put(ctx context.Context, obj Object) (appeal.Attachment, error) {
	if obj.Body == nil || obj.Size <= 0 {
		return appeal.Attachment{}, ErrEmptyObject
	}
	id := uuid.NewString()
	opts := minio.PutObjectOptions{
		ContentType: obj.ContentType,
		UserMetadata: map[string]string{
			"filename": path.Base(obj.Name),
		},
	}
	if obj.Owner != "" {
		opts.UserTags = map[string]string{"owner": obj.Owner}
	}
	info, err := s.client.PutObject(ctx, s.bucket, id, obj.Body, obj.Size, opts)
	if err != nil {
		return appeal.Attachment{}, fmt.Errorf("put evidence %s: %w", obj.Name, err)
	}
	return appeal.Attachment{
		ID:          id,
		Name:        path.Base(obj.Name),
		ContentType: obj.ContentType,
		Size:        info.Size,
		URL:         s.baseURL + "/" + id,
	}, nil
}

func (s *MinioStore) Remove(ctx context.Context, id string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, id, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove evidence %s: %w", id, err)
	}
	return nil
}
