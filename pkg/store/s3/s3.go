// Package s3 stores the snapshot as a single object in Amazon S3 or a
// compatible service (MinIO, Localstack).
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/marmos91/dittotasks/pkg/store"
)

// metaModified carries the snapshot timestamp (Unix nanoseconds) in the
// object's user metadata.
const metaModified = "dittotasks-modified-ns"

// objectName is the object key below KeyPrefix.
const objectName = "database.bin"

// Client is the subset of the S3 API the store needs.
type Client interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Config configures an S3 backend.
type Config struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// Store is an S3 snapshot backend.
type Store struct {
	client Client
	bucket string
	key    string
}

// New builds an S3 client from cfg and returns a Store using it.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 store: bucket is required")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3 store: region is required")
	}

	var opts []func(*awsConfig.LoadOptions) error
	opts = append(opts, awsConfig.WithRegion(cfg.Region))

	// Fall back to the default credential chain without static keys.
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	opts = append(opts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// Path-style addressing for MinIO/Localstack.
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket, cfg.KeyPrefix), nil
}

// NewWithClient returns a Store using an existing client.
func NewWithClient(client Client, bucket, keyPrefix string) *Store {
	return &Store{client: client, bucket: bucket, key: keyPrefix + objectName}
}

func (s *Store) Name() string { return "s3" }

// Key returns the object key the snapshot is stored under.
func (s *Store) Key() string { return s.key }

func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return store.Snapshot{}, store.ErrNotFound
		}
		return store.Snapshot{}, fmt.Errorf("s3 get %s: %w", s.key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("s3 read %s: %w", s.key, err)
	}

	raw, ok := out.Metadata[metaModified]
	if !ok {
		return store.Snapshot{}, fmt.Errorf("s3 object %s has no %s metadata", s.key, metaModified)
	}
	ns, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("s3 object %s: bad timestamp %q: %w", s.key, raw, err)
	}
	return store.Snapshot{Data: data, LastModified: time.Unix(0, ns).UTC()}, nil
}

func (s *Store) Save(ctx context.Context, snap store.Snapshot) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(snap.Data),
		ContentLength: aws.Int64(int64(len(snap.Data))),
		ContentType:   aws.String("application/octet-stream"),
		Metadata: map[string]string{
			metaModified: strconv.FormatInt(snap.LastModified.UnixNano(), 10),
		},
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", s.key, err)
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (s *Store) Close() error { return nil }
