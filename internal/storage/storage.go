// Package storage reads templates and writes generated documents on the
// local filesystem or in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

const s3Scheme = "s3://"

// Location is a parsed storage address: either a local path or an S3 object.
type Location struct {
	Bucket string
	Key    string
	Path   string
}

// Parse parses a local path or an s3://bucket/key URI.
func Parse(uri string) (Location, error) {
	if uri == "" {
		return Location{}, errors.New("empty location")
	}
	if !strings.HasPrefix(uri, s3Scheme) {
		return Location{Path: uri}, nil
	}
	rest := strings.TrimPrefix(uri, s3Scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" || strings.HasSuffix(key, "/") {
		return Location{}, fmt.Errorf("invalid S3 location %q: expected s3://bucket/key", uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// IsS3 reports whether the location names an S3 object
func (l Location) IsS3() bool {
	return l.Bucket != ""
}

// Base returns the last element of the path or key
func (l Location) Base() string {
	if l.IsS3() {
		return l.Key[strings.LastIndex(l.Key, "/")+1:]
	}
	return filepath.Base(l.Path)
}

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Path
}

// ObjectAPI is the part of the S3 client used by Store
type ObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds connection settings for S3-compatible storage. Empty fields
// fall back to the AWS SDK defaults (environment, shared config, instance role).
type S3Config struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// NewS3Client builds an S3 client from cfg.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Store reads and writes documents by location. The S3 client is created on
// first use so purely local runs never touch AWS configuration.
type Store struct {
	mu     sync.Mutex
	client ObjectAPI
	config S3Config
	logger *zap.Logger
}

// New creates a store that connects to S3 with cfg when needed.
func New(cfg S3Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{config: cfg, logger: logger}
}

// NewWithClient creates a store backed by an existing S3 client.
func NewWithClient(client ObjectAPI, logger *zap.Logger) *Store {
	s := New(S3Config{}, logger)
	s.client = client
	return s
}

func (s *Store) objects(ctx context.Context) (ObjectAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := NewS3Client(ctx, s.config)
	if err != nil {
		return nil, err
	}
	s.client = client
	return client, nil
}

// Read returns the content stored at uri.
func (s *Store) Read(ctx context.Context, uri string) ([]byte, error) {
	loc, err := Parse(uri)
	if err != nil {
		return nil, err
	}
	if !loc.IsS3() {
		return os.ReadFile(loc.Path)
	}

	client, err := s.objects(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", loc, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", loc, err)
	}
	s.logger.Debug("read object", zap.String("location", loc.String()), zap.Int("bytes", len(data)))
	return data, nil
}

// Write stores data at uri. Local files are replaced atomically.
func (s *Store) Write(ctx context.Context, uri string, data []byte, contentType string) error {
	loc, err := Parse(uri)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !loc.IsS3() {
		return writeFileAtomic(loc.Path, data)
	}

	client, err := s.objects(ctx)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(loc.Bucket),
		Key:           aws.String(loc.Key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put %s: %w", loc, err)
	}
	s.logger.Debug("wrote object", zap.String("location", loc.String()), zap.Int("bytes", len(data)))
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
