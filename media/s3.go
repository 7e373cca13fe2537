package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"plantify/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Uploader stores images in an S3-compatible bucket (AWS S3, MinIO, ...)
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	baseURL string
	logger  *zap.Logger
}

var _ Uploader = (*S3Uploader)(nil)

// Option configures an S3Uploader
type Option func(*S3Uploader)

func WithLogger(logger *zap.Logger) Option {
	return func(u *S3Uploader) { u.logger = logger }
}

// NewS3Uploader creates an uploader from cfg. Public URLs are built from
// PublicBaseURL, or from the endpoint and bucket when it is empty.
func NewS3Uploader(cfg config.StorageConfig, opts ...Option) (*S3Uploader, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("storage access key and secret key are required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	u := &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		baseURL: publicBaseURL(cfg, endpoint, region),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

func publicBaseURL(cfg config.StorageConfig, endpoint, region string) string {
	switch {
	case cfg.PublicBaseURL != "":
		return strings.TrimRight(cfg.PublicBaseURL, "/")
	case endpoint != "":
		return endpoint + "/" + cfg.Bucket
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, region)
	}
}

// EnsureBucket creates the bucket if it doesn't exist
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	_, err := u.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(u.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	u.logger.Info("creating storage bucket", zap.String("bucket", u.bucket))
	_, err = u.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(u.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (u *S3Uploader) Upload(ctx context.Context, localPath, folder string) (*Asset, error) {
	defer removeTemp(u.logger, localPath)

	f, err := os.Open(localPath)
	if err != nil {
		return nil, uploadFailed(err)
	}
	defer f.Close()

	key := objectKey(folder, localPath)
	contentType := mime.TypeByExtension(filepath.Ext(localPath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		u.logger.Error("image upload failed", zap.String("key", key), zap.Error(err))
		return nil, uploadFailed(err)
	}
	return &Asset{URL: u.baseURL + "/" + key, ID: key}, nil
}

func (u *S3Uploader) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("storage key is required")
	}
	_, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func removeTemp(logger *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to delete temp file", zap.String("path", path), zap.Error(err))
	}
}
