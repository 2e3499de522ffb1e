package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/debemdeboas/quill/internal/cache"
	"github.com/debemdeboas/quill/internal/model"
)

type S3Options struct {
	AccessKeyID     string
	AccessKeySecret string
	BaseEndpoint    string
	Region          string
	Bucket          string

	// PreviewTTL is how long presigned preview URLs stay valid.
	PreviewTTL time.Duration

	// UsePathStyle addresses the bucket in the path instead of the host name.
	UsePathStyle bool
}

type S3FileStore struct { // implements FileStore
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string

	previewTTL time.Duration
	previews   *cache.TTLCache[model.FileID, string]
}

func NewS3FileStore(ctx context.Context, opts S3Options) (*S3FileStore, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if opts.Region == "" {
		opts.Region = "auto"
	}
	if opts.PreviewTTL <= 0 {
		opts.PreviewTTL = 15 * time.Minute
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.AccessKeySecret, "")),
		awsconfig.WithRegion(opts.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
		// S3-compatible stores reject the default trailing checksums.
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	return &S3FileStore{
		client:     client,
		presigner:  s3.NewPresignClient(client),
		bucket:     opts.Bucket,
		previewTTL: opts.PreviewTTL,
		previews:   cache.NewTTLCache[model.FileID, string](),
	}, nil
}

func (s *S3FileStore) Upload(ctx context.Context, file *model.ImageFile) (model.FileID, error) {
	if err := checkUpload(file); err != nil {
		return "", err
	}

	id := newFileID(file)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(string(id)),
		Body:          bytes.NewReader(file.Data),
		ContentLength: aws.Int64(file.Size()),
		ContentType:   aws.String(file.MediaType()),
	})
	if err != nil {
		return "", fmt.Errorf("error uploading %s: %w", file.Name, err)
	}

	storageLogger.Info().
		Str("file_id", string(id)).
		Str("bucket", s.bucket).
		Int64("size", file.Size()).
		Msg("Image uploaded")
	return id, nil
}

func (s *S3FileStore) Delete(ctx context.Context, id model.FileID) error {
	if id == "" {
		return ErrBadFileRef
	}

	s.previews.Delete(id)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(id)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("error deleting %s: %w", id, err)
	}

	storageLogger.Info().Str("file_id", string(id)).Msg("Image deleted")
	return nil
}

// PreviewURL returns a presigned GET URL. URLs are reused until they are
// close to expiring.
func (s *S3FileStore) PreviewURL(ctx context.Context, id model.FileID) (string, error) {
	if id == "" {
		return "", ErrBadFileRef
	}
	if url, ok := s.previews.Get(id); ok {
		return url, nil
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(string(id)),
	}, s3.WithPresignExpires(s.previewTTL))
	if err != nil {
		return "", fmt.Errorf("error presigning %s: %w", id, err)
	}

	s.previews.Set(id, req.URL, s.previewTTL-s.previewTTL/5)
	s.previews.Prune()
	return req.URL, nil
}
