package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/haasonsaas/scribe/internal/backoff"
	"github.com/haasonsaas/scribe/internal/errkind"
)

// S3StoreConfig configures an S3-compatible object store.
type S3StoreConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool

	// AppendRetries bounds the conditional-append loop. Defaults to
	// DefaultAppendRetries.
	AppendRetries int

	// ConflictHook is invoked once per precondition failure that triggers a
	// retry. Used to feed the append-conflict metric.
	ConflictHook func()
}

// S3Store implements Store against an S3-compatible bucket.
type S3Store struct {
	client        *s3.Client
	bucket        string
	appendRetries int
	conflictHook  func()
}

// NewS3Store creates an S3-backed store.
func NewS3Store(ctx context.Context, cfg *S3StoreConfig) (*S3Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("s3 store config is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, errkind.New(errkind.Config, "s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})

	retries := cfg.AppendRetries
	if retries <= 0 {
		retries = DefaultAppendRetries
	}

	return &S3Store{
		client:        client,
		bucket:        bucket,
		appendRetries: retries,
		conflictHook:  cfg.ConflictHook,
	}, nil
}

// Get fetches an object's full contents.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := s.getWithETag(ctx, key)
	return data, err
}

func (s *S3Store) getWithETag(ctx context.Context, key string) ([]byte, string, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		if isNotFound(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", errkind.Wrap(errkind.Storage, fmt.Errorf("s3 get object %q: %w", key, err))
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", errkind.Wrap(errkind.Storage, fmt.Errorf("s3 read object %q: %w", key, err))
	}
	return data, aws.ToString(out.ETag), nil
}

// Put overwrites an object.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
		Body:   bytes.NewReader(data),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		return errkind.Wrap(errkind.Storage, fmt.Errorf("s3 put object %q: %w", key, err))
	}
	return nil
}

// AppendLine appends a line under a conditional-write discipline: read the
// current body and ETag, write the extended body with If-Match, retry on
// precondition failure. A creation race is resolved with If-None-Match; the
// loser falls back to the read-modify-write path on the next iteration.
func (s *S3Store) AppendLine(ctx context.Context, key, line string) error {
	line = terminateLine(line)

	for attempt := 1; attempt <= s.appendRetries; attempt++ {
		current, etag, err := s.getWithETag(ctx, key)
		switch {
		case errors.Is(err, ErrNotFound):
			err = s.putConditional(ctx, key, []byte(line), "", true)
		case err != nil:
			return err
		default:
			err = s.putConditional(ctx, key, append(current, line...), etag, false)
		}

		if err == nil {
			return nil
		}
		if !errors.Is(err, errPrecondition) {
			return err
		}
		if s.conflictHook != nil {
			s.conflictHook()
		}
		if attempt < s.appendRetries {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return errkind.Wrap(errkind.Timeout, err)
			}
		}
	}
	return errkind.Newf(errkind.Conflict, "append to %q: retries exhausted after %d attempts", key, s.appendRetries)
}

func (s *S3Store) putConditional(ctx context.Context, key string, data []byte, etag string, ifAbsent bool) error {
	input := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	}
	if ifAbsent {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}
	if _, err := s.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailure(err) {
			return errPrecondition
		}
		return errkind.Wrap(errkind.Storage, fmt.Errorf("s3 conditional put %q: %w", key, err))
	}
	return nil
}

// List returns all keys under a prefix.
func (s *S3Store) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errkind.Wrap(errkind.Storage, fmt.Errorf("s3 list %q: %w", prefix, err))
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

// Head checks object existence.
func (s *S3Store) Head(ctx context.Context, key string) error {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err == nil {
		return nil
	}
	if isNotFound(err) {
		return ErrNotFound
	}
	return errkind.Wrap(errkind.Storage, fmt.Errorf("s3 head object %q: %w", key, err))
}

func sleepBackoff(ctx context.Context, attempt int) error {
	return backoff.Sleep(ctx, appendBackoff.Delay(attempt))
}

func isNotFound(err error) bool {
	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &notFound) || errors.As(err, &noSuchKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return strings.EqualFold(code, "NotFound") || strings.EqualFold(code, "NoSuchKey")
	}
	return false
}

func isPreconditionFailure(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return strings.EqualFold(code, "PreconditionFailed") ||
			strings.EqualFold(code, "ConditionalRequestConflict")
	}
	return false
}
