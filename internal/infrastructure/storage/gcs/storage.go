package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/vikram-trellis/corgi-hack/internal/core/domain"
	"github.com/vikram-trellis/corgi-hack/internal/infrastructure/resilience"
)

// Storage keeps document bytes in one Cloud Storage bucket. Objects are addressed as
// gs://<bucket>/<key>, or <publicBaseURL>/<key> when a public base URL is configured.
type Storage struct {
	client        *storage.Client
	bucket        string
	publicBaseURL string
	exec          *resilience.Executor
}

func New(ctx context.Context, bucket, publicBaseURL string, exec *resilience.Executor, opts ...option.ClientOption) (*Storage, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &Storage{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		exec:          exec,
	}, nil
}

func (s *Storage) Close() error { return s.client.Close() }

// Put never overwrites: keys are unique, so an existing object means a key collision.
func (s *Storage) Put(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	writer := s.client.Bucket(s.bucket).Object(key).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, data); err != nil {
		_ = writer.Close()
		return "", s.wrap("gcs put", err)
	}
	if err := writer.Close(); err != nil {
		return "", s.wrap("gcs put", err)
	}
	return s.urlFor(key), nil
}

func (s *Storage) Open(ctx context.Context, url string) (io.ReadCloser, error) {
	name, err := s.objectName(url)
	if err != nil {
		return nil, err
	}
	reader, err := resilience.Call(ctx, s.exec, "gcs.open", func(ctx context.Context) (io.ReadCloser, error) {
		return s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	}, classifyGCSError)
	if err != nil {
		return nil, s.wrap("gcs open", err)
	}
	return reader, nil
}

// Delete is idempotent.
func (s *Storage) Delete(ctx context.Context, url string) error {
	name, err := s.objectName(url)
	if err != nil {
		return err
	}
	err = s.exec.Execute(ctx, "gcs.delete", func(ctx context.Context) error {
		err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return err
	}, classifyGCSError)
	if err != nil {
		return s.wrap("gcs delete", err)
	}
	return nil
}

func (s *Storage) urlFor(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return "gs://" + s.bucket + "/" + key
}

func (s *Storage) objectName(url string) (string, error) {
	prefixes := []string{"gs://" + s.bucket + "/"}
	if s.publicBaseURL != "" {
		prefixes = append(prefixes, s.publicBaseURL+"/")
	}
	for _, prefix := range prefixes {
		if name, ok := strings.CutPrefix(url, prefix); ok && name != "" {
			return name, nil
		}
	}
	return "", domain.WrapError(domain.ErrInvalidInput, "resolve object", fmt.Errorf("%s is not in bucket %s", url, s.bucket))
}

func (s *Storage) wrap(op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return domain.WrapError(domain.ErrNotFound, op, err)
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("object already exists: %w", err))
	}
	return resilience.WrapTemporary(op, err, classifyGCSError)
}

func classifyGCSError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err); ok {
		return class
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		retryable := gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500
		return resilience.ErrorClassification{Retryable: retryable, RecordFailure: retryable}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
}
