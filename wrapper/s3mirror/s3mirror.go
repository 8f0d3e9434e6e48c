// Package s3mirror mirrors entity blobs to S3 as a durable off-box
// replica: best-effort on write, fallback-and-repopulate on local miss.
// Grounded on danielloader-oci-pull-through's internal/cache/s3.go (S3
// client wiring, conditional-put-as-idempotent-write) and
// internal/stream/tee.go (tee-while-streaming, adapted here as
// tee-while-saving: the local save and the S3 upload share one
// io.TeeReader over the body instead of racing two independent copies).
package s3mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// BlobStore is the subset of httpcachestore.EntityStore this wrapper
// decorates; it is always the local, authoritative store.
type BlobStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) bool
	Path(key string) (string, error)
}

// Store mirrors entity blobs to S3 around a local BlobStore. Local reads
// and writes are authoritative and always succeed or fail on their own
// terms; S3 is a best-effort replica consulted only when the local copy is
// missing.
type Store struct {
	next   BlobStore
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// Option configures New.
type Option func(*[]func(*awsconfig.LoadOptions) error)

// WithStaticCredentials pins the S3 client to a fixed access key/secret pair
// instead of the SDK's default credential chain, for deployments that mirror
// to a bucket in an account separate from the one their ambient credentials
// resolve to.
func WithStaticCredentials(accessKeyID, secretAccessKey, sessionToken string) Option {
	return func(opts *[]func(*awsconfig.LoadOptions) error) {
		provider := credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, sessionToken)
		*opts = append(*opts, awsconfig.WithCredentialsProvider(provider))
	}
}

// New opens an S3 client via the standard AWS SDK default credential chain
// (env vars, shared config, instance profile), or the static credentials
// supplied via WithStaticCredentials, and wraps next with a mirror into
// bucket/prefix.
func New(ctx context.Context, next BlobStore, bucket, prefix string, opts ...Option) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	for _, opt := range opts {
		opt(&loadOpts)
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("s3mirror: loading AWS config: %w", err)
	}
	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}
	return &Store{
		next:   next,
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
		logger: slog.Default(),
	}, nil
}

func (s *Store) fullKey(key string) string {
	return s.prefix + key
}

// safeWriter discards writes after the first failure so an errored S3
// upload never fails the local save path it tees from. It does not guard
// against a stalled upload: the pipe is unbuffered, so the tee waits until
// the upload reads or returns.
type safeWriter struct {
	w      io.Writer
	failed atomic.Bool
}

func (w *safeWriter) Write(p []byte) (int, error) {
	if w.failed.Load() {
		return len(p), nil
	}
	if _, err := w.w.Write(p); err != nil {
		w.failed.Store(true)
	}
	return len(p), nil
}

// Save reads data through a tee that feeds a concurrent S3 upload, waits
// for the upload to return, then writes the bytes to the local store. The
// S3 upload is best-effort: a failure is logged, never returned, since the
// local write is what Save's caller depends on.
func (s *Store) Save(ctx context.Context, key string, data []byte) error {
	pr, pw := io.Pipe()
	sw := &safeWriter{w: pw}
	tee := io.TeeReader(bytes.NewReader(data), sw)

	uploadDone := make(chan struct{})
	go func() {
		defer close(uploadDone)
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      awsString(s.bucket),
			Key:         awsString(s.fullKey(key)),
			Body:        pr,
			IfNoneMatch: awsString("*"),
		})
		if err != nil && !isConditionalConflict(err) {
			s.logger.Warn("s3mirror: upload failed", "key", key, "err", err)
		}
		io.Copy(io.Discard, pr) //nolint:errcheck
	}()

	localBytes, err := io.ReadAll(tee)
	pw.Close()
	<-uploadDone
	if err != nil {
		return fmt.Errorf("s3mirror: draining tee: %w", err)
	}
	return s.next.Save(ctx, key, localBytes)
}

// Load reads from the local store first. On a local miss it falls back to
// S3 and, if found there, repopulates the local store before returning.
func (s *Store) Load(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := s.next.Load(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return data, true, nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awsString(s.bucket),
		Key:    awsString(s.fullKey(key)),
	})
	if err != nil {
		return nil, false, nil
	}
	defer out.Body.Close()

	data, err = io.ReadAll(out.Body)
	if err != nil {
		return nil, false, fmt.Errorf("s3mirror: reading %s from S3: %w", key, err)
	}

	if saveErr := s.next.Save(ctx, key, data); saveErr != nil {
		s.logger.Warn("s3mirror: failed repopulating local store", "key", key, "err", saveErr)
	}
	return data, true, nil
}

// Delete removes the local copy and best-effort removes the S3 replica.
func (s *Store) Delete(ctx context.Context, key string) bool {
	removed := s.next.Delete(ctx, key)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awsString(s.bucket),
		Key:    awsString(s.fullKey(key)),
	})
	if err != nil {
		s.logger.Warn("s3mirror: S3 delete failed", "key", key, "err", err)
	}
	return removed
}

func (s *Store) Path(key string) (string, error) {
	return s.next.Path(key)
}

// isConditionalConflict reports whether err is S3's "object already
// exists" response to a conditional PUT, which this package treats as a
// successful no-op since entity blobs are content-addressed (I4).
func isConditionalConflict(err error) bool {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		return re.HTTPStatusCode() == http.StatusPreconditionFailed ||
			re.HTTPStatusCode() == http.StatusConflict
	}
	return false
}

func awsString(s string) *string { return &s }
