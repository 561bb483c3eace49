package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Options configure an S3Driver. Set once at construction, never mutated.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool

	// DefaultCharset labels text payloads that carry no charset of their own.
	DefaultCharset string

	// ContentTypes overrides the recorded content-type for slots whose name
	// carries the given extension-like suffix. Map keys include the dot.
	ContentTypes map[string]string
}

// S3Driver stores payloads as objects under bucket/prefix in an
// S3-compatible object store.
type S3Driver struct {
	client         *minio.Client
	bucket         string
	prefix         string
	region         string
	defaultCharset string
	contentTypes   map[string]string
	initOnce       sync.Once
	initErr        error
}

func NewS3Driver(opts S3Options) (*S3Driver, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("storage: s3 endpoint is required")
	}
	access := strings.TrimSpace(opts.AccessKey)
	secret := strings.TrimSpace(opts.SecretKey)
	if access == "" || secret == "" {
		return nil, errors.New("storage: s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("storage: s3 bucket is required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}
	charset := strings.TrimSpace(opts.DefaultCharset)
	if charset == "" {
		charset = DefaultCharset
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: opts.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init s3 client: %w", err)
	}

	return &S3Driver{
		client:         client,
		bucket:         bucket,
		prefix:         strings.Trim(strings.TrimSpace(opts.Prefix), "/"),
		region:         region,
		defaultCharset: charset,
		contentTypes:   opts.ContentTypes,
	}, nil
}

func (d *S3Driver) ensureBucket(ctx context.Context) error {
	d.initOnce.Do(func() {
		exists, err := d.client.BucketExists(ctx, d.bucket)
		if err != nil {
			d.initErr = err
			return
		}
		if exists {
			return
		}
		d.initErr = d.client.MakeBucket(ctx, d.bucket, minio.MakeBucketOptions{Region: d.region})
	})
	return d.initErr
}

func (d *S3Driver) objectName(key Key) string {
	if d.prefix == "" {
		return key.String()
	}
	return d.prefix + "/" + key.String()
}

// contentType picks the recorded content-type: configured suffix override
// first, then the payload variant's default.
func (d *S3Driver) contentType(key Key, payload Payload) string {
	if suffix := key.SlotSuffix(); suffix != "" {
		if ct, ok := d.contentTypes[suffix]; ok {
			return ct
		}
	}
	if payload.Kind == PayloadText {
		cs := payload.Charset
		if cs == "" {
			cs = d.defaultCharset
		}
		return "text/plain; charset=" + cs
	}
	return "application/octet-stream"
}

func (d *S3Driver) Write(ctx context.Context, key Key, payload Payload) error {
	if err := d.ensureBucket(ctx); err != nil {
		return &WriteError{Key: key, Err: fmt.Errorf("ensure bucket: %w", err)}
	}
	data := payload.Data
	if data == nil {
		data = []byte{}
	}
	_, err := d.client.PutObject(ctx, d.bucket, d.objectName(key),
		bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: d.contentType(key, payload),
		})
	if err != nil {
		return &WriteError{Key: key, Err: err}
	}
	return nil
}

func (d *S3Driver) Read(ctx context.Context, key Key) (Payload, error) {
	if err := d.ensureBucket(ctx); err != nil {
		return Payload{}, &ReadError{Key: key, Err: fmt.Errorf("ensure bucket: %w", err)}
	}
	obj, err := d.client.GetObject(ctx, d.bucket, d.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return Payload{}, &ReadError{Key: key, Err: err}
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return Payload{}, ErrNotFound
		}
		return Payload{}, &ReadError{Key: key, Err: err}
	}
	return Bytes(data), nil
}

// Exists issues a metadata-only StatObject probe, never a full fetch.
func (d *S3Driver) Exists(ctx context.Context, key Key) (bool, error) {
	if err := d.ensureBucket(ctx); err != nil {
		return false, &ReadError{Key: key, Err: fmt.Errorf("ensure bucket: %w", err)}
	}
	_, err := d.client.StatObject(ctx, d.bucket, d.objectName(key), minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return false, nil
		}
		return false, &ReadError{Key: key, Err: err}
	}
	return true, nil
}

func (d *S3Driver) List(ctx context.Context, runID, stepID string) ([]string, error) {
	if err := checkIdentifier("run", runID); err != nil {
		return nil, err
	}
	if err := checkIdentifier("step", stepID); err != nil {
		return nil, err
	}
	stepKey := Key{RunID: runID, StepID: stepID}
	if err := d.ensureBucket(ctx); err != nil {
		return nil, &ReadError{Key: stepKey, Err: fmt.Errorf("ensure bucket: %w", err)}
	}

	prefix := d.objectName(stepKey) // trailing slash from the empty slot segment
	names := make([]string, 0, 8)
	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, &ReadError{Key: stepKey, Err: obj.Err}
		}
		if obj.Key == "" {
			continue
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

// Location renders the s3:// URL for key.
func (d *S3Driver) Location(key Key) string {
	return fmt.Sprintf("s3://%s/%s", d.bucket, d.objectName(key))
}

// PresignedGet returns a time-limited download URL for key, for handing a
// payload location to systems without bucket credentials.
func (d *S3Driver) PresignedGet(ctx context.Context, key Key, expiry time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, d.bucket, d.objectName(key), expiry, nil)
	if err != nil {
		return "", &ReadError{Key: key, Err: err}
	}
	return u.String(), nil
}

// isNoSuchKey distinguishes "object missing" from transport, auth, and
// throttling failures so callers can branch on upstream-not-ready.
func isNoSuchKey(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NoSuchBucket"
}
