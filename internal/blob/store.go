// Package blob stores generated images and game bundles in an S3 compatible
// bucket and hands back URLs that chat messages can reference.
package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"

	"webinfinitygen/internal/apperr"
)

const (
	cacheControl      = "max-age=31536000"
	contentTypeJSON   = "application/json"
	DefaultPresignTTL = 7 * 24 * time.Hour
	maxPresignTTL     = 7 * 24 * time.Hour
)

// objectAPI is the part of *minio.Client the store uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	SetBucketPolicy(ctx context.Context, bucket, policy string) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params url.Values) (*url.URL, error)
}

type Config struct {
	Bucket       string
	PublicScheme string
	PublicHost   string
	PublicPort   int
	MaxAttempts  int
	BaseBackoff  time.Duration
}

// Object identifies a stored payload.
type Object struct {
	URL        string `json:"url"`
	ObjectName string `json:"objectName"`
}

type Store struct {
	api objectAPI
	cfg Config
	now func() time.Time
}

func New(api objectAPI, cfg Config) *Store {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 200 * time.Millisecond
	}
	if cfg.PublicScheme == "" {
		cfg.PublicScheme = "http"
	}
	return &Store{api: api, cfg: cfg, now: time.Now}
}

// EnsureBucket creates the bucket when missing and opens it for anonymous
// reads. An existing bucket keeps whatever policy it has.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("%w: check bucket failed: %v", apperr.ErrStorageUnavailable, err)
	}
	if exists {
		return nil
	}

	if err := s.api.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		// Another instance may have won the race.
		if exists, checkErr := s.api.BucketExists(ctx, s.cfg.Bucket); checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("%w: create bucket failed: %v", apperr.ErrStorageUnavailable, err)
	}
	if err := s.api.SetBucketPolicy(ctx, s.cfg.Bucket, publicReadPolicy(s.cfg.Bucket)); err != nil {
		return fmt.Errorf("%w: set bucket policy failed: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// PutImageDataURI stores a data:<mime>;base64,<data> URI. A bare base64 string
// is accepted too and its type is sniffed from the decoded bytes.
func (s *Store) PutImageDataURI(ctx context.Context, dataURI, name string) (*Object, error) {
	mime, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return nil, err
	}
	return s.PutImage(ctx, data, mime, name)
}

// PutImage stores raw image bytes. An empty mime is detected from content.
func (s *Store) PutImage(ctx context.Context, data []byte, mime, name string) (*Object, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image payload", apperr.ErrInvalidArgument)
	}
	detected := mimetype.Detect(data)
	if mime == "" {
		mime = detected.String()
	}
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	if !strings.HasPrefix(mime, "image/") {
		return nil, fmt.Errorf("%w: unsupported image type %q", apperr.ErrInvalidArgument, mime)
	}

	if name == "" {
		name = s.generateName("image", imageExtension(mime, detected))
	}
	if err := validateObjectName(name); err != nil {
		return nil, err
	}

	if err := s.put(ctx, name, data, mime); err != nil {
		return nil, err
	}
	return &Object{URL: s.PublicURL(name), ObjectName: name}, nil
}

// PutJSON stores a JSON document. Strings, byte slices and raw messages are
// stored as given; anything else is marshaled.
func (s *Store) PutJSON(ctx context.Context, value any, name string) (*Object, error) {
	var payload []byte
	switch v := value.(type) {
	case nil:
		return nil, fmt.Errorf("%w: empty json payload", apperr.ErrInvalidArgument)
	case string:
		payload = []byte(v)
	case []byte:
		payload = v
	case json.RawMessage:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal json payload failed: %v", apperr.ErrInvalidArgument, err)
		}
		payload = b
	}
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty json payload", apperr.ErrInvalidArgument)
	}

	if name == "" {
		name = s.generateName("game", ".json")
	}
	if err := validateObjectName(name); err != nil {
		return nil, err
	}

	if err := s.put(ctx, name, payload, contentTypeJSON); err != nil {
		return nil, err
	}
	return &Object{URL: s.PublicURL(name), ObjectName: name}, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := validateObjectName(name); err != nil {
		return err
	}
	return s.retry(ctx, "remove object", func(ctx context.Context) error {
		return s.api.RemoveObject(ctx, s.cfg.Bucket, name, minio.RemoveObjectOptions{})
	})
}

// Presign returns a time limited GET url. A zero ttl means DefaultPresignTTL.
func (s *Store) Presign(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if err := validateObjectName(name); err != nil {
		return "", err
	}
	if ttl == 0 {
		ttl = DefaultPresignTTL
	}
	if ttl < time.Second || ttl > maxPresignTTL {
		return "", fmt.Errorf("%w: presign ttl must be between 1s and %s", apperr.ErrInvalidArgument, maxPresignTTL)
	}

	u, err := s.api.PresignedGetObject(ctx, s.cfg.Bucket, name, ttl, nil)
	if err != nil {
		return "", fmt.Errorf("%w: presign failed: %v", apperr.ErrStorageUnavailable, err)
	}
	return u.String(), nil
}

// Ping reports whether the bucket can be reached.
func (s *Store) Ping(ctx context.Context) error {
	if _, err := s.api.BucketExists(ctx, s.cfg.Bucket); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) PublicURL(name string) string {
	return fmt.Sprintf("%s://%s:%d/%s/%s", s.cfg.PublicScheme, s.cfg.PublicHost, s.cfg.PublicPort, s.cfg.Bucket, name)
}

func (s *Store) put(ctx context.Context, name string, data []byte, contentType string) error {
	return s.retry(ctx, "put object", func(ctx context.Context) error {
		_, err := s.api.PutObject(ctx, s.cfg.Bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType:  contentType,
			CacheControl: cacheControl,
		})
		return err
	})
}

// retry runs fn up to MaxAttempts times with exponential backoff.
func (s *Store) retry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var err error
	backoff := s.cfg.BaseBackoff
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == s.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s canceled: %v", apperr.ErrStorageUnavailable, op, errors.Join(err, ctx.Err()))
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %s failed after %d attempts: %v", apperr.ErrStorageUnavailable, op, s.cfg.MaxAttempts, err)
}

func (s *Store) generateName(prefix, ext string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("%s_%d_%s%s", prefix, s.now().UnixMilli(), suffix, ext)
}

func imageExtension(mime string, detected *mimetype.MIME) string {
	switch mime {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if m := mimetype.Lookup(mime); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if detected != nil && detected.Extension() != "" {
		return detected.Extension()
	}
	return ".img"
}

func validateObjectName(name string) error {
	if name == "" || strings.HasPrefix(name, "/") || strings.Contains(name, "..") {
		return fmt.Errorf("%w: invalid object name %q", apperr.ErrInvalidArgument, name)
	}
	return nil
}

// DecodeDataURI splits a data URI into its mime type and decoded bytes. Input
// without a data: prefix is decoded as plain base64 with an empty mime.
func DecodeDataURI(s string) (string, []byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil, fmt.Errorf("%w: empty image data", apperr.ErrInvalidArgument)
	}

	mime, payload := "", s
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		header, body, ok := strings.Cut(s[len("data:"):], ",")
		if !ok || !strings.HasSuffix(strings.ToLower(header), ";base64") {
			return "", nil, fmt.Errorf("%w: malformed data uri", apperr.ErrInvalidArgument)
		}
		mime = header[:len(header)-len(";base64")]
		payload = body
	}

	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return "", nil, fmt.Errorf("%w: decode base64 failed: %v", apperr.ErrInvalidArgument, err)
	}
	return mime, data, nil
}
