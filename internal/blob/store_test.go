package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/url"
	"regexp"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webinfinitygen/internal/apperr"
)

type putCall struct {
	object string
	body   []byte
	opts   minio.PutObjectOptions
}

type fakeObjects struct {
	exists      bool
	policy      string
	made        int
	puts        []putCall
	removed     []string
	failPuts    int
	existsErr   error
	presignedAt time.Duration
}

func (f *fakeObjects) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeObjects) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	f.made++
	f.exists = true
	return nil
}

func (f *fakeObjects) SetBucketPolicy(_ context.Context, _ string, policy string) error {
	f.policy = policy
	return nil
}

func (f *fakeObjects) PutObject(_ context.Context, _ string, object string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.failPuts > 0 {
		f.failPuts--
		return minio.UploadInfo{}, errors.New("connection reset")
	}
	body, _ := io.ReadAll(r)
	f.puts = append(f.puts, putCall{object: object, body: body, opts: opts})
	return minio.UploadInfo{Key: object, Size: int64(len(body))}, nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, _ string, object string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, object)
	return nil
}

func (f *fakeObjects) PresignedGetObject(_ context.Context, bucket, object string, expires time.Duration, _ url.Values) (*url.URL, error) {
	f.presignedAt = expires
	return url.Parse("http://minio:9000/" + bucket + "/" + object + "?X-Amz-Signature=abc")
}

var pngBytes, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

func newTestStore(api *fakeObjects) *Store {
	return New(api, Config{
		Bucket:      "webinfinitygen",
		PublicHost:  "localhost",
		PublicPort:  9000,
		BaseBackoff: time.Millisecond,
	})
}

func TestEnsureBucket_CreatesOnceWithPolicy(t *testing.T) {
	api := &fakeObjects{}
	s := newTestStore(api)

	require.NoError(t, s.EnsureBucket(context.Background()))
	require.NoError(t, s.EnsureBucket(context.Background()))

	assert.Equal(t, 1, api.made)
	assert.Contains(t, api.policy, "arn:aws:s3:::webinfinitygen/*")
}

func TestEnsureBucket_ExistingBucketKeepsPolicy(t *testing.T) {
	api := &fakeObjects{exists: true}
	require.NoError(t, newTestStore(api).EnsureBucket(context.Background()))
	assert.Zero(t, api.made)
	assert.Empty(t, api.policy)
}

func TestEnsureBucket_BackendDown(t *testing.T) {
	api := &fakeObjects{existsErr: errors.New("dial tcp: refused")}
	err := newTestStore(api).EnsureBucket(context.Background())
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
}

func TestPutImageDataURI(t *testing.T) {
	api := &fakeObjects{exists: true}
	s := newTestStore(api)

	obj, err := s.PutImageDataURI(context.Background(), "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngBytes), "")
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^image_\d+_[0-9a-f]{9}\.png$`), obj.ObjectName)
	assert.Equal(t, "http://localhost:9000/webinfinitygen/"+obj.ObjectName, obj.URL)
	require.Len(t, api.puts, 1)
	assert.Equal(t, pngBytes, api.puts[0].body)
	assert.Equal(t, "image/png", api.puts[0].opts.ContentType)
	assert.Equal(t, "max-age=31536000", api.puts[0].opts.CacheControl)
}

func TestPutImage_DetectsMimeFromBytes(t *testing.T) {
	api := &fakeObjects{exists: true}
	obj, err := newTestStore(api).PutImage(context.Background(), pngBytes, "", "cover.png")
	require.NoError(t, err)
	assert.Equal(t, "cover.png", obj.ObjectName)
	assert.Equal(t, "image/png", api.puts[0].opts.ContentType)
}

func TestPutImage_RejectsNonImage(t *testing.T) {
	_, err := newTestStore(&fakeObjects{}).PutImage(context.Background(), []byte("plain text"), "", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = newTestStore(&fakeObjects{}).PutImageDataURI(context.Background(), "data:image/png;base64,!!!", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestPutJSON(t *testing.T) {
	api := &fakeObjects{exists: true}
	s := newTestStore(api)

	obj, err := s.PutJSON(context.Background(), map[string]string{"html": "<div/>"}, "")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^game_\d+_[0-9a-f]{9}\.json$`), obj.ObjectName)
	assert.JSONEq(t, `{"html":"<div/>"}`, string(api.puts[0].body))
	assert.Equal(t, "application/json", api.puts[0].opts.ContentType)

	_, err = s.PutJSON(context.Background(), `{"already":"encoded"}`, "bundle.json")
	require.NoError(t, err)
	assert.Equal(t, `{"already":"encoded"}`, string(api.puts[1].body))
}

func TestPut_RetriesThenSucceeds(t *testing.T) {
	api := &fakeObjects{exists: true, failPuts: 2}
	_, err := newTestStore(api).PutJSON(context.Background(), "{}", "x.json")
	require.NoError(t, err)
	assert.Len(t, api.puts, 1)
}

func TestPut_GivesUpAsStorageUnavailable(t *testing.T) {
	api := &fakeObjects{exists: true, failPuts: 5}
	_, err := newTestStore(api).PutJSON(context.Background(), "{}", "x.json")
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	assert.Empty(t, api.puts)
	assert.Equal(t, 2, api.failPuts)
}

func TestDeleteAndNameValidation(t *testing.T) {
	api := &fakeObjects{exists: true}
	s := newTestStore(api)

	require.NoError(t, s.Delete(context.Background(), "image_1_abc.png"))
	assert.Equal(t, []string{"image_1_abc.png"}, api.removed)

	for _, bad := range []string{"", "/etc/passwd", "../secret"} {
		assert.ErrorIs(t, s.Delete(context.Background(), bad), apperr.ErrInvalidArgument, bad)
	}
}

func TestPresign(t *testing.T) {
	api := &fakeObjects{exists: true}
	s := newTestStore(api)

	u, err := s.Presign(context.Background(), "image_1.png", 0)
	require.NoError(t, err)
	assert.Contains(t, u, "X-Amz-Signature")
	assert.Equal(t, DefaultPresignTTL, api.presignedAt)

	_, err = s.Presign(context.Background(), "image_1.png", 8*24*time.Hour)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestDecodeDataURI(t *testing.T) {
	mime, data, err := DecodeDataURI("data:image/gif;base64,R0lGODlh")
	require.NoError(t, err)
	assert.Equal(t, "image/gif", mime)
	assert.Equal(t, []byte("GIF89a"), data)

	mime, data, err = DecodeDataURI("R0lGODlh")
	require.NoError(t, err)
	assert.Empty(t, mime)
	assert.Equal(t, []byte("GIF89a"), data)

	_, _, err = DecodeDataURI("data:image/png,notbase64")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
