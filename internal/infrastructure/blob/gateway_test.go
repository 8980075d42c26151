package blob

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/eslsoft/deeplisten/internal/entity"
)

func newTestGateway(t *testing.T, policies []BucketPolicy, fallback string) (*Gateway, *BadgerBackend) {
	t.Helper()
	signer, err := NewURLSigner("secret", "http://localhost:8080")
	require.NoError(t, err)
	backend, err := OpenBadger(BadgerConfig{InMemory: true}, signer)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGateway(backend, policies, fallback, logger), backend
}

func TestGateway_UploadCreatesMissingBucket(t *testing.T) {
	ctx := context.Background()
	gw, backend := newTestGateway(t, []BucketPolicy{{Name: "exports", MaxObjectBytes: 1024}}, "")

	ref, err := gw.Upload(ctx, "exports", "u1/job.tar.gz", []byte("payload"))
	require.NoError(t, err)
	require.Equal(t, entity.ObjectRef{Bucket: "exports", Key: "u1/job.tar.gz"}, ref)

	limit, err := backend.BucketLimit(ctx, "exports")
	require.NoError(t, err)
	require.EqualValues(t, 1024, limit)

	data, err := gw.Download(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestGateway_TooLargeFallsBack(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, []BucketPolicy{
		{Name: "exports", MaxObjectBytes: 8},
		{Name: "exports-large", MaxObjectBytes: 1 << 20},
	}, "exports-large")

	payload := []byte(strings.Repeat("x", 64))
	ref, err := gw.Upload(ctx, "exports", "u1/big.tar.gz", payload)
	require.NoError(t, err)
	require.Equal(t, "exports-large", ref.Bucket)

	data, err := gw.Download(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, payload, data)

	_, err = gw.Download(ctx, entity.ObjectRef{Bucket: "exports", Key: "u1/big.tar.gz"})
	require.ErrorIs(t, err, ErrBucketNotFound)
}

func TestGateway_BackendCeilingFallsBackAndResizes(t *testing.T) {
	ctx := context.Background()
	gw, backend := newTestGateway(t, nil, "exports-large")

	require.NoError(t, backend.CreateBucket(ctx, "exports", 4))
	require.NoError(t, backend.CreateBucket(ctx, "exports-large", 16))

	payload := []byte(strings.Repeat("y", 32))
	ref, err := gw.Upload(ctx, "exports", "k", payload)
	require.NoError(t, err)
	require.Equal(t, "exports-large", ref.Bucket)

	limit, err := backend.BucketLimit(ctx, "exports-large")
	require.NoError(t, err)
	require.EqualValues(t, 32, limit)
}

func TestGateway_TooLargeWithoutFallback(t *testing.T) {
	gw, _ := newTestGateway(t, []BucketPolicy{{Name: "media", MaxObjectBytes: 2}}, "")

	_, err := gw.Upload(context.Background(), "media", "a.mp3", []byte("abc"))
	require.ErrorIs(t, err, ErrObjectTooLarge)
}

func TestGateway_DownloadMissingObject(t *testing.T) {
	ctx := context.Background()
	gw, backend := newTestGateway(t, nil, "")
	require.NoError(t, backend.CreateBucket(ctx, "media", 0))

	_, err := gw.Download(ctx, entity.ObjectRef{Bucket: "media", Key: "nope"})
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestGateway_DeleteRemovesObject(t *testing.T) {
	ctx := context.Background()
	gw, _ := newTestGateway(t, nil, "")

	ref, err := gw.Upload(ctx, "media", "u1/m1/a.mp3", []byte("mp3"))
	require.NoError(t, err)
	require.NoError(t, gw.Delete(ctx, ref))

	_, err = gw.Download(ctx, ref)
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.NoError(t, gw.Delete(ctx, ref))
}

func TestURLSigner_RoundTrip(t *testing.T) {
	signer, err := NewURLSigner("secret", "http://example.test/")
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	signer.now = func() time.Time { return now }

	raw := signer.Sign("exports", "exports/u1/j 1.tar.gz", time.Minute)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	require.Equal(t, "/blobs/exports/exports/u1/j 1.tar.gz", u.Path)

	q := u.Query()
	require.NoError(t, signer.Verify("exports", "exports/u1/j 1.tar.gz", q.Get("expires"), q.Get("sig")))
	require.ErrorIs(t, signer.Verify("exports", "other", q.Get("expires"), q.Get("sig")), ErrSignatureInvalid)

	now = now.Add(2 * time.Minute)
	require.ErrorIs(t, signer.Verify("exports", "exports/u1/j 1.tar.gz", q.Get("expires"), q.Get("sig")), ErrSignatureExpired)
}
