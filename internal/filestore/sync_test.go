package filestore_test

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/filestore"
	"github.com/koustreak/s3storage/internal/settings"
)

func syncedOverrides() settings.Overrides {
	return settings.Overrides{
		"aws_s3_bucket_auth":         false,
		"aws_s3_max_age_seconds":     9999,
		"aws_s3_content_disposition": func(name string) string { return "attachment; filename=" + name },
		"aws_s3_content_language":    "eo",
		"aws_s3_metadata": map[string]any{
			"foo": "bar",
			"baz": func(name string) string { return name },
		},
		"aws_s3_reduced_redundancy": true,
		"aws_s3_encrypt_key":        true,
	}
}

func TestStorage_SyncMeta(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	save(t, f.storage(t, settings.VariantDefault, nil), "foo.txt", "foo")

	st := f.storage(t, settings.VariantDefault, syncedOverrides())
	n, err := st.SyncMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	meta, err := st.Meta(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "public,max-age=9999", meta.CacheControl)
	assert.Equal(t, "attachment; filename=foo.txt", meta.ContentDisposition)
	assert.Equal(t, "eo", meta.ContentLanguage)
	assert.Equal(t, map[string]string{"foo": "bar", "baz": "foo.txt"}, meta.Tags)
	assert.Equal(t, filestore.StorageClassReducedRedundancy, meta.StorageClass)
	assert.Equal(t, filestore.SSEAES256, meta.ServerSideEncryption)
	assert.Equal(t, filestore.ACLPublicRead, meta.ACL)

	// Content is unchanged and now publicly readable.
	assert.Equal(t, "foo", read(t, st, "foo.txt"))
	u, err := st.URL(ctx, "foo.txt")
	require.NoError(t, err)
	resp, body := fetch(t, u)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "foo", body)
}

func TestStorage_SyncMetaKeepsGzip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	content := strings.Repeat("foo", 1000)
	save(t, f.storage(t, settings.VariantDefault, nil), "foo.txt", content)

	st := f.storage(t, settings.VariantDefault, syncedOverrides())
	require.NoError(t, st.SyncMetaFile(ctx, "foo.txt"))

	meta, err := st.Meta(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, filestore.EncodingGzip, meta.ContentEncoding)

	size, err := st.Size(ctx, "foo.txt")
	require.NoError(t, err)
	assert.EqualValues(t, len(content), size)
	assert.Equal(t, content, read(t, st, "foo.txt"))
}

func TestStorage_SyncMetaIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, syncedOverrides())
	save(t, st, "foo.txt", "foo")

	before, err := st.Meta(ctx, "foo.txt")
	require.NoError(t, err)
	require.NoError(t, st.SyncMetaFile(ctx, "foo.txt"))
	after, err := st.Meta(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestStorage_SyncMetaWalksTree(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantStatic, nil)
	for _, name := range []string{"a.txt", "css/site.css", "css/vendor/lib.css", "js/app.js"} {
		save(t, st, name, "x")
	}

	n, err := st.SyncMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStorage_SyncMetaMissing(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	err := st.SyncMetaFile(context.Background(), "missing.txt")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestStorage_SyncMetaCancelled(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	save(t, st, "foo.txt", "foo")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := st.SyncMeta(ctx)
	require.Error(t, err)
	assert.True(t, errs.IsTimeout(err))
	assert.Zero(t, n)
}

func TestStorage_SyncMetaStopsOnFailure(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	save(t, st, "a.txt", "a")
	save(t, st, "b.txt", "b")

	f.store.InjectError("copy", errs.New(errs.ErrKindPermissionDenied, "denied"))
	n, err := st.SyncMeta(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsPermissionDenied(err))
	assert.Zero(t, n)
}
