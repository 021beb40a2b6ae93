package filestore_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/filestore"
	"github.com/koustreak/s3storage/internal/filestore/memstore"
	"github.com/koustreak/s3storage/internal/settings"
)

// fixture is a memstore bucket served over HTTP.
type fixture struct {
	store *memstore.Store
	srv   *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New(memstore.Config{Bucket: "bucket"})
	srv := httptest.NewServer(store.Handler())
	t.Cleanup(srv.Close)
	store.SetBaseURL(srv.URL)
	return &fixture{store: store, srv: srv}
}

// storage builds an adapter over the fixture. Plain public URLs point at
// the fixture server.
func (f *fixture) storage(t *testing.T, variant settings.Variant, kw settings.Overrides) *filestore.Storage {
	t.Helper()
	global := settings.Values{
		settings.OptBucketName:      "bucket",
		settings.OptEndpointURL:     f.srv.URL,
		settings.OptAddressingStyle: settings.AddressingPath,
	}
	s, err := settings.Resolve(global, variant, kw)
	require.NoError(t, err)

	st, err := filestore.New(s, f.store, nil)
	require.NoError(t, err)
	return st
}

func save(t *testing.T, st *filestore.Storage, name, content string) string {
	t.Helper()
	got, err := st.Save(context.Background(), name, strings.NewReader(content))
	require.NoError(t, err)
	return got
}

func read(t *testing.T, st *filestore.Storage, name string) string {
	t.Helper()
	f, err := st.Open(context.Background(), name)
	require.NoError(t, err)
	defer f.Close()
	b, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(b)
}

func fetch(t *testing.T, raw string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(raw)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestNew_Errors(t *testing.T) {
	_, err := filestore.New(settings.Settings{}, nil, nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))

	_, err = filestore.New(settings.Settings{AddressingStyle: "sideways"}, memstore.New(memstore.Config{}), nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))

	_, err = filestore.New(settings.Settings{
		AddressingStyle: settings.AddressingAuto,
		Metadata:        map[string]settings.Value{settings.ReservedTag: settings.Literal("user-value")},
	}, memstore.New(memstore.Config{}), nil)
	require.Error(t, err)
	assert.True(t, errs.IsConfiguration(err))
}

func TestStorage_SaveOpen(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	name := save(t, st, "foo.txt", "foo")
	assert.Equal(t, "foo.txt", name)
	assert.Equal(t, "foo", read(t, st, "foo.txt"))

	size, err := st.Size(context.Background(), "foo.txt")
	require.NoError(t, err)
	assert.EqualValues(t, 3, size)

	meta, err := st.Meta(context.Background(), "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.Empty(t, meta.ContentEncoding)
}

func TestStorage_SaveOpenGzip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	content := strings.Repeat("foo", 1000)

	save(t, st, "foo.txt", content)
	assert.Equal(t, content, read(t, st, "foo.txt"))

	size, err := st.Size(ctx, "foo.txt")
	require.NoError(t, err)
	assert.EqualValues(t, len(content), size)

	meta, err := st.Meta(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, filestore.EncodingGzip, meta.ContentEncoding)
	assert.NotContains(t, meta.Tags, "uncompressed-size")

	raw, err := f.store.Head(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Less(t, raw.Size, int64(len(content)))

	file, err := st.Open(ctx, "foo.txt")
	require.NoError(t, err)
	defer file.Close()
	assert.EqualValues(t, len(content), file.Size())
}

func TestStorage_GzipDisabled(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, settings.Overrides{"aws_s3_gzip": false})
	content := strings.Repeat("foo", 1000)

	save(t, st, "foo.txt", content)
	meta, err := st.Meta(context.Background(), "foo.txt")
	require.NoError(t, err)
	assert.Empty(t, meta.ContentEncoding)
	assert.Equal(t, content, read(t, st, "foo.txt"))
}

func TestStorage_GenerateFilename(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	name, err := st.GenerateFilename("foo/./bar.txt")
	require.NoError(t, err)
	assert.Equal(t, "foo/bar.txt", name)

	assert.Equal(t, "foo/bar.txt", save(t, st, "foo/./bar.txt", "x"))
	assert.Equal(t, "x", read(t, st, "foo/bar.txt"))
}

func TestStorage_InvalidNames(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	_, err := st.Save(ctx, "../escape.txt", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidPath(err))

	_, err = st.Save(ctx, "", strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, errs.IsInvalidPath(err))

	_, _, err = st.Listdir(ctx, "../")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidPath(err))
}

func TestStorage_Exists(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	ok, err := st.Exists(ctx, "foo.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	save(t, st, "foo.txt", "foo")
	ok, err = st.Exists(ctx, "foo.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStorage_Delete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	save(t, st, "foo.txt", "foo")
	require.NoError(t, st.Delete(ctx, "foo.txt"))
	ok, err := st.Exists(ctx, "foo.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting again is not an error.
	require.NoError(t, st.Delete(ctx, "foo.txt"))
}

func TestStorage_Times(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	save(t, st, "foo.txt", "foo")

	modified, err := st.ModifiedTime(ctx, "foo.txt")
	require.NoError(t, err)
	accessed, err := st.AccessedTime(ctx, "foo.txt")
	require.NoError(t, err)
	created, err := st.CreatedTime(ctx, "foo.txt")
	require.NoError(t, err)

	assert.False(t, modified.IsZero())
	assert.Equal(t, modified, accessed)
	assert.Equal(t, modified, created)
}

func TestStorage_MissingFile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	_, err := st.Open(ctx, "missing.txt")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))

	_, err = st.Size(ctx, "missing.txt")
	assert.True(t, errs.IsNotFound(err))
	_, err = st.Meta(ctx, "missing.txt")
	assert.True(t, errs.IsNotFound(err))
	_, err = st.ModifiedTime(ctx, "missing.txt")
	assert.True(t, errs.IsNotFound(err))
}

func TestStorage_OpenWriteMode(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	save(t, st, "foo.txt", "foo")

	for _, flag := range []int{os.O_WRONLY, os.O_RDWR, os.O_RDONLY | os.O_APPEND, os.O_CREATE} {
		_, err := st.OpenFile(context.Background(), "foo.txt", flag)
		require.Error(t, err)
		assert.True(t, errs.IsInvalidMode(err))
	}
}

func TestFile_Reopen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	save(t, st, "foo.txt", "foo")

	file, err := st.Open(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, "foo.txt", file.Name())

	b, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "foo", string(b))
	require.NoError(t, file.Close())

	_, err = file.Read(make([]byte, 1))
	assert.True(t, errs.IsInvalidMode(err))

	require.NoError(t, file.Reopen(ctx))
	b, err = io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "foo", string(b))

	_, err = file.Seek(1, io.SeekStart)
	require.NoError(t, err)
	b, err = io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "oo", string(b))
}

func TestStorage_Listdir(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, settings.Overrides{"aws_s3_file_overwrite": true})
	save(t, st, "foo.txt", "foo")
	save(t, st, "bar/baz.txt", "baz")
	save(t, st, "bar/sub/qux.txt", "qux")

	for _, dir := range []string{"", "/"} {
		dirs, files, err := st.Listdir(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"bar"}, dirs, dir)
		assert.Equal(t, []string{"foo.txt"}, files, dir)
	}

	for _, dir := range []string{"bar", "/bar", "bar/"} {
		dirs, files, err := st.Listdir(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, []string{"sub"}, dirs, dir)
		assert.Equal(t, []string{"baz.txt"}, files, dir)
	}

	dirs, files, err := st.Listdir(ctx, "nowhere")
	require.NoError(t, err)
	assert.NotNil(t, dirs)
	assert.NotNil(t, files)
	assert.Empty(t, dirs)
	assert.Empty(t, files)
}

func TestStorage_AvailableName(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)

	first := save(t, st, "dir/foo.txt", "one")
	second := save(t, st, "dir/foo.txt", "two")
	assert.Equal(t, "dir/foo.txt", first)
	assert.Regexp(t, `^dir/foo_[0-9a-f]{7}\.txt$`, second)
	assert.Equal(t, "one", read(t, st, first))
	assert.Equal(t, "two", read(t, st, second))
}

func TestStorage_Overwrite(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, settings.Overrides{"aws_s3_file_overwrite": true})

	assert.Equal(t, "foo.txt", save(t, st, "foo.txt", "one"))
	assert.Equal(t, "foo.txt", save(t, st, "foo.txt", "two"))
	assert.Equal(t, "two", read(t, st, "foo.txt"))
	assert.Equal(t, 1, f.store.Len())
}

func TestStorage_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, settings.Overrides{"aws_s3_key_prefix": "/media/uploads/"})
	other := f.storage(t, settings.VariantDefault, nil)

	assert.Equal(t, "foo.txt", save(t, st, "foo.txt", "foo"))

	_, err := f.store.Head(ctx, "media/uploads/foo.txt")
	require.NoError(t, err)

	dirs, files, err := st.Listdir(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, dirs)
	assert.Equal(t, []string{"foo.txt"}, files)

	dirs, _, err = other.Listdir(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"media"}, dirs)

	u, err := st.URL(ctx, "foo.txt")
	require.NoError(t, err)
	assert.Contains(t, u, "/bucket/media/uploads/foo.txt?")
}

func TestStorage_SignedURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	assert.Equal(t, filestore.URLModeSigned, st.URLMode())
	save(t, st, "foo.txt", "foo")

	signed, err := st.URL(ctx, "foo.txt")
	require.NoError(t, err)

	resp, body := fetch(t, signed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "foo", body)
	assert.Equal(t, "private,max-age=3600", resp.Header.Get("Cache-Control"))

	u, err := url.Parse(signed)
	require.NoError(t, err)
	u.RawQuery = ""
	resp, _ = fetch(t, u.String())
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStorage_SignedURLGzip(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, nil)
	content := strings.Repeat("foo", 1000)
	save(t, st, "foo.txt", content)

	signed, err := st.URL(context.Background(), "foo.txt")
	require.NoError(t, err)

	resp, body := fetch(t, signed)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, content, body)
}

func TestStorage_StaticPublicURL(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantStatic, nil)
	assert.Equal(t, filestore.URLModePublic, st.URLMode())
	save(t, st, "foo.txt", "foo")

	u, err := st.URL(context.Background(), "foo.txt")
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL+"/bucket/foo.txt", u)

	resp, body := fetch(t, u)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "foo", body)
	assert.Equal(t, "public,max-age=31536000", resp.Header.Get("Cache-Control"))
}

func TestStorage_PublicPrefixURL(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, settings.Overrides{
		"aws_s3_public_url":  "/foo/",
		"aws_s3_bucket_auth": false,
	})
	assert.Equal(t, filestore.URLModePublicPrefix, st.URLMode())

	u, err := st.URL(context.Background(), "bar.txt")
	require.NoError(t, err)
	assert.Equal(t, "/foo/bar.txt", u)
}

func TestStorage_StoreErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, settings.Overrides{"aws_s3_file_overwrite": true})
	boom := errs.New(errs.ErrKindConnectionFailed, "connection reset")

	f.store.InjectError("put", boom)
	_, err := st.Save(ctx, "foo.txt", strings.NewReader("foo"))
	require.Error(t, err)
	assert.True(t, errs.IsStorage(err))

	var fe *errs.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "save", fe.Op)
	assert.Equal(t, "foo.txt", fe.Key)
	f.store.InjectError("put", nil)

	save(t, st, "foo.txt", "foo")
	f.store.InjectError("head", boom)
	_, err = st.Exists(ctx, "foo.txt")
	require.Error(t, err)
	assert.True(t, errs.IsConnectionFailed(err))

	f.store.InjectError("delete", boom)
	assert.True(t, errs.IsStorage(st.Delete(ctx, "foo.txt")))
}

func TestStorage_ConcurrentSaves(t *testing.T) {
	f := newFixture(t)
	st := f.storage(t, settings.VariantDefault, settings.Overrides{"aws_s3_file_overwrite": true})

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Save(context.Background(), fmt.Sprintf("f/%02d.txt", i), strings.NewReader("x"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	_, files, err := st.Listdir(context.Background(), "f")
	require.NoError(t, err)
	assert.Len(t, files, 16)
}
