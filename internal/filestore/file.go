package filestore

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/koustreak/s3storage/internal/errs"
)

// File is a read-only handle over an object's decompressed content.
// Close releases the buffered content; Reopen fetches it again.
type File struct {
	storage *Storage
	name    string
	key     string
	info    ObjectInfo
	r       *bytes.Reader
}

// Name is the file name relative to the storage root.
func (f *File) Name() string {
	return f.name
}

// Size is the logical (uncompressed) length of the content.
func (f *File) Size() int64 {
	if f.r == nil {
		return stateOf(&f.info).size
	}
	return f.r.Size()
}

// ModTime is the object's last-modified time.
func (f *File) ModTime() time.Time {
	return f.info.LastModified
}

// Metadata is the object's metadata record as of the last (re)open.
func (f *File) Metadata() Metadata {
	return publicMetadata(f.info.Metadata)
}

// Read implements io.Reader.
func (f *File) Read(p []byte) (int, error) {
	if f.r == nil {
		return 0, errs.New(errs.ErrKindInvalidMode, "read on closed file")
	}
	return f.r.Read(p)
}

// Seek implements io.Seeker.
func (f *File) Seek(offset int64, whence int) (int64, error) {
	if f.r == nil {
		return 0, errs.New(errs.ErrKindInvalidMode, "seek on closed file")
	}
	return f.r.Seek(offset, whence)
}

// Close implements io.Closer. Closing twice is harmless.
func (f *File) Close() error {
	f.r = nil
	return nil
}

// Reopen downloads the object again and rewinds to the start.
func (f *File) Reopen(ctx context.Context) error {
	obj, err := f.storage.store.Get(ctx, f.key)
	if err != nil {
		return errs.At(err, "open", f.name)
	}
	defer obj.Close()

	raw, err := io.ReadAll(obj)
	if err != nil {
		return errs.At(errs.Wrap(errs.ErrKindStorageFailed, "failed to read object", err), "open", f.name)
	}
	info := obj.Info()
	content, err := decode(raw, info.Metadata.ContentEncoding)
	if err != nil {
		return errs.At(err, "open", f.name)
	}

	f.info = *info
	f.r = bytes.NewReader(content)
	return nil
}
