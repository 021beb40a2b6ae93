// Package filestore maps file-style operations (save, open, delete, exists,
// size, listdir, url) onto objects held in a remote object store.
//
// The object store itself is an ObjectStore implementation; concrete SDKs
// live in sub-packages (s3, minio, memstore). Callers depend only on this
// package and on settings.
//
// Usage:
//
//	s, err := settings.Resolve(global, settings.VariantDefault, nil)
//	if err != nil { ... }
//	store, err := s3.New(ctx, s)
//	if err != nil { ... }
//	fs, err := filestore.New(s, store, log)
//	if err != nil { ... }
//
//	name, err := fs.Save(ctx, "docs/readme.txt", strings.NewReader("hello"))
package filestore

import (
	"context"
	"time"
)

// ObjectStore is the contract every object storage backend implements.
// Implementations must be safe for concurrent use and must report a
// missing key as an errs.ErrKindNotFound error.
type ObjectStore interface {
	// Bucket names the bucket all keys live in.
	Bucket() string

	// Put stores body under key with the given metadata, replacing any
	// previous object atomically.
	Put(ctx context.Context, key string, body []byte, meta Metadata) error

	// Get opens a streaming handle to the stored bytes at key.
	// The caller MUST call Object.Close() after reading.
	Get(ctx context.Context, key string) (Object, error)

	// Head returns the object's info and metadata without its content.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the entries directly under prefix, using "/" as the
	// delimiter. prefix is empty or ends with "/".
	List(ctx context.Context, prefix string) (*ListResult, error)

	// CopyMetadata replaces the metadata and ACL of an existing object
	// without changing its content.
	CopyMetadata(ctx context.Context, key string, meta Metadata) error

	// PresignGet returns a time-limited, query-authenticated GET URL.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}
