package filestore

import (
	"io"
	"maps"
	"time"
)

// ACL is a canned access control list applied to an object.
type ACL string

const (
	ACLPrivate    ACL = "private"
	ACLPublicRead ACL = "public-read"
)

// Header values used in metadata records.
const (
	EncodingGzip                  = "gzip"
	StorageClassReducedRedundancy = "REDUCED_REDUNDANCY"
	SSEAES256                     = "AES256"
	SSEKMS                        = "aws:kms"
)

// Metadata is the full descriptive record attached to a stored object.
// Empty strings mean "absent".
type Metadata struct {
	CacheControl         string
	ContentType          string
	ContentEncoding      string
	ContentDisposition   string
	ContentLanguage      string
	Tags                 map[string]string // user metadata (x-amz-meta-*)
	StorageClass         string
	ServerSideEncryption string
	SSEKMSKeyID          string

	// ACL is the canned ACL to apply. Stores that cannot report an
	// object's ACL on read leave it empty.
	ACL ACL
}

// Clone returns a deep copy of m.
func (m Metadata) Clone() Metadata {
	out := m
	out.Tags = maps.Clone(m.Tags)
	if out.Tags == nil {
		out.Tags = map[string]string{}
	}
	return out
}

// ObjectInfo describes a single stored object.
type ObjectInfo struct {
	// Key is the full object key within the bucket (e.g. "media/photo.jpg").
	Key string

	// Size is the stored byte length, which is the compressed length for
	// gzip-encoded objects.
	Size int64

	// ETag is the object's entity tag, as returned by the backend.
	ETag string

	// LastModified is when the object was last written. The store tracks
	// no other timestamp.
	LastModified time.Time

	Metadata Metadata
}

// Object is a streaming handle to an object's stored bytes.
// The caller MUST call Close() after reading to avoid resource leaks.
type Object interface {
	io.ReadCloser

	// Info returns the metadata for this object.
	Info() *ObjectInfo
}

// ListResult holds the entries directly under a listed prefix.
type ListResult struct {
	// Prefixes are the full keys of virtual directories, each ending in "/".
	Prefixes []string

	// Objects are the objects stored directly under the prefix.
	Objects []ObjectInfo
}
