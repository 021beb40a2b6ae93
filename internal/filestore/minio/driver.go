// Package minio provides a MinIO (or any S3-compatible server)
// implementation of filestore.ObjectStore on top of minio-go.
//
// Usage:
//
//	s, err := settings.Resolve(global, settings.VariantDefault, nil)
//	if err != nil { ... }
//	store, err := minio.New(ctx, s)
//	if err != nil { ... }
package minio

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/filestore"
	"github.com/koustreak/s3storage/internal/settings"
)

const defaultEndpoint = "s3.amazonaws.com"

// Driver is a MinIO implementation of filestore.ObjectStore.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client *miniogo.Client
	bucket string
}

// New creates a minio-go client from the resolved settings and checks
// that the bucket is reachable before returning.
func New(ctx context.Context, s settings.Settings) (*Driver, error) {
	if s.BucketName == "" {
		return nil, errs.Newf(errs.ErrKindConfiguration, "%s is required", settings.OptBucketName)
	}

	host, secure, err := endpoint(s.EndpointURL)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		creds = credentials.NewStaticV4(s.AccessKeyID, s.SecretAccessKey, s.SessionToken)
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := miniogo.New(host, &miniogo.Options{
		Creds:        creds,
		Secure:       secure,
		Region:       s.Region,
		BucketLookup: bucketLookup(s.AddressingStyle),
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client, bucket: s.BucketName}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping verifies the bucket exists and the credentials can reach it.
func (d *Driver) Ping(ctx context.Context) error {
	ok, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !ok {
		return errs.Newf(errs.ErrKindNotFound, "bucket %q does not exist", d.bucket)
	}
	return nil
}

// --- filestore.ObjectStore implementation ---

// Bucket implements filestore.ObjectStore.
func (d *Driver) Bucket() string {
	return d.bucket
}

// Put uploads body with the full metadata record.
func (d *Driver) Put(ctx context.Context, key string, body []byte, meta filestore.Metadata) error {
	sse, err := serverSide(meta)
	if err != nil {
		return err
	}

	_, err = d.client.PutObject(ctx, d.bucket, key, bytes.NewReader(body), int64(len(body)), miniogo.PutObjectOptions{
		UserMetadata:         amzHeaders(meta),
		ContentType:          meta.ContentType,
		ContentEncoding:      meta.ContentEncoding,
		ContentDisposition:   meta.ContentDisposition,
		ContentLanguage:      meta.ContentLanguage,
		CacheControl:         meta.CacheControl,
		StorageClass:         meta.StorageClass,
		ServerSideEncryption: sse,
	})
	if err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// Get opens a streaming handle to the stored bytes at key.
// The caller MUST call Object.Close() after reading.
func (d *Driver) Get(ctx context.Context, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object after get")
	}

	return &object{ReadCloser: obj, info: infoFromStat(key, stat)}, nil
}

// Head returns the info of key without downloading its content.
func (d *Driver) Head(ctx context.Context, key string) (*filestore.ObjectInfo, error) {
	stat, err := d.client.StatObject(ctx, d.bucket, key, miniogo.StatObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to stat object")
	}
	return infoFromStat(key, stat), nil
}

// Delete removes key. Missing keys are not an error.
func (d *Driver) Delete(ctx context.Context, key string) error {
	if err := d.client.RemoveObject(ctx, d.bucket, key, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// List returns the prefixes and objects directly under prefix.
func (d *Driver) List(ctx context.Context, prefix string) (*filestore.ListResult, error) {
	res := &filestore.ListResult{}
	for obj := range d.client.ListObjects(ctx, d.bucket, miniogo.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		if strings.HasSuffix(obj.Key, "/") {
			res.Prefixes = append(res.Prefixes, obj.Key)
			continue
		}
		res.Objects = append(res.Objects, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			ETag:         obj.ETag,
			LastModified: obj.LastModified,
		})
	}
	return res, nil
}

// CopyMetadata copies key onto itself replacing its metadata. Standard
// headers, the canned ACL and the storage class travel in UserMetadata,
// which minio-go forwards as plain headers under the REPLACE directive.
func (d *Driver) CopyMetadata(ctx context.Context, key string, meta filestore.Metadata) error {
	sse, err := serverSide(meta)
	if err != nil {
		return err
	}

	um := amzHeaders(meta)
	setIf(um, "Content-Type", meta.ContentType)
	setIf(um, "Cache-Control", meta.CacheControl)
	setIf(um, "Content-Encoding", meta.ContentEncoding)
	setIf(um, "Content-Disposition", meta.ContentDisposition)
	setIf(um, "Content-Language", meta.ContentLanguage)
	setIf(um, "X-Amz-Storage-Class", meta.StorageClass)

	_, err = d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{
			Bucket:          d.bucket,
			Object:          key,
			ReplaceMetadata: true,
			UserMetadata:    um,
			Encryption:      sse,
		},
		miniogo.CopySrcOptions{Bucket: d.bucket, Object: key},
	)
	if err != nil {
		return mapError(err, "failed to copy object metadata")
	}
	return nil
}

// PresignGet returns a time-limited download URL for key.
func (d *Driver) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, d.bucket, key, ttl, nil)
	if err != nil {
		return "", mapError(err, "failed to generate presigned URL")
	}
	return u.String(), nil
}

// --- internal helpers ---

// endpoint splits an endpoint URL into the host minio-go expects and
// whether TLS is used. A bare host is accepted and assumed to use TLS.
func endpoint(raw string) (string, bool, error) {
	if raw == "" {
		return defaultEndpoint, true, nil
	}
	if !strings.Contains(raw, "://") {
		return raw, true, nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", false, errs.Newf(errs.ErrKindConfiguration, "invalid %s %q", settings.OptEndpointURL, raw)
	}
	return u.Host, u.Scheme == "https", nil
}

func bucketLookup(style string) miniogo.BucketLookupType {
	switch style {
	case settings.AddressingPath:
		return miniogo.BucketLookupPath
	case settings.AddressingVirtual:
		return miniogo.BucketLookupDNS
	}
	return miniogo.BucketLookupAuto
}

func serverSide(meta filestore.Metadata) (encrypt.ServerSide, error) {
	switch meta.ServerSideEncryption {
	case "":
		return nil, nil
	case filestore.SSEKMS:
		sse, err := encrypt.NewSSEKMS(meta.SSEKMSKeyID, nil)
		if err != nil {
			return nil, errs.Wrap(errs.ErrKindConfiguration, "invalid kms key", err)
		}
		return sse, nil
	}
	return encrypt.NewSSE(), nil
}

// amzHeaders returns the user tags plus the canned ACL header.
func amzHeaders(meta filestore.Metadata) map[string]string {
	um := make(map[string]string, len(meta.Tags)+1)
	for k, v := range meta.Tags {
		um[k] = v
	}
	setIf(um, "X-Amz-Acl", string(meta.ACL))
	return um
}

func setIf(m map[string]string, k, v string) {
	if v != "" {
		m[k] = v
	}
}

func infoFromStat(key string, stat miniogo.ObjectInfo) *filestore.ObjectInfo {
	h := stat.Metadata
	if h == nil {
		h = http.Header{}
	}
	tags := make(map[string]string, len(stat.UserMetadata))
	for k, v := range stat.UserMetadata {
		tags[strings.ToLower(k)] = v
	}
	return &filestore.ObjectInfo{
		Key:          key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		LastModified: stat.LastModified,
		Metadata: filestore.Metadata{
			CacheControl:         h.Get("Cache-Control"),
			ContentType:          stat.ContentType,
			ContentEncoding:      h.Get("Content-Encoding"),
			ContentDisposition:   h.Get("Content-Disposition"),
			ContentLanguage:      h.Get("Content-Language"),
			Tags:                 tags,
			StorageClass:         stat.StorageClass,
			ServerSideEncryption: h.Get("X-Amz-Server-Side-Encryption"),
			SSEKMSKeyID:          h.Get("X-Amz-Server-Side-Encryption-Aws-Kms-Key-Id"),
		},
	}
}

// object wraps a MinIO GetObject response and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}

// compile-time check
var _ filestore.ObjectStore = (*Driver)(nil)
