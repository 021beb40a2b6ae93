// Package s3 provides an Amazon S3 (and S3-compatible) implementation of
// filestore.ObjectStore on top of aws-sdk-go-v2.
//
// Usage:
//
//	s, err := settings.Resolve(global, settings.VariantDefault, nil)
//	if err != nil { ... }
//	store, err := s3.New(ctx, s)
//	if err != nil { ... }
package s3

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/filestore"
	"github.com/koustreak/s3storage/internal/settings"
)

// Driver is an S3 implementation of filestore.ObjectStore.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	client  *awss3.Client
	presign *awss3.PresignClient
	bucket  string
}

// New builds an S3 client from the resolved settings. Static credentials
// are used when an access key pair is configured; otherwise the default
// AWS credential chain applies (env, shared config, instance role).
func New(ctx context.Context, s settings.Settings) (*Driver, error) {
	if s.BucketName == "" {
		return nil, errs.Newf(errs.ErrKindConfiguration, "%s is required", settings.OptBucketName)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(s.Region),
	}
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to load aws config", err)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if s.EndpointURL != "" {
			o.BaseEndpoint = aws.String(s.EndpointURL)
		}
		o.UsePathStyle = s.AddressingStyle == settings.AddressingPath
	})

	return &Driver{
		client:  client,
		presign: awss3.NewPresignClient(client),
		bucket:  s.BucketName,
	}, nil
}

// --- filestore.ObjectStore implementation ---

// Bucket implements filestore.ObjectStore.
func (d *Driver) Bucket() string {
	return d.bucket
}

// Put uploads body with the full metadata record.
func (d *Driver) Put(ctx context.Context, key string, body []byte, meta filestore.Metadata) error {
	in := &awss3.PutObjectInput{
		Bucket:             aws.String(d.bucket),
		Key:                aws.String(key),
		Body:               bytes.NewReader(body),
		ContentLength:      aws.Int64(int64(len(body))),
		ACL:                types.ObjectCannedACL(meta.ACL),
		CacheControl:       optional(meta.CacheControl),
		ContentType:        optional(meta.ContentType),
		ContentEncoding:    optional(meta.ContentEncoding),
		ContentDisposition: optional(meta.ContentDisposition),
		ContentLanguage:    optional(meta.ContentLanguage),
		Metadata:           meta.Tags,
		StorageClass:       types.StorageClass(meta.StorageClass),
		SSEKMSKeyId:        optional(meta.SSEKMSKeyID),
	}
	if meta.ServerSideEncryption != "" {
		in.ServerSideEncryption = types.ServerSideEncryption(meta.ServerSideEncryption)
	}

	if _, err := d.client.PutObject(ctx, in); err != nil {
		return mapError(err, "failed to put object")
	}
	return nil
}

// Get opens a streaming handle to the stored bytes at key.
func (d *Driver) Get(ctx context.Context, key string) (filestore.Object, error) {
	out, err := d.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}

	return &object{
		ReadCloser: out.Body,
		info: &filestore.ObjectInfo{
			Key:          key,
			Size:         aws.ToInt64(out.ContentLength),
			ETag:         aws.ToString(out.ETag),
			LastModified: aws.ToTime(out.LastModified),
			Metadata: filestore.Metadata{
				CacheControl:         aws.ToString(out.CacheControl),
				ContentType:          aws.ToString(out.ContentType),
				ContentEncoding:      aws.ToString(out.ContentEncoding),
				ContentDisposition:   aws.ToString(out.ContentDisposition),
				ContentLanguage:      aws.ToString(out.ContentLanguage),
				Tags:                 lowerKeys(out.Metadata),
				StorageClass:         string(out.StorageClass),
				ServerSideEncryption: string(out.ServerSideEncryption),
				SSEKMSKeyID:          aws.ToString(out.SSEKMSKeyId),
			},
		},
	}, nil
}

// Head returns the info of key without its content.
func (d *Driver) Head(ctx context.Context, key string) (*filestore.ObjectInfo, error) {
	out, err := d.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, mapError(err, "failed to head object")
	}

	return &filestore.ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		ETag:         aws.ToString(out.ETag),
		LastModified: aws.ToTime(out.LastModified),
		Metadata: filestore.Metadata{
			CacheControl:         aws.ToString(out.CacheControl),
			ContentType:          aws.ToString(out.ContentType),
			ContentEncoding:      aws.ToString(out.ContentEncoding),
			ContentDisposition:   aws.ToString(out.ContentDisposition),
			ContentLanguage:      aws.ToString(out.ContentLanguage),
			Tags:                 lowerKeys(out.Metadata),
			StorageClass:         string(out.StorageClass),
			ServerSideEncryption: string(out.ServerSideEncryption),
			SSEKMSKeyID:          aws.ToString(out.SSEKMSKeyId),
		},
	}, nil
}

// Delete removes key. S3 reports success for missing keys.
func (d *Driver) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return mapError(err, "failed to delete object")
	}
	return nil
}

// List returns the common prefixes and objects directly under prefix,
// following continuation tokens until the listing is complete.
func (d *Driver) List(ctx context.Context, prefix string) (*filestore.ListResult, error) {
	p := awss3.NewListObjectsV2Paginator(d.client, &awss3.ListObjectsV2Input{
		Bucket:    aws.String(d.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	res := &filestore.ListResult{}
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects")
		}
		for _, cp := range page.CommonPrefixes {
			res.Prefixes = append(res.Prefixes, aws.ToString(cp.Prefix))
		}
		for _, obj := range page.Contents {
			res.Objects = append(res.Objects, filestore.ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				ETag:         aws.ToString(obj.ETag),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return res, nil
}

// CopyMetadata copies key onto itself with MetadataDirective REPLACE, so
// the content is kept and metadata plus ACL are replaced wholesale.
func (d *Driver) CopyMetadata(ctx context.Context, key string, meta filestore.Metadata) error {
	in := &awss3.CopyObjectInput{
		Bucket:             aws.String(d.bucket),
		Key:                aws.String(key),
		CopySource:         aws.String(copySource(d.bucket, key)),
		MetadataDirective:  types.MetadataDirectiveReplace,
		ACL:                types.ObjectCannedACL(meta.ACL),
		CacheControl:       optional(meta.CacheControl),
		ContentType:        optional(meta.ContentType),
		ContentEncoding:    optional(meta.ContentEncoding),
		ContentDisposition: optional(meta.ContentDisposition),
		ContentLanguage:    optional(meta.ContentLanguage),
		Metadata:           meta.Tags,
		StorageClass:       types.StorageClass(meta.StorageClass),
		SSEKMSKeyId:        optional(meta.SSEKMSKeyID),
	}
	if meta.ServerSideEncryption != "" {
		in.ServerSideEncryption = types.ServerSideEncryption(meta.ServerSideEncryption)
	}

	if _, err := d.client.CopyObject(ctx, in); err != nil {
		return mapError(err, "failed to copy object metadata")
	}
	return nil
}

// PresignGet returns a SigV4 query-authenticated GET URL.
func (d *Driver) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	req, err := d.presign.PresignGetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	}, awss3.WithPresignExpires(ttl))
	if err != nil {
		return "", mapError(err, "failed to presign url")
	}
	return req.URL, nil
}

// --- internal types ---

// object wraps a GetObject response body and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func copySource(bucket, key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return bucket + "/" + strings.Join(segs, "/")
}

// compile-time check
var _ filestore.ObjectStore = (*Driver)(nil)
