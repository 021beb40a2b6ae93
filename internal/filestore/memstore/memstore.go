// Package memstore provides an in-memory filestore.ObjectStore.
//
// Objects can also be served over HTTP with the same access rules as a real
// bucket: public-read objects are readable by anyone, private objects only
// through a URL from PresignGet. It backs tests and local development.
//
// Usage:
//
//	store := memstore.New(memstore.Config{Bucket: "media"})
//	srv := httptest.NewServer(store.Handler())
//	store.SetBaseURL(srv.URL)
package memstore

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/filestore"
)

// Query parameters of presigned URLs.
const (
	ParamExpires   = "X-Amz-Expires"
	ParamSignature = "X-Amz-Signature"
)

// Config holds in-memory store settings.
type Config struct {
	// Bucket is the bucket name used in URLs.
	Bucket string

	// BaseURL is the scheme and host presigned URLs point at.
	// It can be set later with SetBaseURL.
	BaseURL string

	// Secret signs presigned URLs. A random secret is generated when empty.
	Secret []byte

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Store is an in-memory object store. It is safe for concurrent use.
type Store struct {
	bucket string
	secret []byte
	now    func() time.Time

	mu      sync.RWMutex
	baseURL string
	objects map[string]*entry
	faults  map[string]error
}

type entry struct {
	body     []byte
	meta     filestore.Metadata
	modified time.Time
	etag     string
}

// New creates an empty Store.
func New(cfg Config) *Store {
	secret := cfg.Secret
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "bucket"
	}
	return &Store{
		bucket:  bucket,
		secret:  secret,
		now:     now,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		objects: map[string]*entry{},
		faults:  map[string]error{},
	}
}

// SetBaseURL sets the scheme and host presigned URLs point at.
func (s *Store) SetBaseURL(base string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = strings.TrimSuffix(base, "/")
}

// InjectError makes every call of op ("put", "get", "head", "delete",
// "list", "copy", "presign") fail with err until cleared with a nil err.
func (s *Store) InjectError(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

// Len reports how many objects are stored.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// --- filestore.ObjectStore implementation ---

// Bucket implements filestore.ObjectStore.
func (s *Store) Bucket() string {
	return s.bucket
}

// Put stores a copy of body.
func (s *Store) Put(ctx context.Context, key string, body []byte, meta filestore.Metadata) error {
	if err := s.check(ctx, "put"); err != nil {
		return err
	}
	sum := md5.Sum(body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = &entry{
		body:     bytes.Clone(body),
		meta:     meta.Clone(),
		modified: s.now().UTC(),
		etag:     `"` + hex.EncodeToString(sum[:]) + `"`,
	}
	return nil
}

// Get returns the stored bytes of key.
func (s *Store) Get(ctx context.Context, key string) (filestore.Object, error) {
	if err := s.check(ctx, "get"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "object does not exist")
	}
	return &object{
		ReadCloser: io.NopCloser(bytes.NewReader(bytes.Clone(e.body))),
		info:       e.info(key),
	}, nil
}

// Head returns the info of key.
func (s *Store) Head(ctx context.Context, key string) (*filestore.ObjectInfo, error) {
	if err := s.check(ctx, "head"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.objects[key]
	if !ok {
		return nil, errs.New(errs.ErrKindNotFound, "object does not exist")
	}
	return e.info(key), nil
}

// Delete removes key if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, "delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// List groups keys under prefix by their next "/" segment.
func (s *Store) List(ctx context.Context, prefix string) (*filestore.ListResult, error) {
	if err := s.check(ctx, "list"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := &filestore.ListResult{}
	seen := map[string]struct{}{}
	for key, e := range s.objects {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			dir := prefix + rest[:i+1]
			if _, dup := seen[dir]; !dup {
				seen[dir] = struct{}{}
				res.Prefixes = append(res.Prefixes, dir)
			}
			continue
		}
		res.Objects = append(res.Objects, *e.info(key))
	}
	sort.Strings(res.Prefixes)
	sort.Slice(res.Objects, func(i, j int) bool { return res.Objects[i].Key < res.Objects[j].Key })
	return res, nil
}

// CopyMetadata replaces the metadata of an existing key.
func (s *Store) CopyMetadata(ctx context.Context, key string, meta filestore.Metadata) error {
	if err := s.check(ctx, "copy"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.objects[key]
	if !ok {
		return errs.New(errs.ErrKindNotFound, "object does not exist")
	}
	e.meta = meta.Clone()
	e.modified = s.now().UTC()
	return nil
}

// PresignGet returns a URL carrying an expiry and an HMAC signature.
func (s *Store) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := s.check(ctx, "presign"); err != nil {
		return "", err
	}
	s.mu.RLock()
	base := s.baseURL
	s.mu.RUnlock()
	if base == "" {
		return "", errs.New(errs.ErrKindInvalidInput, "memstore has no base URL")
	}

	expires := s.now().Add(ttl).Unix()
	q := url.Values{}
	q.Set(ParamExpires, strconv.FormatInt(expires, 10))
	q.Set(ParamSignature, s.sign(key, expires))
	return base + "/" + url.PathEscape(s.bucket) + "/" + escapeKey(key) + "?" + q.Encode(), nil
}

// --- internal helpers ---

func (s *Store) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, op+" cancelled", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.faults[op]; err != nil {
		return err
	}
	return nil
}

func (s *Store) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(s.bucket + "\n" + key + "\n" + strconv.FormatInt(expires, 10)))
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Store) verify(key string, q url.Values) bool {
	expires, err := strconv.ParseInt(q.Get(ParamExpires), 10, 64)
	if err != nil || s.now().Unix() > expires {
		return false
	}
	want := s.sign(key, expires)
	return hmac.Equal([]byte(want), []byte(q.Get(ParamSignature)))
}

func (e *entry) info(key string) *filestore.ObjectInfo {
	return &filestore.ObjectInfo{
		Key:          key,
		Size:         int64(len(e.body)),
		ETag:         e.etag,
		LastModified: e.modified,
		Metadata:     e.meta.Clone(),
	}
}

func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return strings.Join(segs, "/")
}

// object wraps stored bytes and exposes filestore.Object.
type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}

var _ filestore.ObjectStore = (*Store)(nil)
