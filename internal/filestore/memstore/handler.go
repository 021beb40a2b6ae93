package memstore

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/s3storage/internal/filestore"
)

// Handler serves stored objects at /{bucket}/{key}. Private objects need
// a valid presigned query; without one the response is 403, as on S3.
func (s *Store) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/{bucket}/*", s.serveObject)
	r.Head("/{bucket}/*", s.serveObject)
	return r
}

func (s *Store) serveObject(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "bucket") != s.bucket {
		http.Error(w, "NoSuchBucket", http.StatusNotFound)
		return
	}
	// r.URL.Path is already decoded, whatever form chi matched on.
	key := strings.TrimPrefix(r.URL.Path, "/"+s.bucket+"/")

	s.mu.RLock()
	e, ok := s.objects[key]
	var (
		body []byte
		info *filestore.ObjectInfo
	)
	if ok {
		body = e.body
		info = e.info(key)
	}
	s.mu.RUnlock()

	if ok && info.Metadata.ACL != filestore.ACLPublicRead && !s.verify(key, r.URL.Query()) {
		http.Error(w, "AccessDenied", http.StatusForbidden)
		return
	}
	if !ok {
		// S3 answers 403 for unauthenticated reads of missing keys.
		if r.URL.Query().Get(ParamSignature) == "" {
			http.Error(w, "AccessDenied", http.StatusForbidden)
			return
		}
		http.Error(w, "NoSuchKey", http.StatusNotFound)
		return
	}

	h := w.Header()
	m := info.Metadata
	setHeader(h, "Content-Type", m.ContentType)
	setHeader(h, "Cache-Control", m.CacheControl)
	setHeader(h, "Content-Encoding", m.ContentEncoding)
	setHeader(h, "Content-Disposition", m.ContentDisposition)
	setHeader(h, "Content-Language", m.ContentLanguage)
	setHeader(h, "X-Amz-Storage-Class", m.StorageClass)
	setHeader(h, "X-Amz-Server-Side-Encryption", m.ServerSideEncryption)
	for k, v := range m.Tags {
		h.Set("X-Amz-Meta-"+k, v)
	}
	h.Set("ETag", info.ETag)
	h.Set("Last-Modified", info.LastModified.Format(http.TimeFormat))
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)

	if r.Method != http.MethodHead {
		_, _ = w.Write(body)
	}
}

func setHeader(h http.Header, name, value string) {
	if value != "" {
		h.Set(name, value)
	}
}
