package filestore

import (
	"bytes"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/koustreak/s3storage/internal/errs"
)

// precompressed lists content types whose payloads are already compressed.
var precompressed = func() map[string]struct{} {
	m := map[string]struct{}{}
	for _, ct := range []string{
		"application/gzip",
		"application/x-gzip",
		"application/zip",
		"application/x-bzip2",
		"application/x-xz",
		"application/x-7z-compressed",
		"application/vnd.rar",
		"application/zstd",
		"application/pdf",
		"application/wasm",
		"application/vnd.ms-fontobject",
		"font/woff",
		"font/woff2",
	} {
		m[ct] = struct{}{}
	}
	return m
}()

// CompressionPolicy decides whether an upload is gzip-encoded.
type CompressionPolicy struct {
	Enabled bool
	MinSize int
}

// ShouldCompress reports whether a payload of size bytes and contentType
// is a candidate for gzip. Only payloads larger than MinSize qualify, and
// images, audio, video and archive formats are skipped. SVG stays eligible
// since it is XML text.
func (p CompressionPolicy) ShouldCompress(size int, contentType string) bool {
	if !p.Enabled || size <= p.MinSize {
		return false
	}
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if _, ok := precompressed[ct]; ok {
		return false
	}
	switch {
	case ct == "image/svg+xml":
		return true
	case strings.HasPrefix(ct, "image/"), strings.HasPrefix(ct, "audio/"), strings.HasPrefix(ct, "video/"):
		return false
	}
	return true
}

// Encode returns the payload to upload and whether it is gzip-encoded.
// A compressed payload is used only when it is strictly smaller.
func (p CompressionPolicy) Encode(data []byte, contentType string) ([]byte, bool, error) {
	if !p.ShouldCompress(len(data), contentType) {
		return data, false, nil
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, false, errs.Wrap(errs.ErrKindInvalidInput, "failed to create gzip writer", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, false, errs.Wrap(errs.ErrKindInvalidInput, "failed to gzip content", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, errs.Wrap(errs.ErrKindInvalidInput, "failed to gzip content", err)
	}

	if buf.Len() >= len(data) {
		return data, false, nil
	}
	return buf.Bytes(), true, nil
}

// decode reverses the content encoding of stored bytes.
func decode(data []byte, encoding string) ([]byte, error) {
	if encoding != EncodingGzip {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "stored object is not valid gzip", err)
	}
	defer zr.Close()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindStorageFailed, "failed to decompress object", err)
	}
	return out, nil
}
