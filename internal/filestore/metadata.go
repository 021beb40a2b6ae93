package filestore

import (
	"fmt"
	"strconv"

	"github.com/koustreak/s3storage/internal/settings"
)

// contentState is what the metadata depends on besides key and settings:
// whether the stored payload is gzip-encoded and its logical length.
type contentState struct {
	gzipped bool
	size    int64
}

// BuildMetadata computes the metadata record for the object named name
// (relative to the key prefix). The result depends only on its inputs;
// sync relies on that to be idempotent.
func BuildMetadata(s settings.Settings, name string, gzipped bool, size int64) Metadata {
	return buildMetadata(s, name, contentState{gzipped: gzipped, size: size})
}

func buildMetadata(s settings.Settings, name string, st contentState) Metadata {
	access := "public"
	acl := ACLPublicRead
	if s.BucketAuth {
		access = "private"
		acl = ACLPrivate
	}

	m := Metadata{
		CacheControl:       fmt.Sprintf("%s,max-age=%d", access, s.MaxAgeSeconds()),
		ContentType:        ContentTypeFor(name),
		ContentDisposition: s.ContentDisposition.Resolve(name),
		ContentLanguage:    s.ContentLanguage,
		Tags:               make(map[string]string, len(s.Metadata)+1),
		ACL:                acl,
	}

	for k, v := range s.Metadata {
		m.Tags[k] = v.Resolve(name)
	}

	if st.gzipped {
		m.ContentEncoding = EncodingGzip
		m.Tags[reservedTagSize] = strconv.FormatInt(st.size, 10)
	}
	if s.ReducedRedundancy {
		m.StorageClass = StorageClassReducedRedundancy
	}
	if s.EncryptKey {
		if s.KMSEncryptionKeyID != "" {
			m.ServerSideEncryption = SSEKMS
			m.SSEKMSKeyID = s.KMSEncryptionKeyID
		} else {
			m.ServerSideEncryption = SSEAES256
		}
	}
	return m
}

// stateOf recovers the content state of a stored object from its info.
func stateOf(info *ObjectInfo) contentState {
	st := contentState{size: info.Size}
	if info.Metadata.ContentEncoding != EncodingGzip {
		return st
	}
	st.gzipped = true
	if raw, ok := info.Metadata.Tags[reservedTagSize]; ok {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			st.size = n
		}
	}
	return st
}

// publicMetadata hides reserved tags from callers.
func publicMetadata(m Metadata) Metadata {
	out := m.Clone()
	delete(out.Tags, reservedTagSize)
	return out
}
