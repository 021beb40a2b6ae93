package filestore

import (
	"strings"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/settings"
)

// Provider identifies the object storage backend behind an ObjectStore.
type Provider string

const (
	ProviderS3     Provider = "s3"
	ProviderMinIO  Provider = "minio"
	ProviderMemory Provider = "memory"
)

// ParseProvider maps a backend name onto a Provider. The empty name means S3.
func ParseProvider(name string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return ProviderS3, nil
	case ProviderS3, ProviderMinIO, ProviderMemory:
		return p, nil
	}
	return "", errs.Newf(errs.ErrKindConfiguration, "unknown storage backend %q", name)
}

// reservedTagSize records the logical length of gzip-encoded objects.
// It is written on save and hidden from Meta.
const reservedTagSize = settings.ReservedTag
