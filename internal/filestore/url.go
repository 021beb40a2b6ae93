package filestore

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/settings"
)

// MaxURLExpiry is the longest lifetime a signed URL may have.
const MaxURLExpiry = 7 * 24 * time.Hour

// DefaultURLExpiry applies when the max-age option is zero.
const DefaultURLExpiry = time.Hour

// URLMode is how object URLs are produced. Exactly one mode is selected
// from the settings when the adapter is built.
type URLMode int

const (
	URLModePublicPrefix URLMode = iota // custom public URL prefix
	URLModePublic                      // plain public bucket URL
	URLModeSigned                      // query-string authenticated URL
)

func (m URLMode) String() string {
	switch m {
	case URLModePublicPrefix:
		return "public_prefix"
	case URLModePublic:
		return "public"
	case URLModeSigned:
		return "signed"
	default:
		return "unknown"
	}
}

// Presigner produces query-authenticated GET URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// URLSigner builds externally reachable URLs for object keys.
type URLSigner struct {
	mode       URLMode
	prefix     string
	endpoint   *url.URL
	bucket     string
	addressing string
	ttl        time.Duration
	presigner  Presigner
}

// NewURLSigner selects the URL mode from s. The public prefix wins when
// set; otherwise bucket auth selects signed URLs and plain public URLs
// are used for everything else.
func NewURLSigner(s settings.Settings, bucket string, p Presigner) (*URLSigner, error) {
	u := &URLSigner{
		bucket:     bucket,
		addressing: s.AddressingStyle,
		presigner:  p,
	}

	switch {
	case s.PublicURL != "":
		u.mode = URLModePublicPrefix
		u.prefix = s.PublicURL
		return u, nil
	case s.BucketAuth:
		u.mode = URLModeSigned
		if p == nil {
			return nil, errs.New(errs.ErrKindConfiguration, "bucket auth requires a store that can presign URLs")
		}
		u.ttl = s.MaxAge
		if u.ttl <= 0 {
			u.ttl = DefaultURLExpiry
		}
		if u.ttl > MaxURLExpiry {
			u.ttl = MaxURLExpiry
		}
		return u, nil
	}

	u.mode = URLModePublic
	endpoint, err := EndpointURL(s)
	if err != nil {
		return nil, err
	}
	u.endpoint = endpoint
	return u, nil
}

// Mode reports the selected URL mode.
func (u *URLSigner) Mode() URLMode {
	return u.mode
}

// URL returns the URL for the full object key.
func (u *URLSigner) URL(ctx context.Context, key string) (string, error) {
	switch u.mode {
	case URLModePublicPrefix:
		return joinURL(u.prefix, escapeKey(key)), nil
	case URLModeSigned:
		return u.presigner.PresignGet(ctx, key, u.ttl)
	}

	out := *u.endpoint
	out.RawQuery = ""
	out.Fragment = ""
	if u.addressing == settings.AddressingVirtual {
		out.Host = u.bucket + "." + out.Host
		out.Path = "/" + key
		out.RawPath = "/" + escapeKey(key)
	} else {
		out.Path = "/" + u.bucket + "/" + key
		out.RawPath = "/" + url.PathEscape(u.bucket) + "/" + escapeKey(key)
	}
	return out.String(), nil
}

// EndpointURL is the service endpoint for s: the configured endpoint
// override, or the regional AWS endpoint. Only scheme and authority of
// an override are used.
func EndpointURL(s settings.Settings) (*url.URL, error) {
	raw := s.EndpointURL
	if raw == "" {
		raw = fmt.Sprintf("https://s3.%s.amazonaws.com", s.Region)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("invalid %s", settings.OptEndpointURL), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errs.Newf(errs.ErrKindConfiguration, "%s must be an absolute URL, got %q", settings.OptEndpointURL, raw)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func joinURL(prefix, rel string) string {
	if strings.HasSuffix(prefix, "/") {
		return prefix + rel
	}
	return prefix + "/" + rel
}
