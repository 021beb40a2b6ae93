// Package settings resolves the adapter configuration from three layers:
// per-instance keyword overrides, global settings (variant-suffixed first,
// then unsuffixed), and built-in defaults.
//
// Usage:
//
//	s, err := settings.Resolve(settings.Values{
//	    settings.OptBucketName:       "media",
//	    "AWS_S3_MAX_AGE_SECONDS_STATIC": 86400,
//	}, settings.VariantStatic, settings.Overrides{"aws_s3_content_language": "en"})
package settings

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/spf13/cast"
)

// Variant names a configuration profile. It selects which suffixed
// global settings apply and which built-in defaults are used.
type Variant string

const (
	VariantDefault Variant = ""
	VariantStatic  Variant = "STATIC"
)

// Suffix is the global setting suffix for v ("_STATIC"), empty for the
// default variant.
func (v Variant) Suffix() string {
	if v == VariantDefault {
		return ""
	}
	return "_" + string(v)
}

func (v Variant) String() string {
	if v == VariantDefault {
		return "default"
	}
	return strings.ToLower(string(v))
}

// ParseVariant maps a profile name onto a Variant. "default" and "media"
// both mean the default variant.
func ParseVariant(name string) (Variant, error) {
	switch strings.ToLower(name) {
	case "", "default", "media":
		return VariantDefault, nil
	case "static":
		return VariantStatic, nil
	}
	return "", errs.Newf(errs.ErrKindConfiguration, "unknown storage variant %q", name)
}

// Overrides are per-instance keyword arguments that beat every global value.
type Overrides map[string]any

// Settings is the resolved, validated configuration of one adapter.
type Settings struct {
	Variant Variant

	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	BucketName      string
	AddressingStyle string
	EndpointURL     string
	KeyPrefix       string

	BucketAuth bool
	MaxAge     time.Duration
	PublicURL  string

	ReducedRedundancy  bool
	ContentDisposition Value
	ContentLanguage    string
	Metadata           map[string]Value
	EncryptKey         bool
	KMSEncryptionKeyID string

	Gzip          bool
	GzipMinSize   int
	FileOverwrite bool
}

// Clone returns a copy of s that shares no maps with it.
func (s Settings) Clone() Settings {
	out := s
	out.Metadata = make(map[string]Value, len(s.Metadata))
	for k, v := range s.Metadata {
		out.Metadata[k] = v
	}
	return out
}

// MaxAgeSeconds is MaxAge in whole seconds.
func (s Settings) MaxAgeSeconds() int {
	return int(s.MaxAge / time.Second)
}

// Resolve builds Settings for variant. For each option the first defined
// value wins: overrides, then global OPTION_<VARIANT>, then global OPTION,
// then the variant's built-in default, then the option's built-in default.
// A nil global means no global settings.
func Resolve(global Source, variant Variant, overrides Overrides) (Settings, error) {
	if global == nil {
		global = Values{}
	}

	kw := make(map[string]any, len(overrides))
	var unknown []string
	for k, v := range overrides {
		name := canonical(k)
		if _, ok := recognized[name]; !ok {
			unknown = append(unknown, k)
			continue
		}
		kw[name] = v
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return Settings{}, errs.Newf(errs.ErrKindConfiguration, "unknown settings: %s", strings.Join(unknown, ", "))
	}

	s := Settings{Variant: variant}
	for _, o := range options {
		raw := lookup(o, global, variant, kw)
		if err := assign(&s, o, raw); err != nil {
			return Settings{}, err
		}
	}

	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks the cross-option rules.
func (s Settings) Validate() error {
	if s.BucketAuth && s.PublicURL != "" {
		return errs.Newf(errs.ErrKindConfiguration, "cannot use %s and %s together", OptBucketAuth, OptPublicURL)
	}
	if s.MaxAge < 0 {
		return errs.Newf(errs.ErrKindConfiguration, "%s must not be negative", OptMaxAgeSeconds)
	}
	if s.GzipMinSize < 0 {
		return errs.Newf(errs.ErrKindConfiguration, "%s must not be negative", OptGzipMinSize)
	}
	switch s.AddressingStyle {
	case AddressingAuto, AddressingPath, AddressingVirtual:
	default:
		return errs.Newf(errs.ErrKindConfiguration, "%s must be one of auto, path, virtual; got %q", OptAddressingStyle, s.AddressingStyle)
	}
	if s.KMSEncryptionKeyID != "" && !s.EncryptKey {
		return errs.Newf(errs.ErrKindConfiguration, "%s requires %s", OptKMSEncryptionKeyID, OptEncryptKey)
	}
	for k := range s.Metadata {
		if strings.EqualFold(strings.TrimSpace(k), ReservedTag) {
			return errs.Newf(errs.ErrKindConfiguration, "%s must not set the reserved tag %q", OptMetadata, ReservedTag)
		}
	}
	return nil
}

// ReservedTag is the user-metadata key that records the logical length of
// gzip-encoded objects. It cannot be configured through AWS_S3_METADATA.
const ReservedTag = "uncompressed-size"

func canonical(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func lookup(o option, global Source, variant Variant, kw map[string]any) any {
	if v, ok := kw[o.name]; ok && v != nil {
		return v
	}
	if suffix := variant.Suffix(); suffix != "" {
		if v, ok := global.Lookup(o.name + suffix); ok {
			return v
		}
	}
	if v, ok := global.Lookup(o.name); ok {
		return v
	}
	if v, ok := variantDefaults[variant][o.name]; ok {
		return v
	}
	return o.def
}

func assign(s *Settings, o option, raw any) error {
	invalid := func(err error) error {
		return errs.Wrap(errs.ErrKindConfiguration, fmt.Sprintf("invalid value for %s", o.name), err)
	}

	switch o.kind {
	case kindString:
		v, err := cast.ToStringE(raw)
		if err != nil {
			return invalid(err)
		}
		setString(s, o.name, v)
	case kindBool:
		v, err := cast.ToBoolE(raw)
		if err != nil {
			return invalid(err)
		}
		setBool(s, o.name, v)
	case kindInt:
		v, err := cast.ToIntE(raw)
		if err != nil {
			return invalid(err)
		}
		s.GzipMinSize = v
	case kindSeconds:
		v, err := toSeconds(raw)
		if err != nil {
			return invalid(err)
		}
		s.MaxAge = v
	case kindValue:
		v, err := toValue(raw)
		if err != nil {
			return invalid(err)
		}
		s.ContentDisposition = v
	case kindValueMap:
		v, err := toValueMap(raw)
		if err != nil {
			return invalid(err)
		}
		s.Metadata = v
	}
	return nil
}

func setString(s *Settings, name, v string) {
	switch name {
	case OptRegion:
		s.Region = v
	case OptAccessKeyID:
		s.AccessKeyID = v
	case OptSecretAccessKey:
		s.SecretAccessKey = v
	case OptSessionToken:
		s.SessionToken = v
	case OptBucketName:
		s.BucketName = v
	case OptAddressingStyle:
		s.AddressingStyle = strings.ToLower(v)
	case OptEndpointURL:
		s.EndpointURL = v
	case OptKeyPrefix:
		s.KeyPrefix = v
	case OptPublicURL:
		s.PublicURL = v
	case OptContentLanguage:
		s.ContentLanguage = v
	case OptKMSEncryptionKeyID:
		s.KMSEncryptionKeyID = v
	}
}

func setBool(s *Settings, name string, v bool) {
	switch name {
	case OptBucketAuth:
		s.BucketAuth = v
	case OptReducedRedundancy:
		s.ReducedRedundancy = v
	case OptEncryptKey:
		s.EncryptKey = v
	case OptGzip:
		s.Gzip = v
	case OptFileOverwrite:
		s.FileOverwrite = v
	}
}

// toSeconds accepts a number of seconds or a time.Duration.
func toSeconds(raw any) (time.Duration, error) {
	if d, ok := raw.(time.Duration); ok {
		return d, nil
	}
	n, err := cast.ToInt64E(raw)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func toValue(raw any) (Value, error) {
	switch v := raw.(type) {
	case Value:
		return v, nil
	case func(string) string:
		return Rule(v), nil
	case nil:
		return Value{}, nil
	}
	str, err := cast.ToStringE(raw)
	if err != nil {
		return Value{}, err
	}
	return Literal(str), nil
}

func toValueMap(raw any) (map[string]Value, error) {
	out := map[string]Value{}
	switch m := raw.(type) {
	case map[string]Value:
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	case map[string]string:
		for k, v := range m {
			out[k] = Literal(v)
		}
		return out, nil
	case Values:
		raw = map[string]any(m)
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, err
	}
	for k, v := range m {
		val, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		out[k] = val
	}
	return out, nil
}
