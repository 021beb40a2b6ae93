package settings

import (
	"os"
	"strings"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// Source supplies global setting values by option name. Names passed to
// Lookup are upper case and may carry a variant suffix
// (AWS_S3_MAX_AGE_SECONDS_STATIC).
type Source interface {
	Lookup(name string) (any, bool)
}

// Values is an in-memory Source. Keys are matched case-insensitively.
type Values map[string]any

// Lookup implements Source.
func (v Values) Lookup(name string) (any, bool) {
	if val, ok := v[name]; ok {
		return val, val != nil
	}
	for k, val := range v {
		if strings.EqualFold(k, name) {
			return val, val != nil
		}
	}
	return nil, false
}

// Chain returns a Source that consults sources in order; the first source
// defining a name wins.
func Chain(sources ...Source) Source {
	return chain(sources)
}

type chain []Source

func (c chain) Lookup(name string) (any, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(name); ok {
			return v, true
		}
	}
	return nil, false
}

// FromViper exposes a viper instance as a Source, so values can come from
// config files, environment variables and bound flags.
func FromViper(v *viper.Viper) Source {
	return viperSource{v: v}
}

type viperSource struct {
	v *viper.Viper
}

func (s viperSource) Lookup(name string) (any, bool) {
	if !s.v.IsSet(name) {
		return nil, false
	}
	val := s.v.Get(name)
	return val, val != nil
}

// LoadYAML reads a flat YAML mapping of option names to values.
//
//	AWS_S3_BUCKET_NAME: media
//	AWS_S3_MAX_AGE_SECONDS_STATIC: 86400
//	AWS_S3_METADATA:
//	  team: web
func LoadYAML(path string) (Values, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to read settings file", err)
	}
	return ParseYAML(raw)
}

// ParseYAML decodes a flat YAML mapping of option names to values.
func ParseYAML(raw []byte) (Values, error) {
	vals := map[string]any{}
	if err := yaml.Unmarshal(raw, &vals); err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "failed to parse settings file", err)
	}
	out := make(Values, len(vals))
	for k, v := range vals {
		out[strings.ToUpper(k)] = v
	}
	return out, nil
}
