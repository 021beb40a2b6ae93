package settings

import "time"

// Recognized option names. Keyword overrides use the same names in any
// case ("aws_s3_bucket_auth" and "AWS_S3_BUCKET_AUTH" are the same option).
const (
	OptRegion             = "AWS_REGION"
	OptAccessKeyID        = "AWS_ACCESS_KEY_ID"
	OptSecretAccessKey    = "AWS_SECRET_ACCESS_KEY"
	OptSessionToken       = "AWS_SESSION_TOKEN"
	OptBucketName         = "AWS_S3_BUCKET_NAME"
	OptAddressingStyle    = "AWS_S3_ADDRESSING_STYLE"
	OptEndpointURL        = "AWS_S3_ENDPOINT_URL"
	OptKeyPrefix          = "AWS_S3_KEY_PREFIX"
	OptBucketAuth         = "AWS_S3_BUCKET_AUTH"
	OptMaxAgeSeconds      = "AWS_S3_MAX_AGE_SECONDS"
	OptPublicURL          = "AWS_S3_PUBLIC_URL"
	OptReducedRedundancy  = "AWS_S3_REDUCED_REDUNDANCY"
	OptContentDisposition = "AWS_S3_CONTENT_DISPOSITION"
	OptContentLanguage    = "AWS_S3_CONTENT_LANGUAGE"
	OptMetadata           = "AWS_S3_METADATA"
	OptEncryptKey         = "AWS_S3_ENCRYPT_KEY"
	OptKMSEncryptionKeyID = "AWS_S3_KMS_ENCRYPTION_KEY_ID"
	OptGzip               = "AWS_S3_GZIP"
	OptGzipMinSize        = "AWS_S3_GZIP_MIN_SIZE"
	OptFileOverwrite      = "AWS_S3_FILE_OVERWRITE"
)

// Addressing styles for plain public URLs.
const (
	AddressingAuto    = "auto"
	AddressingPath    = "path"
	AddressingVirtual = "virtual"
)

// DefaultGzipMinSize is the smallest payload, in bytes, that is considered
// for gzip encoding.
const DefaultGzipMinSize = 1024

type kind int

const (
	kindString kind = iota
	kindBool
	kindInt
	kindSeconds
	kindValue
	kindValueMap
)

type option struct {
	name string
	kind kind
	def  any
}

// options is the recognized option set, in resolution order.
var options = []option{
	{OptRegion, kindString, "us-east-1"},
	{OptAccessKeyID, kindString, ""},
	{OptSecretAccessKey, kindString, ""},
	{OptSessionToken, kindString, ""},
	{OptBucketName, kindString, ""},
	{OptAddressingStyle, kindString, AddressingAuto},
	{OptEndpointURL, kindString, ""},
	{OptKeyPrefix, kindString, ""},
	{OptBucketAuth, kindBool, true},
	{OptMaxAgeSeconds, kindSeconds, 3600},
	{OptPublicURL, kindString, ""},
	{OptReducedRedundancy, kindBool, false},
	{OptContentDisposition, kindValue, ""},
	{OptContentLanguage, kindString, ""},
	{OptMetadata, kindValueMap, map[string]any{}},
	{OptEncryptKey, kindBool, false},
	{OptKMSEncryptionKeyID, kindString, ""},
	{OptGzip, kindBool, true},
	{OptGzipMinSize, kindInt, DefaultGzipMinSize},
	{OptFileOverwrite, kindBool, false},
}

var recognized = func() map[string]struct{} {
	m := make(map[string]struct{}, len(options))
	for _, o := range options {
		m[o.name] = struct{}{}
	}
	return m
}()

// IsRecognized reports whether name (in any case) is a known option.
func IsRecognized(name string) bool {
	_, ok := recognized[canonical(name)]
	return ok
}

// Names returns every recognized option name.
func Names() []string {
	names := make([]string, len(options))
	for i, o := range options {
		names[i] = o.name
	}
	return names
}

// StaticMaxAge is the cache lifetime for the static variant: one year.
const StaticMaxAge = 365 * 24 * time.Hour

// variantDefaults replace the built-in defaults for a named variant.
var variantDefaults = map[Variant]map[string]any{
	VariantStatic: {
		OptBucketAuth:    false,
		OptMaxAgeSeconds: int(StaticMaxAge / time.Second),
		OptFileOverwrite: true,
	},
}
