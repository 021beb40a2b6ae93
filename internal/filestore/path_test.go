package filestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/s3storage/internal/errs"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"foo.txt", "foo.txt"},
		{"/foo.txt", "foo.txt"},
		{"foo/./bar.txt", "foo/bar.txt"},
		{"foo//bar.txt", "foo/bar.txt"},
		{"foo/baz/../bar.txt", "foo/bar.txt"},
		{"bar/", "bar"},
		{"/bar", "bar"},
		{"", ""},
		{"/", ""},
		{".", ""},
		{"a/..", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeKey(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeKey_Escape(t *testing.T) {
	for _, in := range []string{"..", "../foo.txt", "foo/../../bar.txt", "/../x"} {
		_, err := NormalizeKey(in)
		require.Error(t, err, in)
		assert.True(t, errs.IsInvalidPath(err), in)
	}
}

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "foo.txt", joinKey("", "foo.txt"))
	assert.Equal(t, "media", joinKey("media", ""))
	assert.Equal(t, "media/foo.txt", joinKey("media", "foo.txt"))
	assert.Equal(t, "", dirPrefix(""))
	assert.Equal(t, "bar/", dirPrefix("bar"))
}
