package filestore

import (
	"path/filepath"
	"strings"

	"github.com/koustreak/s3storage/internal/errs"
)

// NormalizeKey canonicalizes a relative path into an object key: forward
// slashes only, no leading slash, no empty or "." segments, and ".."
// resolved against its parent. A path that climbs above the root fails
// with errs.ErrKindInvalidPath. The root itself normalizes to "".
func NormalizeKey(name string) (string, error) {
	name = filepath.ToSlash(name)

	var parts []string
	for _, seg := range strings.Split(name, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(parts) == 0 {
				return "", errs.Newf(errs.ErrKindInvalidPath, "path %q escapes the storage root", name)
			}
			parts = parts[:len(parts)-1]
		default:
			parts = append(parts, seg)
		}
	}
	return strings.Join(parts, "/"), nil
}

// joinKey prefixes key with the normalized key prefix.
func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "/" + key
}

// dirPrefix turns a directory key into a listing prefix ("" or "dir/").
func dirPrefix(key string) string {
	if key == "" {
		return ""
	}
	return key + "/"
}
