package filestore

import (
	"context"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/koustreak/s3storage/internal/errs"
)

const maxNameAttempts = 100

// availableName returns name, or a variant of it with a random suffix
// before the extension when name is already taken
// ("foo.txt" becomes "foo_3f9a1c2.txt").
func (s *Storage) availableName(ctx context.Context, name string) (string, error) {
	candidate := name
	for range maxNameAttempts {
		exists, err := s.exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
		candidate = alternativeName(name)
	}
	return "", errs.Newf(errs.ErrKindStorageFailed, "no free name found for %q", name)
}

func alternativeName(name string) string {
	dir, file := path.Split(name)
	ext := path.Ext(file)
	root := strings.TrimSuffix(file, ext)
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:7]
	return dir + root + "_" + suffix + ext
}
