package filestore

import (
	"context"

	"github.com/koustreak/s3storage/internal/errs"
)

// SyncMeta recomputes the metadata of every object under the key prefix
// from the current settings and pushes it as a metadata-only copy. It
// stops at the first failure and returns the number of objects synced.
func (s *Storage) SyncMeta(ctx context.Context) (int, error) {
	synced := 0
	err := s.walk(ctx, "", func(name string) error {
		if err := s.SyncMetaFile(ctx, name); err != nil {
			return err
		}
		synced++
		return nil
	})

	s.log.With().Int("objects", synced).Logger().Info("metadata sync finished")
	return synced, err
}

// SyncMetaFile re-applies freshly built metadata to one stored object.
// Content is left untouched; metadata and ACL are replaced, not merged.
func (s *Storage) SyncMetaFile(ctx context.Context, name string) error {
	clean, key, err := s.resolve("sync_meta", name)
	if err != nil {
		return err
	}

	info, err := s.store.Head(ctx, key)
	if err != nil {
		return errs.At(err, "sync_meta", clean)
	}

	meta := buildMetadata(s.settings, clean, stateOf(info))
	if err := s.store.CopyMetadata(ctx, key, meta); err != nil {
		return errs.At(err, "sync_meta", clean)
	}

	s.log.ForObject("sync_meta", s.store.Bucket(), key).With().
		Str("cache_control", meta.CacheControl).
		Str("acl", string(meta.ACL)).
		Logger().
		Info("metadata synced")
	return nil
}

// walk calls fn with the name of every file under dir, depth first.
func (s *Storage) walk(ctx context.Context, dir string, fn func(name string) error) error {
	dirs, files, err := s.Listdir(ctx, dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.ErrKindTimeout, "metadata sync interrupted", err)
		}
		if err := fn(joinKey(dir, f)); err != nil {
			return err
		}
	}
	for _, d := range dirs {
		if err := s.walk(ctx, joinKey(dir, d), fn); err != nil {
			return err
		}
	}
	return nil
}
