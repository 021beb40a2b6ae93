package filestore

import (
	"context"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/koustreak/s3storage/internal/errs"
	"github.com/koustreak/s3storage/internal/logger"
	"github.com/koustreak/s3storage/internal/settings"
)

// Storage is the file-style adapter over an ObjectStore.
// It holds no mutable state beyond its resolved settings and is safe for
// concurrent use by multiple goroutines. Concurrent saves to one name
// race with last-write-wins semantics.
type Storage struct {
	settings settings.Settings
	store    ObjectStore
	prefix   string
	compress CompressionPolicy
	urls     *URLSigner
	log      *logger.Logger
}

// New validates s and builds a Storage over store. A nil log discards.
func New(s settings.Settings, store ObjectStore, log *logger.Logger) (*Storage, error) {
	if store == nil {
		return nil, errs.New(errs.ErrKindConfiguration, "object store is required")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	s = s.Clone()

	prefix, err := NormalizeKey(s.KeyPrefix)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConfiguration, "invalid "+settings.OptKeyPrefix, err)
	}

	urls, err := NewURLSigner(s, store.Bucket(), store)
	if err != nil {
		return nil, err
	}

	log = logger.OrNop(log).With().
		Str("bucket", store.Bucket()).
		Str("variant", s.Variant.String()).
		Logger()

	return &Storage{
		settings: s,
		store:    store,
		prefix:   prefix,
		compress: CompressionPolicy{Enabled: s.Gzip, MinSize: s.GzipMinSize},
		urls:     urls,
		log:      log,
	}, nil
}

// Settings returns a copy of the resolved settings.
func (s *Storage) Settings() settings.Settings {
	return s.settings.Clone()
}

// URLMode reports how URL builds object URLs.
func (s *Storage) URLMode() URLMode {
	return s.urls.Mode()
}

// --- name handling ---

// resolve normalizes name and returns it with its full object key.
func (s *Storage) resolve(op, name string) (string, string, error) {
	clean, err := NormalizeKey(name)
	if err != nil {
		return "", "", errs.At(err, op, name)
	}
	if clean == "" {
		return "", "", errs.At(errs.New(errs.ErrKindInvalidPath, "empty file name"), op, name)
	}
	return clean, joinKey(s.prefix, clean), nil
}

// GenerateFilename returns the canonical form of name.
func (s *Storage) GenerateFilename(name string) (string, error) {
	clean, _, err := s.resolve("generate_filename", name)
	return clean, err
}

// --- file operations ---

// Save stores content under name and returns the final normalized name.
// When overwriting is disabled and name is taken, a free name with a
// random suffix is chosen.
func (s *Storage) Save(ctx context.Context, name string, content io.Reader) (string, error) {
	clean, _, err := s.resolve("save", name)
	if err != nil {
		return "", err
	}

	if !s.settings.FileOverwrite {
		picked, err := s.availableName(ctx, clean)
		if err != nil {
			return "", errs.At(err, "save", clean)
		}
		clean = picked
	}
	key := joinKey(s.prefix, clean)

	raw, err := io.ReadAll(content)
	if err != nil {
		return "", errs.At(errs.Wrap(errs.ErrKindInvalidInput, "failed to read content", err), "save", clean)
	}

	payload, gzipped, err := s.compress.Encode(raw, ContentTypeFor(clean))
	if err != nil {
		return "", errs.At(err, "save", clean)
	}
	meta := buildMetadata(s.settings, clean, contentState{gzipped: gzipped, size: int64(len(raw))})

	if err := s.store.Put(ctx, key, payload, meta); err != nil {
		return "", errs.At(err, "save", clean)
	}

	s.log.ForObject("save", s.store.Bucket(), key).With().
		Int("size", len(raw)).
		Int("stored", len(payload)).
		Bool("gzip", gzipped).
		Logger().
		Debug("object stored")
	return clean, nil
}

// Open returns a read-only handle over the decompressed content of name.
func (s *Storage) Open(ctx context.Context, name string) (*File, error) {
	return s.OpenFile(ctx, name, os.O_RDONLY)
}

// OpenFile is Open with an explicit flag. Only os.O_RDONLY is supported;
// any write, append or create flag fails with errs.ErrKindInvalidMode.
func (s *Storage) OpenFile(ctx context.Context, name string, flag int) (*File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_APPEND|os.O_CREATE|os.O_TRUNC) != 0 {
		return nil, errs.At(errs.New(errs.ErrKindInvalidMode, "files can only be opened for reading"), "open", name)
	}
	clean, key, err := s.resolve("open", name)
	if err != nil {
		return nil, err
	}

	f := &File{storage: s, name: clean, key: key}
	if err := f.Reopen(ctx); err != nil {
		return nil, err
	}
	s.log.ForObject("open", s.store.Bucket(), key).Debug("object opened")
	return f, nil
}

// Exists reports whether an object is stored under name.
func (s *Storage) Exists(ctx context.Context, name string) (bool, error) {
	clean, _, err := s.resolve("exists", name)
	if err != nil {
		return false, err
	}
	return s.exists(ctx, clean)
}

func (s *Storage) exists(ctx context.Context, clean string) (bool, error) {
	_, err := s.store.Head(ctx, joinKey(s.prefix, clean))
	switch {
	case err == nil:
		return true, nil
	case errs.IsNotFound(err):
		return false, nil
	}
	return false, errs.At(err, "exists", clean)
}

// Delete removes name. Deleting a missing name is not an error.
func (s *Storage) Delete(ctx context.Context, name string) error {
	clean, key, err := s.resolve("delete", name)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil && !errs.IsNotFound(err) {
		return errs.At(err, "delete", clean)
	}
	s.log.ForObject("delete", s.store.Bucket(), key).Debug("object deleted")
	return nil
}

// Size returns the logical (uncompressed) length of name.
func (s *Storage) Size(ctx context.Context, name string) (int64, error) {
	info, err := s.head(ctx, "size", name)
	if err != nil {
		return 0, err
	}
	return stateOf(info).size, nil
}

// Meta returns the current metadata record of name.
func (s *Storage) Meta(ctx context.Context, name string) (Metadata, error) {
	info, err := s.head(ctx, "meta", name)
	if err != nil {
		return Metadata{}, err
	}
	return publicMetadata(info.Metadata), nil
}

// ModifiedTime returns the last-modified time of name.
func (s *Storage) ModifiedTime(ctx context.Context, name string) (time.Time, error) {
	info, err := s.head(ctx, "modified_time", name)
	if err != nil {
		return time.Time{}, err
	}
	return info.LastModified, nil
}

// AccessedTime equals ModifiedTime; the store tracks one timestamp.
func (s *Storage) AccessedTime(ctx context.Context, name string) (time.Time, error) {
	return s.ModifiedTime(ctx, name)
}

// CreatedTime equals ModifiedTime; the store tracks one timestamp.
func (s *Storage) CreatedTime(ctx context.Context, name string) (time.Time, error) {
	return s.ModifiedTime(ctx, name)
}

func (s *Storage) head(ctx context.Context, op, name string) (*ObjectInfo, error) {
	clean, key, err := s.resolve(op, name)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Head(ctx, key)
	if err != nil {
		return nil, errs.At(err, op, clean)
	}
	return info, nil
}

// URL returns the externally reachable URL of name.
func (s *Storage) URL(ctx context.Context, name string) (string, error) {
	clean, key, err := s.resolve("url", name)
	if err != nil {
		return "", err
	}
	u, err := s.urls.URL(ctx, key)
	if err != nil {
		return "", errs.At(err, "url", clean)
	}
	return u, nil
}

// Listdir returns the subdirectories and files directly under dir.
// "", "/" and "dir", "/dir", "dir/" are equivalent spellings. Both slices
// are sorted and non-nil; an unused prefix yields two empty slices.
func (s *Storage) Listdir(ctx context.Context, dir string) ([]string, []string, error) {
	clean, err := NormalizeKey(dir)
	if err != nil {
		return nil, nil, errs.At(err, "listdir", dir)
	}
	prefix := dirPrefix(joinKey(s.prefix, clean))

	res, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, nil, errs.At(err, "listdir", clean)
	}

	dirs := make([]string, 0, len(res.Prefixes))
	for _, p := range res.Prefixes {
		if d := strings.TrimSuffix(strings.TrimPrefix(p, prefix), "/"); d != "" {
			dirs = append(dirs, d)
		}
	}
	files := make([]string, 0, len(res.Objects))
	for _, o := range res.Objects {
		if f := strings.TrimPrefix(o.Key, prefix); f != "" && !strings.Contains(f, "/") {
			files = append(files, f)
		}
	}
	sort.Strings(dirs)
	sort.Strings(files)
	return dirs, files, nil
}
