package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/pkg/errors"

	"github.com/rs/zerolog"
)

// Archiver copies the inputs and outputs of a run into the bucket under
// <prefix>/<YYYY-MM-DD>/.
type Archiver struct {
	store  Storage
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

func NewArchiver(cfg *config.Config, store Storage) *Archiver {
	return &Archiver{
		store:  store,
		prefix: cfg.Storage.ArchivePrefix,
		now:    time.Now,
		log:    logger.Get(),
	}
}

func (a *Archiver) Key(localPath string) string {
	return path.Join(a.prefix, a.now().Format("2006-01-02"), filepath.Base(localPath))
}

// Archive uploads each file and returns the keys written. Empty paths are
// ignored so callers can pass optional outputs directly. A key already in
// the bucket is left as it is, so a day's archive keeps the first copy.
func (a *Archiver) Archive(ctx context.Context, paths ...string) ([]string, error) {
	var keys []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		key := a.Key(p)
		exists, err := a.store.Exists(ctx, key)
		if err != nil {
			return keys, err
		}
		if exists {
			a.log.Info().Str("file", p).Str("key", key).Msg("Already archived, skipping")
			continue
		}
		if err := a.upload(ctx, p, key); err != nil {
			return keys, err
		}
		a.log.Info().Str("file", p).Str("key", key).Msg("Archived file")
		keys = append(keys, key)
	}
	return keys, nil
}

func (a *Archiver) upload(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", errors.ErrMissingInput, localPath)
		}
		return fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	return a.store.Upload(ctx, key, f)
}

// Fetch downloads key into destDir, keeping the key's base name, and
// returns the local path.
func Fetch(ctx context.Context, store Storage, key, destDir string) (string, error) {
	body, err := store.Download(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination: %w", err)
	}

	dest := filepath.Join(destDir, path.Base(key))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", dest, err)
	}

	log := logger.Get()
	log.Info().Str("key", key).Str("file", dest).Msg("Fetched file")
	return dest, nil
}
