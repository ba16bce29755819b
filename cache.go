package ipsmap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Fingerprint identifies the current content of the given files by path,
// size and modification time. Any missing file is a load error.
func Fingerprint(paths ...string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		fi, err := os.Stat(p)
		if err != nil {
			return "", &LoadError{Path: p, Err: err}
		}
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", filepath.Clean(p), fi.Size(), fi.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// BuildFunc prepares a dataset from sources.
type BuildFunc func(ctx context.Context, src Sources, log *zap.Logger) (*Dataset, error)

// Store memoizes the prepared dataset keyed by the fingerprint of its source
// files. A cached dataset is never mutated; a changed fingerprint replaces it.
// Safe for concurrent use.
type Store struct {
	src   Sources
	log   *zap.Logger
	build BuildFunc
	cache *cache.Cache

	// buildMu serializes builds so concurrent callers with a cold cache do
	// not prepare the same dataset twice.
	buildMu sync.Mutex
	builds  int
}

// NewStore creates a store over src using PrepareDataset.
func NewStore(src Sources, log *zap.Logger) *Store {
	return newStoreWithBuild(src, log, PrepareDataset)
}

func newStoreWithBuild(src Sources, log *zap.Logger, build BuildFunc) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		src:   src,
		log:   log,
		build: build,
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// Sources returns the files the store reads.
func (s *Store) Sources() Sources { return s.src }

// Dataset returns the cached dataset for the current source fingerprint,
// building it when absent.
func (s *Store) Dataset(ctx context.Context) (*Dataset, error) {
	fp, err := Fingerprint(s.src.Paths()...)
	if err != nil {
		return nil, err
	}
	if v, ok := s.cache.Get(fp); ok {
		return v.(*Dataset), nil
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	if v, ok := s.cache.Get(fp); ok {
		return v.(*Dataset), nil
	}

	s.log.Info("preparing dataset", zap.String("fingerprint", fp[:12]))
	ds, err := s.build(ctx, s.src, s.log)
	if err != nil {
		return nil, err
	}
	ds.Fingerprint = fp
	s.builds++

	// Only the latest fingerprint is worth keeping.
	s.cache.Flush()
	s.cache.Set(fp, ds, cache.NoExpiration)
	return ds, nil
}

// Builds returns how many times the dataset has been prepared.
func (s *Store) Builds() int {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	return s.builds
}

// Invalidate drops the cached dataset.
func (s *Store) Invalidate() {
	s.cache.Flush()
}

// Watch invalidates the cache whenever a source file is written, created,
// removed or renamed, then calls onChange (which may be nil). Parent
// directories are watched so that editors replacing files by rename are seen.
// Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(path string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, p := range s.src.Paths() {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", p, err)
		}
		watched[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		dirs[dir] = true
	}

	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !watched[abs] || ev.Op&relevant == 0 {
				continue
			}
			s.log.Info("source changed, dropping cached dataset",
				zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			s.Invalidate()
			if onChange != nil {
				onChange(ev.Name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watcher error", zap.Error(err))
		}
	}
}
