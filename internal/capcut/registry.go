package capcut

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"
)

const registryFileName = "root_meta_info.json"

// Registry manages the shared cross-project draft list. The target format
// has no append-only log: registering a draft reads the whole file,
// prepends one entry, bumps the draft counter, and rewrites everything.
// A sidecar flock plus an in-process mutex serialize concurrent writers.
type Registry struct {
	logger zerolog.Logger
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
}

func NewRegistry(logger zerolog.Logger, rootDir string) *Registry {
	path := filepath.Join(rootDir, registryFileName)
	return &Registry{
		logger: logger.With().Str("component", "registry").Logger(),
		path:   path,
		lock:   flock.New(path + ".lock"),
	}
}

// Register prepends entry (most-recent-first ordering) and increments the
// running draft counter. A missing registry file is initialized first.
func (r *Registry) Register(entry DraftEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(); err != nil {
		return fmt.Errorf("lock registry: %w", err)
	}
	defer func() {
		if err := r.lock.Unlock(); err != nil {
			r.logger.Warn().Err(err).Msg("registry unlock failed")
		}
	}()

	root, err := r.load()
	if err != nil {
		return err
	}

	root.AllDraftStore = append([]DraftEntry{entry}, root.AllDraftStore...)
	root.DraftIDs++

	raw, err := json.MarshalIndent(root, "", "    ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	if err := os.WriteFile(r.path, raw, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}

	r.logger.Debug().
		Str("draft", entry.DraftName).
		Int64("drafts", root.DraftIDs).
		Msg("registry updated")
	return nil
}

func (r *Registry) load() (*RootMetaInfo, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return &RootMetaInfo{
			AllDraftStore: []DraftEntry{},
			RootPath:      filepath.Dir(r.path),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}

	var root RootMetaInfo
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if root.RootPath == "" {
		root.RootPath = filepath.Dir(r.path)
	}
	return &root, nil
}
