package vectorindex

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Loader loads one index directory on first use. Concurrent first callers
// wait for a single load and share its outcome; a failure is remembered until
// Reset so a corrupt index is never partially served.
type Loader struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	loaded bool
	index  *Index
	err    error
}

// NewLoader creates a loader for path
func NewLoader(path string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{path: path, logger: logger}
}

// Path returns the index directory
func (l *Loader) Path() string {
	return l.path
}

// Get returns the loaded index, loading it if needed
func (l *Loader) Get(ctx context.Context) (*Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		idx, err := Load(ctx, l.path, l.logger)
		if err != nil && ctx.Err() != nil {
			// the caller gave up; let the next caller try again
			return nil, err
		}
		l.index, l.err, l.loaded = idx, err, true
		if err != nil {
			l.logger.Error("index unavailable", zap.String("index", l.path), zap.Error(err))
		}
	}
	return l.index, l.err
}

// Reset forgets the previous outcome so the next Get reloads from disk
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
	l.index = nil
	l.err = nil
}
