package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/docrag-mcp/pkg/types"
)

// ErrEmptyIndex is returned by Build when there is nothing to write
var ErrEmptyIndex = errors.New("no documents to index")

// BuildOptions describes the index being written
type BuildOptions struct {
	Model  string // embedding model recorded in the sidecar
	Metric string // l2 (default) or cosine
}

// Build writes docs and their vectors to dir as a complete index with a
// checksum manifest. Files are staged in a sibling temp directory and renamed
// into place, so dir is either the old index or the new one.
func Build(ctx context.Context, dir string, docs []types.CandidateDocument, vectors [][]float32, opts BuildOptions) error {
	if len(docs) == 0 {
		return ErrEmptyIndex
	}

	meta := Metadata{
		FormatVersion: FormatVersion,
		Model:         opts.Model,
		Dimension:     len(vectors[0]),
		Metric:        opts.Metric,
		Count:         len(docs),
		CreatedAt:     time.Now().UTC(),
	}
	if err := meta.validate(); err != nil {
		return err
	}
	if err := checkVectors(docs, vectors, meta.Dimension); err != nil {
		return err
	}

	dir = filepath.Clean(dir)
	parent := filepath.Dir(dir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}

	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(dir)+".tmp-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := writeDatabase(ctx, filepath.Join(tmp, DBFile), docs, vectors); err != nil {
		return err
	}
	if err := writeMetadata(tmp, &meta); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := writeChecksums(tmp, DBFile, MetaFile); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := swapInto(tmp, dir); err != nil {
		return err
	}
	committed = true
	return nil
}

func writeDatabase(ctx context.Context, path string, docs []types.CandidateDocument, vectors [][]float32) (err error) {
	db, err := openWritable(path)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close database: %w", cerr)
		}
	}()
	return writeDocuments(ctx, db, docs, vectors)
}

// swapInto replaces dir with staged. An existing dir is moved aside first
// and removed once staged is in place.
func swapInto(staged, dir string) error {
	_, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) {
		if err := os.Rename(staged, dir); err != nil {
			return fmt.Errorf("install index: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", dir, err)
	}

	old := dir + ".old-" + uuid.NewString()
	if err := os.Rename(dir, old); err != nil {
		return fmt.Errorf("move previous index aside: %w", err)
	}
	if err := os.Rename(staged, dir); err != nil {
		_ = os.Rename(old, dir)
		return fmt.Errorf("install index: %w", err)
	}
	_ = os.RemoveAll(old)
	return nil
}
