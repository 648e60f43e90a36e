package vectorindex

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// checksumEntry is one "<hex-digest> <filename>" line
type checksumEntry struct {
	digest string
	name   string
}

// verifyChecksums checks every file listed in the manifest. A missing
// manifest is logged and skipped; a present but unreadable or mismatching one
// fails.
func verifyChecksums(dir string, logger *zap.Logger) error {
	data, err := os.ReadFile(filepath.Join(dir, ChecksumFile))
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("checksum manifest not found, skipping verification", zap.String("index", dir))
		return nil
	}
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	entries, err := parseManifest(data)
	if err != nil {
		return err
	}

	for _, e := range entries {
		got, err := fileDigest(filepath.Join(dir, e.name))
		if err != nil {
			return fmt.Errorf("checksum %s: %w", e.name, err)
		}
		if got != e.digest {
			return fmt.Errorf("checksum mismatch for %s", e.name)
		}
	}

	logger.Debug("checksums verified", zap.String("index", dir), zap.Int("files", len(entries)))
	return nil
}

func parseManifest(data []byte) ([]checksumEntry, error) {
	var entries []checksumEntry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("manifest line %d: want \"<digest> <file>\"", line)
		}
		digest := strings.ToLower(fields[0])
		name := strings.TrimPrefix(fields[1], "*") // sha256sum binary marker

		if _, err := hex.DecodeString(digest); err != nil || len(digest) != sha256.Size*2 {
			return nil, fmt.Errorf("manifest line %d: invalid digest", line)
		}
		if !filepath.IsLocal(name) || filepath.Base(name) != name {
			return nil, fmt.Errorf("manifest line %d: file %q outside index directory", line, name)
		}
		entries = append(entries, checksumEntry{digest: digest, name: name})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, errors.New("manifest lists no files")
	}
	return entries, nil
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// writeChecksums writes a manifest covering names
func writeChecksums(dir string, names ...string) error {
	var b strings.Builder
	for _, name := range names {
		digest, err := fileDigest(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "%s  %s\n", digest, name)
	}
	return os.WriteFile(filepath.Join(dir, ChecksumFile), []byte(b.String()), 0o644)
}
