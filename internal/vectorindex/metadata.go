package vectorindex

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/semver/v3"
)

// File names inside an index directory
const (
	DBFile       = "index.db"
	MetaFile     = "index.json"
	ChecksumFile = "checksums.sha256"
)

const (
	// FormatVersion is written by Build
	FormatVersion = "1.0.0"

	// supportedFormats is the range of format versions Load accepts
	supportedFormats = "^1.0"
)

// Distance metrics
const (
	MetricL2     = "l2"
	MetricCosine = "cosine"
)

// Metadata is the index.json sidecar
type Metadata struct {
	FormatVersion string    `json:"format_version"`
	Model         string    `json:"model"`
	Dimension     int       `json:"dimension"`
	Metric        string    `json:"metric"`
	Count         int       `json:"count"`
	CreatedAt     time.Time `json:"created_at"`
}

// validate checks the sidecar fields and fills the default metric
func (m *Metadata) validate() error {
	constraint, err := semver.NewConstraint(supportedFormats)
	if err != nil {
		return fmt.Errorf("invalid format constraint: %w", err)
	}
	version, err := semver.NewVersion(m.FormatVersion)
	if err != nil {
		return fmt.Errorf("invalid format_version %q: %w", m.FormatVersion, err)
	}
	if !constraint.Check(version) {
		return fmt.Errorf("unsupported format_version %s (want %s)", version, supportedFormats)
	}

	if m.Metric == "" {
		m.Metric = MetricL2
	}
	if m.Metric != MetricL2 && m.Metric != MetricCosine {
		return fmt.Errorf("unknown metric %q", m.Metric)
	}
	if m.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", m.Dimension)
	}
	if m.Count < 0 {
		return fmt.Errorf("count must not be negative, got %d", m.Count)
	}
	return nil
}

func readMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetaFile))
	if err != nil {
		return nil, err
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", MetaFile, err)
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

func writeMetadata(dir string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, MetaFile), append(data, '\n'), 0o644)
}
