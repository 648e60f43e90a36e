package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag-mcp/internal/embedder"
	"github.com/dshills/docrag-mcp/internal/indexer"
)

var (
	corpusPath  string
	outDir      string
	buildDomain string
	buildConfig indexer.Config
)

func init() {
	buildIndexCmd.Flags().StringVar(&corpusPath, "corpus", "", "JSON Lines corpus file (required)")
	buildIndexCmd.Flags().StringVar(&outDir, "out", "", "index directory to write")
	buildIndexCmd.Flags().StringVar(&buildDomain, "domain", "", "write to the index_path of this configured domain")
	buildIndexCmd.Flags().IntVar(&buildConfig.Workers, "workers", 0, "concurrent embedding requests (default: number of CPUs)")
	buildIndexCmd.Flags().IntVar(&buildConfig.BatchSize, "batch-size", embedder.MaxBatchSize, "passages per embedding request")
	buildIndexCmd.Flags().IntVar(&buildConfig.MaxTokens, "max-tokens", 0, "passage size limit in estimated tokens (default: 512)")
	buildIndexCmd.Flags().StringVar(&buildConfig.Metric, "metric", "", "distance metric: l2 or cosine (default: l2)")

	_ = buildIndexCmd.MarkFlagRequired("corpus")
	buildIndexCmd.MarkFlagsOneRequired("out", "domain")
	buildIndexCmd.MarkFlagsMutuallyExclusive("out", "domain")
}

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Build a vector index from a JSON Lines corpus",
	Long: `Chunk, embed and persist a corpus as a vector index.

Each corpus line is a document: {"id": "...", "text": "...", "metadata": {...}}.
Passages are embedded with the configured embedding backend.

Examples:
  # Build into an explicit directory
  docrag build-index --corpus ui.jsonl --out indices/ui

  # Build the index a configured domain serves
  docrag build-index --corpus ui.jsonl --domain ui`,
	Args: cobra.NoArgs,
	RunE: runBuildIndex,
}

func runBuildIndex(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	dir := outDir
	if buildDomain != "" {
		d, ok := cfg.Domains[buildDomain]
		if !ok {
			return fmt.Errorf("unknown domain %q", buildDomain)
		}
		dir = d.IndexPath
	}

	emb, err := embedder.New(cfg.Embedding, embedder.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	stats, err := indexer.New(emb, &buildConfig, logger).Build(cmd.Context(), corpusPath, dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Index written to %s\n", dir)
	fmt.Fprintf(cmd.OutOrStdout(), "  Documents: %d (%d skipped)\n", stats.DocumentsRead, stats.DocumentsSkipped)
	fmt.Fprintf(cmd.OutOrStdout(), "  Passages:  %d in %d batches\n", stats.PassagesCreated, stats.Batches)
	fmt.Fprintf(cmd.OutOrStdout(), "  Dimension: %d\n", stats.Dimension)
	fmt.Fprintf(cmd.OutOrStdout(), "  Duration:  %v\n", stats.Duration)
	return nil
}
