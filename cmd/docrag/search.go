package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/docrag-mcp/internal/pipeline"
)

var (
	searchDomain  string
	searchTopK    int
	searchRerankK int
	searchBudget  int
	asContext     bool
)

func init() {
	searchCmd.Flags().StringVar(&searchDomain, "domain", "", "domain to search")
	searchCmd.Flags().IntVar(&searchTopK, "top-k", 0, "candidates fetched from the index (default: domain setting)")
	searchCmd.Flags().IntVar(&searchRerankK, "rerank-k", 0, "candidates kept after reranking (default: domain setting)")
	searchCmd.Flags().BoolVar(&asContext, "context", false, "print the assembled RAG context instead of ranked results")
	searchCmd.Flags().IntVar(&searchBudget, "budget", 0, "context budget with --context (default: domain setting)")
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Run a query against a domain and print the JSON result",
	Long: `Run a query through the same pipeline the MCP tools use.

Examples:
  docrag search --domain ui "enable dark mode"
  docrag search --domain ui --context --budget 300 "enable dark mode"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	req := pipeline.Request{
		Domain:  searchDomain,
		Query:   strings.Join(args, " "),
		TopK:    searchTopK,
		RerankK: searchRerankK,
		Budget:  searchBudget,
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if asContext {
		res := p.Context(cmd.Context(), req)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return res.Err()
	}
	res := p.Search(cmd.Context(), req)
	if err := enc.Encode(res); err != nil {
		return err
	}
	return res.Err()
}
