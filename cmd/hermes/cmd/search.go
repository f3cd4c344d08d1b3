package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hermes-search/hermes/internal/search"
)

type searchOptions struct {
	topKRetrieve int
	topKRerank   int
	mode         string
	language     string
	pathPrefix   string
	jsonOutput   bool
	noSnippets   bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an indexed repository",
		Long: `Search embeds the query, retrieves dense/sparse/hybrid candidates,
fuses and reranks them, and prints the top results.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topKRetrieve, "top-k-retrieve", "k", 0, "candidates to retrieve before filtering/reranking (0 = config default)")
	cmd.Flags().IntVarP(&opts.topKRerank, "limit", "n", 0, "results to return (0 = config default)")
	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "retrieval mode: dense, sparse, hybrid (empty = config default)")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "filter by language")
	cmd.Flags().StringVarP(&opts.pathPrefix, "path-prefix", "p", "", "filter by file path prefix")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output as JSON")
	cmd.Flags().BoolVar(&opts.noSnippets, "no-snippets", false, "omit code snippets from results")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipeline, err := search.New(cfg.ArtifactsDir, cfg.Search, cfg.Embed.QueryCacheSize)
	if err != nil {
		return err
	}

	resp, err := pipeline.Search(context.Background(), search.Request{
		Query:            query,
		TopKRetrieve:     opts.topKRetrieve,
		TopKRerank:       opts.topKRerank,
		RetrievalMode:    opts.mode,
		FilterLanguage:   opts.language,
		FilterPathPrefix: opts.pathPrefix,
		ReturnSnippets:   !opts.noSnippets,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	fmt.Fprintf(out, "%d results (mode=%s, request_id=%s, total_candidates=%d, rerank_skipped=%v)\n",
		len(resp.Results), resp.RetrievalMode, resp.RequestID, resp.TotalCandidates, resp.RerankSkipped)
	for _, item := range resp.Results {
		fmt.Fprintf(out, "%d. %s:%d-%d [%s] %s (retrieval=%.4f",
			item.FinalRank, item.FilePath, item.StartLine, item.EndLine, item.Language, item.SymbolName, item.RetrievalScore)
		if item.RerankScore != nil {
			fmt.Fprintf(out, ", rerank=%.4f", *item.RerankScore)
		}
		fmt.Fprintln(out, ")")
		if item.CodeSnippet != nil {
			fmt.Fprintln(out, indent(*item.CodeSnippet))
		}
	}
	return nil
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n")
}
