package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hermes-search/hermes/internal/search"
)

func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runStats(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pipeline, err := search.New(cfg.ArtifactsDir, cfg.Search, cfg.Embed.QueryCacheSize)
	if err != nil {
		return err
	}

	stats, err := pipeline.Stats("")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	fmt.Fprintf(out, "index_size=%d n_chunks=%d\n", stats.IndexSize, stats.NChunks)
	fmt.Fprintf(out, "biencoder=%s crossencoder=%s retrieval_mode=%s\n",
		stats.BiEncoderModel, stats.CrossEncoder, stats.RetrievalMode)
	fmt.Fprintf(out, "cache: hit_rate=%.4f hits=%d misses=%d\n",
		stats.CacheHitRate, stats.CacheHits, stats.CacheMisses)
	return nil
}
