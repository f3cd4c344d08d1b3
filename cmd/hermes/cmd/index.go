package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hermes-search/hermes/internal/chunk"
	"github.com/hermes-search/hermes/internal/config"
	"github.com/hermes-search/hermes/internal/index"
	"github.com/hermes-search/hermes/internal/status"
	"github.com/hermes-search/hermes/internal/store"
)

func chunkingConfigFrom(cfg config.Config) chunk.Config {
	return chunk.Config{
		MaxChars:     cfg.Chunking.MaxChars,
		OverlapLines: cfg.Chunking.OverlapLines,
		MinChars:     cfg.Chunking.MinChars,
	}
}

func newIndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Index a repository for searching",
		Long: `Index scans a repository, chunks its source files, embeds the
chunks, and builds the dense and sparse indices used by 'hermes search'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, args[0])
		},
	}
	return cmd
}

func runIndex(cmd *cobra.Command, repoPath string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tracker := status.New()
	idx := index.New(cfg.ArtifactsDir, index.Config{
		Chunking: chunkingConfigFrom(cfg),
		Dense: store.DenseConfig{
			UseANN: cfg.Index.UseANN,
			Nlist:  cfg.Index.ANNNlist,
			Nprobe: cfg.Index.ANNNprobe,
		},
	}, index.WithStatusTracker(tracker))

	summary, err := idx.Index(repoPath)
	if err != nil {
		return err
	}
	if st := tracker.Get(); st.Phase != status.PhaseDone {
		return fmt.Errorf("unexpected tracker phase %q after successful index", st.Phase)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "indexed %d files, %d chunks (dim=%d, model=%s)\n",
		summary.FileCount, summary.ChunkCount, summary.EmbeddingDim, summary.BiEncoderModel)
	fmt.Fprintf(out, "chunk=%.1fms embed=%.1fms total=%.1fms (%.1f chunks/sec)\n",
		summary.TimeChunkMs, summary.TimeEmbedMs, summary.TimeTotalMs, summary.ChunksPerSec)
	return nil
}
