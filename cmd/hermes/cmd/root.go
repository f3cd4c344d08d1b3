// Package cmd provides the CLI commands for hermes.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hermes-search/hermes/internal/config"
	"github.com/hermes-search/hermes/internal/logging"
	"github.com/hermes-search/hermes/pkg/version"
)

var (
	cfgFile      string
	artifactsDir string
	logLevel     string
	logJSON      bool
)

// NewRootCmd creates the root command for the hermes CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hermes",
		Short:   "Structural code search over a local repository",
		Version: version.Version,
		Long: `hermes indexes a repository into structural chunks and serves
hybrid dense/sparse search over them with reciprocal rank fusion and
cross-encoder reranking.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logCfg := logging.DefaultConfig()
			// A config that fails to load is reported by the subcommand.
			if cfg, err := loadConfig(); err == nil {
				logCfg.Level = cfg.LogLevel
				logCfg.JSON = cfg.LogJSON
			}
			if logLevel != "" {
				logCfg.Level = logLevel
			}
			if logJSON {
				logCfg.JSON = true
			}
			logging.SetupDefault(logCfg)
			return nil
		},
	}
	cmd.SetVersionTemplate("hermes version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&artifactsDir, "artifacts-dir", "", "override artifacts_dir from config")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level from config")
	cmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON instead of text")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// Execute runs the hermes CLI.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads the effective configuration, applying the --artifacts-dir
// flag override on top of file/env-derived values.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return cfg, err
	}
	if artifactsDir != "" {
		cfg.ArtifactsDir = artifactsDir
	}
	return cfg, nil
}
