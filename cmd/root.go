package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-graph/internal/config"
	"github.com/xkilldash9x/scalpel-graph/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// fallbackLoggerConfig is installed when the configured logger cannot be built.
var fallbackLoggerConfig = config.LoggerConfig{Level: "info", Format: "console", ServiceName: "scalpel-graph"}

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile  string
	backend  string
	output   string
	loadFile string
}

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state, so tests and repeated invocations never share values.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "scalpel-graph",
		Short:         "Scalpel Graph stores and queries knowledge graphs on PostgreSQL or Neo4j.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(cmd, v, opts); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				_ = observability.InitializeLogger(fallbackLoggerConfig)
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			if err := observability.InitializeLogger(cfg.Logger()); err != nil {
				_ = observability.InitializeLogger(fallbackLoggerConfig)
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			observability.GetLogger().Debug("Starting scalpel-graph",
				zap.String("version", Version),
				zap.String("backend", cfg.Graph().Backend),
			)

			if err := startMetricsServer(cfg.Metrics()); err != nil {
				return err
			}

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.backend, "backend", "b", "", "graph backend to use (postgres, neo4j, memory)")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "json", "output format (json, yaml)")
	cmd.PersistentFlags().StringVar(&opts.loadFile, "load", "", "YAML or JSON graph file to import before running the command")
	cmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	cmd.AddCommand(newNodeCmd(opts))
	cmd.AddCommand(newEdgeCmd(opts))
	cmd.AddCommand(newTraverseCmd(opts))
	cmd.AddCommand(newPathCmd(opts))
	cmd.AddCommand(newCompareCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree with a signal-aware context.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCommand()
	if err := runRoot(ctx, rootCmd); err != nil {
		if errors.Is(err, context.Canceled) {
			observability.GetLogger().Warn("Command aborted")
		} else {
			rootCmd.PrintErrln("Error:", err)
			observability.GetLogger().Debug("Command execution failed", zap.Error(err))
		}
		return err
	}
	return nil
}

// runRoot executes rootCmd and releases process-wide resources whether or not
// the command succeeded. Cobra skips post-run hooks after a failed RunE.
func runRoot(ctx context.Context, rootCmd *cobra.Command) error {
	defer observability.Sync()
	defer stopMetricsServer(ctx)
	return rootCmd.ExecuteContext(ctx)
}

// initializeConfig reads the config file and environment into v, then lets
// explicitly set flags override both.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, opts *rootOptions) error {
	if opts.cfgFile != "" {
		path, err := homedir.Expand(opts.cfgFile)
		if err != nil {
			return fmt.Errorf("failed to expand config path: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCALPEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if flag := cmd.Flags().Lookup("backend"); flag != nil && flag.Changed {
		v.Set("graph.backend", opts.backend)
	}
	return nil
}

// configFrom returns the configuration stored by the root pre-run hook.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
