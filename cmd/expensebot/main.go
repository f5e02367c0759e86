package main

import (
	"fmt"
	"os"

	"github.com/boddenberg/expense-assistant-go/internal/config"
	"github.com/boddenberg/expense-assistant-go/internal/infra/observability"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	envFile string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "expensebot",
		Short:         "Track expenses from free-text messages",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Path to a .env file (missing is fine)")

	cmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// load reads .env, then the environment, and builds the logger.
func (o *rootOptions) load() error {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return fmt.Errorf("load %s: %w", o.envFile, err)
	}

	o.cfg = config.Load()
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	o.logger = observability.NewLogger(o.cfg.LogLevel)
	o.logger.Info("configuration loaded",
		zap.Int("port", o.cfg.Port),
		zap.String("log_level", o.cfg.LogLevel),
		zap.String("storage_backend", o.cfg.StorageBackend),
		zap.String("model", o.cfg.GroqModel),
		zap.Duration("http_timeout", o.cfg.HTTPTimeout),
		zap.Int("max_retries", o.cfg.MaxRetries),
		zap.Duration("category_cache_ttl", o.cfg.CategoryCacheTTL),
		zap.Bool("events_enabled", o.cfg.AMQPURL != ""),
		zap.String("timezone", o.cfg.Timezone),
	)
	return nil
}
