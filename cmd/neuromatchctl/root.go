package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kailas-cloud/neuromatch/internal/app"
	"github.com/kailas-cloud/neuromatch/internal/config"
	logpkg "github.com/kailas-cloud/neuromatch/internal/logger"
)

// cli carries settings shared by all subcommands. Flags bind through viper so every
// setting can also come from NEUROMATCH_* environment variables.
type cli struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	c.v.SetEnvPrefix("NEUROMATCH")
	c.v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "neuromatchctl",
		Short: "Operate the neuromatch ranker",
		Long: `neuromatchctl builds and queries the standing job corpus and runs one-off matches
with the same configuration the API server uses.

Example usage:
  neuromatchctl index build --input jobs.txt
  neuromatchctl index search --query "golang backend" --top-k 5
  neuromatchctl match --profile "python developer" --job "python engineer role" --job "chef position"`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default config/<env>.yaml)")
	pf.String("env", "", "environment name used to pick the config file (default $ENV or local)")
	pf.String("log-level", "warn", "log level: debug, info, warn, error")
	_ = c.v.BindPFlag("config", pf.Lookup("config"))
	_ = c.v.BindPFlag("env", pf.Lookup("env"))
	_ = c.v.BindPFlag("log_level", pf.Lookup("log-level"))

	root.AddCommand(c.indexCmd(), c.matchCmd(), versionCmd())
	return root
}

func (c *cli) env() string {
	if env := c.v.GetString("env"); env != "" {
		return env
	}
	return config.GetEnv()
}

func (c *cli) loadConfig() (config.Config, error) {
	if path := c.v.GetString("config"); path != "" {
		return config.LoadFile(path)
	}
	return config.Load(c.env())
}

// open wires the service. withIndex forces the corpus index on.
func (c *cli) open(ctx context.Context, withIndex bool) (*app.App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if withIndex {
		cfg.Index.Enabled = true
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	logger, err := logpkg.NewLogger(c.env(), c.v.GetString("log_level"))
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Debug("Service opened", zap.String("env", c.env()))
	return a, nil
}
