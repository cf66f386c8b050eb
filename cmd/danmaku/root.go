package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/praise-danmaku/danmaku/internal/config"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "danmaku",
		Short: "Scrolling praise captions in the terminal",
		Long: `danmaku connects to a praise stream and scrolls every praise across
the terminal in non-overlapping lanes. The feed subcommand serves a local
stream for development.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFile(opts.envFile)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "danmaku.yaml", "config file path")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with DANMAKU_* overrides")

	root.AddCommand(newWatchCmd(opts), newFeedCmd(opts))
	return root
}

// load reads the config file, then applies the environment.
func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	return cfg, nil
}
