// Package commands implements the netreq CLI subcommands.
package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-netreq/config"
	"github.com/gaborage/go-netreq/logger"
)

// ConfigOptions locates the configuration shared by every command.
type ConfigOptions struct {
	File    string
	EnvFile string
}

func (o *ConfigOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.File, "config", "c", "", "YAML configuration file (default netreq.yaml when present)")
	cmd.Flags().StringVar(&o.EnvFile, "env-file", config.DefaultDotEnv, "Dotenv file loaded before the environment; empty disables it")
}

func (o *ConfigOptions) load() (*config.Config, logger.Logger, error) {
	opts := []config.Option{config.WithDotEnv(o.EnvFile)}
	if o.File != "" {
		opts = append(opts, config.WithFile(o.File))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewWithWriter(os.Stderr, cfg.Log.Level, cfg.Log.Pretty), nil
}
