// Package cli holds the pixstore command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"pixstore/internal/config"
	"pixstore/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCommand builds the pixstore command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "pixstore",
		Short: "Pix checkout for digital goods",
		Long: `pixstore sells digital goods for Pix: it reserves stock, issues BR Code
payloads, reconciles Mercado Pago notifications and delivers paid orders exactly once.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a config file (yaml, json or toml)")

	load := func() (config.Config, io.Closer, error) {
		cfg, err := config.Load(viper.New(), configFile)
		if err != nil {
			return config.Config{}, nil, err
		}
		_, closer := logger.Setup(logger.Options{
			Service: cfg.App.Name,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
			File:    cfg.Log.File,
		})
		return cfg, closer, nil
	}

	root.AddCommand(newServeCommand(load))
	root.AddCommand(newMigrateCommand(load))
	root.AddCommand(newSweepCommand(load))
	root.AddCommand(newPayloadCommand())
	return root
}

// configLoader reads configuration and installs the logger.
type configLoader func() (config.Config, io.Closer, error)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
