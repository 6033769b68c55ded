// Package cmd implements the content-queue command-line interface.
package cmd

import (
	"context"
	"fmt"

	"github.com/jupark12/go-content-queue/config"
	"github.com/jupark12/go-content-queue/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfigPath = "config.yaml"

var rootCmd = &cobra.Command{
	Use:   "content-queue",
	Short: "Asynchronous article and product content generation",
	Long: `content-queue extracts structured data from web pages and marketplace
listings, sends it to a text-completion service, and tracks each request
as a job that clients poll or stream.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is ./config.yaml, or $CONFIG_PATH)")
	flags.Bool("debug", false, "enable debug mode")

	cobra.CheckErr(viper.BindPFlag("config", flags.Lookup("config")))
	cobra.CheckErr(viper.BindPFlag("debug", flags.Lookup("debug")))
	cobra.CheckErr(viper.BindEnv("config", "CONFIG_PATH"))
	cobra.CheckErr(viper.BindEnv("debug", "APP_DEBUG"))

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newVersionCommand())
}

// loadConfig resolves the config path and debug switch from flags or the
// environment, then loads the configuration.
func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = defaultConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if viper.GetBool("debug") {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log, nil
}
