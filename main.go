package main

import (
	"fmt"
	"os"

	"HealthIntake/config"
	"HealthIntake/logging"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "healthintake",
	Short:         "Health questionnaire intake server",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.AddCommand(serveCmd, renderCmd)
}

// loadConfig reads the config file (if any), applies environment overrides
// and initializes logging
func loadConfig() (*config.Config, func(), error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.LoadConfigFromFile(configPath); err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		return nil, nil, fmt.Errorf("environment: %w", err)
	}
	closeLog, err := logging.Init(cfg.LogFile, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("init logging: %w", err)
	}
	return cfg, closeLog, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("exiting")
		os.Exit(1)
	}
}
