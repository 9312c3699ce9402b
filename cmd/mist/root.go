package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nasa/GMSEC-API-sub012/config"
	"github.com/nasa/GMSEC-API-sub012/mist"
)

type rootFlags struct {
	configFile string
	settings   []string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Inspect GMSEC message templates and validate messages",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(setupLogger(cmd.ErrOrStderr(), flags.logLevel, flags.logFormat))
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configFile, "config", "c", os.Getenv("MIST_CONFIG"),
		"Configuration file (.json, .yaml, .toml) (env: MIST_CONFIG)")
	pf.StringArrayVarP(&flags.settings, "set", "s", nil,
		"Configuration entry key=value, e.g. gmsec-specification-version=201400 (repeatable)")
	pf.StringVar(&flags.logLevel, "log-level", envOr("MIST_LOG_LEVEL", "warn"),
		"Log level: debug, info, warn, error (env: MIST_LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", envOr("MIST_LOG_FORMAT", "text"),
		"Log format: json, text (env: MIST_LOG_FORMAT)")

	cmd.AddCommand(
		newListCmd(flags),
		newTemplateCmd(flags),
		newValidateCmd(flags),
		newSchemaCmd(flags),
		newHeartbeatCmd(flags),
		newSubscribeCmd(flags),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadConfig merges the config file with --set entries; --set wins
func (f *rootFlags) loadConfig() (*config.Config, error) {
	cfg := config.New()
	if f.configFile != "" {
		loaded, err := config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.Merge(config.NewFromArgs(f.settings), true)
	return cfg, nil
}

func (f *rootFlags) specification() (*config.Config, *mist.Specification, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	spec, err := mist.New(cfg, mist.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, err
	}
	return cfg, spec, nil
}
