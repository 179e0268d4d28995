package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/hengadev/miscutils"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	envFiles   []string
	codec      string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "miscutils",
		Short: "Inspect and edit files written by the miscutils serializer",
		Long: `miscutils reads and writes the files produced by the fault-tolerant
serializer: dump a stored object graph, edit a persisted cache or print
build information. serve exposes health checks for store files.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "YAML config file (default: MISCUTILS_* environment)")
	flags.StringSliceVar(&opts.envFiles, "env-file", nil, ".env files to load before reading the environment")
	flags.StringVar(&opts.codec, "codec", "", "override the configured codec (pickle or json)")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		newInspectCmd(opts),
		newCacheCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return rootCmd
}

// loadConfig resolves the effective configuration: .env files first, then
// either the --config file or the environment, then flag overrides. The
// overrides are validated by the constructors the config is passed to.
func (o *globalOptions) loadConfig() (miscutils.Config, error) {
	if err := miscutils.LoadDotEnv(o.envFiles...); err != nil {
		return miscutils.Config{}, err
	}

	var (
		cfg miscutils.Config
		err error
	)
	if o.configPath != "" {
		cfg, err = miscutils.LoadConfigFile(o.configPath)
	} else {
		cfg, err = miscutils.LoadConfigFromEnvironment()
	}
	if err != nil {
		return miscutils.Config{}, err
	}

	if o.codec != "" {
		cfg.Codec = o.codec
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *globalOptions) openCache(ctx context.Context, cmd *cobra.Command, path string) (*miscutils.Cache, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.LogOutput = cmd.ErrOrStderr()
	return miscutils.NewCacheFromConfig(ctx, miscutils.NewFileStore(path), cfg)
}
