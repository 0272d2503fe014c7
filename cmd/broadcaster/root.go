package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/broadcaster/internal/app"
	"github.com/dshills/broadcaster/internal/config"
)

// cliFlags holds the persistent flags.
type cliFlags struct {
	configPath string
	logLevel   string
}

// buildRootCmd constructs the command tree.
func buildRootCmd() *cobra.Command {
	var flags cliFlags

	root := &cobra.Command{
		Use:           "broadcaster",
		Short:         "In-process event broadcaster with an HTTP control surface",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to configuration file (.toml, .yaml, .json)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broadcaster and its HTTP control surface",
		Example: "  broadcaster serve\n" +
			"  broadcaster serve -c broadcaster.toml --log-level debug",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), flags)
		},
	}

	demoCmd := &cobra.Command{
		Use:   "demo",
		Short: "Walk through subscribe, ordered delivery and suspend/resume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if flags.logLevel != "" {
				l, err := zerolog.ParseLevel(flags.logLevel)
				if err != nil {
					return fmt.Errorf("invalid log level %q: %w", flags.logLevel, err)
				}
				level = l
			}
			log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).Level(level).With().Timestamp().Logger()
			return app.RunDemo(cmd.OutOrStdout(), log)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Broadcaster %s\n", version)
			fmt.Fprintf(out, "Commit: %s\n", commit)
			fmt.Fprintf(out, "Built: %s\n", date)
		},
	}

	root.AddCommand(serveCmd, demoCmd, versionCmd)
	return root
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(flags cliFlags) (config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return cfg, err
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func serve(ctx context.Context, flags cliFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	logging, err := app.NewLogging(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer logging.Close()

	application, err := app.New(cfg, logging, app.Options{ConfigPath: flags.configPath})
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Logger.Info().
		Str("version", version).
		Str("config", flags.configPath).
		Str("addr", cfg.HTTP.Addr).
		Msg("starting")
	return application.Run(ctx)
}
