package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/ports"
	"github.com/audiolibrelab/jamtrack/internal/service"

	"github.com/spf13/cobra"
)

var (
	cfg          *config.Config
	cfgFile      string
	profile      string
	verboseLevel int
)

var rootCmd = &cobra.Command{
	Use:   "jamtrack",
	Short: "Track recording orchestrator for jam sessions",
	Long: `JamTrack arms tracks, captures takes and turns them into regions on
the tracks' playlists, with latency-aware alignment and automatic input
metering.

Takes are captured as passes on the timeline; when the transport stops,
each pass becomes a region layered according to the record mode.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Configure slog based on verbose level
		setupLogging(verboseLevel)

		// The sources command works without any configuration
		if cmd.Name() == "sources" && cfgFile == "" {
			return nil
		}

		// Use default config path if not specified
		if cfgFile == "" {
			cfgFile = os.ExpandEnv("$HOME/.config/jamtrack.yaml")
		}

		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			slog.Debug("No config file, using defaults", "path", cfgFile)
			cfg = config.Default()
			return nil
		}

		var err error
		cfg, err = config.LoadWithProfile(cfgFile, profile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/jamtrack.yaml)")
	rootCmd.PersistentFlags().StringVar(&profile, "profile", "", "configuration profile to use (overrides active_config from file)")
	rootCmd.PersistentFlags().IntVarP(&verboseLevel, "verbose", "v", 0, "verbose level: 0=info, 1=debug, 2=pipewire tracing")

	// Add subcommands
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(armCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(serveCmd)
}

// setupLogging configures slog based on the verbose level
func setupLogging(level int) {
	var slogLevel slog.Level
	switch level {
	case 0:
		slogLevel = slog.LevelInfo
	case 1, 2:
		slogLevel = slog.LevelDebug
	default:
		slogLevel = slog.LevelInfo
	}

	// Configure text handler for clean terminal output
	opts := &slog.HandlerOptions{
		Level: slogLevel,
	}
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if level >= 2 {
		os.Setenv("PIPEWIRE_DEBUG", "3")
	}
}

// openService builds the service for the loaded configuration and restores
// the saved session when there is one.
func openService() (*service.JamTrackService, error) {
	var pw *ports.PipeWire
	if cfg.Audio.Backend == "pipewire" {
		pw = ports.NewPipeWire()
	}

	svc, err := service.New(cfg, cfgFile, pw)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	if cfg.Output.StateFile != "" {
		if _, err := os.Stat(cfg.Output.StateFile); err == nil {
			if err := svc.LoadState(""); err != nil {
				slog.Warn("Session state restored with errors", "path", cfg.Output.StateFile, "error", err)
			}
		}
	}
	return svc, nil
}
