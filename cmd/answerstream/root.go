package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/go-go-golems/answerstream/pkg/config"
	"github.com/go-go-golems/answerstream/pkg/conversation"
	"github.com/go-go-golems/answerstream/pkg/persistence"
	"github.com/go-go-golems/answerstream/pkg/streamer"
)

var (
	flagConfig   string
	flagBaseURL  string
	flagLogLevel string

	appCfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "answerstream",
	Short: "Stream and aggregate search-augmented answers",
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if flagBaseURL != "" {
			cfg.BaseURL = flagBaseURL
		}
		if flagLogLevel != "" {
			cfg.LogLevel = flagLogLevel
		}

		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			zerolog.SetGlobalLevel(lvl)
		}

		appCfg = cfg
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "producer base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides config)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(uploadCmd)
}

// buildClient wires the conversation store, transport and optional turn log
// into a controller. The returned cleanup closes the turn log.
func buildClient() (*conversation.Store, *streamer.Controller, func(), error) {
	store := conversation.NewStore()

	var transport streamer.Transport
	switch appCfg.Transport {
	case "ws":
		transport = streamer.NewWSTransport(appCfg.BaseURL, nil)
	default:
		transport = streamer.NewHTTPTransport(appCfg.BaseURL, nil)
	}

	cleanup := func() {}
	var opts []streamer.Option
	if appCfg.TurnLogPath != "" {
		tl, err := persistence.NewSQLiteTurnLog(appCfg.TurnLogPath)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, streamer.WithTurnLog(tl))
		cleanup = func() { _ = tl.Close() }
	}

	return store, streamer.NewController(store, transport, opts...), cleanup, nil
}
