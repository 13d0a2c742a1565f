// voicechat - talk to a local language model and hear it answer in a
// converted voice. Microphone -> speech recognition -> Ollama -> Applio
// TTS + RVC -> speakers, one turn at a time.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-parrot/internal/config"
	"github.com/teslashibe/go-parrot/pkg/app"
)

type flags struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
	debug      bool
	user       string
	model      string
	stopPhrase string
	dashboard  bool
	dashAddr   string
	history    bool
	maxFails   int
	audio      string
}

func main() {
	if err := newRootCmd(runApp).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(runner func(context.Context, app.Config) error) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "voicechat",
		Short: "Voice chat with a local LLM through Applio voice conversion",
		Long: `voicechat listens on the microphone, transcribes what you say, asks a
chat model for a reply, voices it with Applio TTS and RVC, and plays it back.
Settings come from config.ini, .env and the environment; flags override them.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err == nil {
				ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer cancel()
				err = runner(ctx, cfg)
			}
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "voicechat: %v\n", err)
			}
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configPath, "config", "c", config.DefaultPath, "path to config.ini")
	fs.StringVar(&f.envFile, "env-file", config.DefaultEnvFile, "path to a .env file")
	fs.StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "log format: text or json")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logging")
	fs.StringVarP(&f.user, "user", "u", app.DefaultUser, "user name, selects the history file")
	fs.StringVarP(&f.model, "model", "m", app.DefaultOllamaModel, "chat model")
	fs.StringVar(&f.stopPhrase, "stop-phrase", app.DefaultStopPhrase, "phrase that ends the conversation")
	fs.BoolVar(&f.dashboard, "dashboard", false, "serve the web dashboard")
	fs.StringVar(&f.dashAddr, "dashboard-addr", app.DefaultDashboardAddr, "dashboard listen address")
	fs.BoolVar(&f.history, "history", false, "persist conversation history")
	fs.IntVar(&f.maxFails, "max-failures", 0, "stop after this many failed turns in a row (0 = never)")
	fs.StringVar(&f.audio, "audio", "auto", "audio backend: auto, alsa, coreaudio, ffmpeg")

	return cmd
}

// runApp holds one conversation. It returns nil on a clean stop.
func runApp(ctx context.Context, cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		a.Shutdown(sctx)
	}()

	if err := a.Init(ctx); err != nil {
		return err
	}
	return a.Run(ctx)
}

// loadConfig layers defaults, config.ini, .env, the environment and
// explicitly set flags, in that order.
func loadConfig(cmd *cobra.Command, f flags) (app.Config, error) {
	cfg := app.DefaultConfig()

	if f.envFile != config.DefaultEnvFile {
		if _, err := os.Stat(f.envFile); err != nil {
			return cfg, fmt.Errorf("env file: %w", err)
		}
		if err := config.LoadDotEnv(f.envFile); err != nil {
			return cfg, err
		}
	}
	if err := config.Load(f.configPath, &cfg); err != nil {
		return cfg, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("user") {
		cfg.User = f.user
	}
	if changed("model") {
		cfg.OllamaModel = f.model
	}
	if changed("stop-phrase") {
		cfg.StopPhrase = f.stopPhrase
	}
	if changed("dashboard") {
		cfg.DashboardEnabled = f.dashboard
	}
	if changed("dashboard-addr") {
		cfg.DashboardAddr = f.dashAddr
	}
	if changed("history") {
		cfg.HistoryEnabled = f.history
	}
	if changed("max-failures") {
		cfg.MaxConsecutiveFailures = f.maxFails
	}
	if changed("audio") {
		cfg.AudioBackend = f.audio
	}
	return cfg, nil
}
