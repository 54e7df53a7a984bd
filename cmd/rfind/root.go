package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mgomes/resumefind/internal/config"
	"github.com/mgomes/resumefind/internal/gateway"
	"github.com/mgomes/resumefind/internal/logger"
	"github.com/mgomes/resumefind/internal/session"
	"github.com/mgomes/resumefind/internal/tui"
	"github.com/mgomes/resumefind/internal/watcher"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const app = "rfind"

var (
	// Used for flags.
	cfgFile string

	v = viper.New()

	rootCmd = &cobra.Command{
		Use:          app,
		Short:        "rfind is a conversational client for a resume search API",
		Long:         "rfind searches resumes in natural language. Run it without arguments for the chat interface.",
		SilenceUsage: true,
		RunE:         runChat,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "a config file (default is ~/.config/rfind/config.json)")
	flags.String("api-url", "", "address of the resume search API (default "+config.DefaultAPIURL+")")
	flags.String("watch", "", "directory whose new PDF resumes are uploaded automatically")
	flags.String("log-file", "", "log file (default is ~/.config/rfind/rfind.log)")
	flags.BoolP("debug", "d", false, "verbose/debug logging")

	for key, flag := range map[string]string{
		"api_url":   "api-url",
		"watch_dir": "watch",
		"log_file":  "log-file",
		"debug":     "debug",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			log.Fatalf("binding --%s flag: %v", flag, err)
		}
	}
}

// env is what every command needs to talk to the backend.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *gateway.Client
	session *session.Session
}

func newEnv() (*env, error) {
	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg, err := logger.New(cfg.LogFile, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	id := session.NewID()
	client, err := gateway.New(cfg.APIURL, gateway.WithLogger(lg), gateway.WithSessionID(id))
	if err != nil {
		return nil, err
	}

	sess := session.New(client, session.WithLogger(lg), session.WithID(id))

	return &env{cfg: cfg, logger: lg, client: client, session: sess}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runChat(_ *cobra.Command, _ []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}
	defer e.close()

	e.logger.Info("starting rfind",
		zap.String("api_url", e.cfg.APIURL),
		zap.String("watch_dir", e.cfg.WatchDir))

	ctx, cancel := signalContext()
	defer cancel()

	model := tui.NewChatModel(ctx, e.session, e.client.BaseURL())
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if e.cfg.WatchDir != "" {
		w, err := watcher.New(e.cfg.WatchDir, func(paths []string) {
			program.Send(tui.WatchedFilesMsg{Paths: paths})
		}, e.logger)
		if err != nil {
			return err
		}

		go func() {
			if err := w.Start(ctx); err != nil {
				e.logger.Error("watching resume inbox", zap.Error(err))
			}
		}()
	}

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		e.logger.Error("running the chat", zap.Error(err))
		return err
	}

	return nil
}
