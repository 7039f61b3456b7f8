// Package cmd runs a configured Telegram application from main.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m3rciful/rabiesbot/core/buildinfo"
	coreconfig "github.com/m3rciful/rabiesbot/core/config"
	"github.com/m3rciful/rabiesbot/core/logger"
	coretelegram "github.com/m3rciful/rabiesbot/core/telegram"
)

// ConfigCarrier exposes the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is a bootstrapped application. Close runs after the bot stops.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	Close() error
}

// Options describe how to load configuration, bootstrap the app and run the bot.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; "CONFIG_PATH" when empty.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

func (o Options) configPath() (string, error) {
	env := o.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if o.DefaultConfigPath != "" {
		return o.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// Run loads configuration, bootstraps the app and serves Telegram updates
// until SIGINT or SIGTERM. A returned error has already been logged and the
// logger flushed.
func Run(opts Options) (err error) {
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err != nil {
			logger.Error(logger.Background(), "app", "fatal", slog.String("err", err.Error()))
		}
		if serr := shutdownLogger(); serr != nil {
			log.Printf("logger shutdown error: %v", serr)
		}
	}()

	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	path, err := opts.configPath()
	if err != nil {
		return err
	}

	// The logger is configured by Bootstrap, so earlier output goes to the std logger.
	log.Printf("build %s: loading config %s", buildinfo.String(), path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	app, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error(logger.Background(), "app", "close", slog.String("err", err.Error()))
		}
	}()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	runOpts.OnStart = chainHooks(runOpts.OnStart, func(ctx context.Context, _ coretelegram.Runtime) error {
		logger.Info(ctx, "app", "ready", slog.Duration("startup_duration", logger.RoundMS(time.Since(started))))
		return nil
	})
	runOpts.OnStop = chainHooks(func(ctx context.Context, _ coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		return nil
	}, runOpts.OnStop)

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

type hook = func(context.Context, coretelegram.Runtime) error

// chainHooks runs the non-nil hooks in order and stops at the first error.
func chainHooks(hooks ...hook) hook {
	return func(ctx context.Context, rt coretelegram.Runtime) error {
		for _, h := range hooks {
			if h == nil {
				continue
			}
			if err := h(ctx, rt); err != nil {
				return err
			}
		}
		return nil
	}
}
