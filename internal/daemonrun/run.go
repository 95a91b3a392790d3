// Package daemonrun assembles and runs the snsnotify daemon process.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"snsnotify/internal/config"
	"snsnotify/internal/daemon"
	"snsnotify/internal/logging"
	"snsnotify/internal/settings"
	"snsnotify/internal/sns"
	"snsnotify/internal/store"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// ConfigPath is where administrative updates are saved and SIGHUP
	// reloads from.
	ConfigPath  string
	LogLevel    string
	Development bool
}

// Run starts the daemon and blocks until SIGINT, SIGTERM, or ctx ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		FilePath:    cfg.LogPath(),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logSettingsSnapshot(logger, cfg, opts.ConfigPath)

	pidPath := filepath.Join(cfg.Paths.StateDir, "snsnotifyd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	st, err := store.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open store", "store_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
		)
		return err
	}
	defer st.Close()

	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	defer signal.Stop(reload)

	d, err := daemon.New(daemon.Deps{
		Config:   cfg,
		Settings: settings.NewManager(cfg, opts.ConfigPath),
		Store:    st,
		Factory:  sns.NewFactory(),
		Logger:   logger,
		Reload:   reload,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon stopped with error", "daemon_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and state database access"),
		)
		return err
	}
	logger.Info("snsnotify daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logSettingsSnapshot(logger *slog.Logger, cfg *config.Config, path string) {
	g := settings.FromConfig(cfg)
	logger.Info("settings snapshot",
		logging.String(logging.FieldEventType, "settings_snapshot"),
		logging.String("config_path", path),
		logging.Bool("static_credentials", g.HasStaticCredentials()),
		logging.Bool("ambient_credentials", g.UseAmbientCredentials),
		logging.Bool("custom_endpoint", g.Endpoint != ""),
		logging.Bool("default_topic_set", g.DefaultTopicARN != ""),
		logging.Bool("root_url_set", g.RootURL != ""),
		logging.Bool("send_on_start", g.SendOnStart),
		logging.Bool("notify_on_consecutive_successes", g.NotifyOnConsecutiveSuccesses),
		logging.String("api_bind", cfg.API.Bind),
		logging.Bool("nats_enabled", cfg.Sources.NATS.Enabled),
		logging.Bool("kafka_enabled", cfg.Sources.Kafka.Enabled),
	)
	if !g.HasStaticCredentials() && !g.UseAmbientCredentials {
		logging.WarnWithContext(logger, "no aws credentials configured", "credentials_missing",
			logging.String(logging.FieldErrorHint, "set aws.access_key/aws.secret_key or aws.use_ambient_credentials"),
		)
	}
}
