package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"snsnotify/internal/api"
	"snsnotify/internal/build"
	"snsnotify/internal/config"
	"snsnotify/internal/logging"
	"snsnotify/internal/notifier"
	"snsnotify/internal/settings"
	"snsnotify/internal/source"
	"snsnotify/internal/store"
)

// Deps are the collaborators a daemon runs with.
type Deps struct {
	Config   *config.Config
	Settings *settings.Manager
	Store    *store.Store
	Factory  notifier.ClientFactory
	Logger   *slog.Logger
	// Sources overrides the broker sources built from Config.
	Sources []source.Source
	// Reload delivers reload requests, typically SIGHUP.
	Reload <-chan os.Signal
}

// Daemon owns the process lifecycle.
type Daemon struct {
	cfg      *config.Config
	settings *settings.Manager
	store    *store.Store
	service  *notifier.Service
	logger   *slog.Logger
	sources  []source.Source
	reload   <-chan os.Signal

	lockPath string
	lock     *flock.Flock
	api      *apiServer

	running atomic.Bool
}

// New constructs a daemon with initialized dependencies.
func New(deps Deps) (*Daemon, error) {
	if deps.Config == nil || deps.Settings == nil || deps.Store == nil || deps.Factory == nil {
		return nil, errors.New("daemon requires config, settings, store, and client factory")
	}
	logger := logging.NewComponentLogger(deps.Logger, "daemon")

	dispatcher := notifier.NewDispatcher(deps.Factory, nil, deps.Logger)
	service := notifier.NewService(dispatcher, deps.Settings, deps.Store, deps.Store, deps.Logger)

	sources := deps.Sources
	if sources == nil {
		sources = sourcesFromConfig(deps.Config, deps.Logger)
	}

	d := &Daemon{
		cfg:      deps.Config,
		settings: deps.Settings,
		store:    deps.Store,
		service:  service,
		logger:   logger,
		sources:  sources,
		reload:   deps.Reload,
		lockPath: deps.Config.LockPath(),
		lock:     flock.New(deps.Config.LockPath()),
	}

	if bind := deps.Config.API.Bind; bind != "" {
		handler := api.NewRouter(api.Options{
			Events:   service,
			Jobs:     deps.Store,
			Settings: deps.Settings,
			Token:    deps.Config.API.Token,
			Logger:   deps.Logger,
		})
		d.api = newAPIServer(bind, handler, deps.Logger)
	}
	return d, nil
}

func sourcesFromConfig(cfg *config.Config, logger *slog.Logger) []source.Source {
	var out []source.Source
	if nc := cfg.Sources.NATS; nc.Enabled {
		out = append(out, source.NewNATS(source.NATSConfig{URL: nc.URL, Subject: nc.Subject, Queue: nc.Queue}, logger))
	}
	if kc := cfg.Sources.Kafka; kc.Enabled {
		out = append(out, source.NewKafka(source.KafkaConfig{Brokers: kc.Brokers, Topic: kc.Topic, GroupID: kc.GroupID}, logger))
	}
	return out
}

// Run acquires the lock and serves until ctx is cancelled or a component
// fails.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return errors.New("daemon already running")
	}
	defer d.running.Store(false)

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another snsnotify daemon instance is already running")
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			d.logger.Warn("failed to release daemon lock", logging.Error(err))
		}
	}()

	if d.api != nil {
		if err := d.api.listen(); err != nil {
			return err
		}
	}

	d.logger.Info("snsnotify daemon started",
		logging.String("lock", d.lockPath),
		logging.String("database", d.store.Path()),
		logging.Int("sources", len(d.sources)),
	)

	g, gctx := errgroup.WithContext(ctx)
	if d.api != nil {
		g.Go(func() error { return d.api.serve(gctx) })
	}
	for _, src := range d.sources {
		g.Go(func() error {
			if err := src.Run(gctx, d.handleEvent); err != nil {
				return fmt.Errorf("source %s: %w", src.Name(), err)
			}
			return nil
		})
	}
	if d.reload != nil {
		g.Go(func() error {
			d.watchReload(gctx)
			return nil
		})
	}

	err = g.Wait()
	d.logger.Info("snsnotify daemon stopped")
	return err
}

// Running reports whether Run is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// APIAddr returns the bound API address once Run is listening.
func (d *Daemon) APIAddr() net.Addr {
	if d.api == nil {
		return nil
	}
	return d.api.addr()
}

// Reload re-reads the configuration file and swaps the settings snapshot.
// Listener and source settings take effect on restart only.
func (d *Daemon) Reload() error {
	g, err := d.settings.Reload()
	if err != nil {
		logging.WarnWithContext(d.logger, "settings reload failed", "settings_reload_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the configuration file and send SIGHUP again"),
			logging.String(logging.FieldImpact, "previous settings stay in effect"),
		)
		return err
	}
	d.logger.Info("settings reloaded",
		logging.String("path", d.settings.Path()),
		logging.String("default_topic_arn", g.DefaultTopicARN),
		logging.Bool("send_on_start", g.SendOnStart),
	)
	return nil
}

func (d *Daemon) watchReload(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-d.reload:
			if !ok {
				return
			}
			_ = d.Reload()
		}
	}
}

func (d *Daemon) handleEvent(ctx context.Context, ev build.Event) error {
	logger := d.logger.With(
		logging.Job(ev.Job),
		logging.BuildNumber(ev.Number),
	)
	out, err := d.service.Handle(ctx, ev, notifier.LogSink(logger))
	if err != nil {
		return err
	}
	logger.Debug("build event handled", logging.String(logging.FieldOutcome, out.String()))
	return nil
}
