package daemon_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/gofrs/flock"

	"snsnotify/internal/build"
	"snsnotify/internal/config"
	"snsnotify/internal/daemon"
	"snsnotify/internal/notifier"
	"snsnotify/internal/settings"
	"snsnotify/internal/source"
	"snsnotify/internal/testsupport"
)

const testTopic = "arn:aws:sns:us-east-1:123456789012:builds"

type countingFactory struct {
	mu        sync.Mutex
	published []notifier.PublishInput
}

func (f *countingFactory) NewClient(context.Context, notifier.ClientOptions) (notifier.Client, error) {
	return &countingClient{f: f}, nil
}

func (f *countingFactory) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type countingClient struct{ f *countingFactory }

func (c *countingClient) Publish(_ context.Context, in notifier.PublishInput) (string, error) {
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	c.f.published = append(c.f.published, in)
	return "msg", nil
}

func (c *countingClient) Close() error { return nil }

type staticSource struct {
	events []build.Event
	done   chan struct{}
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) Run(ctx context.Context, handle source.Handler) error {
	for _, ev := range s.events {
		_ = handle(ctx, ev)
	}
	close(s.done)
	<-ctx.Done()
	return nil
}

func newDaemon(t *testing.T, cfg *config.Config, path string, deps daemon.Deps) (*daemon.Daemon, daemon.Deps) {
	t.Helper()
	deps.Config = cfg
	deps.Settings = settings.NewManager(cfg, path)
	deps.Store = testsupport.MustOpenStore(t, cfg)
	if deps.Factory == nil {
		deps.Factory = &countingFactory{}
	}
	if deps.Sources == nil {
		deps.Sources = []source.Source{}
	}
	d, err := daemon.New(deps)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d, deps
}

func runDaemon(t *testing.T, d *daemon.Daemon) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDaemonServesAPIAndStops(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, "", daemon.Deps{})

	cancel, errCh := runDaemon(t, d)
	waitFor(t, func() bool { return d.APIAddr() != nil })

	resp, err := http.Get("http://" + d.APIAddr().String() + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !d.Running() {
		t.Fatal("expected daemon running")
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
	if d.Running() {
		t.Fatal("expected daemon stopped")
	}
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock := flock.New(cfg.LockPath())
	if ok, err := lock.TryLock(); err != nil || !ok {
		t.Fatalf("pre-lock: ok=%v err=%v", ok, err)
	}
	defer lock.Unlock()

	d, _ := newDaemon(t, cfg, "", daemon.Deps{})
	if err := d.Run(context.Background()); err == nil {
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonRoutesSourceEvents(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithDefaultTopic(testTopic))
	cfg.API.Bind = ""
	factory := &countingFactory{}
	src := &staticSource{
		done: make(chan struct{}),
		events: []build.Event{
			{Job: "api", Number: 1, Phase: build.PhaseCompleted, Result: build.ResultFailure},
			{Job: "unattached", Number: 1, Phase: build.PhaseCompleted, Result: build.ResultFailure},
		},
	}
	d, deps := newDaemon(t, cfg, "", daemon.Deps{Factory: factory, Sources: []source.Source{src}})
	testsupport.AttachJob(t, deps.Store, build.JobConfig{Job: "api"})

	cancel, errCh := runDaemon(t, d)
	<-src.done
	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if factory.count() != 1 {
		t.Fatalf("expected one publish, got %d", factory.count())
	}
}

func TestDaemonReloadsSettingsOnSignal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Bind = ""
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := config.Save(path, cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reload := make(chan os.Signal, 1)
	d, deps := newDaemon(t, cfg, path, daemon.Deps{Reload: reload})
	_, _ = runDaemon(t, d)
	waitFor(t, d.Running)

	updated := *cfg
	updated.Notifications.DefaultTopicARN = testTopic
	if err := config.Save(path, &updated); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reload <- syscall.SIGHUP

	waitFor(t, func() bool { return deps.Settings.Snapshot().DefaultTopicARN == testTopic })
}
