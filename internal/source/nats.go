package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"snsnotify/internal/logging"
)

// NATSConfig configures a NATS queue-group subscription.
type NATSConfig struct {
	URL     string
	Subject string
	Queue   string
}

// drainWait bounds how long Run waits for the connection to finish draining.
const drainWait = 30 * time.Second

// NATS receives envelopes from a core NATS subject. Members of the same
// queue group share the stream so each event is handled once.
type NATS struct {
	cfg    NATSConfig
	logger *slog.Logger
	opts   []nats.Option
}

// NewNATS returns a NATS source. Extra options are passed to nats.Connect.
func NewNATS(cfg NATSConfig, logger *slog.Logger, opts ...nats.Option) *NATS {
	return &NATS{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "source.nats"),
		opts:   opts,
	}
}

// Name implements Source.
func (n *NATS) Name() string { return "nats" }

// Run subscribes and blocks until ctx is cancelled, then drains the
// connection and waits for it to close so in-flight messages finish.
// Handlers run detached from ctx cancellation for the same reason.
func (n *NATS) Run(ctx context.Context, handle Handler) error {
	closed := make(chan struct{})
	opts := append([]nats.Option{
		nats.Name("snsnotify"),
		nats.MaxReconnects(-1),
		nats.DrainTimeout(drainWait),
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.WarnWithContext(n.logger, "nats disconnected", "nats_disconnected",
					logging.Error(err),
					logging.String(logging.FieldImpact, "build events are not received until reconnect"),
				)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			n.logger.Info("nats reconnected", logging.String("url", nc.ConnectedUrl()))
		}),
	}, n.opts...)

	nc, err := nats.Connect(n.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()

	handleCtx := context.WithoutCancel(ctx)
	_, err = nc.QueueSubscribe(n.cfg.Subject, n.cfg.Queue, func(msg *nats.Msg) {
		n.handleMessage(handleCtx, handle, msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", n.cfg.Subject, err)
	}
	n.logger.Info("nats source subscribed",
		logging.String("url", n.cfg.URL),
		logging.String("subject", n.cfg.Subject),
		logging.String("queue", n.cfg.Queue),
	)

	<-ctx.Done()
	n.drain(nc, closed, drainWait)
	return nil
}

type drainer interface {
	Drain() error
}

// drain starts draining conn and blocks until the closed handler fires or
// timeout passes.
func (n *NATS) drain(conn drainer, closed <-chan struct{}, timeout time.Duration) {
	if err := conn.Drain(); err != nil {
		n.logger.Debug("nats drain failed", logging.Error(err))
		return
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-closed:
	case <-timer.C:
		logging.WarnWithContext(n.logger, "nats drain timed out", "nats_drain_timeout",
			logging.Duration("timeout", timeout),
			logging.String(logging.FieldImpact, "events still in flight may be redelivered to another member"),
		)
	}
}

func (n *NATS) handleMessage(ctx context.Context, handle Handler, subject string, data []byte) {
	ev, err := Decode(data)
	if err != nil {
		logging.WarnWithContext(n.logger, "dropping nats message", "source_decode_failed",
			logging.String("subject", subject),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "publish a {\"phase\",\"event\"} JSON envelope"),
		)
		return
	}
	if err := handle(ctx, ev); err != nil {
		logging.WarnWithContext(n.logger, "build event handling failed", "source_handle_failed",
			logging.Job(ev.Job),
			logging.BuildNumber(ev.Number),
			logging.Error(err),
		)
	}
}
