package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/metrics"
)

// Dispatcher runs each send in its own goroutine so callers never wait on
// delivery. Wait drains the in-flight sends at shutdown; once it has been
// called, Queue drops new sends.
type Dispatcher struct {
	transport Transport
	wg        sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher wraps a Transport.
func NewDispatcher(t Transport) *Dispatcher {
	return &Dispatcher{transport: t}
}

// Queue starts the send and returns immediately. The outcome is logged and
// counted, never returned.
func (d *Dispatcher) Queue(ctx context.Context, to, subject, htmlBody string) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		slog.WarnContext(ctx, config.MsgSendClosed,
			config.LogKeyComponent, config.CompNotify,
			config.LogKeyTo, to,
		)
		metrics.RecordNotification(false)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()
	metrics.NotificationsInFlight.Inc()

	slog.DebugContext(ctx, config.MsgSendQueued,
		config.LogKeyComponent, config.CompNotify,
		config.LogKeyTo, to,
	)

	go func() {
		defer d.wg.Done()
		defer metrics.NotificationsInFlight.Dec()

		sendCtx, cancel := context.WithTimeout(ctx, config.HTTPTimeout)
		defer cancel()

		metrics.RecordNotification(d.transport.Send(sendCtx, to, subject, htmlBody))
	}()
}

// Wait stops accepting sends and blocks until every queued send has
// finished or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		slog.Warn(config.MsgDrainTimeout,
			config.LogKeyComponent, config.CompNotify,
			config.LogKeyError, ctx.Err(),
		)
		return ctx.Err()
	}
}
