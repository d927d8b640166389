package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/segmentio/ksuid"
	"github.com/sethvargo/go-retry"
)

const (
	DefaultDispatchTimeout = 10 * time.Second
	DefaultDispatchRetries = 3
	DefaultDispatchBackoff = 500 * time.Millisecond
)

// ErrDispatcherClosed is reported when dispatching after Close
var ErrDispatcherClosed = goerrors.New("notification dispatcher is closed", goerrors.CategoryOperation)

// AsyncDispatcher delivers notifications in the background. Each attempt is
// bounded by a timeout and failed attempts are retried with exponential
// backoff. The caller never waits on delivery and never sees its outcome.
type AsyncDispatcher struct {
	mailer   Mailer
	logger   Logger
	activity ActivitySink
	timeout  time.Duration
	retries  uint64
	backoff  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

var _ Dispatcher = (*AsyncDispatcher)(nil)

// NewAsyncDispatcher creates a dispatcher with sane defaults.
func NewAsyncDispatcher(mailer Mailer) *AsyncDispatcher {
	if mailer == nil {
		mailer = LogMailer{}
	}
	return &AsyncDispatcher{
		mailer:   mailer,
		logger:   defLogger{},
		activity: noopActivitySink{},
		timeout:  DefaultDispatchTimeout,
		retries:  DefaultDispatchRetries,
		backoff:  DefaultDispatchBackoff,
	}
}

// WithLogger overrides the logger used by the dispatcher.
func (d *AsyncDispatcher) WithLogger(logger Logger) *AsyncDispatcher {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithActivitySink sets the sink notified when a delivery is given up.
func (d *AsyncDispatcher) WithActivitySink(sink ActivitySink) *AsyncDispatcher {
	d.activity = normalizeActivitySink(sink)
	return d
}

// WithTimeout bounds a single delivery attempt.
func (d *AsyncDispatcher) WithTimeout(timeout time.Duration) *AsyncDispatcher {
	if timeout > 0 {
		d.timeout = timeout
	}
	return d
}

// WithRetries sets how many times a failed attempt is retried and the
// base backoff between attempts.
func (d *AsyncDispatcher) WithRetries(retries uint64, backoff time.Duration) *AsyncDispatcher {
	d.retries = retries
	if backoff > 0 {
		d.backoff = backoff
	}
	return d
}

// Dispatch schedules delivery of n and returns immediately. The delivery
// outlives ctx cancellation but keeps its values.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, n Notification) {
	if n.ID == "" {
		n.ID = ksuid.New().String()
	}

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.logger.Warn("notification dropped", "id", n.ID, "kind", n.Kind, "error", ErrDispatcherClosed)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	go func() {
		defer d.wg.Done()

		if err := d.deliver(ctx, n); err != nil {
			d.failed(ctx, n, err)
			return
		}

		d.logger.Debug("notification delivered", "id", n.ID, "kind", n.Kind, "to", n.To)
	}()
}

func (d *AsyncDispatcher) deliver(ctx context.Context, n Notification) error {
	b := retry.NewExponential(d.backoff)
	b = retry.WithMaxRetries(d.retries, b)

	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := d.send(ctx, n); err != nil {
			d.logger.Warn("notification attempt failed", "id", n.ID, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// send runs one attempt. A mailer that ignores its context is abandoned
// once the attempt timeout elapses.
func (d *AsyncDispatcher) send(ctx context.Context, n Notification) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("mailer panic: %v", r)
			}
		}()
		done <- d.mailer.Send(ctx, n)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *AsyncDispatcher) failed(ctx context.Context, n Notification, err error) {
	d.logger.Error("notification delivery failed", "id", n.ID, "kind", n.Kind, "to", n.To, "error", err)

	recordActivity(ctx, d.activity, d.logger, ActivityEvent{
		EventType: ActivityEventNotificationFailed,
		Actor: ActorRef{
			ID:   "dispatcher",
			Type: "system",
		},
		Metadata: map[string]any{
			"notification_id": n.ID,
			"kind":            n.Kind,
			"to":              n.To,
			"error":           err.Error(),
		},
	})
}

// Wait blocks until every scheduled delivery finished
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting notifications and waits for in-flight deliveries
// until ctx is done.
func (d *AsyncDispatcher) Close(ctx context.Context) error {
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
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "timed out draining notifications")
	}
}
