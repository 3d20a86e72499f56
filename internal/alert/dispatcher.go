package alert

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Dispatcher defaults.
const (
	defaultWorkers     = 2
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Notifier delivers one alert event to one channel (email, MQTT, ...).
type Notifier interface {
	// Name identifies the channel in logs.
	Name() string

	// Notify delivers e. It must honour ctx cancellation.
	Notify(ctx context.Context, e Event) error
}

// Options configures a Dispatcher. Zero values select defaults.
type Options struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Queued    int    `json:"queued"`
	Accepted  uint64 `json:"accepted"`
	Dropped   uint64 `json:"dropped"`
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}

// Dispatcher queues alert events and delivers them from worker goroutines.
//
// Lifecycle:
//
//	d := alert.NewDispatcher(opts, emailNotifier, mqttNotifier)
//	d.Start(ctx)
//	defer d.Close() // stops intake, drains the queue, waits for workers
//
// Thread Safety:
//   - Dispatch is safe for concurrent use and never blocks.
type Dispatcher struct {
	notifiers   []Notifier
	workers     int
	sendTimeout time.Duration
	logger      Logger

	queue chan Event

	mu      sync.RWMutex // guards closed against concurrent Dispatch
	closed  bool
	started bool

	wg        sync.WaitGroup
	closeOnce sync.Once

	accepted  atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

// NewDispatcher creates a dispatcher for the given notifiers.
// With no notifiers, events are accepted and discarded after logging.
func NewDispatcher(opts Options, notifiers ...Notifier) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}

	return &Dispatcher{
		notifiers:   notifiers,
		workers:     opts.Workers,
		sendTimeout: opts.SendTimeout,
		logger:      noopLogger{},
		queue:       make(chan Event, opts.QueueSize),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Start launches the worker goroutines. Workers stop when ctx is cancelled
// or when Close has drained the queue. Calling Start twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}

	d.logger.Info("alert dispatcher started",
		"workers", d.workers,
		"queue_size", cap(d.queue),
		"notifiers", d.notifierNames(),
	)
}

// Dispatch enqueues e without blocking. It returns false if the event was
// dropped because the queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(e Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		d.logger.Warn("alert dropped: dispatcher closed", "device_id", e.DeviceID, "issue", e.Issue)
		return false
	}

	select {
	case d.queue <- e:
		d.accepted.Add(1)
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn("alert dropped: queue full", "device_id", e.DeviceID, "issue", e.Issue)
		return false
	}
}

// Close stops intake, lets workers drain the queue, and waits for them.
// Events still queued after the workers exit are dropped and logged.
// Close is idempotent.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()

		d.wg.Wait()

		for e := range d.queue {
			d.dropped.Add(1)
			d.logger.Warn("alert dropped: dispatcher stopped", "device_id", e.DeviceID, "issue", e.Issue)
		}

		d.logger.Info("alert dispatcher stopped")
	})
}

// Stats returns a snapshot of the dispatcher counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:    len(d.queue),
		Accepted:  d.accepted.Load(),
		Dropped:   d.dropped.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, e)
		}
	}
}

// deliver sends e once to every notifier. Failures are logged, not retried.
func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	if len(d.notifiers) == 0 {
		d.logger.Info("alert raised (no notifiers configured)", "device_id", e.DeviceID, "issue", e.Issue)
		return
	}

	for _, n := range d.notifiers {
		if err := d.notify(ctx, n, e); err != nil {
			d.failed.Add(1)
			d.logger.Error("alert notification failed",
				"notifier", n.Name(),
				"device_id", e.DeviceID,
				"issue", e.Issue,
				"error", err,
			)
			continue
		}
		d.delivered.Add(1)
		d.logger.Info("alert notification sent",
			"notifier", n.Name(),
			"device_id", e.DeviceID,
			"issue", e.Issue,
		)
	}
}

func (d *Dispatcher) notify(ctx context.Context, n Notifier, e Event) (err error) {
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: panic: %v", ErrNotificationFailed, n.Name(), r)
		}
	}()

	if err := n.Notify(ctx, e); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNotificationFailed, n.Name(), err)
	}
	return nil
}

func (d *Dispatcher) notifierNames() []string {
	names := make([]string, 0, len(d.notifiers))
	for _, n := range d.notifiers {
		names = append(names, n.Name())
	}
	return names
}
