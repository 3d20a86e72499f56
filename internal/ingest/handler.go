package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/device"
)

// Logger defines the logging interface used by this package.
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

// Dispatcher accepts alert events without blocking.
// *alert.Dispatcher implements it.
type Dispatcher interface {
	Dispatch(e alert.Event) bool
}

// Listener is called after every accepted report with the stored record
// and the raised event (nil if none). Listeners must not block.
type Listener func(rec device.Record, ev *alert.Event)

// Result is the outcome of one accepted report.
type Result struct {
	Record device.Record `json:"data"`
	Alert  *alert.Event  `json:"alert"`
}

// Handler runs the ingestion pipeline for device reports.
//
// Thread Safety:
//   - Ingest is safe for concurrent use. Ordering per device_id is the
//     arrival order at the store.
type Handler struct {
	store      device.Store
	dispatcher Dispatcher
	logger     Logger
	now        func() time.Time

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewHandler creates a handler writing to store and raising alerts on
// dispatcher. A nil dispatcher discards events after logging.
func NewHandler(store device.Store, dispatcher Dispatcher) *Handler {
	return &Handler{
		store:      store,
		dispatcher: dispatcher,
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the handler.
func (h *Handler) SetLogger(logger Logger) {
	h.logger = logger
}

// AddListener registers fn to be called after every accepted report.
func (h *Handler) AddListener(fn Listener) {
	h.listenersMu.Lock()
	h.listeners = append(h.listeners, fn)
	h.listenersMu.Unlock()
}

// Ingest validates, stores and classifies one report.
//
// Errors wrap device.ErrInvalidReport (nothing stored, no alert) or
// device.ErrStorage (no alert). Alert delivery never fails ingestion.
func (h *Handler) Ingest(ctx context.Context, report device.Report) (Result, error) {
	rec, err := device.ValidateReport(report)
	if err != nil {
		h.logger.Debug("report rejected", "device_id", report.DeviceID, "error", err)
		return Result{}, err
	}

	stored, err := h.store.Upsert(ctx, rec)
	if err != nil {
		h.logger.Error("storing report failed", "device_id", rec.DeviceID, "error", err)
		return Result{}, fmt.Errorf("ingesting report for %s: %w", rec.DeviceID, err)
	}

	result := Result{Record: stored}

	if issue, ok := Classify(stored); ok {
		ev := alert.NewEvent(issue, stored, h.now())
		result.Alert = &ev
		h.raise(ev)
	}

	h.notifyListeners(stored, result.Alert)

	h.logger.Debug("report ingested",
		"device_id", stored.DeviceID,
		"status", stored.Status,
		"alert", result.Alert != nil,
	)
	return result, nil
}

func (h *Handler) raise(ev alert.Event) {
	if h.dispatcher == nil {
		h.logger.Warn("alert raised with no dispatcher", "device_id", ev.DeviceID, "issue", ev.Issue)
		return
	}
	if h.dispatcher.Dispatch(ev) {
		h.logger.Info("alert raised", "device_id", ev.DeviceID, "issue", ev.Issue)
	}
}

func (h *Handler) notifyListeners(rec device.Record, ev *alert.Event) {
	h.listenersMu.RLock()
	listeners := h.listeners
	h.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(rec, ev)
	}
}
