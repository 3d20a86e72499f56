// Package alert delivers device health alerts to notification channels.
//
// An Event is raised by the ingestion path when a report classifies as an
// issue (error state, offline, critically low battery). Events are handed
// to a Dispatcher, which queues them on a bounded channel and delivers each
// one exactly once to every configured Notifier from a pool of worker
// goroutines.
//
// Delivery is best-effort and at-most-once:
//   - Dispatch never blocks; a full queue drops the event and logs it
//   - Notifier failures wrap ErrNotificationFailed and are logged, never retried
//   - No deduplication: two qualifying reports raise two notifications
//
// Notifiers:
//   - EmailNotifier sends a plain text + HTML message over SMTP (go-mail)
//   - MQTTNotifier publishes the event as JSON to {prefix}/alerts/{device_id}
package alert
