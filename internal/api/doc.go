// Package api implements the HTTP REST API and WebSocket feed for the
// device health service.
//
// This package provides:
//   - Report ingestion (POST /api/v1/devices)
//   - Device queries with status and device_id filters, plus CSV export
//     (GET /api/v1/export.csv) and a status summary (GET /api/v1/summary)
//   - A WebSocket hub broadcasting device.updated and alert.raised events
//   - Middleware: real IP, request ID, access log, panic recovery, CORS and a body cap
//   - The embedded dashboard under /dashboard/
//
// # Error Responses
//
// Failures are returned as {"status","code","message"} objects. Invalid
// reports map to 422 with per-field details, unknown devices to 404 and
// storage failures to 500.
//
// # Graceful Degradation
//
// MQTT and alert notifiers are optional. Health reports "degraded" when
// the broker is unreachable but ingestion over HTTP keeps working.
package api
