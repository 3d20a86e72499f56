// Package ingest accepts device health reports and turns them into stored
// records and alert events.
//
// For each report the Handler:
//  1. Validates and normalises it (device.ValidateReport)
//  2. Upserts the record (device.Store)
//  3. Classifies the stored record (Classify)
//  4. Hands any resulting alert.Event to the dispatcher without waiting
//  5. Notifies record listeners (WebSocket hub, MQTT state publisher)
//
// Reports arrive over HTTP (internal/api) or MQTT (Subscriber).
package ingest
