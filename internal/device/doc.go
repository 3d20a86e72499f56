// Package device provides the device health store and query service.
//
// Every IoT device reports its health (status, battery, sensor reading,
// error rate) periodically. This package keeps exactly one Record per
// device_id holding the latest accepted report, and answers read queries
// for the REST API and the dashboard.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        device package                         │
//	│                                                               │
//	│  ┌──────────────────┐   ┌──────────────────┐   ┌───────────┐  │
//	│  │   QueryService   │   │     SQLStore     │   │ Validate  │  │
//	│  │    (query.go)    │──▶│ (repository.go)  │   │  Report   │  │
//	│  │                  │   │                  │   │           │  │
//	│  │ • ListAll/Filter │   │ • Atomic upsert  │   │ • Ranges  │  │
//	│  │ • GetOne         │   │ • Per-key lock   │   │ • Enums   │  │
//	│  │ • Summary        │   │ • Get/List/Count │   │           │  │
//	│  └──────────────────┘   └──────────────────┘   └───────────┘  │
//	│                                  │                            │
//	└──────────────────────────────────│────────────────────────────┘
//	                                   ▼
//	                       SQLite / PostgreSQL (devices table)
//
// # Key Types
//
//   - Report: The wire payload sent by a device agent
//   - Record: The persisted latest state of one device
//   - Status: online, offline or error
//   - Filter: Status and device_id membership filter for queries
//
// # Usage
//
//	store := device.NewSQLStore(db.DB, cfg.GetQueryTimeout())
//	store.SetLogger(log)
//
//	rec, err := device.ValidateReport(report)
//	if err != nil {
//	    return err // wraps ErrInvalidReport
//	}
//	saved, err := store.Upsert(ctx, rec)
//
//	query := device.NewQueryService(store)
//	offline, _ := query.ListAll(ctx, &device.Filter{Statuses: []device.Status{device.StatusOffline}})
//
// # Thread Safety
//
// SQLStore and QueryService are safe for concurrent use. Upserts for the
// same device_id are applied one at a time in arrival order.
package device
