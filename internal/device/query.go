package device

import (
	"context"
	"fmt"
)

// Filter narrows a record listing. Empty fields match everything; when
// both are set a record must match both.
type Filter struct {
	Statuses  []Status
	DeviceIDs []string
}

// IsEmpty reports whether the filter matches every record.
func (f *Filter) IsEmpty() bool {
	return f == nil || (len(f.Statuses) == 0 && len(f.DeviceIDs) == 0)
}

// Match reports whether rec passes the filter.
func (f *Filter) Match(rec Record) bool {
	if f.IsEmpty() {
		return true
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, rec.Status) {
		return false
	}
	if len(f.DeviceIDs) > 0 && !contains(f.DeviceIDs, rec.DeviceID) {
		return false
	}
	return true
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Summary aggregates a record listing for the dashboard banner.
type Summary struct {
	Total     int            `json:"total"`
	ByStatus  map[Status]int `json:"by_status"`
	HasErrors bool           `json:"has_errors"`
}

// QueryService provides read-only projections over a Store.
type QueryService struct {
	store  Store
	logger Logger
}

// NewQueryService creates a query service backed by store.
func NewQueryService(store Store) *QueryService {
	return &QueryService{store: store, logger: noopLogger{}}
}

// SetLogger sets the logger for the query service.
func (q *QueryService) SetLogger(logger Logger) {
	q.logger = logger
}

// ListAll returns every record matching filter, ordered by device_id.
// A nil or empty filter returns all records. Filtering is applied to a
// single List snapshot.
func (q *QueryService) ListAll(ctx context.Context, filter *Filter) ([]Record, error) {
	records, err := q.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if filter.IsEmpty() {
		return records, nil
	}

	matched := make([]Record, 0, len(records))
	for _, rec := range records {
		if filter.Match(rec) {
			matched = append(matched, rec)
		}
	}
	return matched, nil
}

// GetOne returns the record for deviceID or ErrDeviceNotFound.
func (q *QueryService) GetOne(ctx context.Context, deviceID string) (Record, error) {
	rec, err := q.store.Get(ctx, deviceID)
	if err != nil {
		return Record{}, fmt.Errorf("getting device %s: %w", deviceID, err)
	}
	return rec, nil
}

// Summary counts matching records per status. HasErrors is true when any
// matching record is in error status.
func (q *QueryService) Summary(ctx context.Context, filter *Filter) (Summary, error) {
	records, err := q.ListAll(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summarise(records), nil
}

// Summarise builds a Summary from records.
func Summarise(records []Record) Summary {
	s := Summary{
		Total:    len(records),
		ByStatus: make(map[Status]int, len(AllStatuses())),
	}
	for _, st := range AllStatuses() {
		s.ByStatus[st] = 0
	}
	for _, rec := range records {
		s.ByStatus[rec.Status]++
	}
	s.HasErrors = s.ByStatus[StatusError] > 0
	return s
}
