package main

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/device"
)

const reportsPath = "/api/v1/devices"

// errorCodes are the last_error values a simulated failing device reports.
var errorCodes = []string{"", "SENSOR_FAIL", "BATTERY_LOW", "OVERHEAT", "COMM_ERROR"}

// errorChance is the probability that a simulated report is in error state.
const errorChance = 0.1

// ingestReply mirrors the API response for an accepted report.
type ingestReply struct {
	Msg   string        `json:"msg"`
	Data  device.Record `json:"data"`
	Alert *alert.Event  `json:"alert"`
}

// apiError mirrors the API error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// reporter posts device reports to the health API.
type reporter struct {
	http *resty.Client
}

func newReporter(baseURL string, timeout time.Duration) *reporter {
	return &reporter{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Send posts one report and returns the stored record and any alert.
func (r *reporter) Send(ctx context.Context, report device.Report) (ingestReply, error) {
	var (
		reply  ingestReply
		apiErr apiError
	)
	resp, err := r.http.R().
		SetContext(ctx).
		SetBody(report).
		SetResult(&reply).
		SetError(&apiErr).
		Post(reportsPath)
	if err != nil {
		return ingestReply{}, fmt.Errorf("posting report for %s: %w", report.DeviceID, err)
	}
	if resp.IsError() {
		return ingestReply{}, fmt.Errorf("posting report for %s: %s: %s %s",
			report.DeviceID, resp.Status(), apiErr.Code, apiErr.Message)
	}
	return reply, nil
}

// fixtures are the five seed devices.
func fixtures() []device.Report {
	return []device.Report{
		fixture("sensor-001", "online", 95.2, 22.8, 0, ""),
		fixture("sensor-002", "online", 13.6, 23.1, 0, ""),
		fixture("sensor-003", "error", 80.7, 21.9, 0.45, "SENSOR_FAIL"),
		fixture("sensor-004", "offline", 56.4, 0.0, 0.1, "NO_RESPONSE"),
		fixture("sensor-005", "online", 65.3, 24.2, 0.37, "INTERMITTENT"),
	}
}

func fixture(id, status string, battery, sensor, errorRate float64, lastError string) device.Report {
	r := device.Report{
		DeviceID:  id,
		Status:    status,
		Battery:   &battery,
		Sensor:    &sensor,
		ErrorRate: &errorRate,
	}
	if lastError != "" {
		r.LastError = &lastError
	}
	return r
}

// randomReport builds a plausible report for deviceID. One report in ten
// is in error state with a random error code and error rate.
func randomReport(rng *rand.Rand, deviceID string) device.Report {
	battery := round2(30 + rng.Float64()*70)
	sensor := round2(10 + rng.Float64()*40)
	errorRate := 0.0

	r := device.Report{
		DeviceID: deviceID,
		Status:   string(device.StatusOnline),
		Battery:  &battery,
		Sensor:   &sensor,
	}

	if rng.Float64() < errorChance {
		r.Status = string(device.StatusError)
		errorRate = round2(rng.Float64() * 0.5)
		if code := errorCodes[rng.IntN(len(errorCodes))]; code != "" {
			r.LastError = &code
		}
	}
	r.ErrorRate = &errorRate

	return r
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
