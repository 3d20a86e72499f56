package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/devicehealth/internal/alert"
	"github.com/nerrad567/devicehealth/internal/device"
	"github.com/nerrad567/devicehealth/internal/infrastructure/mqtt"
)

// mqttIngestTimeout bounds the processing of one MQTT report.
const mqttIngestTimeout = 10 * time.Second

// stateQueueSize bounds state publications waiting on the broker. When it
// is full the newest state is dropped; the next report for the device
// republishes it.
const stateQueueSize = 64

// ErrTopicMismatch is returned when a report's device_id differs from the
// device segment of its topic.
var ErrTopicMismatch = errors.New("ingest: device_id does not match topic")

// MQTTClient is the part of *mqtt.Client used for ingestion.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	PublishJSON(topic string, v any, retained bool) error
	Topics() mqtt.Topics
	QoS() byte
}

// Subscriber feeds reports published on {prefix}/devices/+/report into a
// Handler, and republishes each stored record, retained, to
// {prefix}/devices/{device_id}/state.
type Subscriber struct {
	client  MQTTClient
	handler *Handler
	logger  Logger

	states    chan device.Record
	mu        sync.RWMutex
	closed    bool
	done      chan struct{}
	startOnce sync.Once
}

// NewSubscriber creates an MQTT ingestion subscriber.
func NewSubscriber(client MQTTClient, handler *Handler) *Subscriber {
	return &Subscriber{
		client:  client,
		handler: handler,
		logger:  noopLogger{},
		states:  make(chan device.Record, stateQueueSize),
		done:    make(chan struct{}),
	}
}

// SetLogger sets the logger for the subscriber.
func (s *Subscriber) SetLogger(logger Logger) {
	s.logger = logger
}

// Start subscribes to device reports and registers the state publisher.
func (s *Subscriber) Start() error {
	topic := s.client.Topics().AllDeviceReports()
	if err := s.client.Subscribe(topic, s.client.QoS(), s.handleReport); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	s.startOnce.Do(func() {
		go s.runStatePublisher()
		s.handler.AddListener(s.publishState)
	})

	s.logger.Info("mqtt ingestion subscribed", "topic", topic)
	return nil
}

// handleReport decodes one report message and ingests it. Returned errors
// are logged by the MQTT client wrapper.
func (s *Subscriber) handleReport(topic string, payload []byte) error {
	topicID, ok := s.client.Topics().ParseDeviceReport(topic)
	if !ok {
		return fmt.Errorf("unexpected report topic %q", topic)
	}

	var report device.Report
	if err := json.Unmarshal(payload, &report); err != nil {
		return fmt.Errorf("%w: decoding payload: %w", device.ErrInvalidReport, err)
	}

	switch strings.TrimSpace(report.DeviceID) {
	case "":
		report.DeviceID = topicID
	case topicID:
	default:
		return fmt.Errorf("%w: topic %q, payload %q", ErrTopicMismatch, topicID, report.DeviceID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), mqttIngestTimeout)
	defer cancel()

	if _, err := s.handler.Ingest(ctx, report); err != nil {
		return err
	}
	return nil
}

// Close stops accepting states and waits for the queued ones to be
// published. Reports arriving afterwards are still ingested.
func (s *Subscriber) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.states)
	s.mu.Unlock()

	// Without Start there is no worker to wait for.
	s.startOnce.Do(func() { close(s.done) })
	<-s.done
}

// publishState queues rec as the retained latest state. Publishing blocks
// on broker acknowledgement, so it runs on a single worker off the
// ingestion path and never blocks the caller.
func (s *Subscriber) publishState(rec device.Record, _ *alert.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.states <- rec:
	default:
		s.logger.Warn("state queue full, dropping device state", "device_id", rec.DeviceID)
	}
}

func (s *Subscriber) runStatePublisher() {
	defer close(s.done)
	for rec := range s.states {
		topic := s.client.Topics().DeviceState(rec.DeviceID)
		if err := s.client.PublishJSON(topic, rec, true); err != nil {
			s.logger.Warn("publishing device state failed", "device_id", rec.DeviceID, "error", err)
		}
	}
}
