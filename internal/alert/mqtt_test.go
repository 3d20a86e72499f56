package alert

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/devicehealth/internal/infrastructure/mqtt"
)

type fakePublisher struct {
	topic    string
	payload  any
	retained bool
	err      error
}

func (f *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	f.topic, f.payload, f.retained = topic, v, retained
	return f.err
}

func TestMQTTNotifier_Notify(t *testing.T) {
	pub := &fakePublisher{}
	n := NewMQTTNotifier(pub, mqtt.NewTopics("devicehealth"))

	e := testEvent("sensor-003", IssueErrorState)
	if err := n.Notify(context.Background(), e); err != nil {
		t.Fatalf("Notify() error = %v", err)
	}

	if pub.topic != "devicehealth/alerts/sensor-003" {
		t.Errorf("topic = %q", pub.topic)
	}
	if pub.retained {
		t.Error("alert events must not be retained")
	}
	if got, ok := pub.payload.(Event); !ok || got.ID != e.ID {
		t.Errorf("payload = %#v, want the event", pub.payload)
	}
}

func TestMQTTNotifier_Errors(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	n := NewMQTTNotifier(pub, mqtt.Topics{})

	err := n.Notify(context.Background(), testEvent("x", IssueErrorState))
	if !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Notify() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, testEvent("x", IssueErrorState)); !errors.Is(err, context.Canceled) {
		t.Errorf("Notify() with cancelled ctx error = %v", err)
	}
}
