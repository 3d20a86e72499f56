package alert

import (
	"context"
	"fmt"

	"github.com/nerrad567/devicehealth/internal/infrastructure/mqtt"
)

// Publisher is the part of *mqtt.Client used by MQTTNotifier.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// MQTTNotifier publishes alert events to {prefix}/alerts/{device_id}.
// Events are not retained.
type MQTTNotifier struct {
	pub    Publisher
	topics mqtt.Topics
}

// NewMQTTNotifier creates a notifier publishing through pub.
func NewMQTTNotifier(pub Publisher, topics mqtt.Topics) *MQTTNotifier {
	return &MQTTNotifier{pub: pub, topics: topics}
}

// Name implements Notifier.
func (n *MQTTNotifier) Name() string {
	return "mqtt"
}

// Notify implements Notifier.
func (n *MQTTNotifier) Notify(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.pub.PublishJSON(n.topics.Alert(e.DeviceID), e, false); err != nil {
		return fmt.Errorf("publishing alert: %w", err)
	}
	return nil
}
