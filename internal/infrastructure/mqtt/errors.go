package mqtt

import "errors"

// Sentinel errors; operations wrap them with detail, so compare with errors.Is.
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned for QoS levels above 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level")

	// ErrInvalidTopic is returned for empty topics, and for publish topics
	// containing the + or # wildcards.
	ErrInvalidTopic = errors.New("mqtt: invalid topic")
)
