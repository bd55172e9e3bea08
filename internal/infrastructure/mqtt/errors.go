package mqtt

import "errors"

// Sentinel errors for broker operations, matched with errors.Is. The
// MQTT integration treats all of them the same way — log and carry on —
// but health checks distinguish ErrNotConnected from transport faults.
var (
	ErrNotConnected     = errors.New("mqtt: client not connected")
	ErrConnectionFailed = errors.New("mqtt: connection failed")
	ErrPublishFailed    = errors.New("mqtt: publish failed")
	ErrSubscribeFailed  = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed covers teardown paths; the bridge logs it
	// and proceeds, since the connection is usually going away anyway.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	ErrInvalidQoS   = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
