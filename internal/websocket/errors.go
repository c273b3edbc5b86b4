// internal/websocket/errors.go
package websocket

import "errors"

var (
	// ErrUnauthorized is returned by Register for a client without a tenant.
	ErrUnauthorized = errors.New("websocket client has no tenant")
	ErrHubBusy      = errors.New("websocket hub broadcast queue is full")
	ErrHubStopped   = errors.New("websocket hub is stopped")
	ErrEmptyPayload = errors.New("message has no data")
)
