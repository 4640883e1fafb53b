// Package eventbus provides a simple publish/subscribe interface. The session
// store publishes sign-in and sign-out on it so that other components (the
// API client's caches, the CLI audit log) can react without importing the
// session package.
package eventbus

import "context"

// Topics published by the session store.
const (
	// Published after a token has been persisted and the session switched to
	// Authenticated. Data is an AuthEvent.
	LoginEvent = "auth.login"

	// Published after the session has been reset to Anonymous. Data is an
	// AuthEvent carrying the identity that signed out, if there was one.
	LogoutEvent = "auth.logout"
)

// AuthEvent is the payload of LoginEvent and LogoutEvent.
type AuthEvent struct {
	SubjectID string
	Email     string
	Roles     []string
}

// Message wraps published data.
type Message struct {
	ID    string
	Topic string
	Data  any
}

// NewMessage returns a message for the topic.
func NewMessage(id, topic string, data any) *Message {
	return &Message{ID: id, Topic: topic, Data: data}
}

// Handler is called for each message on a subscribed topic.
type Handler func(context.Context, *Message) error

// EventBus delivers published messages to all subscribers of a topic.
type EventBus interface {
	// Subscribe to a topic. Handlers may be called concurrently and errors are
	// logged, not retried.
	Subscribe(topic string, handler Handler)

	// Publish sends data to every subscriber of topic. It doesn't block on
	// handlers.
	Publish(topic string, data any)

	// Wait blocks until all in-flight messages have been handled or ctx is
	// done.
	Wait(ctx context.Context) error

	// Shutdown stops accepting work and waits for in-flight messages.
	Shutdown(ctx context.Context) error
}
