// Package sink delivers parsed stream messages to downstream consumers.
package sink

import "encoding/json"

// Sink receives events from the connection controller.
//
// OnMessage is called once per complete JSON message. OnRateLimited is
// called when the stream responds with HTTP 420. OnError receives only
// fatal errors; transient failures are retried internally and never
// surface here.
type Sink interface {
	OnMessage(msg json.RawMessage)
	OnRateLimited()
	OnError(err error)
}

// Callbacks adapts plain functions to the Sink interface. Nil fields are
// no-ops.
type Callbacks struct {
	Message     func(msg json.RawMessage)
	RateLimited func()
	Error       func(err error)
}

func (c Callbacks) OnMessage(msg json.RawMessage) {
	if c.Message != nil {
		c.Message(msg)
	}
}

func (c Callbacks) OnRateLimited() {
	if c.RateLimited != nil {
		c.RateLimited()
	}
}

func (c Callbacks) OnError(err error) {
	if c.Error != nil {
		c.Error(err)
	}
}

// Fanout delivers every event to each of its sinks in order.
type Fanout []Sink

func (f Fanout) OnMessage(msg json.RawMessage) {
	for _, s := range f {
		s.OnMessage(msg)
	}
}

func (f Fanout) OnRateLimited() {
	for _, s := range f {
		s.OnRateLimited()
	}
}

func (f Fanout) OnError(err error) {
	for _, s := range f {
		s.OnError(err)
	}
}
