package events

import "context"

// Channel is an observer that forwards events to a buffered channel. Events
// are dropped when the buffer is full so publishers never block.
type Channel struct {
	ch chan Event
}

// NewChannel creates a channel observer with the given buffer size
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 1
	}
	return &Channel{ch: make(chan Event, size)}
}

// Events returns the receive side of the channel
func (c *Channel) Events() <-chan Event {
	return c.ch
}

// Notify forwards the event, dropping it if the buffer is full
func (c *Channel) Notify(ctx context.Context, event Event) {
	select {
	case c.ch <- event:
	default:
	}
}
