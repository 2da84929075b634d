// Package stream delivers the radio's PCM frames to listeners: chunked MP3
// over HTTP and Opus over WebRTC.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
)

// listenerBuffer is about three seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans out PCM frames from one source to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}

	frames  atomic.Int64
	dropped atomic.Int64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms PCM frames
	done chan struct{}
	once sync.Once

	dropped atomic.Int64
}

// Done is closed once the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Dropped returns how many frames this listener missed by reading too slowly.
func (l *Listener) Dropped() int64 { return l.dropped.Load() }

// Stats is a snapshot of broadcast counters.
type Stats struct {
	Listeners int   `json:"listeners"`
	Frames    int64 `json:"frames"`
	Dropped   int64 `json:"dropped"`
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Calling it more
// than once is harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	delete(b.listeners, l)
	b.mu.Unlock()
	l.once.Do(func() { close(l.done) })
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Stats returns the current counters.
func (b *Broadcaster) Stats() Stats {
	return Stats{
		Listeners: b.ListenerCount(),
		Frames:    b.frames.Load(),
		Dropped:   b.dropped.Load(),
	}
}

// Run reads frames from source and fans out to all listeners until ctx is
// cancelled or source is closed. A listener whose buffer is full misses the
// frame; the broadcast never waits for it.
func (b *Broadcaster) Run(ctx context.Context, source <-chan []int16) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-source:
			if !ok {
				return
			}
			b.frames.Add(1)
			b.mu.RLock()
			for l := range b.listeners {
				select {
				case l.C <- frame:
				default:
					l.dropped.Add(1)
					b.dropped.Add(1)
				}
			}
			b.mu.RUnlock()
		}
	}
}
