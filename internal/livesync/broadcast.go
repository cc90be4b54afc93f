package livesync

import "sync"

const (
	listenerBuffer = 64
	recentLines    = 100
)

// Broadcaster fans session progress lines out to listeners and keeps a
// bounded tail of recent lines for late-joining status requests.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners []chan string
	recent    []string
	closed    bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// AddListener adds a listener channel. The channel is closed by
// RemoveListener or when the broadcaster closes.
func (b *Broadcaster) AddListener() chan string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan string, listenerBuffer)
	if b.closed {
		close(ch)
		return ch
	}
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes and closes a listener channel.
func (b *Broadcaster) RemoveListener(ch chan string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// Send delivers a line to all listeners and records it in the recent tail.
// Listeners with a full buffer are skipped, never blocked on.
func (b *Broadcaster) Send(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.recent = append(b.recent, line)
	if len(b.recent) > recentLines {
		b.recent = b.recent[len(b.recent)-recentLines:]
	}
	for _, listener := range b.listeners {
		select {
		case listener <- line:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Recent returns a copy of the retained tail of lines, oldest first.
func (b *Broadcaster) Recent() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(b.recent))
	copy(out, b.recent)
	return out
}

// Close closes all listener channels. Further Sends are dropped.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, listener := range b.listeners {
		close(listener)
	}
	b.listeners = nil
}
