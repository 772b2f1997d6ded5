package application

import "sync"

// SignalState is a snapshot of a ChangeSignal.
type SignalState struct {
	Changed bool   `json:"changed"`
	Version uint64 `json:"version"`
}

// ChangeSignal is a boolean that flips after every successful toggle made
// through it. Views watch it to know when to reload the calendar. It
// implements Notifier.
type ChangeSignal struct {
	mu          sync.Mutex
	state       SignalState
	subscribers map[chan SignalState]struct{}
}

// NewChangeSignal returns a signal in its initial state.
func NewChangeSignal() *ChangeSignal {
	return &ChangeSignal{subscribers: make(map[chan SignalState]struct{})}
}

// Flip inverts the signal and wakes subscribers. A subscriber that has not
// read the previous state gets it replaced by the latest one.
func (c *ChangeSignal) Flip() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Changed = !c.state.Changed
	c.state.Version++
	for ch := range c.subscribers {
		select {
		case ch <- c.state:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- c.state:
		default:
		}
	}
}

// State returns the current value.
func (c *ChangeSignal) State() SignalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel receiving the state after each flip, and a
// function that unsubscribes and closes it.
func (c *ChangeSignal) Subscribe() (<-chan SignalState, func()) {
	ch := make(chan SignalState, 1)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

var _ Notifier = (*ChangeSignal)(nil)
