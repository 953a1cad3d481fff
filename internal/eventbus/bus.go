// Package eventbus is an in-memory fanout that decouples the MQTT side of the
// bridge from the chat side.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Event types published inside the process.
const (
	// TypeDeviceMessage carries a DeviceMessage decoded from a device topic.
	TypeDeviceMessage = "device.message"
	// TypeDeviceState carries a DeviceState when a device connection changes.
	TypeDeviceState = "device.state"
)

// Event is a small in-memory signal.
//
// Publish never blocks. Subscribers get a buffered channel and lose events
// when they fall behind.
type Event struct {
	Type string
	Time time.Time
	Data any
}

// DeviceMessage is the payload of a TypeDeviceMessage event.
type DeviceMessage struct {
	Device  string
	Topic   string
	Payload map[string]any
}

// DeviceState is the payload of a TypeDeviceState event.
type DeviceState struct {
	Device    string
	Connected bool
	Err       string
}

type Bus interface {
	Publish(e Event)
	Subscribe(buffer int) (ch <-chan Event, unsubscribe func())
}

// New returns a fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Event{}}
}

type memBus struct {
	mu      sync.RWMutex
	subs    map[uint64]chan Event
	seq     atomic.Uint64
	dropped atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Event, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			// Publish holds the read lock while sending, so closing under the
			// write lock cannot race a send.
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, unsub
}

// Dropped reports how many deliveries were skipped because a subscriber's
// buffer was full. Buses not created by New report 0.
func Dropped(b Bus) uint64 {
	if m, ok := b.(*memBus); ok {
		return m.dropped.Load()
	}
	return 0
}
