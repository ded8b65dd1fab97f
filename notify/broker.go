package notify

import (
	"context"
	"sync"

	"github.com/bytedance/sonic"

	"github.com/sekyikins/AI-Scheduler-Project/domain"
)

// Broker fans event payloads out to the stream clients of each user.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[chan []byte]struct{}
}

func NewBroker() *Broker {
	return &Broker{subs: map[string]map[chan []byte]struct{}{}}
}

// Subscribe registers a client of userID. Slow clients drop payloads rather
// than block the broadcaster.
func (b *Broker) Subscribe(userID string) chan []byte {
	ch := make(chan []byte, 16)
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = map[chan []byte]struct{}{}
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Broker) Unsubscribe(userID string, ch chan []byte) {
	b.mu.Lock()
	delete(b.subs[userID], ch)
	if len(b.subs[userID]) == 0 {
		delete(b.subs, userID)
	}
	b.mu.Unlock()
}

// Broadcast delivers data to every client of userID.
func (b *Broker) Broadcast(userID string, data []byte) {
	b.mu.Lock()
	for ch := range b.subs[userID] {
		select {
		case ch <- data:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribers returns the number of connected clients of userID.
func (b *Broker) Subscribers(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}

// Handle broadcasts ev directly, for deployments without Redis.
func (b *Broker) Handle(_ context.Context, ev domain.Event) error {
	data, err := sonic.Marshal(ev)
	if err != nil {
		return err
	}
	b.Broadcast(ev.UserID, data)
	return nil
}
