// Package notify fans state-change events out to the UI layer. Subscribers
// only observe; they never mutate core state.
package notify

import (
	"sync"
	"time"

	"gigbroker/internal/common/logger"
	"gigbroker/internal/models"
)

// StateChange describes one successful transition of an application record.
type StateChange struct {
	ApplicationID string        `json:"applicationId"`
	JobID         string        `json:"jobId"`
	WorkerID      string        `json:"workerId"`
	From          models.Status `json:"from"`
	To            models.Status `json:"to"`
	At            time.Time     `json:"at"`
}

// Publisher delivers state changes to registered subscribers. Delivery is
// buffered and drops on a full subscriber rather than blocking a transition.
type Publisher struct {
	mu     sync.RWMutex
	subs   map[int]chan StateChange
	nextID int
	log    logger.Logger
}

func NewPublisher(log logger.Logger) *Publisher {
	return &Publisher{
		subs: make(map[int]chan StateChange),
		log:  log,
	}
}

// Subscribe registers a listener. The returned cancel func unregisters it and
// closes the channel.
func (p *Publisher) Subscribe(buffer int) (<-chan StateChange, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	ch := make(chan StateChange, buffer)
	p.subs[id] = ch
	p.mu.Unlock()

	cancel := func() {
		p.mu.Lock()
		if sub, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(sub)
		}
		p.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans the event out without blocking the caller.
func (p *Publisher) Publish(ev StateChange) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, ch := range p.subs {
		select {
		case ch <- ev:
		default:
			p.log.Warn("dropping state change for slow subscriber", map[string]interface{}{
				"applicationId": ev.ApplicationID,
				"to":            ev.To,
			})
		}
	}
}
