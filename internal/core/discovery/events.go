package discovery

import (
	"log"
	"sync"

	"github.com/markdave123-py/Discovera/internal/models"
)

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events rather than stalling the
// pipeline.
const subscriberBuffer = 64

// CaseEvents is a case-scoped publish/subscribe emitter. The pipeline calls
// Emit without knowing how many subscribers exist; handlers call Subscribe
// per client connection.
type CaseEvents struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.Event]struct{}
}

func NewCaseEvents() *CaseEvents {
	return &CaseEvents{subs: make(map[string]map[chan models.Event]struct{})}
}

// Subscribe registers a listener for one case. The returned cancel func must
// be called when the client disconnects; it closes the channel.
func (e *CaseEvents) Subscribe(caseID string) (<-chan models.Event, func()) {
	ch := make(chan models.Event, subscriberBuffer)

	e.mu.Lock()
	if e.subs[caseID] == nil {
		e.subs[caseID] = make(map[chan models.Event]struct{})
	}
	e.subs[caseID][ch] = struct{}{}
	e.mu.Unlock()

	cancel := func() {
		e.mu.Lock()
		if set, ok := e.subs[caseID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(e.subs, caseID)
			}
		}
		e.mu.Unlock()
	}
	return ch, cancel
}

// Emit publishes an event to every subscriber of the case. Sends never
// block: a full subscriber buffer drops the event for that subscriber only.
func (e *CaseEvents) Emit(caseID string, event models.Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for ch := range e.subs[caseID] {
		select {
		case ch <- event:
		default:
			log.Printf("CaseEvents: dropping %s for slow subscriber on case %s", event.Type, caseID)
		}
	}
}
