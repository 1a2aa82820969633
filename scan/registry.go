package scan

import (
	"sync"

	"github.com/google/uuid"
)

// receiverRegistry tracks which context owns the process-wide signal
// receiver. Only one context may hold it at a time.
type receiverRegistry struct {
	mu      sync.Mutex
	owner   uuid.UUID
	claimed bool
}

var receivers = &receiverRegistry{}

func (r *receiverRegistry) claim(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed && r.owner != id {
		return ErrReceiverBusy
	}
	r.owner = id
	r.claimed = true
	return nil
}

// release gives up the receiver if id holds it.
func (r *receiverRegistry) release(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.claimed && r.owner == id {
		r.owner = uuid.Nil
		r.claimed = false
	}
}

func (r *receiverRegistry) current() (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner, r.claimed
}
