package service

import (
	"log"
	"sync"

	"github.com/google/uuid"
)

// SubscriberRegistry fans token state changes out to registered callbacks.
//
// Notify iterates a snapshot taken under the read lock and invokes callbacks
// outside it, so a callback may subscribe or unsubscribe (itself included)
// without deadlocking. A subscriber added during a notification round sees
// only later rounds.
type SubscriberRegistry struct {
	mu   sync.RWMutex
	subs []subscriberEntry
}

type subscriberEntry struct {
	id uuid.UUID
	cb func(TokenEvent)
}

func NewSubscriberRegistry() *SubscriberRegistry {
	return &SubscriberRegistry{}
}

// Subscribe registers cb and returns its unsubscribe function. Calling the
// returned function more than once is harmless.
func (r *SubscriberRegistry) Subscribe(cb func(TokenEvent)) func() {
	id := uuid.New()

	r.mu.Lock()
	r.subs = append(r.subs, subscriberEntry{id: id, cb: cb})
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, entry := range r.subs {
			if entry.id == id {
				r.subs = append(r.subs[:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// Notify delivers event to every subscriber registered at the time of the
// call. A panicking callback is logged and skipped; it never takes down the
// notifier or starves other subscribers.
func (r *SubscriberRegistry) Notify(event TokenEvent) {
	r.mu.RLock()
	snapshot := make([]subscriberEntry, len(r.subs))
	copy(snapshot, r.subs)
	r.mu.RUnlock()

	for _, entry := range snapshot {
		invokeSubscriber(entry, event)
	}
}

func invokeSubscriber(entry subscriberEntry, event TokenEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[Subscribers] callback %s panicked: %v", entry.id, rec)
		}
	}()
	entry.cb(event)
}

// Len reports the number of active subscribers.
func (r *SubscriberRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
