// Package event is the frame-driven in-process pub/sub bus. Producers may
// enqueue from any goroutine; the single consumer is the frame loop's pump.
package event

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/scene"
)

// Envelope is one queued event. A nil Target means global.
type Envelope struct {
	Key     string
	Target  *scene.EntityID
	Payload any
}

// Targeted reports whether the envelope addresses a single entity.
func (e Envelope) Targeted() bool { return e.Target != nil }

// Handler runs on the pump thread; it must not block.
type Handler func(Envelope)

// SubscriptionID identifies a registration for Off.
type SubscriptionID uint64

type subscription struct {
	id      SubscriptionID
	owner   *scene.EntityID
	handler Handler
}

// Bus is a many-producer single-consumer event queue with keyed
// subscriptions. Subscriptions may be owned by an entity; destroying that
// entity removes them.
type Bus struct {
	log    *zap.Logger
	nextID atomic.Uint64

	mu    sync.Mutex
	subs  map[string][]*subscription
	queue []Envelope
}

func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log, subs: make(map[string][]*subscription)}
}

// On registers a global handler for a key.
func (b *Bus) On(key string, handler Handler) SubscriptionID {
	return b.register(key, nil, handler)
}

// OnEntity registers a handler owned by an entity. Owned handlers receive
// global envelopes and envelopes targeted at their owner, and are removed
// by CleanupEntity.
func (b *Bus) OnEntity(id scene.EntityID, key string, handler Handler) SubscriptionID {
	owner := id
	return b.register(key, &owner, handler)
}

func (b *Bus) register(key string, owner *scene.EntityID, handler Handler) SubscriptionID {
	sub := &subscription{id: SubscriptionID(b.nextID.Add(1)), owner: owner, handler: handler}
	b.mu.Lock()
	b.subs[key] = append(b.subs[key], sub)
	b.mu.Unlock()
	return sub.id
}

// Off removes a subscription; reports whether it existed.
func (b *Bus) Off(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, subs := range b.subs {
		for i, s := range subs {
			if s.id == id {
				b.subs[key] = append(subs[:i], subs[i+1:]...)
				return true
			}
		}
	}
	return false
}

// Emit enqueues a global envelope.
func (b *Bus) Emit(key string, payload any) {
	b.enqueue(Envelope{Key: key, Payload: payload})
}

// EmitTo enqueues an envelope targeted at one entity.
func (b *Bus) EmitTo(id scene.EntityID, key string, payload any) {
	target := id
	b.enqueue(Envelope{Key: key, Target: &target, Payload: payload})
}

// EmitToMany enqueues one targeted envelope per entity.
func (b *Bus) EmitToMany(ids []scene.EntityID, key string, payload any) {
	for _, id := range ids {
		b.EmitTo(id, key, payload)
	}
}

func (b *Bus) enqueue(e Envelope) {
	b.mu.Lock()
	b.queue = append(b.queue, e)
	b.mu.Unlock()
}

// PendingCount returns the queued envelope count.
func (b *Bus) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Pump drains the queue once; call exactly once per frame on the main
// thread. Only envelopes queued before the pump started are dispatched, so
// handlers that emit further events cannot extend the frame unboundedly.
// Each envelope goes to every matching registered handler, then to the
// script dispatcher when one is given.
func (b *Bus) Pump(scriptDispatch func(Envelope)) int {
	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, env := range batch {
		for _, sub := range b.matching(env) {
			sub.handler(env)
		}
		if scriptDispatch != nil {
			scriptDispatch(env)
		}
	}
	return len(batch)
}

// matching snapshots the handlers that should see the envelope: for a
// targeted envelope, global handlers plus handlers owned by the target.
func (b *Bus) matching(env Envelope) []*subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[env.Key]
	out := make([]*subscription, 0, len(subs))
	for _, s := range subs {
		if env.Target != nil && s.owner != nil && *s.owner != *env.Target {
			continue
		}
		out = append(out, s)
	}
	return out
}

// CleanupEntity removes every subscription owned by the entity. Idempotent.
// Called from the entity destroy cascade.
func (b *Bus) CleanupEntity(id scene.EntityID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	removed := 0
	for key, subs := range b.subs {
		kept := subs[:0]
		for _, s := range subs {
			if s.owner != nil && *s.owner == id {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		b.subs[key] = kept
	}
	if removed > 0 {
		b.log.Debug("event subscriptions cleaned",
			zap.Uint64("entity", uint64(id)),
			zap.Int("removed", removed))
	}
	return removed
}

// SubscriptionCount returns the live subscription count across all keys.
func (b *Bus) SubscriptionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, subs := range b.subs {
		n += len(subs)
	}
	return n
}
