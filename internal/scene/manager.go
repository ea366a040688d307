package scene

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// ErrUnknownEntity is logged when a command targets a handle that no longer
// resolves. The command is skipped; later commands still apply.
var ErrUnknownEntity = errors.New("unknown entity")

// Observer is notified after the manager mutates the scene at the apply
// point. Subsystems keep their own EntityID-keyed resources in sync here.
type Observer interface {
	EntityCreated(id EntityID, e *Entity)
	EntityDestroyed(id EntityID)
	ComponentSet(id EntityID, kind ComponentKind, payload json.RawMessage)
	ComponentRemoved(id EntityID, kind ComponentKind)
}

// ParentObserver is an optional Observer extension for subsystems that
// index parent links. A zero parent means the link was cleared.
type ParentObserver interface {
	ParentChanged(id, parent EntityID)
}

// EventSink decouples the manager from the event bus package.
type EventSink interface {
	Emit(key string, payload any)
	EmitTo(id EntityID, key string, payload any)
}

// Manager owns the command buffer and is the only code path that applies
// structural edits to scene state. Everything else enqueues.
type Manager struct {
	log       *zap.Logger
	state     *State
	registry  *component.Registry
	buffer    *CommandBuffer
	observers []Observer
	events    EventSink
}

func NewManager(log *zap.Logger, state *State, registry *component.Registry) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		log:      log,
		state:    state,
		registry: registry,
		buffer:   NewCommandBuffer(),
	}
}

func (m *Manager) State() *State                 { return m.state }
func (m *Manager) Registry() *component.Registry { return m.registry }
func (m *Manager) Buffer() *CommandBuffer        { return m.buffer }
func (m *Manager) AddObserver(o Observer)        { m.observers = append(m.observers, o) }
func (m *Manager) SetEventSink(s EventSink)      { m.events = s }

// CreateEntity enqueues creation of a fully formed entity record. Missing
// identity fields are filled in: a fresh numeric id from the allocator and
// a generated persistent id, so the returned handle is valid immediately
// even though the entity materializes at the next apply point.
func (m *Manager) CreateEntity(e *Entity) EntityID {
	if e.NumericID == 0 {
		e.NumericID = m.state.GenerateNumericID()
	}
	if e.PersistentID == "" {
		e.PersistentID = uuid.NewString()
	}
	id := e.EntityID()
	m.buffer.Enqueue(Command{Op: OpCreateEntity, ID: id, Entity: e})
	return id
}

// DestroyEntity enqueues destruction.
func (m *Manager) DestroyEntity(id EntityID) {
	m.buffer.Enqueue(Command{Op: OpDestroyEntity, ID: id})
}

// SetComponent enqueues an upsert. Object payloads are merged key-wise into
// the existing payload at apply time; other payloads replace.
func (m *Manager) SetComponent(id EntityID, kind ComponentKind, payload json.RawMessage) {
	m.buffer.Enqueue(Command{Op: OpSetComponent, ID: id, Kind: kind, Payload: payload})
}

// RemoveComponent enqueues a removal.
func (m *Manager) RemoveComponent(id EntityID, kind ComponentKind) {
	m.buffer.Enqueue(Command{Op: OpRemoveComponent, ID: id, Kind: kind})
}

// SetParent enqueues a reparent; a zero parent clears it.
func (m *Manager) SetParent(id, parent EntityID) {
	m.buffer.Enqueue(Command{Op: OpSetParent, ID: id, Parent: parent})
}

// SetActive enqueues an active-flag toggle.
func (m *Manager) SetActive(id EntityID, active bool) {
	m.buffer.Enqueue(Command{Op: OpSetActive, ID: id, Active: active})
}

// ApplyCommands drains the buffer and applies every command in enqueue
// order. Failures are logged and skipped; they never poison later commands.
// Returns the number of commands applied.
func (m *Manager) ApplyCommands() int {
	cmds := m.buffer.Drain()
	if len(cmds) == 0 {
		return 0
	}
	applied := 0
	for _, c := range cmds {
		if err := m.apply(c); err != nil {
			m.log.Warn("command skipped",
				zap.String("op", c.Op.String()),
				zap.Uint64("entity", uint64(c.ID)),
				zap.Error(err))
			continue
		}
		applied++
	}
	return applied
}

func (m *Manager) apply(c Command) error {
	switch c.Op {
	case OpCreateEntity:
		return m.applyCreate(c)
	case OpDestroyEntity:
		return m.applyDestroy(c.ID)
	case OpSetComponent:
		return m.applySetComponent(c.ID, c.Kind, c.Payload)
	case OpRemoveComponent:
		return m.applyRemoveComponent(c.ID, c.Kind)
	case OpSetParent:
		return m.applySetParent(c.ID, c.Parent)
	case OpSetActive:
		return m.applySetActive(c.ID, c.Active)
	}
	return fmt.Errorf("unhandled op %d", c.Op)
}

func (m *Manager) applyCreate(c Command) error {
	if c.Entity == nil {
		return errors.New("create without entity record")
	}
	var dup bool
	m.state.WithSceneMut(func(s *Scene) {
		if s.FindByEntityID(c.ID) != nil {
			dup = true
			return
		}
		s.Entities = append(s.Entities, c.Entity)
	})
	if dup {
		return fmt.Errorf("entity %d already exists", c.ID)
	}
	for _, o := range m.observers {
		o.EntityCreated(c.ID, c.Entity)
	}
	if m.events != nil {
		m.events.Emit(EventEntitySpawned, c.ID)
	}
	return nil
}

func (m *Manager) applyDestroy(id EntityID) error {
	var found bool
	m.state.WithSceneMut(func(s *Scene) {
		for i, e := range s.Entities {
			if e.EntityID() == id {
				s.Entities = append(s.Entities[:i], s.Entities[i+1:]...)
				found = true
				return
			}
		}
	})
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	// Cascade runs in the observers: physics bodies removed, scripts torn
	// down, subscriptions cleaned, BVH entries dropped, render data freed.
	for _, o := range m.observers {
		o.EntityDestroyed(id)
	}
	if m.events != nil {
		m.events.Emit(EventEntityDestroyed, id)
	}
	return nil
}

func (m *Manager) applySetComponent(id EntityID, kind ComponentKind, payload json.RawMessage) error {
	var (
		found  bool
		merged json.RawMessage
	)
	m.state.WithSceneMut(func(s *Scene) {
		e := s.FindByEntityID(id)
		if e == nil {
			return
		}
		found = true
		if prev, ok := e.Component(kind); ok {
			merged = mergeObjectPayload(prev, payload)
		} else {
			merged = payload
		}
		e.SetComponent(kind, merged)
	})
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	for _, o := range m.observers {
		o.ComponentSet(id, kind, merged)
	}
	if m.events != nil {
		m.events.EmitTo(id, EventEntityComponentAdded, string(kind))
	}
	return nil
}

func (m *Manager) applyRemoveComponent(id EntityID, kind ComponentKind) error {
	var found, removed bool
	m.state.WithSceneMut(func(s *Scene) {
		e := s.FindByEntityID(id)
		if e == nil {
			return
		}
		found = true
		removed = e.RemoveComponent(kind)
	})
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	if !removed {
		return nil
	}
	for _, o := range m.observers {
		o.ComponentRemoved(id, kind)
	}
	if m.events != nil {
		m.events.EmitTo(id, EventEntityComponentRemoved, string(kind))
	}
	return nil
}

func (m *Manager) applySetParent(id, parent EntityID) error {
	var err error
	m.state.WithSceneMut(func(s *Scene) {
		e := s.FindByEntityID(id)
		if e == nil {
			err = fmt.Errorf("%w: %d", ErrUnknownEntity, id)
			return
		}
		if parent.IsZero() {
			e.ParentPersistentID = ""
			return
		}
		p := s.FindByEntityID(parent)
		if p == nil {
			err = fmt.Errorf("%w: parent %d", ErrUnknownEntity, parent)
			return
		}
		if p.PersistentID == "" {
			err = fmt.Errorf("parent %d has no persistent id", parent)
			return
		}
		// Walk up from the new parent; finding ourselves means a cycle.
		for cur := p; cur != nil; {
			if cur.EntityID() == id {
				err = fmt.Errorf("%w: %d under %d", ErrCyclicParent, id, parent)
				return
			}
			if cur.ParentPersistentID == "" {
				break
			}
			cur = s.FindByPersistentID(cur.ParentPersistentID)
		}
		e.ParentPersistentID = p.PersistentID
	})
	if err != nil {
		return err
	}
	for _, o := range m.observers {
		if po, ok := o.(ParentObserver); ok {
			po.ParentChanged(id, parent)
		}
	}
	return nil
}

func (m *Manager) applySetActive(id EntityID, active bool) error {
	var found bool
	m.state.WithSceneMut(func(s *Scene) {
		if e := s.FindByEntityID(id); e != nil {
			e.Disabled = !active
			found = true
		}
	})
	if !found {
		return fmt.Errorf("%w: %d", ErrUnknownEntity, id)
	}
	return nil
}

// mergeObjectPayload overlays patch keys onto the previous payload when
// both are JSON objects; otherwise the patch replaces wholesale.
func mergeObjectPayload(prev, patch json.RawMessage) json.RawMessage {
	var base, over map[string]json.RawMessage
	if json.Unmarshal(prev, &base) != nil || json.Unmarshal(patch, &over) != nil {
		return patch
	}
	for k, v := range over {
		base[k] = v
	}
	out, err := json.Marshal(base)
	if err != nil {
		return patch
	}
	return out
}

// EntityBuilder assembles an entity record and routes creation through the
// command buffer, so script-driven spawns never mutate mid-iteration.
type EntityBuilder struct {
	m *Manager
	e *Entity
}

// NewEntity starts a builder for a named entity.
func (m *Manager) NewEntity(name string) *EntityBuilder {
	return &EntityBuilder{m: m, e: &Entity{Name: name}}
}

// WithParent sets the parent by persistent id.
func (b *EntityBuilder) WithParent(parentPersistentID string) *EntityBuilder {
	b.e.ParentPersistentID = parentPersistentID
	return b
}

// WithTag appends a tag.
func (b *EntityBuilder) WithTag(tag string) *EntityBuilder {
	b.e.Tags = append(b.e.Tags, tag)
	return b
}

// WithComponent attaches a raw component payload.
func (b *EntityBuilder) WithComponent(kind ComponentKind, payload json.RawMessage) *EntityBuilder {
	b.e.SetComponent(kind, payload)
	return b
}

// WithTransform attaches a Transform from a typed record.
func (b *EntityBuilder) WithTransform(t component.Transform) *EntityBuilder {
	payload, err := json.Marshal(t)
	if err != nil {
		return b
	}
	return b.WithComponent(KindTransform, payload)
}

// Spawn enqueues the create and returns the handle the entity will have.
func (b *EntityBuilder) Spawn() EntityID {
	return b.m.CreateEntity(b.e)
}

// KindTransform mirrors the component package constant without forcing
// callers of the builder to import it.
const KindTransform = ComponentKind(component.KindTransform)
