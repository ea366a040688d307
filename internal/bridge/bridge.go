package bridge

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/event"
	"github.com/kestrel3d/kestrel/internal/scene"
)

// ErrOutOfSequence marks a diff batch whose sequence number does not
// advance past the last applied one. The caller is expected to resync.
var ErrOutOfSequence = errors.New("diff batch out of sequence")

// Bridge queues editor input (full scenes and diff batches) from the
// network goroutine and applies it on the frame thread via Drain. Safe for
// one producer and one applier.
type Bridge struct {
	log   *zap.Logger
	state *scene.State
	bus   *event.Bus

	mu      sync.Mutex
	inbound []inboundMsg

	lastSequence uint64
	observers    []scene.Observer
	sceneLoaded  func(*scene.Scene)
}

type inboundMsg struct {
	fullScene bool
	data      []byte
}

func New(log *zap.Logger, state *scene.State, bus *event.Bus) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{log: log, state: state, bus: bus}
}

// AddObserver registers for per-op notifications, same contract as the
// scene manager's observers.
func (b *Bridge) AddObserver(o scene.Observer) {
	b.observers = append(b.observers, o)
}

// OnSceneLoaded registers the full-replace hook; subsystems rebuild their
// caches there.
func (b *Bridge) OnSceneLoaded(fn func(*scene.Scene)) {
	b.sceneLoaded = fn
}

// QueueScene enqueues a full scene replace. Called from the stream reader.
func (b *Bridge) QueueScene(data []byte) {
	b.mu.Lock()
	b.inbound = append(b.inbound, inboundMsg{fullScene: true, data: data})
	b.mu.Unlock()
}

// QueueDiff enqueues a diff batch. Called from the stream reader.
func (b *Bridge) QueueDiff(data []byte) {
	b.mu.Lock()
	b.inbound = append(b.inbound, inboundMsg{data: data})
	b.mu.Unlock()
}

// Drain applies everything queued, in arrival order, on the frame thread.
// Returns the number of messages consumed. A failing message is logged and
// dropped; later messages still apply.
func (b *Bridge) Drain() int {
	b.mu.Lock()
	batch := b.inbound
	b.inbound = nil
	b.mu.Unlock()

	for _, msg := range batch {
		var err error
		if msg.fullScene {
			err = b.loadScene(msg.data)
		} else {
			err = b.applyDiffJSON(msg.data)
		}
		if err != nil {
			b.log.Warn("bridge message dropped", zap.Error(err))
		}
	}
	return len(batch)
}

// LoadScene replaces the current scene immediately. Only call from the
// frame thread (or before the loop starts).
func (b *Bridge) LoadScene(data []byte) error {
	return b.loadScene(data)
}

func (b *Bridge) loadScene(data []byte) error {
	s, err := scene.ParseScene(data)
	if err != nil {
		return err
	}
	s.ResolveParents(b.log)

	if b.bus != nil {
		b.bus.Emit(scene.EventSceneUnloaded, nil)
	}
	b.state.Replace(s)
	b.lastSequence = 0
	if b.sceneLoaded != nil {
		b.sceneLoaded(s)
	}
	if b.bus != nil {
		b.bus.Emit(scene.EventSceneLoaded, s.Metadata.Name)
	}
	b.log.Info("scene loaded",
		zap.String("name", s.Metadata.Name),
		zap.Int("entities", len(s.Entities)))
	return nil
}

func (b *Bridge) applyDiffJSON(data []byte) error {
	batch, err := ParseDiffBatch(data)
	if err != nil {
		return fmt.Errorf("parse diff batch: %w", err)
	}
	return b.ApplyDiffBatch(batch)
}

// ApplyDiffBatch validates sequencing and applies each op. A batch that
// does not advance the sequence is rejected with ErrOutOfSequence. A gap
// is applied but also emits a resync request so the host can decide to
// re-send a full scene.
func (b *Bridge) ApplyDiffBatch(batch DiffBatch) error {
	if batch.Sequence <= b.lastSequence {
		return fmt.Errorf("%w: %d after %d", ErrOutOfSequence, batch.Sequence, b.lastSequence)
	}
	if batch.Sequence != b.lastSequence+1 {
		b.log.Warn("diff sequence gap",
			zap.Uint64("expected", b.lastSequence+1),
			zap.Uint64("got", batch.Sequence))
		if b.bus != nil {
			b.bus.Emit(scene.EventBridgeResync, batch.Sequence)
		}
	}
	for _, op := range batch.Diffs {
		if err := b.applyOp(op); err != nil {
			b.log.Warn("diff op skipped", zap.String("type", op.Type), zap.Error(err))
		}
	}
	b.lastSequence = batch.Sequence
	return nil
}

// LastSequence returns the sequence of the last applied batch.
func (b *Bridge) LastSequence() uint64 { return b.lastSequence }

func (b *Bridge) applyOp(op DiffOp) error {
	switch op.Type {
	case DiffAddEntity:
		return b.addEntity(op)
	case DiffRemoveEntity:
		return b.removeEntity(op)
	case DiffUpdateEntity:
		return b.updateEntity(op)
	// AddComponent and SetComponent share the upsert path.
	case DiffAddComponent, DiffSetComponent:
		return b.setComponent(op)
	case DiffRemoveComponent:
		return b.removeComponent(op)
	}
	return fmt.Errorf("unknown diff op %q", op.Type)
}

func (b *Bridge) addEntity(op DiffOp) error {
	if op.PersistentID == "" {
		return errors.New("add entity without persistent_id")
	}
	e := &scene.Entity{
		PersistentID: op.PersistentID,
		NumericID:    op.ID,
	}
	if op.Name != nil {
		e.Name = *op.Name
	}
	if op.ParentPersistentID != nil {
		e.ParentPersistentID = *op.ParentPersistentID
	}
	for _, c := range op.Components {
		e.SetComponent(scene.ComponentKind(c.Type), c.Data)
	}

	var dup bool
	b.state.WithSceneMut(func(s *scene.Scene) {
		if s.FindByPersistentID(op.PersistentID) != nil {
			dup = true
			return
		}
		s.Entities = append(s.Entities, e)
	})
	if dup {
		return fmt.Errorf("entity %q already exists", op.PersistentID)
	}
	id := e.EntityID()
	for _, o := range b.observers {
		o.EntityCreated(id, e)
	}
	if b.bus != nil {
		b.bus.Emit(scene.EventEntitySpawned, id)
	}
	return nil
}

func (b *Bridge) removeEntity(op DiffOp) error {
	id := scene.EntityIDFromPersistent(op.PersistentID)
	var found bool
	b.state.WithSceneMut(func(s *scene.Scene) {
		for i, e := range s.Entities {
			if e.EntityID() == id {
				s.Entities = append(s.Entities[:i], s.Entities[i+1:]...)
				found = true
				return
			}
		}
	})
	if !found {
		return fmt.Errorf("%w: %q", scene.ErrUnknownEntity, op.PersistentID)
	}
	for _, o := range b.observers {
		o.EntityDestroyed(id)
	}
	if b.bus != nil {
		b.bus.Emit(scene.EventEntityDestroyed, id)
	}
	return nil
}

func (b *Bridge) updateEntity(op DiffOp) error {
	id := scene.EntityIDFromPersistent(op.PersistentID)
	var found bool
	b.state.WithSceneMut(func(s *scene.Scene) {
		e := s.FindByEntityID(id)
		if e == nil {
			return
		}
		found = true
		if op.Name != nil {
			e.Name = *op.Name
		}
		if op.ParentPersistentID != nil {
			e.ParentPersistentID = *op.ParentPersistentID
		}
	})
	if !found {
		return fmt.Errorf("%w: %q", scene.ErrUnknownEntity, op.PersistentID)
	}
	if op.ParentPersistentID != nil {
		var parent scene.EntityID
		if *op.ParentPersistentID != "" {
			parent = scene.EntityIDFromPersistent(*op.ParentPersistentID)
		}
		for _, o := range b.observers {
			if po, ok := o.(scene.ParentObserver); ok {
				po.ParentChanged(id, parent)
			}
		}
	}
	return nil
}

func (b *Bridge) setComponent(op DiffOp) error {
	if op.Component == nil {
		return errors.New("set component without component body")
	}
	id := scene.EntityIDFromPersistent(op.EntityPersistentID)
	kind := scene.ComponentKind(op.Component.Type)
	var found bool
	b.state.WithSceneMut(func(s *scene.Scene) {
		if e := s.FindByEntityID(id); e != nil {
			e.SetComponent(kind, op.Component.Data)
			found = true
		}
	})
	if !found {
		return fmt.Errorf("%w: %q", scene.ErrUnknownEntity, op.EntityPersistentID)
	}
	for _, o := range b.observers {
		o.ComponentSet(id, kind, op.Component.Data)
	}
	if b.bus != nil {
		b.bus.EmitTo(id, scene.EventEntityComponentAdded, op.Component.Type)
	}
	return nil
}

func (b *Bridge) removeComponent(op DiffOp) error {
	id := scene.EntityIDFromPersistent(op.EntityPersistentID)
	kind := scene.ComponentKind(op.ComponentType)
	var found, removed bool
	b.state.WithSceneMut(func(s *scene.Scene) {
		if e := s.FindByEntityID(id); e != nil {
			found = true
			removed = e.RemoveComponent(kind)
		}
	})
	if !found {
		return fmt.Errorf("%w: %q", scene.ErrUnknownEntity, op.EntityPersistentID)
	}
	if !removed {
		return nil
	}
	for _, o := range b.observers {
		o.ComponentRemoved(id, kind)
	}
	if b.bus != nil {
		b.bus.EmitTo(id, scene.EventEntityComponentRemoved, op.ComponentType)
	}
	return nil
}
