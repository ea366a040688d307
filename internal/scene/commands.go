package scene

import (
	"encoding/json"
	"sync"
)

// CommandOp enumerates the deferred structural edits.
type CommandOp uint8

const (
	OpCreateEntity CommandOp = iota
	OpDestroyEntity
	OpSetComponent
	OpRemoveComponent
	OpSetParent
	OpSetActive
)

func (op CommandOp) String() string {
	switch op {
	case OpCreateEntity:
		return "create_entity"
	case OpDestroyEntity:
		return "destroy_entity"
	case OpSetComponent:
		return "set_component"
	case OpRemoveComponent:
		return "remove_component"
	case OpSetParent:
		return "set_parent"
	case OpSetActive:
		return "set_active"
	}
	return "unknown"
}

// Command is one deferred edit. Only the fields relevant to Op are set.
type Command struct {
	Op      CommandOp
	ID      EntityID
	Entity  *Entity // OpCreateEntity
	Kind    ComponentKind
	Payload json.RawMessage
	Parent  EntityID // OpSetParent; zero clears the parent
	Active  bool     // OpSetActive
}

// CommandBuffer is an append-only queue of commands, drained once per frame
// at the scene manager's apply point. Enqueue order is application order.
type CommandBuffer struct {
	mu   sync.Mutex
	cmds []Command
}

func NewCommandBuffer() *CommandBuffer { return &CommandBuffer{} }

// Enqueue appends a command. Safe from any goroutine.
func (b *CommandBuffer) Enqueue(c Command) {
	b.mu.Lock()
	b.cmds = append(b.cmds, c)
	b.mu.Unlock()
}

// Drain removes and returns all pending commands in enqueue order.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	out := b.cmds
	b.cmds = nil
	b.mu.Unlock()
	return out
}

// Len returns the pending command count.
func (b *CommandBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.cmds)
}
