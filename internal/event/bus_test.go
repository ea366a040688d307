package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/scene"
)

func TestTargetedDispatchRule(t *testing.T) {
	b := NewBus(zap.NewNop())
	e1 := scene.EntityIDFromPersistent("e1")
	e2 := scene.EntityIDFromPersistent("e2")

	var global, owned1, owned2 int
	b.On("game:score_changed", func(Envelope) { global++ })
	b.OnEntity(e1, "game:score_changed", func(Envelope) { owned1++ })
	b.OnEntity(e2, "game:score_changed", func(Envelope) { owned2++ })

	b.EmitTo(e1, "game:score_changed", 10)
	b.Pump(nil)

	assert.Equal(t, 1, global, "global handlers see targeted envelopes")
	assert.Equal(t, 1, owned1)
	assert.Equal(t, 0, owned2, "other owners must not fire")

	b.Emit("game:score_changed", 20)
	b.Pump(nil)
	assert.Equal(t, 2, global)
	assert.Equal(t, 2, owned1, "owned handlers see global envelopes")
	assert.Equal(t, 1, owned2)
}

func TestCleanupEntityScenario(t *testing.T) {
	b := NewBus(zap.NewNop())
	e := scene.EntityIDFromPersistent("player")

	var gFired, oFired int
	b.On("ui:show", func(Envelope) { gFired++ })
	b.OnEntity(e, "ui:show", func(Envelope) { oFired++ })

	b.EmitTo(e, "ui:show", nil)
	b.Pump(nil)
	assert.Equal(t, 1, gFired)
	assert.Equal(t, 1, oFired)

	assert.Equal(t, 1, b.CleanupEntity(e))
	assert.Equal(t, 0, b.CleanupEntity(e), "second cleanup is a no-op")

	b.EmitTo(e, "ui:show", nil)
	b.Pump(nil)
	assert.Equal(t, 2, gFired, "global survives cleanup")
	assert.Equal(t, 1, oFired, "owned handler must not fire after cleanup")
}

func TestPumpBoundedToStartOfFrame(t *testing.T) {
	b := NewBus(zap.NewNop())
	var fired int
	b.On("tick", func(Envelope) {
		fired++
		if fired < 10 {
			b.Emit("tick", nil) // re-emits land in next frame's batch
		}
	})

	b.Emit("tick", nil)
	assert.Equal(t, 1, b.Pump(nil))
	assert.Equal(t, 1, fired)
	assert.Equal(t, 1, b.PendingCount())

	assert.Equal(t, 1, b.Pump(nil))
	assert.Equal(t, 2, fired)
}

func TestOffRemovesSubscription(t *testing.T) {
	b := NewBus(zap.NewNop())
	var fired int
	id := b.On("x", func(Envelope) { fired++ })

	assert.True(t, b.Off(id))
	assert.False(t, b.Off(id))

	b.Emit("x", nil)
	b.Pump(nil)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, b.SubscriptionCount())
}

func TestScriptDispatcherSeesEveryEnvelope(t *testing.T) {
	b := NewBus(zap.NewNop())
	var keys []string
	b.Emit("a", 1)
	b.EmitTo(scene.EntityIDFromPersistent("e"), "b", 2)
	b.Pump(func(env Envelope) { keys = append(keys, env.Key) })
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestEmitToMany(t *testing.T) {
	b := NewBus(zap.NewNop())
	ids := []scene.EntityID{
		scene.EntityIDFromPersistent("a"),
		scene.EntityIDFromPersistent("b"),
	}
	var fired int
	b.OnEntity(ids[0], "ping", func(Envelope) { fired++ })
	b.OnEntity(ids[1], "ping", func(Envelope) { fired++ })

	b.EmitToMany(ids, "ping", nil)
	b.Pump(nil)
	assert.Equal(t, 2, fired)
}
