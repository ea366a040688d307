package scene

// Reserved cross-subsystem event keys. User-space keys are free-form; this
// set is stable and shared by the bridge, physics, audio and UI layers.
const (
	EventSceneLoaded   = "scene:loaded"
	EventSceneUnloaded = "scene:unloaded"

	EventPhysicsCollision = "physics:collision"
	EventPhysicsTrigger   = "physics:trigger"

	EventAudioPlay = "audio:play"
	EventAudioStop = "audio:stop"

	EventGameScoreChanged = "game:score_changed"
	EventGameStateChanged = "game:state_changed"

	EventUIShow = "ui:show"
	EventUIHide = "ui:hide"

	EventEntitySpawned          = "entity:spawned"
	EventEntityDestroyed        = "entity:destroyed"
	EventEntityComponentAdded   = "entity:component_added"
	EventEntityComponentRemoved = "entity:component_removed"

	// Emitted when the live bridge sees a sequence gap and wants the host
	// to re-send a full scene.
	EventBridgeResync = "bridge:resync"
)
