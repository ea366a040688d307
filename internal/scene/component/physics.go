package component

const (
	KindRigidBody           = "RigidBody"
	KindMeshCollider        = "MeshCollider"
	KindCharacterController = "CharacterController"
)

// Body type tags.
const (
	BodyDynamic   = "dynamic"
	BodyKinematic = "kinematic"
	BodyFixed     = "fixed"
)

// PhysicsMaterial is surface friction/restitution/density.
type PhysicsMaterial struct {
	Friction    float64 `json:"friction"`
	Restitution float64 `json:"restitution"`
	Density     float64 `json:"density"`
}

func defaultPhysicsMaterial() PhysicsMaterial {
	return PhysicsMaterial{Friction: 0.7, Restitution: 0.3, Density: 1}
}

// RigidBody attaches the entity to the physics world.
type RigidBody struct {
	Enabled      bool             `json:"enabled"`
	BodyType     string           `json:"bodyType"`
	LegacyType   string           `json:"type,omitempty"`
	Mass         float64          `json:"mass"`
	GravityScale float64          `json:"gravityScale"`
	CanSleep     bool             `json:"canSleep"`
	Material     *PhysicsMaterial `json:"material,omitempty"`
}

func (RigidBody) ComponentKind() string { return KindRigidBody }

// EffectiveBodyType resolves the legacy "type" alias against "bodyType".
func (rb RigidBody) EffectiveBodyType() string {
	if rb.LegacyType != "" {
		return rb.LegacyType
	}
	return rb.BodyType
}

// EffectiveMaterial returns the authored material or the defaults.
func (rb RigidBody) EffectiveMaterial() PhysicsMaterial {
	if rb.Material != nil {
		return *rb.Material
	}
	return defaultPhysicsMaterial()
}

func decodeRigidBody(payload []byte) (Component, error) {
	rb := RigidBody{Enabled: true, BodyType: BodyDynamic, Mass: 1, GravityScale: 1, CanSleep: true}
	if err := decodeInto(KindRigidBody, payload, &rb); err != nil {
		return nil, err
	}
	switch rb.EffectiveBodyType() {
	case BodyDynamic, BodyKinematic, BodyFixed:
	default:
		return nil, &DecodeError{Kind: KindRigidBody, Field: "bodyType", Reason: ReasonBadValue}
	}
	return rb, nil
}

// ColliderSize carries extents for every collider shape; only the fields
// matching the shape are meaningful.
type ColliderSize struct {
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	Depth         float64 `json:"depth"`
	Radius        float64 `json:"radius"`
	CapsuleRadius float64 `json:"capsuleRadius"`
	CapsuleHeight float64 `json:"capsuleHeight"`
}

// MeshCollider attaches collision geometry to the entity.
type MeshCollider struct {
	Enabled         bool            `json:"enabled"`
	ColliderType    string          `json:"colliderType"`
	IsTrigger       bool            `json:"isTrigger"`
	Center          [3]float64      `json:"center"`
	Size            ColliderSize    `json:"size"`
	PhysicsMaterial PhysicsMaterial `json:"physicsMaterial"`
}

func (MeshCollider) ComponentKind() string { return KindMeshCollider }

func decodeMeshCollider(payload []byte) (Component, error) {
	mc := MeshCollider{
		Enabled:      true,
		ColliderType: "box",
		Size: ColliderSize{
			Width: 1, Height: 1, Depth: 1,
			Radius: 0.5, CapsuleRadius: 0.5, CapsuleHeight: 2,
		},
		PhysicsMaterial: defaultPhysicsMaterial(),
	}
	if err := decodeInto(KindMeshCollider, payload, &mc); err != nil {
		return nil, err
	}
	switch mc.ColliderType {
	case "box", "sphere", "capsule", "cylinder", "mesh":
	default:
		return nil, &DecodeError{Kind: KindMeshCollider, Field: "colliderType", Reason: ReasonBadValue}
	}
	return mc, nil
}

// InputMapping binds character movement to key names.
type InputMapping struct {
	Forward  string `json:"forward"`
	Backward string `json:"backward"`
	Left     string `json:"left"`
	Right    string `json:"right"`
	Jump     string `json:"jump"`
}

// CharacterController configures the kinematic character movement
// primitive. IsGrounded is a runtime read-back, not an authored value.
type CharacterController struct {
	Enabled      bool          `json:"enabled"`
	SlopeLimit   float64       `json:"slopeLimit"`
	StepOffset   float64       `json:"stepOffset"`
	SkinWidth    float64       `json:"skinWidth"`
	GravityScale float64       `json:"gravityScale"`
	MaxSpeed     float64       `json:"maxSpeed"`
	JumpStrength float64       `json:"jumpStrength"`
	ControlMode  string        `json:"controlMode"`
	InputMapping *InputMapping `json:"inputMapping,omitempty"`
	IsGrounded   bool          `json:"isGrounded"`
}

func (CharacterController) ComponentKind() string { return KindCharacterController }

// EffectiveInputMapping returns the authored mapping or WASD+space.
func (cc CharacterController) EffectiveInputMapping() InputMapping {
	if cc.InputMapping != nil {
		return *cc.InputMapping
	}
	return InputMapping{Forward: "w", Backward: "s", Left: "a", Right: "d", Jump: "space"}
}

func decodeCharacterController(payload []byte) (Component, error) {
	cc := CharacterController{
		Enabled:      true,
		SlopeLimit:   45,
		StepOffset:   0.3,
		SkinWidth:    0.08,
		GravityScale: 1,
		MaxSpeed:     6,
		JumpStrength: 5,
		ControlMode:  "auto",
	}
	if err := decodeInto(KindCharacterController, payload, &cc); err != nil {
		return nil, err
	}
	return cc, nil
}
