package component

// RegisterBuiltins installs the decoder set for every component kind the
// runtime ships with. Call once on a fresh registry before scene ingest.
func RegisterBuiltins(r *Registry) {
	r.Register(&funcDecoder{
		kind: KindTransform,
		cap:  Capability{AffectsRender: true},
		fn:   decodeTransform,
	})
	r.Register(&funcDecoder{
		kind: KindMeshRenderer,
		cap:  Capability{AffectsRender: true},
		fn:   decodeMeshRenderer,
	})
	r.Register(&funcDecoder{
		kind: KindInstanced,
		cap:  Capability{AffectsRender: true},
		fn:   decodeInstanced,
	})
	r.Register(&funcDecoder{
		kind: KindMaterial,
		cap:  Capability{AffectsRender: true},
		fn:   decodeMaterial,
	})
	r.Register(&funcDecoder{
		kind: KindLight,
		cap:  Capability{AffectsRender: true},
		fn:   decodeLight,
	})
	r.Register(&funcDecoder{
		kind: KindCamera,
		cap:  Capability{AffectsRender: true},
		fn:   decodeCamera,
	})
	r.Register(&funcDecoder{
		kind: KindRigidBody,
		cap:  Capability{AffectsPhysics: true},
		fn:   decodeRigidBody,
	})
	r.Register(&funcDecoder{
		kind: KindMeshCollider,
		cap:  Capability{AffectsPhysics: true},
		fn:   decodeMeshCollider,
	})
	r.Register(&funcDecoder{
		kind: KindCharacterController,
		cap:  Capability{AffectsPhysics: true},
		fn:   decodeCharacterController,
	})
	r.Register(&funcDecoder{
		kind: KindScript,
		cap:  Capability{Scripted: true},
		fn:   decodeScript,
	})
	r.Register(&funcDecoder{
		kind: KindSound,
		cap:  Capability{},
		fn:   decodeSound,
	})
}

// recordPrototype returns a zero value of the typed record for a kind,
// used by validation to compute the known-field set.
func recordPrototype(kind string) (any, bool) {
	switch kind {
	case KindTransform:
		return Transform{}, true
	case KindMeshRenderer:
		return MeshRenderer{}, true
	case KindInstanced:
		return Instanced{}, true
	case KindMaterial:
		return Material{}, true
	case KindLight:
		return Light{}, true
	case KindCamera:
		return Camera{}, true
	case KindRigidBody:
		return RigidBody{}, true
	case KindMeshCollider:
		return MeshCollider{}, true
	case KindCharacterController:
		return CharacterController{}, true
	case KindScript:
		return Script{}, true
	case KindSound:
		return Sound{}, true
	}
	return nil, false
}
