package component

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/mathx"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(zap.NewNop())
	RegisterBuiltins(r)
	return r
}

func TestRegistryUnknownKind(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Decode("Nope", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.False(t, r.HasDecoder("Nope"))
}

func TestRegistryFirstMatchWins(t *testing.T) {
	r := newTestRegistry(t)
	r.Register(&funcDecoder{kind: KindTransform, fn: func([]byte) (Component, error) {
		t.Fatal("second decoder must not be reachable")
		return nil, nil
	}})
	c, err := r.Decode(KindTransform, json.RawMessage(`{"position":[1,2,3]}`))
	require.NoError(t, err)
	tr := c.(Transform)
	assert.Equal(t, 1.0, tr.PositionVec().X)
}

func TestTransformEulerDegrees(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Decode(KindTransform, json.RawMessage(`{"rotation":[0,90,0]}`))
	require.NoError(t, err)
	q := c.(Transform).RotationQuat()
	v := q.Rotate(mathx.UnitZ)
	assert.InDelta(t, 1, v.X, 1e-9)
	assert.InDelta(t, 0, v.Z, 1e-9)
}

func TestTransformQuaternionForm(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Decode(KindTransform, json.RawMessage(`{"rotation":[0,0,0,1]}`))
	require.NoError(t, err)
	q := c.(Transform).RotationQuat()
	assert.InDelta(t, 1, q.W, 1e-12)
}

func TestTransformBadRotationLength(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Decode(KindTransform, json.RawMessage(`{"rotation":[1,2]}`))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ReasonBadValue, de.Reason)
	assert.Equal(t, "rotation", de.Field)
}

func TestTransformDefaults(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Decode(KindTransform, json.RawMessage(`{}`))
	require.NoError(t, err)
	tr := c.(Transform)
	assert.Equal(t, 0.0, tr.PositionVec().Y)
	assert.Equal(t, 1.0, tr.ScaleVec().Y)
	assert.InDelta(t, 1, tr.RotationQuat().W, 1e-12)
}

func TestTypeMismatchReported(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Decode(KindMeshRenderer, json.RawMessage(`{"meshId":42}`))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ReasonTypeMismatch, de.Reason)
}

func TestMissingRequiredField(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Decode(KindSound, json.RawMessage(`{"volume":0.5}`))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ReasonMissingField, de.Reason)
	assert.Equal(t, "audioPath", de.Field)
}

func TestMaterialDefaults(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Decode(KindMaterial, json.RawMessage(`{"id":"m1"}`))
	require.NoError(t, err)
	m := c.(Material)
	assert.Equal(t, "#ffffff", m.Color)
	assert.Equal(t, 0.7, m.Roughness)
	assert.Equal(t, "standard", m.Shader)
	assert.Equal(t, "opaque", m.AlphaMode)
	assert.Equal(t, 0.5, m.AlphaCutoff)
	assert.Equal(t, 1.0, m.TextureRepeatX)
}

func TestMaterialOverrideApply(t *testing.T) {
	base := materialDefaults()
	base.ID = "base"
	base.Color = "#ff0000"
	base.Metalness = 0.2

	rough := 0.1
	color := "#00ff00"
	o := &MaterialOverride{Color: &color, Roughness: &rough}

	merged := o.Apply(base)
	assert.Equal(t, "#00ff00", merged.Color)
	assert.Equal(t, 0.1, merged.Roughness)
	assert.Equal(t, 0.2, merged.Metalness) // inherited
	assert.Equal(t, "base", merged.ID)

	assert.True(t, (*MaterialOverride)(nil).IsZero())
	assert.False(t, o.IsZero())
}

func TestScriptPathResolution(t *testing.T) {
	s := Script{ScriptPath: "legacy.lua"}
	assert.Equal(t, "legacy.lua", s.GetScriptPath())
	assert.False(t, s.IsExternal())

	s.ScriptRef = &ScriptRef{ScriptID: "abc", Source: "external", Path: "src/ball.lua"}
	assert.Equal(t, "src/ball.lua", s.GetScriptPath())
	assert.True(t, s.IsExternal())

	s.RuntimePath = "build/ball.lua"
	assert.Equal(t, "build/ball.lua", s.GetScriptPath())
}

func TestScriptRequiresSomePath(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Decode(KindScript, json.RawMessage(`{"enabled":true}`))
	var de *DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ReasonMissingField, de.Reason)
}

func TestValidateUnknownFieldWarns(t *testing.T) {
	r := newTestRegistry(t)
	issues := r.Validate(KindMeshRenderer, json.RawMessage(`{"meshId":"cube","wobble":3}`))
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityWarning, issues[0].Severity)
	assert.Equal(t, "wobble", issues[0].Field)
}

func TestValidateUnknownKindErrors(t *testing.T) {
	r := newTestRegistry(t)
	issues := r.Validate("Widget", json.RawMessage(`{}`))
	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
}

func TestParseColor(t *testing.T) {
	rgb, err := ParseColor("#ff0000")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{1, 0, 0}, rgb)

	rgb, err = ParseColor("00ff00")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0, 1, 0}, rgb)

	_, err = ParseColor("#nothex")
	assert.Error(t, err)

	assert.Equal(t, [3]float64{1, 1, 1}, ColorOrWhite(""))
}

func TestRigidBodyLegacyTypeAlias(t *testing.T) {
	r := newTestRegistry(t)
	c, err := r.Decode(KindRigidBody, json.RawMessage(`{"type":"fixed"}`))
	require.NoError(t, err)
	assert.Equal(t, BodyFixed, c.(RigidBody).EffectiveBodyType())
}

func TestRoundTripPreservesRecognizedFields(t *testing.T) {
	r := newTestRegistry(t)
	in := json.RawMessage(`{"position":[1,2,3],"rotation":[0,45,0],"scale":[2,2,2]}`)
	c, err := r.Decode(KindTransform, in)
	require.NoError(t, err)

	out, err := json.Marshal(c)
	require.NoError(t, err)
	var a, b map[string]any
	require.NoError(t, json.Unmarshal(in, &a))
	require.NoError(t, json.Unmarshal(out, &b))
	assert.Equal(t, a, b)
}
