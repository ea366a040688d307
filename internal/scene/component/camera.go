package component

const KindCamera = "Camera"

// CameraColor is an RGBA clear color.
type CameraColor struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// ViewportRect is a normalized sub-rectangle of the framebuffer.
type ViewportRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Camera describes a render viewpoint. Depth orders multi-camera scenes;
// lower depth renders first.
type Camera struct {
	Fov              float64 `json:"fov"`
	Near             float64 `json:"near"`
	Far              float64 `json:"far"`
	IsMain           bool    `json:"isMain"`
	ProjectionType   string  `json:"projectionType"`
	OrthographicSize float64 `json:"orthographicSize"`
	Depth            int32   `json:"depth"`

	ClearFlags      *string      `json:"clearFlags,omitempty"`
	BackgroundColor *CameraColor `json:"backgroundColor,omitempty"`
	SkyboxTexture   string       `json:"skyboxTexture,omitempty"`

	ControlMode       string        `json:"controlMode,omitempty"`
	EnableSmoothing   bool          `json:"enableSmoothing"`
	FollowTarget      *uint32       `json:"followTarget,omitempty"`
	FollowOffset      *[3]float64   `json:"followOffset,omitempty"`
	SmoothingSpeed    float64       `json:"smoothingSpeed"`
	RotationSmoothing float64       `json:"rotationSmoothing"`
	Viewport          *ViewportRect `json:"viewportRect,omitempty"`

	HDR                  bool    `json:"hdr"`
	ToneMapping          string  `json:"toneMapping,omitempty"`
	ToneMappingExposure  float64 `json:"toneMappingExposure"`
	EnablePostProcessing bool    `json:"enablePostProcessing"`
	PostProcessingPreset string  `json:"postProcessingPreset,omitempty"`
}

func (Camera) ComponentKind() string { return KindCamera }

// IsOrthographic reports whether the camera projects orthographically.
func (c Camera) IsOrthographic() bool { return c.ProjectionType == "orthographic" }

func decodeCamera(payload []byte) (Component, error) {
	c := Camera{
		Fov:                 60,
		Near:                0.1,
		Far:                 1000,
		ProjectionType:      "perspective",
		OrthographicSize:    10,
		SmoothingSpeed:      5,
		RotationSmoothing:   10,
		ToneMappingExposure: 1,
	}
	if err := decodeInto(KindCamera, payload, &c); err != nil {
		return nil, err
	}
	switch c.ProjectionType {
	case "perspective", "orthographic":
	default:
		return nil, &DecodeError{Kind: KindCamera, Field: "projectionType", Reason: ReasonBadValue}
	}
	return c, nil
}
