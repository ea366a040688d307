package component

const KindSound = "Sound"

// Sound attaches an audio emitter. The playback fields at the bottom are
// runtime read-backs written by the audio backend, never authored.
type Sound struct {
	AudioPath    string  `json:"audioPath"`
	Enabled      bool    `json:"enabled"`
	Autoplay     bool    `json:"autoplay"`
	Loop         bool    `json:"loop"`
	Volume       float64 `json:"volume"`
	Pitch        float64 `json:"pitch"`
	PlaybackRate float64 `json:"playbackRate"`
	Muted        bool    `json:"muted"`

	Is3D           bool    `json:"is3D"`
	MinDistance    float64 `json:"minDistance"`
	MaxDistance    float64 `json:"maxDistance"`
	RolloffFactor  float64 `json:"rolloffFactor"`
	ConeInnerAngle float64 `json:"coneInnerAngle"`
	ConeOuterAngle float64 `json:"coneOuterAngle"`
	ConeOuterGain  float64 `json:"coneOuterGain"`

	IsPlaying   bool    `json:"isPlaying"`
	CurrentTime float64 `json:"currentTime"`
	Duration    float64 `json:"duration"`
	Format      string  `json:"format,omitempty"`
}

func (Sound) ComponentKind() string { return KindSound }

func decodeSound(payload []byte) (Component, error) {
	s := Sound{
		Enabled:        true,
		Volume:         1,
		Pitch:          1,
		PlaybackRate:   1,
		MinDistance:    1,
		MaxDistance:    10000,
		RolloffFactor:  1,
		ConeInnerAngle: 360,
		ConeOuterAngle: 360,
	}
	if err := decodeInto(KindSound, payload, &s, "audioPath"); err != nil {
		return nil, err
	}
	return s, nil
}
