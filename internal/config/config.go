package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Engine  EngineConfig  `toml:"engine"`
	Physics PhysicsConfig `toml:"physics"`
	BVH     BVHConfig     `toml:"bvh"`
	Render  RenderConfig  `toml:"render"`
	Bridge  BridgeConfig  `toml:"bridge"`
	Assets  AssetsConfig  `toml:"assets"`
	Logging LoggingConfig `toml:"logging"`
}

type EngineConfig struct {
	TargetFPS int   `toml:"target_fps"`
	StartTime int64 // set at boot, not from config
}

type PhysicsConfig struct {
	FixedDt     float64 `toml:"fixed_dt"`
	MaxSteps    int     `toml:"max_steps"`
	GravityY    float64 `toml:"gravity_y"`
	SleepFrames int     `toml:"sleep_frames"`
}

type BVHConfig struct {
	MaxLeafTriangles   int  `toml:"max_leaf_triangles"`
	MaxLeafRefs        int  `toml:"max_leaf_refs"`
	IncrementalUpdates bool `toml:"incremental_updates"`
	RebuildInterval    int  `toml:"rebuild_interval"`
}

type RenderConfig struct {
	Width               int     `toml:"width"`
	Height              int     `toml:"height"`
	MaxAmbientIntensity float64 `toml:"max_ambient_intensity"`
}

type BridgeConfig struct {
	Enabled      bool          `toml:"enabled"`
	BindAddress  string        `toml:"bind_address"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
}

type AssetsConfig struct {
	Root     string `toml:"root"`
	Manifest string `toml:"manifest"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Engine.StartTime = time.Now().Unix()
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			TargetFPS: 60,
		},
		Physics: PhysicsConfig{
			FixedDt:     1.0 / 60.0,
			MaxSteps:    5,
			GravityY:    -9.81,
			SleepFrames: 30,
		},
		BVH: BVHConfig{
			MaxLeafTriangles:   4,
			MaxLeafRefs:        2,
			IncrementalUpdates: true,
			RebuildInterval:    240,
		},
		Render: RenderConfig{
			Width:               1280,
			Height:              720,
			MaxAmbientIntensity: 4.0,
		},
		Bridge: BridgeConfig{
			Enabled:      false,
			BindAddress:  "127.0.0.1:17815",
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Assets: AssetsConfig{
			Root:     "assets",
			Manifest: "project.yaml",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
