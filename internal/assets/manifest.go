package assets

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Manifest is the project file at the asset root: where scenes, scripts and
// textures live, and which scene loads by default.
type Manifest struct {
	Name         string `yaml:"name"`
	Version      string `yaml:"version"`
	ScenesDir    string `yaml:"scenes_dir"`
	ScriptsDir   string `yaml:"scripts_dir"`
	TexturesDir  string `yaml:"textures_dir"`
	GeometryDir  string `yaml:"geometry_dir"`
	DefaultScene string `yaml:"default_scene"`

	root string
}

func manifestDefaults() Manifest {
	return Manifest{
		ScenesDir:   "scenes",
		ScriptsDir:  "scripts",
		TexturesDir: "textures",
		GeometryDir: "geometry",
	}
}

// LoadManifest reads the project manifest; missing fields keep defaults.
func LoadManifest(path string) (*Manifest, error) {
	m := manifestDefaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.root = filepath.Dir(path)
	return &m, nil
}

// ScenePath resolves a scene name to its JSON file under the scenes dir.
func (m *Manifest) ScenePath(name string) string {
	if filepath.Ext(name) == "" {
		name += ".json"
	}
	return filepath.Join(m.root, m.ScenesDir, name)
}

// ScriptRoot is the absolute scripts directory.
func (m *Manifest) ScriptRoot() string {
	return filepath.Join(m.root, m.ScriptsDir)
}

// GeometryPath resolves a geometry sidecar by mesh id.
func (m *Manifest) GeometryPath(meshID string) string {
	return filepath.Join(m.root, m.GeometryDir, meshID+".json")
}
