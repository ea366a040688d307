package component

import "encoding/json"

const KindScript = "Script"

// ScriptRef points at an editor-managed script asset.
type ScriptRef struct {
	ScriptID     string   `json:"scriptId"`
	Source       string   `json:"source,omitempty"` // "external" | "inline"
	Path         string   `json:"path,omitempty"`
	CodeHash     string   `json:"codeHash,omitempty"`
	LastModified *float64 `json:"lastModified,omitempty"`
}

// Script attaches behavior to an entity. Either the legacy compiled path
// or a scriptRef must be present; RuntimePath is the compiled artifact the
// runtime actually loads.
type Script struct {
	ScriptPath   string          `json:"scriptPath,omitempty"`
	ScriptRef    *ScriptRef      `json:"scriptRef,omitempty"`
	RuntimePath  string          `json:"runtimePath,omitempty"`
	Parameters   json.RawMessage `json:"parameters,omitempty"`
	Enabled      bool            `json:"enabled"`
	LastModified *float64        `json:"lastModified,omitempty"`
}

func (Script) ComponentKind() string { return KindScript }

// GetScriptPath returns the path to load: the compiled runtime artifact
// when present, else the scriptRef source path, else the legacy path.
func (s Script) GetScriptPath() string {
	if s.RuntimePath != "" {
		return s.RuntimePath
	}
	if s.ScriptRef != nil && s.ScriptRef.Path != "" {
		return s.ScriptRef.Path
	}
	return s.ScriptPath
}

// IsExternal reports whether the script comes from an external scriptRef.
func (s Script) IsExternal() bool {
	return s.ScriptRef != nil && s.ScriptRef.Source == "external"
}

func decodeScript(payload []byte) (Component, error) {
	s := Script{Enabled: true}
	if err := decodeInto(KindScript, payload, &s); err != nil {
		return nil, err
	}
	if s.ScriptPath == "" && s.ScriptRef == nil && s.RuntimePath == "" {
		return nil, &DecodeError{Kind: KindScript, Field: "scriptPath", Reason: ReasonMissingField}
	}
	return s, nil
}
