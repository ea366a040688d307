// Package component decodes raw JSON component payloads into typed records
// through a pluggable decoder registry. Decoders own one or more kind
// strings; the first decoder registered for a kind wins.
package component

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// ErrUnknownKind is returned when no registered decoder handles a kind.
var ErrUnknownKind = errors.New("unknown component kind")

// FieldErrorReason classifies a component decode failure.
type FieldErrorReason string

const (
	ReasonMissingField FieldErrorReason = "missing_field"
	ReasonTypeMismatch FieldErrorReason = "type_mismatch"
	ReasonBadValue     FieldErrorReason = "bad_value"
)

// DecodeError is a structured decode failure carrying the component kind,
// the offending field and a reason class.
type DecodeError struct {
	Kind   string
	Field  string
	Reason FieldErrorReason
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: field %q: %s: %v", e.Kind, e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode %s: field %q: %s", e.Kind, e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Component is a decoded, typed component record.
type Component interface {
	ComponentKind() string
}

// Capability describes what a component kind participates in. The render
// and physics builders consult this instead of hard-coding kind lists.
type Capability struct {
	AffectsRender  bool
	AffectsPhysics bool
	Scripted       bool
}

// Decoder materializes payloads for the kinds it owns.
type Decoder interface {
	Kinds() []string
	Decode(kind string, payload json.RawMessage) (Component, error)
	Capability(kind string) Capability
}

// Registry maps kind strings to decoders. Registration is append-only and
// first-match: a later decoder never displaces an earlier one for the same
// kind.
type Registry struct {
	mu     sync.RWMutex
	log    *zap.Logger
	byKind map[string]Decoder
	order  []string
}

func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{log: log, byKind: make(map[string]Decoder)}
}

// Register adds a decoder for every kind it owns that is not already taken.
func (r *Registry) Register(d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range d.Kinds() {
		if _, taken := r.byKind[k]; taken {
			r.log.Warn("component decoder already registered, keeping first",
				zap.String("kind", k))
			continue
		}
		r.byKind[k] = d
		r.order = append(r.order, k)
	}
}

// HasDecoder reports whether any decoder owns the kind.
func (r *Registry) HasDecoder(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byKind[kind]
	return ok
}

// Decode materializes a payload, or returns ErrUnknownKind / *DecodeError.
func (r *Registry) Decode(kind string, payload json.RawMessage) (Component, error) {
	r.mu.RLock()
	d, ok := r.byKind[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return d.Decode(kind, payload)
}

// Capability returns the capability profile for a kind.
func (r *Registry) Capability(kind string) (Capability, bool) {
	r.mu.RLock()
	d, ok := r.byKind[kind]
	r.mu.RUnlock()
	if !ok {
		return Capability{}, false
	}
	return d.Capability(kind), true
}

// Kinds returns all registered kinds, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// funcDecoder adapts a decode function into a single-kind Decoder.
type funcDecoder struct {
	kind string
	cap  Capability
	fn   func([]byte) (Component, error)
}

func (f *funcDecoder) Kinds() []string { return []string{f.kind} }

func (f *funcDecoder) Decode(kind string, payload json.RawMessage) (Component, error) {
	if kind != f.kind {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return f.fn(payload)
}

func (f *funcDecoder) Capability(string) Capability { return f.cap }
