package component

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// decodeInto unmarshals a payload into a typed record, mapping JSON type
// errors to *DecodeError and checking required top-level fields. Unknown
// fields never fail a decode; they are surfaced separately by
// UnknownFields for validation reporting.
func decodeInto(kind string, payload json.RawMessage, out any, required ...string) error {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &DecodeError{Kind: kind, Field: typeErr.Field, Reason: ReasonTypeMismatch, Err: err}
		}
		return &DecodeError{Kind: kind, Reason: ReasonBadValue, Err: err}
	}
	if len(required) == 0 {
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return &DecodeError{Kind: kind, Reason: ReasonBadValue, Err: err}
	}
	for _, field := range required {
		if _, ok := raw[field]; !ok {
			return &DecodeError{Kind: kind, Field: field, Reason: ReasonMissingField}
		}
	}
	return nil
}

// UnknownFields returns the payload's top-level keys that the record type
// does not declare, sorted. Used by scene validation to warn without
// rejecting forward-compatible data.
func UnknownFields(payload json.RawMessage, record any) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil
	}
	known := jsonFieldNames(reflect.TypeOf(record))
	var out []string
	for k := range raw {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func jsonFieldNames(t reflect.Type) map[string]struct{} {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	names := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "" {
			name = f.Name
		}
		names[name] = struct{}{}
	}
	return names
}

// ParseColor parses a "#rrggbb" or "#rgb" hex color into linear-ish RGB in
// [0,1]. Bare "rrggbb" without the hash is accepted too.
func ParseColor(s string) ([3]float64, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return [3]float64{}, fmt.Errorf("bad hex color %q", s)
	}
	var rgb [3]float64
	for i := 0; i < 3; i++ {
		var b int
		if _, err := fmt.Sscanf(h[i*2:i*2+2], "%02x", &b); err != nil {
			return [3]float64{}, fmt.Errorf("bad hex color %q: %w", s, err)
		}
		rgb[i] = float64(b) / 255
	}
	return rgb, nil
}

// ColorOrWhite parses a color, falling back to white on empty or bad input.
func ColorOrWhite(s string) [3]float64 {
	if s == "" {
		return [3]float64{1, 1, 1}
	}
	rgb, err := ParseColor(s)
	if err != nil {
		return [3]float64{1, 1, 1}
	}
	return rgb
}
