package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/kestrel3d/kestrel/internal/scene/component"
)

// ErrCyclicParent marks a parent chain that loops back onto itself. The
// offending entity is detached and loading continues.
var ErrCyclicParent = errors.New("cyclic parent")

// ParseScene decodes scene JSON. Component payloads stay raw; use
// ValidateScene to surface schema issues without failing the load.
func ParseScene(data []byte) (*Scene, error) {
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	return &s, nil
}

// LoadSceneFile reads and parses a scene file.
func LoadSceneFile(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", path, err)
	}
	s, err := ParseScene(data)
	if err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return s, nil
}

// ResolveParents checks every parent link after ingest: a missing parent or
// a cycle detaches the entity and is reported. Forward references are fine
// because links are persistent-id strings resolved here, not at parse time.
func (s *Scene) ResolveParents(log *zap.Logger) []error {
	if log == nil {
		log = zap.NewNop()
	}
	var errs []error
	for _, e := range s.Entities {
		if e.ParentPersistentID == "" {
			continue
		}
		if s.FindByPersistentID(e.ParentPersistentID) == nil {
			log.Warn("parent not found, detaching entity",
				zap.String("entity", e.Name),
				zap.String("parent", e.ParentPersistentID))
			errs = append(errs, fmt.Errorf("%w: parent %q of %q", ErrUnknownEntity, e.ParentPersistentID, e.Name))
			e.ParentPersistentID = ""
			continue
		}
		if s.hasParentCycle(e) {
			log.Warn("cyclic parent chain, detaching entity",
				zap.String("entity", e.Name),
				zap.String("parent", e.ParentPersistentID))
			errs = append(errs, fmt.Errorf("%w: %q", ErrCyclicParent, e.Name))
			e.ParentPersistentID = ""
		}
	}
	return errs
}

func (s *Scene) hasParentCycle(e *Entity) bool {
	seen := map[string]struct{}{}
	for cur := e; cur != nil && cur.ParentPersistentID != ""; {
		if _, dup := seen[cur.PersistentID]; dup {
			return true
		}
		seen[cur.PersistentID] = struct{}{}
		cur = s.FindByPersistentID(cur.ParentPersistentID)
	}
	return false
}

// ValidationReport aggregates every component issue found in one load so a
// single pass reports everything.
type ValidationReport struct {
	Entities int
	Issues   []EntityIssue
}

// EntityIssue ties a component issue to the entity it was found on.
type EntityIssue struct {
	EntityName string
	EntityID   EntityID
	Issue      component.Issue
}

// ErrorCount returns the number of error-severity issues.
func (r *ValidationReport) ErrorCount() int {
	n := 0
	for _, i := range r.Issues {
		if i.Issue.Severity == component.SeverityError {
			n++
		}
	}
	return n
}

// ValidateScene walks every component of every entity through the registry.
// Unknown kinds and schema mismatches are logged and reported; neither
// aborts the load.
func ValidateScene(log *zap.Logger, reg *component.Registry, s *Scene) *ValidationReport {
	if log == nil {
		log = zap.NewNop()
	}
	report := &ValidationReport{Entities: len(s.Entities)}
	for _, e := range s.Entities {
		for kind, payload := range e.Components {
			for _, issue := range reg.Validate(string(kind), payload) {
				report.Issues = append(report.Issues, EntityIssue{
					EntityName: e.Name,
					EntityID:   e.EntityID(),
					Issue:      issue,
				})
				field := zap.Skip()
				if issue.Field != "" {
					field = zap.String("field", issue.Field)
				}
				if issue.Severity == component.SeverityError {
					log.Warn("component validation failed",
						zap.String("entity", e.Name),
						zap.String("kind", issue.Kind),
						field,
						zap.String("reason", issue.Message))
				} else {
					log.Debug("component validation warning",
						zap.String("entity", e.Name),
						zap.String("kind", issue.Kind),
						field,
						zap.String("reason", issue.Message))
				}
			}
		}
	}
	if len(report.Issues) > 0 {
		log.Info("scene validated with issues",
			zap.Int("entities", report.Entities),
			zap.Int("issues", len(report.Issues)),
			zap.Int("errors", report.ErrorCount()))
	}
	return report
}

// DecodedMaterials decodes the material side table into an id-keyed map.
// Bad entries are logged and skipped.
func (s *Scene) DecodedMaterials(log *zap.Logger) map[string]component.Material {
	if log == nil {
		log = zap.NewNop()
	}
	out := make(map[string]component.Material, len(s.Materials))
	for _, raw := range s.Materials {
		m, err := component.DecodeMaterialTable(raw)
		if err != nil {
			log.Warn("material table entry dropped", zap.Error(err))
			continue
		}
		out[m.ID] = m
	}
	return out
}
