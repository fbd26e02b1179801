// Package mapping pairs source fields with target fields for the workflow
// nodes that copy values between forms, resolves dynamic values and
// materialises combination records.
package mapping

import (
	"fmt"
	"strings"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/compat"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// NewMapping pairs source with target and derives the compatibility status.
func NewMapping(source, target model.FieldDescriptor) model.FieldMapping {
	return model.FieldMapping{
		Source: source,
		Target: target,
		Status: compat.Score(source.Type, target.Type),
		Label:  compat.Label(source.Type, target.Type),
	}
}

// Set is an ordered list of mappings, at most one per target field. The zero
// value is empty and ready to use.
type Set struct {
	items []model.FieldMapping
}

// NewSet returns a set holding ms as given. Use Validate to detect entries
// Add would have refused.
func NewSet(ms ...model.FieldMapping) *Set {
	return &Set{items: append([]model.FieldMapping(nil), ms...)}
}

// Add maps source onto target. Layout fields and targets that are already
// mapped are refused; Add reports whether the mapping was added.
func (s *Set) Add(source, target model.FieldDescriptor) bool {
	if compat.IsLayout(source.Type) || compat.IsLayout(target.Type) {
		return false
	}
	if s.Has(target.ID) {
		return false
	}
	s.items = append(s.items, NewMapping(source, target))
	return true
}

// Remove drops the mapping onto targetID.
func (s *Set) Remove(targetID string) bool {
	for i, m := range s.items {
		if m.Target.ID == targetID {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Reset empties the set, e.g. after the target form changed.
func (s *Set) Reset() {
	s.items = nil
}

// Has reports whether targetID is already mapped.
func (s *Set) Has(targetID string) bool {
	for _, m := range s.items {
		if m.Target.ID == targetID {
			return true
		}
	}
	return false
}

// Len returns the number of mappings.
func (s *Set) Len() int { return len(s.items) }

// Mappings returns a copy of the mappings in insertion order.
func (s *Set) Mappings() []model.FieldMapping {
	return append([]model.FieldMapping(nil), s.items...)
}

// Pairs returns the mappings as id pairs.
func (s *Set) Pairs() []model.FieldPair {
	out := make([]model.FieldPair, len(s.items))
	for i, m := range s.items {
		out[i] = model.FieldPair{SourceFieldID: m.Source.ID, TargetFieldID: m.Target.ID}
	}
	return out
}

// Validate returns one error per problem found, in mapping order.
func (s *Set) Validate() []model.FieldError {
	var errs []model.FieldError
	seen := make(map[string]int, len(s.items))
	for i, m := range s.items {
		path := fmt.Sprintf("mappings[%d]", i)
		switch {
		case compat.IsLayout(m.Source.Type):
			errs = append(errs, model.FieldError{Field: path + ".source", Code: model.CodeLayoutField,
				Message: fmt.Sprintf("field %q is a %s and holds no value", m.Source.ID, m.Source.Type)})
		case compat.IsLayout(m.Target.Type):
			errs = append(errs, model.FieldError{Field: path + ".target", Code: model.CodeLayoutField,
				Message: fmt.Sprintf("field %q is a %s and holds no value", m.Target.ID, m.Target.Type)})
		case !compat.Compatible(m.Source.Type, m.Target.Type):
			errs = append(errs, model.FieldError{Field: path, Code: model.CodeIncompatibleTypes,
				Message: compat.Label(m.Source.Type, m.Target.Type)})
		}
		if prev, dup := seen[m.Target.ID]; dup {
			errs = append(errs, model.FieldError{Field: path + ".target", Code: model.CodeDuplicateTarget,
				Message: fmt.Sprintf("field %q is already mapped by mappings[%d]", m.Target.ID, prev)})
			continue
		}
		seen[m.Target.ID] = i
	}
	return errs
}

// Resolve looks up pairs in the source and target forms. Pairs that reference
// unknown fields are reported and skipped; the rest are added in order.
func Resolve(pairs []model.FieldPair, source, target *model.FormDefinition) (*Set, []model.FieldError) {
	set := &Set{}
	var errs []model.FieldError
	for i, p := range pairs {
		path := fmt.Sprintf("mappings[%d]", i)
		src, ok := source.Field(p.SourceFieldID)
		if !ok {
			errs = append(errs, model.FieldError{Field: path + ".sourceFieldId", Code: model.CodeRefNotFound,
				Message: fmt.Sprintf("field %q not found in form %q", p.SourceFieldID, source.ID)})
			continue
		}
		tgt, ok := target.Field(p.TargetFieldID)
		if !ok {
			errs = append(errs, model.FieldError{Field: path + ".targetFieldId", Code: model.CodeRefNotFound,
				Message: fmt.Sprintf("field %q not found in form %q", p.TargetFieldID, target.ID)})
			continue
		}
		set.items = append(set.items, NewMapping(src, tgt))
	}
	return set, errs
}

// AutoMap proposes mappings for targets: first by identical id, then by
// label, then by identical type. Only compatible pairs are proposed and
// neither a source nor a target is used twice. The result follows target
// order.
func AutoMap(sources, targets []model.FieldDescriptor) []model.FieldMapping {
	sources = compat.Mappable(sources)
	targets = compat.Mappable(targets)

	usedSource := make(map[int]bool, len(sources))
	chosen := make(map[int]int, len(targets))

	pass := func(match func(src, tgt model.FieldDescriptor) bool) {
		for ti, tgt := range targets {
			if _, done := chosen[ti]; done {
				continue
			}
			for si, src := range sources {
				if usedSource[si] || !compat.Compatible(src.Type, tgt.Type) {
					continue
				}
				if match(src, tgt) {
					chosen[ti] = si
					usedSource[si] = true
					break
				}
			}
		}
	}
	pass(func(src, tgt model.FieldDescriptor) bool { return src.ID != "" && src.ID == tgt.ID })
	pass(func(src, tgt model.FieldDescriptor) bool {
		return src.Label != "" && strings.EqualFold(strings.TrimSpace(src.Label), strings.TrimSpace(tgt.Label))
	})
	pass(func(src, tgt model.FieldDescriptor) bool { return src.Type == tgt.Type })

	out := make([]model.FieldMapping, 0, len(chosen))
	for ti, tgt := range targets {
		if si, ok := chosen[ti]; ok {
			out = append(out, NewMapping(sources[si], tgt))
		}
	}
	return out
}

// Apply copies values from sourceData for every compatible mapping, keyed by
// target field id. Missing source values are skipped. Choice values given as
// option objects are reduced to their key.
func Apply(mappings []model.FieldMapping, sourceData map[string]any) map[string]any {
	out := make(map[string]any, len(mappings))
	for _, m := range mappings {
		if !compat.Compatible(m.Source.Type, m.Target.Type) || compat.IsLayout(m.Source.Type) || compat.IsLayout(m.Target.Type) {
			continue
		}
		v, ok := sourceData[m.Source.ID]
		if !ok || v == nil {
			continue
		}
		out[m.Target.ID] = convert(v, m.Target.Type)
	}
	return out
}

func convert(v any, target model.FieldType) any {
	c, _ := compat.ClassOf(target)
	switch c {
	case compat.ClassSingleChoice:
		return options.Key(v)
	case compat.ClassMultiChoice:
		if s, ok := v.(string); ok && !strings.HasPrefix(strings.TrimSpace(s), "[") {
			return []string{s}
		}
		return options.Keys(options.Normalize(v))
	default:
		return v
	}
}
