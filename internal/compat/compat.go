// Package compat decides whether a value held by a field of one type may be
// written into a field of another type. Decisions come from a closed table of
// equivalence classes. Unknown types only match themselves.
package compat

import (
	"fmt"
	"sort"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Score returns the compatibility level of source -> target.
func Score(source, target model.FieldType) model.Compatibility {
	if source == target {
		return model.Identical
	}
	if IsLayout(source) || IsLayout(target) {
		return model.Incompatible
	}
	sc, ok := classOf[source]
	if !ok {
		return model.Incompatible
	}
	if tc, ok := classOf[target]; ok && tc == sc {
		return model.Equivalent
	}
	return model.Incompatible
}

// Compatible reports whether a source value may be copied into target.
func Compatible(source, target model.FieldType) bool {
	return Score(source, target).OK()
}

// Label explains the verdict for source -> target. The text only depends on
// the two type tags.
func Label(source, target model.FieldType) string {
	if IsLayout(source) || IsLayout(target) {
		if source == target {
			return fmt.Sprintf("Layout field: %s holds no value", source)
		}
		return fmt.Sprintf("Incompatible: layout fields cannot be mapped (%s to %s)", source, target)
	}
	switch Score(source, target) {
	case model.Identical:
		return "Exact type match"
	case model.Equivalent:
		c, _ := ClassOf(source)
		return fmt.Sprintf("Compatible: both are %s fields", c)
	default:
		return fmt.Sprintf("Incompatible: %s cannot be mapped to %s", source, target)
	}
}

// IsLayout reports whether t is a static layout type that never carries a
// value.
func IsLayout(t model.FieldType) bool {
	_, ok := layout[t]
	return ok
}

// Mappable returns fields without layout types, preserving order.
func Mappable(fields []model.FieldDescriptor) []model.FieldDescriptor {
	out := make([]model.FieldDescriptor, 0, len(fields))
	for _, f := range fields {
		if !IsLayout(f.Type) {
			out = append(out, f)
		}
	}
	return out
}

// FilterCompatible returns the fields whose type may be written into target,
// preserving their relative order.
func FilterCompatible(fields []model.FieldDescriptor, target model.FieldType) []model.FieldDescriptor {
	out := make([]model.FieldDescriptor, 0, len(fields))
	for _, f := range Mappable(fields) {
		if Compatible(f.Type, target) {
			out = append(out, f)
		}
	}
	return out
}

// Candidate is a field ranked against a target type.
type Candidate struct {
	Field         model.FieldDescriptor `json:"field"`
	Compatibility model.Compatibility   `json:"compatibility"`
	Label         string                `json:"label"`
}

// Rank returns the compatible fields ordered by compatibility level, exact
// matches first. Fields at the same level keep their input order.
func Rank(fields []model.FieldDescriptor, target model.FieldType) []Candidate {
	compatible := FilterCompatible(fields, target)
	out := make([]Candidate, len(compatible))
	for i, f := range compatible {
		out[i] = Candidate{
			Field:         f,
			Compatibility: Score(f.Type, target),
			Label:         Label(f.Type, target),
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Compatibility > out[j].Compatibility
	})
	return out
}
