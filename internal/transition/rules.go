// Package transition maintains the stage-transition rules of lifecycle status
// fields. Rules are a static adjacency set keyed by option value. Every
// function returns a fresh map and leaves its input untouched.
package transition

import (
	"encoding/json"
	"strings"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Add allows the move from -> to. A self-loop or an empty endpoint leaves
// the rules unchanged. Adding an existing edge is a no-op.
func Add(rules model.TransitionRules, from, to string) model.TransitionRules {
	if from == "" || to == "" || from == to {
		return rules
	}
	out := clone(rules)
	for _, t := range out[from] {
		if t == to {
			return out
		}
	}
	out[from] = append(out[from], to)
	return out
}

// Remove disallows the move from -> to. A source left with no targets is
// dropped from the rules.
func Remove(rules model.TransitionRules, from, to string) model.TransitionRules {
	out := clone(rules)
	targets, ok := out[from]
	if !ok {
		return out
	}
	kept := make([]string, 0, len(targets))
	for _, t := range targets {
		if t != to {
			kept = append(kept, t)
		}
	}
	if len(kept) == 0 {
		delete(out, from)
		return out
	}
	out[from] = kept
	return out
}

// Sequential chains every option to its successor in declaration order. The
// last option is terminal. Options without a key are skipped. The result
// replaces any existing rules.
func Sequential(opts []model.Option) model.TransitionRules {
	keys := options.Keys(opts)
	out := make(model.TransitionRules, len(keys))
	for i := 0; i+1 < len(keys); i++ {
		if from, to := keys[i], keys[i+1]; from != to {
			out[from] = []string{to}
		}
	}
	return out
}

// Allowed reports whether a record may move from -> to. Empty rules allow
// every move.
func Allowed(rules model.TransitionRules, from, to string) bool {
	if isOpen(rules) {
		return true
	}
	for _, t := range rules[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Canonical drops sources without targets, empty members and repeated
// targets. Target order is preserved.
func Canonical(rules model.TransitionRules) model.TransitionRules {
	out := make(model.TransitionRules, len(rules))
	for from, targets := range rules {
		if from == "" {
			continue
		}
		seen := make(map[string]struct{}, len(targets))
		kept := make([]string, 0, len(targets))
		for _, t := range targets {
			if t == "" {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			kept = append(kept, t)
		}
		if len(kept) > 0 {
			out[from] = kept
		}
	}
	return out
}

// Coerce decodes a stored rule payload. It accepts typed rules, maps of
// lists, maps with single string targets and JSON-encoded strings. Targets
// go through options.Key. Anything else yields empty rules.
func Coerce(raw any) model.TransitionRules {
	switch v := raw.(type) {
	case nil:
		return model.TransitionRules{}
	case model.TransitionRules:
		return Canonical(v)
	case map[string][]string:
		return Canonical(v)
	case map[string]any:
		out := make(model.TransitionRules, len(v))
		for from, targets := range v {
			out[from] = targetKeys(targets)
		}
		return Canonical(out)
	case map[any]any:
		out := make(model.TransitionRules, len(v))
		for from, targets := range v {
			out[options.Key(from)] = targetKeys(targets)
		}
		return Canonical(out)
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return model.TransitionRules{}
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return model.TransitionRules{}
		}
		return Coerce(decoded)
	default:
		return model.TransitionRules{}
	}
}

func targetKeys(raw any) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, options.Key(item))
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

func isOpen(rules model.TransitionRules) bool {
	for _, targets := range rules {
		if len(targets) > 0 {
			return false
		}
	}
	return true
}

func clone(rules model.TransitionRules) model.TransitionRules {
	out := make(model.TransitionRules, len(rules))
	for from, targets := range rules {
		if len(targets) == 0 {
			continue
		}
		out[from] = append([]string(nil), targets...)
	}
	return out
}
