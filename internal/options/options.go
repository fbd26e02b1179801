// Package options normalises the option lists of enumerated fields. Stored
// options come in several shapes (bare strings, {value,label} objects, JSON
// encoded strings) and every consumer resolves option identity through Key.
package options

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Key returns the identity of a raw option. A plain string is its own key;
// otherwise the non-empty value wins, then the non-empty label, then the
// stringified option.
func Key(raw any) string {
	switch v := raw.(type) {
	case nil:
		return ""
	case string:
		return v
	case model.Option:
		return keyOf(v.Value, v.Label, v)
	case *model.Option:
		if v == nil {
			return ""
		}
		return keyOf(v.Value, v.Label, *v)
	case map[string]any:
		return keyOf(stringField(v, "value"), stringField(v, "label"), v)
	case map[string]string:
		return keyOf(v["value"], v["label"], v)
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[fmt.Sprint(k)] = val
		}
		return Key(m)
	default:
		return fmt.Sprint(v)
	}
}

func keyOf(value, label string, fallback any) string {
	if value != "" {
		return value
	}
	if label != "" {
		return label
	}
	if m, ok := fallback.(map[string]any); ok && len(m) == 0 {
		return ""
	}
	if o, ok := fallback.(model.Option); ok && o == (model.Option{}) {
		return ""
	}
	return fmt.Sprint(fallback)
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Option converts a raw option into a model.Option. The label defaults to the
// key when absent.
func Option(raw any) model.Option {
	key := Key(raw)
	opt := model.Option{Value: key, Label: key}
	switch v := raw.(type) {
	case model.Option:
		opt.Color = v.Color
		if v.Label != "" {
			opt.Label = v.Label
		}
	case *model.Option:
		if v != nil {
			opt.Color = v.Color
			if v.Label != "" {
				opt.Label = v.Label
			}
		}
	case map[string]any:
		opt.Color = stringField(v, "color")
		if l := stringField(v, "label"); l != "" {
			opt.Label = l
		}
	case map[string]string:
		opt.Color = v["color"]
		if v["label"] != "" {
			opt.Label = v["label"]
		}
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, val := range v {
			m[fmt.Sprint(k)] = val
		}
		return Option(m)
	}
	return opt
}

// Normalize converts any stored option list into an ordered, duplicate-free
// slice of options. Malformed input yields an empty list. Entries whose key
// is empty are dropped and the first occurrence of a key wins.
func Normalize(raw any) []model.Option {
	items := elements(raw)
	out := make([]model.Option, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		opt := Option(item)
		if opt.Value == "" {
			continue
		}
		if _, dup := seen[opt.Value]; dup {
			continue
		}
		seen[opt.Value] = struct{}{}
		out = append(out, opt)
	}
	return out
}

// Keys returns the keys of opts in order, resolved through Key. Options
// without a key are skipped.
func Keys(opts []model.Option) []string {
	keys := make([]string, 0, len(opts))
	for _, o := range opts {
		if k := Key(o); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Contains reports whether key identifies one of opts.
func Contains(opts []model.Option, key string) bool {
	return Index(opts, key) >= 0
}

// Index returns the position of key in opts, or -1.
func Index(opts []model.Option, key string) int {
	if key == "" {
		return -1
	}
	for i, o := range opts {
		if Key(o) == key {
			return i
		}
	}
	return -1
}

func elements(raw any) []any {
	switch v := raw.(type) {
	case nil:
		return nil
	case []model.Option:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []map[string]any:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []map[string]string:
		out := make([]any, len(v))
		for i := range v {
			out[i] = v[i]
		}
		return out
	case []any:
		return v
	case string:
		return parseJSON(v)
	case []byte:
		return parseJSON(string(v))
	default:
		return nil
	}
}

func parseJSON(s string) []any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var list []any
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return nil
	}
	return list
}
