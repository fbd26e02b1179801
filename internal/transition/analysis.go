package transition

import (
	"sort"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Edge is a single allowed move.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Report describes the shape of a rule set relative to the field's current
// options. It is informational: rule sets with stale entries, dead ends or
// islands are valid.
type Report struct {
	// Open is true when the rules are empty and every move is allowed.
	Open bool `json:"open"`
	// Stale lists edges whose endpoints are no longer options.
	Stale []Edge `json:"stale,omitempty"`
	// Terminal lists options with no outgoing move.
	Terminal []string `json:"terminal,omitempty"`
	// Unreachable lists options that cannot be reached from the first option.
	Unreachable []string `json:"unreachable,omitempty"`
	// Cyclic is true when some option can return to itself.
	Cyclic bool `json:"cyclic"`
}

// Targets returns the stages a record in stage from may move to, in option
// order. With empty rules every other option is a target.
func Targets(rules model.TransitionRules, from string, opts []model.Option) []string {
	out := make([]string, 0, len(opts))
	for _, to := range options.Keys(opts) {
		if to != from && Allowed(rules, from, to) {
			out = append(out, to)
		}
	}
	return out
}

// Edges lists the rules as edges, sorted by source option position then by
// target order. Sources that are not options sort last by name.
func Edges(rules model.TransitionRules, opts []model.Option) []Edge {
	froms := make([]string, 0, len(rules))
	for from := range rules {
		froms = append(froms, from)
	}
	sort.SliceStable(froms, func(i, j int) bool {
		ii, jj := options.Index(opts, froms[i]), options.Index(opts, froms[j])
		switch {
		case ii >= 0 && jj >= 0:
			return ii < jj
		case ii >= 0:
			return true
		case jj >= 0:
			return false
		default:
			return froms[i] < froms[j]
		}
	})
	var edges []Edge
	for _, from := range froms {
		for _, to := range rules[from] {
			edges = append(edges, Edge{From: from, To: to})
		}
	}
	return edges
}

// Analyze reports stale entries, terminal stages, unreachable stages and
// cycles. It never modifies rules.
func Analyze(rules model.TransitionRules, opts []model.Option) Report {
	rules = Canonical(rules)
	r := Report{Open: len(rules) == 0}
	if r.Open {
		return r
	}

	for _, e := range Edges(rules, opts) {
		if !options.Contains(opts, e.From) || !options.Contains(opts, e.To) {
			r.Stale = append(r.Stale, e)
		}
	}

	live := Prune(rules, opts)
	keys := options.Keys(opts)
	for _, k := range keys {
		if len(live[k]) == 0 {
			r.Terminal = append(r.Terminal, k)
		}
	}

	if len(keys) > 0 {
		reached := reachable(live, keys[0])
		for _, k := range keys {
			if _, ok := reached[k]; !ok {
				r.Unreachable = append(r.Unreachable, k)
			}
		}
	}

	r.Cyclic = hasCycle(live, keys)
	return r
}

// Prune removes edges whose endpoints are not among opts.
func Prune(rules model.TransitionRules, opts []model.Option) model.TransitionRules {
	out := make(model.TransitionRules, len(rules))
	for from, targets := range rules {
		if !options.Contains(opts, from) {
			continue
		}
		kept := make([]string, 0, len(targets))
		for _, t := range targets {
			if options.Contains(opts, t) {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			out[from] = kept
		}
	}
	return Canonical(out)
}

func reachable(rules model.TransitionRules, start string) map[string]struct{} {
	seen := map[string]struct{}{start: {}}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range rules[cur] {
			if _, ok := seen[next]; ok {
				continue
			}
			seen[next] = struct{}{}
			queue = append(queue, next)
		}
	}
	return seen
}

func hasCycle(rules model.TransitionRules, keys []string) bool {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(keys))
	var visit func(string) bool
	visit = func(n string) bool {
		color[n] = grey
		for _, next := range rules[n] {
			switch color[next] {
			case grey:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[n] = black
		return false
	}
	for _, k := range keys {
		if color[k] == white && visit(k) {
			return true
		}
	}
	return false
}
