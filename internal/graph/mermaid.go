// Package graph renders transition rules and workflow definitions as Mermaid
// flowcharts.
package graph

import (
	"fmt"
	"strings"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/transition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Overlay marks record state on a transition graph.
type Overlay struct {
	VisitedStages []string
	CurrentStage  string
}

// Transitions renders the stage graph of a lifecycle field. Shapes:
//   - first option: ((Circle))
//   - option with no outgoing move: ([Stadium])
//   - other options: [Rectangle]
//
// Edges that reference removed options are dotted and their unknown endpoint
// is styled as stale. Open rules render the stages without edges.
func Transitions(opts []model.Option, rules model.TransitionRules, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	rules = transition.Canonical(rules)
	report := transition.Analyze(rules, opts)
	terminal := make(map[string]bool, len(report.Terminal))
	for _, v := range report.Terminal {
		terminal[v] = true
	}

	if report.Open {
		sb.WriteString("    %% open: every transition is allowed\n")
	}

	ids := newNodeIDs()
	for _, o := range opts {
		key := options.Key(o)
		if key == "" {
			continue
		}
		opener, closer := "[", "]"
		switch {
		case len(ids.byValue) == 0:
			opener, closer = "((", "))"
		case !report.Open && terminal[key]:
			opener, closer = "([", "])"
		}
		label := o.Label
		if label == "" {
			label = key
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", ids.of(key), opener, escape(label), closer)
	}

	stale := make(map[string]bool)
	for _, e := range transition.Edges(rules, opts) {
		arrow := "-->"
		for _, end := range []string{e.From, e.To} {
			if !options.Contains(opts, end) {
				arrow = "-.->"
				stale[end] = true
			}
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", ids.of(e.From), arrow, ids.of(e.To))
	}

	if len(stale) > 0 {
		sb.WriteString("\n    %% Stale stages\n")
		sb.WriteString("    classDef stale fill:#eeeeee,stroke:#9e9e9e,stroke-dasharray:4 2,color:#616161;\n")
		for _, e := range transition.Edges(rules, opts) {
			for _, end := range []string{e.From, e.To} {
				if stale[end] {
					fmt.Fprintf(&sb, "    class %s stale;\n", ids.of(end))
					delete(stale, end)
				}
			}
		}
	}

	if overlay != nil {
		writeOverlay(&sb, ids, overlay.VisitedStages, overlay.CurrentStage)
	}
	return sb.String()
}

// Workflow renders the node graph of a workflow. Shapes:
//   - trigger: ((Circle))
//   - condition: {Rhombus}
//   - notification: [/Parallelogram/]
//   - record writers: [[Subroutine]]
//   - other: [Rectangle]
func Workflow(def model.WorkflowDefinition) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	ids := newNodeIDs()
	for _, n := range def.Nodes {
		opener, closer := "[", "]"
		switch n.Type {
		case model.NodeTrigger:
			opener, closer = "((", "))"
		case model.NodeCondition:
			opener, closer = "{", "}"
		case model.NodeNotification:
			opener, closer = "[/", "/]"
		case model.NodeCreateRecord, model.NodeCreateCombinationRecords, model.NodeChangeFieldValue,
			model.NodeFieldMapping, model.NodeLinkRecords:
			opener, closer = "[[", "]]"
		}
		label := n.Name
		if label == "" {
			label = n.ID
		}
		fmt.Fprintf(&sb, "    %s%s\"%s <br/> %s\"%s\n", ids.of(n.ID), opener, escape(label), n.Type, closer)
	}

	for _, e := range def.Edges {
		arrow := "-->"
		if e.Branch != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", escape(e.Branch))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", ids.of(e.From), arrow, ids.of(e.To))
	}
	return sb.String()
}

func writeOverlay(sb *strings.Builder, ids *nodeIDs, visited []string, current string) {
	sb.WriteString("\n    %% Overlay Styles\n")
	sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
	sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

	seen := make(map[string]bool)
	for _, stage := range visited {
		if stage == "" || seen[stage] {
			continue
		}
		seen[stage] = true
		fmt.Fprintf(sb, "    class %s visited;\n", ids.of(stage))
	}
	if current != "" {
		fmt.Fprintf(sb, "    class %s current;\n", ids.of(current))
	}
}

// nodeIDs assigns Mermaid node ids to stage values and workflow node ids.
// Distinct values that sanitize to the same id get a numeric suffix.
type nodeIDs struct {
	byValue map[string]string
	taken   map[string]bool
}

func newNodeIDs() *nodeIDs {
	return &nodeIDs{byValue: map[string]string{}, taken: map[string]bool{}}
}

func (n *nodeIDs) of(value string) string {
	if id, ok := n.byValue[value]; ok {
		return id
	}
	base := sanitizeID(value)
	id := base
	for i := 2; n.taken[id]; i++ {
		id = fmt.Sprintf("%s_%d", base, i)
	}
	n.byValue[value] = id
	n.taken[id] = true
	return id
}

// sanitizeID maps every rune outside [A-Za-z0-9_] to an underscore. "end" is
// reserved by Mermaid.
func sanitizeID(value string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, value)
	if s == "" || strings.EqualFold(s, "end") {
		s += "_"
	}
	return s
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}
