package graph_test

import (
	"strings"
	"testing"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/graph"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

var stages = []model.Option{
	{Value: "open", Label: "Open"},
	{Value: "in-progress", Label: "In \"progress\""},
	{Value: "end", Label: "Done"},
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		name     string
		rules    model.TransitionRules
		overlay  *graph.Overlay
		contains []string
		excludes []string
	}{
		{
			name:  "Shapes and Sanitization",
			rules: model.TransitionRules{"open": {"in-progress"}, "in-progress": {"end"}},
			contains: []string{
				"graph LR\n",
				`open(("Open"))`,
				`in_progress["In 'progress'"]`,
				`end_(["Done"])`,
				"open --> in_progress",
				"in_progress --> end_",
			},
		},
		{
			name:     "Open Rules",
			rules:    model.TransitionRules{},
			contains: []string{"%% open: every transition is allowed", `end_["Done"]`},
			excludes: []string{"-->"},
		},
		{
			name:  "Stale Edges",
			rules: model.TransitionRules{"open": {"archived"}, "legacy": {"open"}},
			contains: []string{
				"open -.-> archived",
				"legacy -.-> open",
				"class archived stale;",
				"class legacy stale;",
			},
			excludes: []string{"class open stale;"},
		},
		{
			name:    "Overlay",
			rules:   model.TransitionRules{"open": {"in-progress"}},
			overlay: &graph.Overlay{VisitedStages: []string{"open", "open"}, CurrentStage: "in-progress"},
			contains: []string{
				"class open visited;",
				"class in_progress current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.Transitions(stages, tt.rules, tt.overlay)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Transitions() = \n%v\nWant substring: %v", got, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(got, bad) {
					t.Errorf("Transitions() = \n%v\nUnexpected substring: %v", got, bad)
				}
			}
		})
	}
}

func TestTransitions_visitedDeduplicated(t *testing.T) {
	got := graph.Transitions(stages, nil, &graph.Overlay{VisitedStages: []string{"open", "open", ""}})
	if n := strings.Count(got, "class open visited;"); n != 1 {
		t.Errorf("visited class applied %d times, want 1", n)
	}
}

func TestTransitions_nodeIDs(t *testing.T) {
	opts := []model.Option{
		{Value: "In Progress"},
		{Value: "In-Progress"},
		{Value: "Review (QA)"},
		{Value: "a:b"},
		{Label: "Done"},
	}
	rules := model.TransitionRules{"In Progress": {"Review (QA)"}, "In-Progress": {"a:b"}, "a:b": {"Done"}}

	got := graph.Transitions(opts, rules, &graph.Overlay{CurrentStage: "In-Progress"})
	for _, want := range []string{
		`In_Progress(("In Progress"))`,
		`In_Progress_2["In-Progress"]`,
		`Review__QA_(["Review (QA)"])`,
		`a_b["a:b"]`,
		`Done(["Done"])`,
		"In_Progress --> Review__QA_",
		"In_Progress_2 --> a_b",
		"a_b --> Done",
		"class In_Progress_2 current;",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Transitions() = \n%v\nWant substring: %v", got, want)
		}
	}
	for _, bad := range []string{"(QA)(", "a:b[", "Done -.->"} {
		if strings.Contains(got, bad) {
			t.Errorf("Transitions() = \n%v\nUnexpected substring: %v", got, bad)
		}
	}
}

func TestWorkflow(t *testing.T) {
	def := model.WorkflowDefinition{
		ID: "wf",
		Nodes: []model.NodeDefinition{
			{ID: "start", Type: model.NodeTrigger, Name: "On close"},
			{ID: "check", Type: model.NodeCondition},
			{ID: "task.create", Type: model.NodeCreateRecord},
			{ID: "notify", Type: model.NodeNotification},
		},
		Edges: []model.EdgeDefinition{
			{From: "start", To: "check"},
			{From: "check", To: "task.create", Branch: "true"},
			{From: "check", To: "notify", Branch: "false"},
		},
	}

	got := graph.Workflow(def)
	for _, want := range []string{
		"graph TD\n",
		`start(("On close <br/> trigger"))`,
		`check{"check <br/> condition"}`,
		`task_create[["task.create <br/> create_record"]]`,
		`notify[/"notify <br/> notification"/]`,
		"start --> check",
		`check -- "true" --> task_create`,
		`check -- "false" --> notify`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Workflow() = \n%v\nWant substring: %v", got, want)
		}
	}
}
