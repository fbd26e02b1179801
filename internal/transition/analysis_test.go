package transition

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

func TestTargets(t *testing.T) {
	opts := stages("open", "review", "closed")

	r := model.TransitionRules{"open": {"closed", "review"}}
	assert.Equal(t, []string{"review", "closed"}, Targets(r, "open", opts), "option order, not rule order")
	assert.Empty(t, Targets(r, "closed", opts))

	assert.Equal(t, []string{"open", "closed"}, Targets(nil, "review", opts), "open world offers every other stage")
}

func TestTargetsAndAnalyze_labelOnlyOptions(t *testing.T) {
	opts := []model.Option{{Label: "Open"}, {Label: "Review"}, {Label: "Done"}}
	r := model.TransitionRules{"Open": {"Done", "Review"}}

	assert.Equal(t, []string{"Review", "Done"}, Targets(r, "Open", opts))
	assert.Equal(t, []string{"Open", "Review", "Done"}, Targets(nil, "", opts))

	report := Analyze(r, opts)
	assert.Empty(t, report.Stale)
	assert.Equal(t, []string{"Review", "Done"}, report.Terminal)
	assert.Empty(t, report.Unreachable)
	assert.Equal(t, []Edge{{From: "Open", To: "Done"}, {From: "Open", To: "Review"}}, Edges(r, opts))
}

func TestEdges_orderedByOption(t *testing.T) {
	opts := stages("a", "b", "c")
	r := model.TransitionRules{"c": {"a"}, "zz": {"a"}, "a": {"b"}, "b": {"c"}}
	assert.Equal(t, []Edge{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "c", To: "a"},
		{From: "zz", To: "a"},
	}, Edges(r, opts))
}

func TestAnalyze_open(t *testing.T) {
	rep := Analyze(model.TransitionRules{}, stages("a", "b"))
	assert.True(t, rep.Open)
	assert.Empty(t, rep.Terminal)
	assert.Empty(t, rep.Unreachable)
}

func TestAnalyze_sequential(t *testing.T) {
	opts := stages("o1", "o2", "o3")
	rep := Analyze(Sequential(opts), opts)
	assert.False(t, rep.Open)
	assert.Empty(t, rep.Stale)
	assert.Equal(t, []string{"o3"}, rep.Terminal)
	assert.Empty(t, rep.Unreachable)
	assert.False(t, rep.Cyclic)
}

func TestAnalyze_staleIslandsAndCycles(t *testing.T) {
	opts := stages("new", "active", "done", "orphan")
	r := model.TransitionRules{
		"new":     {"active"},
		"active":  {"new", "done", "removed"},
		"removed": {"done"},
	}
	rep := Analyze(r, opts)
	assert.Equal(t, []Edge{{From: "active", To: "removed"}, {From: "removed", To: "done"}}, rep.Stale)
	assert.Equal(t, []string{"done", "orphan"}, rep.Terminal)
	assert.Equal(t, []string{"orphan"}, rep.Unreachable)
	assert.True(t, rep.Cyclic)

	assert.Equal(t, model.TransitionRules{
		"new":     {"active"},
		"active":  {"new", "done", "removed"},
		"removed": {"done"},
	}, r, "analysis must not modify rules")
}

func TestPrune(t *testing.T) {
	opts := stages("a", "b")
	r := model.TransitionRules{"a": {"b", "gone"}, "gone": {"a"}, "b": {"gone"}}
	assert.Equal(t, model.TransitionRules{"a": {"b"}}, Prune(r, opts))
	assert.Len(t, r, 3)
}
