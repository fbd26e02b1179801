package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

type catalogue struct {
	forms map[string]model.FormDefinition
}

func (c catalogue) GetForm(id string) (model.FormDefinition, bool) {
	f, ok := c.forms[id]
	return f, ok
}

func (c catalogue) GetField(id string) (model.FieldDescriptor, bool) {
	for _, form := range c.forms {
		if f, ok := form.Field(id); ok {
			f.FormID = form.ID
			return f, true
		}
	}
	return model.FieldDescriptor{}, false
}

func testCatalogue() catalogue {
	stages := []any{"open", "in_progress", "review", "closed"}
	return catalogue{forms: map[string]model.FormDefinition{
		"tickets": {
			ID:   "tickets",
			Name: "Tickets",
			Fields: []model.FieldDescriptor{
				{ID: "title", Type: model.FieldText},
				{ID: "status", Type: model.FieldStatus, Options: stages, Config: map[string]any{
					"lifecycle":    true,
					"defaultValue": "open",
				}},
				{ID: "priority", Type: model.FieldSelect, Options: []any{"low", "high"}},
				{ID: "phase", Type: model.FieldRadio, Options: []any{
					map[string]any{"value": "draft", "label": "Draft"},
					map[string]any{"value": "live", "label": "Live"},
				}, Config: map[string]any{
					"lifecycle":       true,
					"transitionRules": map[string]any{"draft": []any{"live"}},
				}},
				{ID: "tags", Type: model.FieldTags, Options: []any{"a", "b"}},
				{ID: "banner", Type: model.FieldHeader},
			},
		},
		"assets": {
			ID:     "assets",
			Fields: []model.FieldDescriptor{{ID: "asset_name", Type: model.FieldText}},
		},
	}}
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, cfg config.LifecycleConfig, opts ...Option) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(st, testCatalogue(), cfg, opts...), st
}

func enforcing() config.LifecycleConfig {
	return config.LifecycleConfig{EnforceTransitions: true, RecordHistory: true}
}

func actorCtx(actor string) context.Context {
	return model.WithRequestContext(context.Background(), &model.RequestContext{ActorID: actor})
}

func TestRules_catalogueDefaults(t *testing.T) {
	svc, _ := newService(t, enforcing())

	rs, err := svc.Rules(context.Background(), "phase")
	require.NoError(t, err)
	assert.Equal(t, "tickets", rs.FormID)
	assert.True(t, rs.Lifecycle)
	assert.True(t, rs.Editable)
	assert.Equal(t, model.TransitionRules{"draft": {"live"}}, rs.Rules)
	assert.Equal(t, []string{"live"}, rs.Report.Terminal)
	assert.Equal(t, 0, rs.Version)

	rs, err = svc.Rules(context.Background(), "status")
	require.NoError(t, err)
	assert.True(t, rs.Report.Open)
	assert.Empty(t, rs.Edges)
}

func TestRules_errors(t *testing.T) {
	svc, _ := newService(t, enforcing())

	_, err := svc.Rules(context.Background(), "missing")
	assert.True(t, model.IsNotFound(err))

	_, err = svc.Rules(context.Background(), "title")
	assert.Equal(t, model.ErrBadRequest, model.ErrorCode(err))
}

func TestAddTransition_persists(t *testing.T) {
	svc, st := newService(t, enforcing())
	ctx := context.Background()

	rs, err := svc.AddTransition(ctx, "status", "open", "in_progress")
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Version)
	assert.Equal(t, model.TransitionRules{"open": {"in_progress"}}, rs.Rules)
	assert.Equal(t, 1, st.Len(store.TableFormFields))

	rs, err = svc.AddTransition(ctx, "status", "in_progress", "closed")
	require.NoError(t, err)
	assert.Equal(t, 2, rs.Version)

	reloaded, err := svc.Rules(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, model.TransitionRules{"open": {"in_progress"}, "in_progress": {"closed"}}, reloaded.Rules)
	assert.Equal(t, 2, reloaded.Version)

	field, version, err := svc.Field(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, true, field.Config["lifecycle"])
}

func TestAddTransition_idempotent(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	_, err := svc.AddTransition(ctx, "status", "open", "closed")
	require.NoError(t, err)
	rs, err := svc.AddTransition(ctx, "status", "open", "closed")
	require.NoError(t, err)
	assert.Equal(t, 1, rs.Version, "repeated add does not write")
	assert.Equal(t, model.TransitionRules{"open": {"closed"}}, rs.Rules)
}

func TestAddTransition_selfLoopIgnored(t *testing.T) {
	svc, _ := newService(t, enforcing())

	rs, err := svc.AddTransition(context.Background(), "status", "open", "open")
	require.NoError(t, err)
	assert.Empty(t, rs.Rules)
}

func TestAddTransition_unknownStage(t *testing.T) {
	svc, _ := newService(t, enforcing())

	_, err := svc.AddTransition(context.Background(), "status", "open", "archived")
	require.Error(t, err)
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	assert.Equal(t, model.ErrValidationError, env.Code)
	require.Len(t, env.Details, 1)
	assert.Equal(t, "to", env.Details[0].Field)
	assert.Equal(t, model.CodeInvalidEnum, env.Details[0].Code)
}

func TestEdit_requiresLifecycle(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	for _, id := range []string{"priority", "tags", "title"} {
		_, err := svc.AddTransition(ctx, id, "low", "high")
		assert.Equal(t, model.ErrBadRequest, model.ErrorCode(err), id)
	}

	_, err := svc.SetLifecycle(ctx, "tags", true)
	assert.Equal(t, model.ErrBadRequest, model.ErrorCode(err), "multi-value fields cannot be lifecycle fields")
}

func TestSetLifecycle_enablesRules(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	rs, err := svc.SetLifecycle(ctx, "priority", true)
	require.NoError(t, err)
	assert.True(t, rs.Lifecycle)
	assert.True(t, rs.Editable)

	rs, err = svc.AddTransition(ctx, "priority", "low", "high")
	require.NoError(t, err)
	assert.Equal(t, model.TransitionRules{"low": {"high"}}, rs.Rules)

	rs, err = svc.SetLifecycle(ctx, "priority", false)
	require.NoError(t, err)
	assert.False(t, rs.Editable)
	assert.Equal(t, model.TransitionRules{"low": {"high"}}, rs.Rules, "rules survive while lifecycle is off")
}

func TestRemoveTransition_dropsEmptySource(t *testing.T) {
	svc, _ := newService(t, enforcing())

	rs, err := svc.RemoveTransition(context.Background(), "phase", "draft", "live")
	require.NoError(t, err)
	assert.Empty(t, rs.Rules)
	assert.True(t, rs.Report.Open)
}

func TestSequentialFlow_andClear(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	rs, err := svc.SequentialFlow(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, model.TransitionRules{
		"open":        {"in_progress"},
		"in_progress": {"review"},
		"review":      {"closed"},
	}, rs.Rules)
	assert.Equal(t, []string{"closed"}, rs.Report.Terminal)

	rs, err = svc.ClearTransitions(ctx, "status")
	require.NoError(t, err)
	assert.Empty(t, rs.Rules)
	assert.Equal(t, 2, rs.Version)
}

func TestPruneTransitions(t *testing.T) {
	svc, st := newService(t, enforcing())
	ctx := context.Background()

	_, err := st.Create(ctx, store.TableFormFields, store.Document{ID: "status", Data: map[string]any{
		"form_id": "tickets",
		"config": map[string]any{
			"lifecycle":       true,
			"transitionRules": map[string]any{"open": []any{"closed", "archived"}, "legacy": []any{"open"}},
		},
	}})
	require.NoError(t, err)

	rs, err := svc.Rules(ctx, "status")
	require.NoError(t, err)
	assert.Len(t, rs.Report.Stale, 2)

	rs, err = svc.PruneTransitions(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, model.TransitionRules{"open": {"closed"}}, rs.Rules)
	assert.Empty(t, rs.Report.Stale)
	assert.Equal(t, 2, rs.Version)
}

func TestEdit_recordsMetrics(t *testing.T) {
	m := observability.InitMetrics(prometheus.NewRegistry())
	svc, _ := newService(t, enforcing(), WithMetrics(m))
	ctx := context.Background()

	_, _ = svc.AddTransition(ctx, "status", "open", "closed")
	_, _ = svc.AddTransition(ctx, "status", "open", "closed")
	_, _ = svc.AddTransition(ctx, "priority", "low", "high")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionEditsTotal.WithLabelValues(OpAdd, OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionEditsTotal.WithLabelValues(OpAdd, OutcomeNoop)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransitionEditsTotal.WithLabelValues(OpAdd, OutcomeRejected)))
}

func TestCheckTransition(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	d, err := svc.CheckTransition(ctx, "phase", "draft", "live")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.False(t, d.Open)

	d, err = svc.CheckTransition(ctx, "phase", "live", "draft")
	require.NoError(t, err)
	assert.False(t, d.Allowed)

	d, err = svc.CheckTransition(ctx, "status", "closed", "open")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.True(t, d.Open)

	d, err = svc.CheckTransition(ctx, "priority", "high", "low")
	require.NoError(t, err)
	assert.True(t, d.Allowed, "non-lifecycle fields never restrict moves")

	_, err = svc.CheckTransition(ctx, "title", "a", "b")
	assert.Equal(t, model.ErrBadRequest, model.ErrorCode(err))
}

func TestCreateRecord(t *testing.T) {
	svc, _ := newService(t, enforcing())

	rec, err := svc.CreateRecord(actorCtx("u-1"), "tickets", map[string]any{
		"title": "Printer jam",
		"phase": map[string]any{"value": "draft", "label": "Draft"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "tickets", rec.FormID)
	assert.Equal(t, "u-1", rec.CreatedBy)
	assert.Equal(t, "open", rec.Data["status"], "default stage applied")
	assert.Equal(t, "draft", rec.Data["phase"], "stage stored by option key")

	got, err := svc.GetRecord(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Data, got.Data)
}

func TestCreateRecord_validation(t *testing.T) {
	svc, _ := newService(t, enforcing())

	_, err := svc.CreateRecord(context.Background(), "nope", nil)
	assert.True(t, model.IsNotFound(err))

	_, err = svc.CreateRecord(context.Background(), "tickets", map[string]any{
		"ghost":  1,
		"banner": "x",
		"status": "archived",
	})
	var env *model.ErrorEnvelope
	require.ErrorAs(t, err, &env)
	codes := map[string]string{}
	for _, d := range env.Details {
		codes[d.Field] = d.Code
	}
	assert.Equal(t, map[string]string{
		"ghost":  model.CodeRefNotFound,
		"banner": model.CodeLayoutField,
		"status": model.CodeInvalidEnum,
	}, codes)
}

func TestListRecords(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	for _, title := range []string{"a", "b", "c"} {
		_, err := svc.CreateRecord(ctx, "tickets", map[string]any{"title": title})
		require.NoError(t, err)
	}
	_, err := svc.CreateRecord(ctx, "assets", map[string]any{"asset_name": "laptop"})
	require.NoError(t, err)

	recs, err := svc.ListRecords(ctx, "tickets", 2, 1)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[0].Data["title"])
	assert.Equal(t, "c", recs[1].Data["title"])

	_, err = svc.ListRecords(ctx, "nope", 0, 0)
	assert.True(t, model.IsNotFound(err))
}

func TestChangeStage_followsRules(t *testing.T) {
	m := observability.InitMetrics(prometheus.NewRegistry())
	svc, _ := newService(t, enforcing(), WithMetrics(m))
	ctx := actorCtx("agent-7")

	_, err := svc.SequentialFlow(ctx, "status")
	require.NoError(t, err)
	rec, err := svc.CreateRecord(ctx, "tickets", map[string]any{"title": "VPN"})
	require.NoError(t, err)

	res, err := svc.ChangeStage(ctx, rec.ID, "status", "in_progress")
	require.NoError(t, err)
	assert.Equal(t, "in_progress", res.Record.Data["status"])
	assert.Equal(t, 2, res.Record.Version)
	require.NotNil(t, res.Change)
	assert.Equal(t, "open", res.Change.From)
	assert.Equal(t, "in_progress", res.Change.To)
	assert.Equal(t, "agent-7", res.Change.ActorID)
	assert.Equal(t, fixedNow, res.Change.Timestamp)

	_, err = svc.ChangeStage(ctx, rec.ID, "status", "closed")
	assert.Equal(t, model.ErrInvalidTransition, model.ErrorCode(err), "review cannot be skipped")

	res, err = svc.ChangeStage(ctx, rec.ID, "status", "in_progress")
	require.NoError(t, err)
	assert.Nil(t, res.Change, "same stage is a no-op")

	history, err := svc.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, res.Record.ID, history[0].RecordID)
	assert.Equal(t, "in_progress", history[0].To)
	assert.True(t, fixedNow.Equal(history[0].Timestamp))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageChangesTotal.WithLabelValues("tickets", OutcomeApplied)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageChangesTotal.WithLabelValues("tickets", OutcomeRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StageChangesTotal.WithLabelValues("tickets", OutcomeNoop)))
}

func TestChangeStage_emptyStageEntersAny(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "tickets", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.Nil(t, rec.Data["phase"])

	res, err := svc.ChangeStage(ctx, rec.ID, "phase", "live")
	require.NoError(t, err)
	assert.Equal(t, "", res.Change.From)
	assert.Equal(t, "live", res.Record.Data["phase"])

	_, err = svc.ChangeStage(ctx, rec.ID, "phase", "draft")
	assert.Equal(t, model.ErrInvalidTransition, model.ErrorCode(err))
}

func TestChangeStage_enforcementDisabled(t *testing.T) {
	svc, st := newService(t, config.LifecycleConfig{})
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "tickets", map[string]any{"phase": "live"})
	require.NoError(t, err)

	res, err := svc.ChangeStage(ctx, rec.ID, "phase", "draft")
	require.NoError(t, err)
	assert.Nil(t, res.Change, "history is off")
	assert.Equal(t, "draft", res.Record.Data["phase"])
	assert.Equal(t, 0, st.Len(store.TableStageChanges))
}

func TestChangeStage_errors(t *testing.T) {
	svc, _ := newService(t, enforcing())
	ctx := context.Background()

	rec, err := svc.CreateRecord(ctx, "tickets", map[string]any{"title": "x"})
	require.NoError(t, err)
	asset, err := svc.CreateRecord(ctx, "assets", map[string]any{"asset_name": "y"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		recordID string
		fieldID  string
		to       string
		code     string
	}{
		{"missing record", "nope", "status", "open", model.ErrNotFound},
		{"missing field", rec.ID, "nope", "open", model.ErrNotFound},
		{"not lifecycle", rec.ID, "priority", "high", model.ErrBadRequest},
		{"other form", asset.ID, "status", "closed", model.ErrBadRequest},
		{"unknown stage", rec.ID, "status", "archived", model.ErrValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ChangeStage(ctx, tt.recordID, tt.fieldID, tt.to)
			assert.Equal(t, tt.code, model.ErrorCode(err))
		})
	}
}

func TestHistory_missingRecord(t *testing.T) {
	svc, _ := newService(t, enforcing())

	_, err := svc.History(context.Background(), "nope")
	assert.True(t, model.IsNotFound(err))
}
