package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/compat"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/fieldconfig"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/transition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// CreateRecord stores a new record of formID. Values are keyed by field id.
// Lifecycle fields must hold one of their options; when absent they start at
// the configured default value.
func (s *Service) CreateRecord(ctx context.Context, formID string, values map[string]any) (_ model.Record, err error) {
	ctx, span := observability.StartSpan(ctx, "lifecycle.create_record", observability.AttrFormID.String(formID))
	defer func() { observability.EndSpanWithError(span, err) }()

	form, ok := s.catalogue.GetForm(formID)
	if !ok {
		return model.Record{}, model.NewNotFoundError(fmt.Sprintf("form %q not found", formID))
	}

	data := make(map[string]any, len(values))
	for k, v := range values {
		data[k] = v
	}

	var details []model.FieldError
	for id := range data {
		f, ok := form.Field(id)
		switch {
		case !ok:
			details = append(details, model.FieldError{Field: id, Code: model.CodeRefNotFound, Message: fmt.Sprintf("form %q has no field %q", formID, id)})
		case compat.IsLayout(f.Type):
			details = append(details, model.FieldError{Field: id, Code: model.CodeLayoutField, Message: fmt.Sprintf("field %q is a layout element and holds no value", id)})
		}
	}

	for _, base := range form.Fields {
		cfg, lifecycle, err := s.lifecycleConfig(ctx, base.ID)
		if err != nil {
			return model.Record{}, err
		}
		if !lifecycle {
			continue
		}
		raw, present := data[base.ID]
		if !present || raw == nil {
			if cfg.DefaultValue != "" && options.Contains(cfg.Options, cfg.DefaultValue) {
				data[base.ID] = cfg.DefaultValue
			}
			continue
		}
		stage := options.Key(raw)
		if !options.Contains(cfg.Options, stage) {
			details = append(details, model.FieldError{Field: base.ID, Code: model.CodeInvalidEnum, Message: fmt.Sprintf("%q is not a stage of %q", stage, base.ID)})
			continue
		}
		data[base.ID] = stage
	}
	if len(details) > 0 {
		return model.Record{}, model.NewValidationError(details)
	}

	logger := observability.RequestLogger(ctx, s.logger)
	logger.Debug("creating record", zap.String("form_id", formID), zap.Any("values", observability.RedactValues(data, &form)))

	doc, err := s.store.Create(ctx, store.TableRecords, store.Document{
		Data: map[string]any{
			"form_id":    formID,
			"created_by": model.ActorFrom(ctx),
			"values":     data,
		},
	})
	if err != nil {
		return model.Record{}, err
	}

	logger.Info("record created",
		zap.String("form_id", formID),
		zap.String("record_id", doc.ID),
	)
	return recordFromDoc(doc), nil
}

// GetRecord returns a record by id.
func (s *Service) GetRecord(ctx context.Context, recordID string) (model.Record, error) {
	doc, err := s.store.Get(ctx, store.TableRecords, recordID)
	if err != nil {
		return model.Record{}, err
	}
	return recordFromDoc(doc), nil
}

// ListRecords returns the records of formID in creation order.
func (s *Service) ListRecords(ctx context.Context, formID string, limit, offset int) ([]model.Record, error) {
	if _, ok := s.catalogue.GetForm(formID); !ok {
		return nil, model.NewNotFoundError(fmt.Sprintf("form %q not found", formID))
	}
	docs, err := s.store.Select(ctx, store.TableRecords, store.Query{
		Filters: []store.Filter{store.Eq("form_id", formID)},
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, len(docs))
	for i, d := range docs {
		out[i] = recordFromDoc(d)
	}
	return out, nil
}

// StageResult is the outcome of ChangeStage. Change is nil when the record
// was already in the requested stage.
type StageResult struct {
	Record model.Record       `json:"record"`
	Change *model.StageChange `json:"change,omitempty"`
}

// ChangeStage moves a record's lifecycle field to stage to. The move must be
// allowed by the field's transition rules unless enforcement is disabled. A
// record without a current stage may enter any stage.
func (s *Service) ChangeStage(ctx context.Context, recordID, fieldID, to string) (_ StageResult, err error) {
	ctx, span := observability.StartSpan(ctx, "lifecycle.change_stage",
		observability.AttrRecordID.String(recordID),
		observability.AttrFieldID.String(fieldID),
		observability.AttrToStage.String(to),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	logger := observability.RequestLogger(ctx, s.logger)

	// 1. Load the record.
	doc, err := s.store.Get(ctx, store.TableRecords, recordID)
	if err != nil {
		return StageResult{}, err
	}
	rec := recordFromDoc(doc)

	// 2. Load the field and check it is a lifecycle field of the record's form.
	field, _, err := s.loadField(ctx, fieldID)
	if err != nil {
		return StageResult{}, err
	}
	if field.FormID != "" && field.FormID != rec.FormID {
		return StageResult{}, model.NewBadRequestError(fmt.Sprintf("field %q does not belong to form %q", fieldID, rec.FormID))
	}
	cfg, ok := fieldconfig.Decode(field).(model.ChoiceConfig)
	if !ok || !cfg.Lifecycle {
		return StageResult{}, model.NewBadRequestError(fmt.Sprintf("field %q is not a lifecycle field", fieldID))
	}
	if !options.Contains(cfg.Options, to) {
		return StageResult{}, model.NewValidationError([]model.FieldError{{
			Field: "to", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("%q is not a stage of %q", to, fieldID),
		}})
	}

	// 3. Enforce the rules.
	from := ""
	if raw, ok := rec.Data[fieldID]; ok && raw != nil {
		from = options.Key(raw)
	}
	span.SetAttributes(observability.AttrFromStage.String(from))
	if from == to {
		s.metrics.RecordStageChange(rec.FormID, OutcomeNoop)
		return StageResult{Record: rec}, nil
	}
	if s.cfg.EnforceTransitions && from != "" && !transition.Allowed(cfg.TransitionRules, from, to) {
		s.metrics.RecordStageChange(rec.FormID, OutcomeRejected)
		logger.Warn("stage change rejected",
			zap.String("record_id", recordID),
			zap.String("field_id", fieldID),
			zap.String("from", from),
			zap.String("to", to),
		)
		return StageResult{}, model.NewInvalidTransitionError(
			fmt.Sprintf("%s cannot move from %q to %q", fieldID, from, to),
		)
	}

	// 4. Persist the record.
	values := make(map[string]any, len(rec.Data)+1)
	for k, v := range rec.Data {
		values[k] = v
	}
	values[fieldID] = to
	doc.Data["values"] = values
	doc, err = s.store.Update(ctx, store.TableRecords, doc)
	if err != nil {
		return StageResult{}, err
	}
	s.metrics.RecordStageChange(rec.FormID, OutcomeApplied)

	result := StageResult{Record: recordFromDoc(doc)}
	logger.Info("stage changed",
		zap.String("record_id", recordID),
		zap.String("field_id", fieldID),
		zap.String("from", from),
		zap.String("to", to),
	)

	// 5. Append to the audit trail.
	if !s.cfg.RecordHistory {
		return result, nil
	}
	change := model.StageChange{
		RecordID:  recordID,
		FieldID:   fieldID,
		From:      from,
		To:        to,
		ActorID:   model.ActorFrom(ctx),
		Timestamp: s.now(),
	}
	saved, err := s.store.Create(ctx, store.TableStageChanges, store.Document{Data: map[string]any{
		"record_id": change.RecordID,
		"field_id":  change.FieldID,
		"from":      change.From,
		"to":        change.To,
		"actor_id":  change.ActorID,
		"timestamp": change.Timestamp.Format(time.RFC3339Nano),
	}})
	if err != nil {
		logger.Error("failed to record stage change", zap.String("record_id", recordID), zap.Error(err))
		return StageResult{}, fmt.Errorf("append stage change: %w", err)
	}
	change.ID = saved.ID
	result.Change = &change
	return result, nil
}

// History returns the stage changes of a record, oldest first.
func (s *Service) History(ctx context.Context, recordID string) ([]model.StageChange, error) {
	if _, err := s.store.Get(ctx, store.TableRecords, recordID); err != nil {
		return nil, err
	}
	docs, err := s.store.Select(ctx, store.TableStageChanges, store.Where(store.Eq("record_id", recordID)))
	if err != nil {
		return nil, err
	}
	out := make([]model.StageChange, 0, len(docs))
	for _, d := range docs {
		var c model.StageChange
		if err := decodeDoc(d, &c); err != nil {
			return nil, fmt.Errorf("decode stage change %s: %w", d.ID, err)
		}
		c.ID = d.ID
		out = append(out, c)
	}
	return out, nil
}

// lifecycleConfig returns the effective choice configuration of a field and
// whether it is a lifecycle field.
func (s *Service) lifecycleConfig(ctx context.Context, fieldID string) (model.ChoiceConfig, bool, error) {
	field, _, err := s.loadField(ctx, fieldID)
	if err != nil {
		return model.ChoiceConfig{}, false, err
	}
	cfg, ok := fieldconfig.Decode(field).(model.ChoiceConfig)
	return cfg, ok && cfg.Lifecycle, nil
}

func recordFromDoc(doc store.Document) model.Record {
	rec := model.Record{
		ID:        doc.ID,
		Version:   doc.Version,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Data:      map[string]any{},
	}
	rec.FormID, _ = doc.Data["form_id"].(string)
	rec.CreatedBy, _ = doc.Data["created_by"].(string)
	if values, ok := doc.Data["values"].(map[string]any); ok {
		rec.Data = values
	}
	return rec
}

func decodeDoc(doc store.Document, out any) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
