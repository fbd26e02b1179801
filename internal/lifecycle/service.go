// Package lifecycle persists the transition rules of lifecycle status fields
// and enforces them when a record changes stage.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/fieldconfig"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/store"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Catalogue is the read-only form-field catalogue.
type Catalogue interface {
	GetForm(formID string) (model.FormDefinition, bool)
	GetField(fieldID string) (model.FieldDescriptor, bool)
}

// Service applies rule edits and stage changes on top of a store.Client.
type Service struct {
	store     store.Client
	catalogue Catalogue
	cfg       config.LifecycleConfig
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics records rule edits and stage changes.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a lifecycle service.
func NewService(st store.Client, cat Catalogue, cfg config.LifecycleConfig, opts ...Option) *Service {
	s := &Service{
		store:     st,
		catalogue: cat,
		cfg:       cfg,
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// override is the stored part of a field's configuration. Options stay with
// the catalogue; only the lifecycle toggle and the rules are kept here.
type override struct {
	doc    store.Document
	exists bool
}

// Field returns the catalogue field with any stored configuration applied,
// and the version of the stored configuration (0 when none is stored).
func (s *Service) Field(ctx context.Context, fieldID string) (model.FieldDescriptor, int, error) {
	field, ov, err := s.loadField(ctx, fieldID)
	if err != nil {
		return model.FieldDescriptor{}, 0, err
	}
	return field, ov.doc.Version, nil
}

func (s *Service) loadField(ctx context.Context, fieldID string) (model.FieldDescriptor, override, error) {
	base, ok := s.catalogue.GetField(fieldID)
	if !ok {
		return model.FieldDescriptor{}, override{}, model.NewNotFoundError(fmt.Sprintf("field %q not found", fieldID))
	}

	doc, err := s.store.Get(ctx, store.TableFormFields, fieldID)
	if model.IsNotFound(err) {
		return base, override{}, nil
	}
	if err != nil {
		return model.FieldDescriptor{}, override{}, fmt.Errorf("load field %s: %w", fieldID, err)
	}

	fragment, _ := doc.Data["config"].(map[string]any)
	return fieldconfig.Merge(base, fragment), override{doc: doc, exists: true}, nil
}

// saveField persists the lifecycle part of the panel's fragment.
func (s *Service) saveField(ctx context.Context, field model.FieldDescriptor, ov override, fragment map[string]any) (int, error) {
	data := map[string]any{
		"form_id": field.FormID,
		"config": map[string]any{
			"lifecycle":       fragment["lifecycle"],
			"transitionRules": fragment["transitionRules"],
		},
	}

	var (
		saved store.Document
		err   error
	)
	if ov.exists {
		saved, err = s.store.Update(ctx, store.TableFormFields, store.Document{
			ID:      field.ID,
			Data:    data,
			Version: ov.doc.Version,
		})
	} else {
		saved, err = s.store.Create(ctx, store.TableFormFields, store.Document{ID: field.ID, Data: data})
	}
	if err != nil {
		return 0, err
	}
	return saved.Version, nil
}
