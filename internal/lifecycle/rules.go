package lifecycle

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/fieldconfig"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/transition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Rule edit operations, as reported in metrics and spans.
const (
	OpAdd          = "add"
	OpRemove       = "remove"
	OpSequential   = "sequential"
	OpClear        = "clear"
	OpPrune        = "prune"
	OpSetLifecycle = "set_lifecycle"
)

// Edit outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNoop     = "noop"
	OutcomeRejected = "rejected"
)

// RuleSet is the transition view of a choice field.
type RuleSet struct {
	FieldID      string                   `json:"field_id"`
	FormID       string                   `json:"form_id,omitempty"`
	Type         model.FieldType          `json:"type"`
	Lifecycle    bool                     `json:"lifecycle"`
	Editable     bool                     `json:"editable"`
	Options      []model.Option           `json:"options"`
	Rules        model.TransitionRules    `json:"transition_rules"`
	Edges        []transition.Edge        `json:"edges"`
	Report       transition.Report        `json:"report"`
	Capabilities fieldconfig.Capabilities `json:"capabilities"`
	Version      int                      `json:"version"`
}

func ruleSet(field model.FieldDescriptor, p *fieldconfig.Panel, version int) RuleSet {
	cfg, _ := p.Config().(model.ChoiceConfig)
	opts := p.Options()
	rules := p.Rules()
	return RuleSet{
		FieldID:      field.ID,
		FormID:       field.FormID,
		Type:         field.Type,
		Lifecycle:    cfg.Lifecycle,
		Editable:     p.RulesEditable(),
		Options:      opts,
		Rules:        rules,
		Edges:        transition.Edges(rules, opts),
		Report:       transition.Analyze(rules, opts),
		Capabilities: p.Capabilities(),
		Version:      version,
	}
}

// Rules returns the transition rules of a choice field.
func (s *Service) Rules(ctx context.Context, fieldID string) (RuleSet, error) {
	field, ov, err := s.loadField(ctx, fieldID)
	if err != nil {
		return RuleSet{}, err
	}
	p := fieldconfig.NewPanel(field)
	if p.Config().Kind() != model.ConfigChoice {
		return RuleSet{}, model.NewBadRequestError(fmt.Sprintf("field %q of type %q has no options", fieldID, field.Type))
	}
	return ruleSet(field, p, ov.doc.Version), nil
}

// AddTransition allows records to move from -> to. Both stages must be
// current options of the field.
func (s *Service) AddTransition(ctx context.Context, fieldID, from, to string) (RuleSet, error) {
	return s.edit(ctx, fieldID, OpAdd, func(p *fieldconfig.Panel) error {
		var details []model.FieldError
		if !options.Contains(p.Options(), from) {
			details = append(details, model.FieldError{Field: "from", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("%q is not an option", from)})
		}
		if !options.Contains(p.Options(), to) {
			details = append(details, model.FieldError{Field: "to", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("%q is not an option", to)})
		}
		if len(details) > 0 {
			return model.NewValidationError(details)
		}
		p.AddTransition(from, to)
		return nil
	})
}

// RemoveTransition disallows the move from -> to. Stale stages may be
// removed.
func (s *Service) RemoveTransition(ctx context.Context, fieldID, from, to string) (RuleSet, error) {
	return s.edit(ctx, fieldID, OpRemove, func(p *fieldconfig.Panel) error {
		p.RemoveTransition(from, to)
		return nil
	})
}

// SequentialFlow replaces the rules with a chain in option order.
func (s *Service) SequentialFlow(ctx context.Context, fieldID string) (RuleSet, error) {
	return s.edit(ctx, fieldID, OpSequential, func(p *fieldconfig.Panel) error {
		p.SequentialFlow()
		return nil
	})
}

// ClearTransitions removes every rule.
func (s *Service) ClearTransitions(ctx context.Context, fieldID string) (RuleSet, error) {
	return s.edit(ctx, fieldID, OpClear, func(p *fieldconfig.Panel) error {
		p.ClearTransitions()
		return nil
	})
}

// PruneTransitions drops rules that reference removed options.
func (s *Service) PruneTransitions(ctx context.Context, fieldID string) (RuleSet, error) {
	return s.edit(ctx, fieldID, OpPrune, func(p *fieldconfig.Panel) error {
		p.PruneTransitions()
		return nil
	})
}

// SetLifecycle turns the lifecycle status bar on or off. Rules are kept
// while it is off.
func (s *Service) SetLifecycle(ctx context.Context, fieldID string, on bool) (RuleSet, error) {
	return s.edit(ctx, fieldID, OpSetLifecycle, func(p *fieldconfig.Panel) error {
		if !p.Capabilities().AllowLifecycle {
			return model.NewBadRequestError(fmt.Sprintf("field %q cannot be a lifecycle field", fieldID))
		}
		p.SetLifecycle(on)
		return nil
	})
}

// edit loads the field, applies fn on a panel and persists the result when
// the configuration changed.
func (s *Service) edit(ctx context.Context, fieldID, op string, fn func(*fieldconfig.Panel) error) (_ RuleSet, err error) {
	ctx, span := observability.StartSpan(ctx, "lifecycle.edit_rules",
		observability.AttrFieldID.String(fieldID),
		observability.AttrOperation.String(op),
	)
	defer func() { observability.EndSpanWithError(span, err) }()

	logger := observability.RequestLogger(ctx, s.logger)

	// 1. Load the effective field.
	field, ov, err := s.loadField(ctx, fieldID)
	if err != nil {
		return RuleSet{}, err
	}
	p := fieldconfig.NewPanel(field)

	// 2. Check the panel accepts the edit.
	if op != OpSetLifecycle && !p.RulesEditable() {
		s.metrics.RecordTransitionEdit(op, OutcomeRejected)
		return RuleSet{}, model.NewBadRequestError(
			fmt.Sprintf("field %q does not accept transition rules; enable lifecycle on a select or radio field", fieldID),
		)
	}

	// 3. Apply.
	before := p.Fragment()
	if err := fn(p); err != nil {
		s.metrics.RecordTransitionEdit(op, OutcomeRejected)
		return RuleSet{}, err
	}
	after := p.Fragment()
	if ov.exists && reflect.DeepEqual(before, after) {
		s.metrics.RecordTransitionEdit(op, OutcomeNoop)
		return ruleSet(field, p, ov.doc.Version), nil
	}

	// 4. Persist.
	version, err := s.saveField(ctx, field, ov, after)
	if err != nil {
		s.metrics.RecordTransitionEdit(op, OutcomeRejected)
		return RuleSet{}, err
	}
	s.metrics.RecordTransitionEdit(op, OutcomeApplied)

	logger.Info("transition rules updated",
		zap.String("field_id", fieldID),
		zap.String("operation", op),
		zap.Int("version", version),
	)
	return ruleSet(fieldconfig.Merge(field, after), p, version), nil
}

// Decision is the answer to a transition check.
type Decision struct {
	FieldID string `json:"field_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Allowed bool   `json:"allowed"`
	// Open is true when the field has no rules and every move is allowed.
	Open bool `json:"open"`
}

// CheckTransition reports whether a record of the field may move from -> to.
// Only lifecycle fields restrict moves.
func (s *Service) CheckTransition(ctx context.Context, fieldID, from, to string) (Decision, error) {
	field, _, err := s.loadField(ctx, fieldID)
	if err != nil {
		return Decision{}, err
	}
	cfg, ok := fieldconfig.Decode(field).(model.ChoiceConfig)
	if !ok {
		return Decision{}, model.NewBadRequestError(fmt.Sprintf("field %q of type %q has no options", fieldID, field.Type))
	}

	d := Decision{FieldID: fieldID, From: from, To: to}
	if !cfg.Lifecycle {
		d.Allowed, d.Open = true, true
		return d, nil
	}
	d.Open = len(cfg.TransitionRules) == 0
	d.Allowed = transition.Allowed(cfg.TransitionRules, from, to)
	return d, nil
}
