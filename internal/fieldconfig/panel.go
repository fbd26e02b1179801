package fieldconfig

import (
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/transition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Capabilities selects which edits a configuration panel accepts.
type Capabilities struct {
	AllowLifecycle       bool `json:"allow_lifecycle"`
	AllowTransitionRules bool `json:"allow_transition_rules"`
	AllowMatrixColumns   bool `json:"allow_matrix_columns"`
	AllowOther           bool `json:"allow_other"`
	AllowColors          bool `json:"allow_colors"`
	AllowMultiple        bool `json:"allow_multiple"`
}

// VariantFor returns the capabilities of the panel for fields of type t.
func VariantFor(t model.FieldType) Capabilities {
	switch t {
	case model.FieldSelect, model.FieldDropdown, model.FieldStatus:
		return Capabilities{AllowLifecycle: true, AllowTransitionRules: true, AllowOther: true, AllowColors: true}
	case model.FieldRadio:
		return Capabilities{AllowLifecycle: true, AllowTransitionRules: true, AllowOther: true}
	case model.FieldMultiSelect, model.FieldCheckbox, model.FieldTags:
		return Capabilities{AllowOther: true, AllowColors: true, AllowMultiple: true}
	case model.FieldMatrixGrid:
		return Capabilities{AllowMatrixColumns: true, AllowMultiple: true}
	default:
		return Capabilities{}
	}
}

// Panel applies configuration edits to a single field. Edits the panel's
// capabilities do not permit are ignored. A Panel is not safe for concurrent
// use.
type Panel struct {
	caps Capabilities
	cfg  model.FieldConfig
}

// NewPanel decodes field and returns a panel using the capabilities of its
// type.
func NewPanel(field model.FieldDescriptor) *Panel {
	return NewPanelWith(field, VariantFor(field.Type))
}

// NewPanelWith is NewPanel with explicit capabilities.
func NewPanelWith(field model.FieldDescriptor, caps Capabilities) *Panel {
	return &Panel{caps: caps, cfg: Decode(field)}
}

// Capabilities returns the panel's capabilities.
func (p *Panel) Capabilities() Capabilities { return p.caps }

// Config returns the current configuration.
func (p *Panel) Config() model.FieldConfig { return p.cfg }

// Fragment returns the encoded configuration.
func (p *Panel) Fragment() map[string]any { return Encode(p.cfg) }

// Options returns the choice options, or nil for non-choice fields.
func (p *Panel) Options() []model.Option {
	if c, ok := p.cfg.(model.ChoiceConfig); ok {
		return c.Options
	}
	return nil
}

// Rules returns the transition rules, or empty rules for non-choice fields.
func (p *Panel) Rules() model.TransitionRules {
	if c, ok := p.cfg.(model.ChoiceConfig); ok {
		return c.TransitionRules
	}
	return model.TransitionRules{}
}

// RulesEditable reports whether transition edits would take effect.
func (p *Panel) RulesEditable() bool {
	c, ok := p.cfg.(model.ChoiceConfig)
	return ok && p.caps.AllowTransitionRules && c.Lifecycle
}

// SetOptions replaces the option list. Colors are dropped unless allowed.
// Existing transition rules are kept even when they reference removed options.
func (p *Panel) SetOptions(raw any) {
	p.updateChoice(func(c *model.ChoiceConfig) {
		opts := options.Normalize(raw)
		if !p.caps.AllowColors {
			for i := range opts {
				opts[i].Color = ""
			}
		}
		c.Options = opts
	})
}

// SetLifecycle toggles the lifecycle status bar presentation.
func (p *Panel) SetLifecycle(on bool) {
	if !p.caps.AllowLifecycle {
		return
	}
	p.updateChoice(func(c *model.ChoiceConfig) { c.Lifecycle = on })
}

// SetAllowOther toggles the free-text "other" choice.
func (p *Panel) SetAllowOther(on bool) {
	if !p.caps.AllowOther {
		return
	}
	p.updateChoice(func(c *model.ChoiceConfig) { c.AllowOther = on })
}

// SetMultiple toggles multiple selection.
func (p *Panel) SetMultiple(on bool) {
	if !p.caps.AllowMultiple {
		return
	}
	switch c := p.cfg.(type) {
	case model.ChoiceConfig:
		c.Multiple = on
		p.cfg = c
	case model.MatrixConfig:
		c.Multiple = on
		p.cfg = c
	}
}

// AddTransition allows the move from -> to. Either endpoint may be a bare
// value or an option object.
func (p *Panel) AddTransition(from, to any) {
	p.updateRules(func(r model.TransitionRules) model.TransitionRules {
		return transition.Add(r, options.Key(from), options.Key(to))
	})
}

// RemoveTransition disallows the move from -> to.
func (p *Panel) RemoveTransition(from, to any) {
	p.updateRules(func(r model.TransitionRules) model.TransitionRules {
		return transition.Remove(r, options.Key(from), options.Key(to))
	})
}

// SequentialFlow replaces the rules with a chain following option order.
func (p *Panel) SequentialFlow() {
	p.updateRules(func(model.TransitionRules) model.TransitionRules {
		return transition.Sequential(p.Options())
	})
}

// ClearTransitions removes every rule, allowing all moves.
func (p *Panel) ClearTransitions() {
	p.updateRules(func(model.TransitionRules) model.TransitionRules {
		return model.TransitionRules{}
	})
}

// PruneTransitions drops rules referencing options that no longer exist.
func (p *Panel) PruneTransitions() {
	p.updateRules(func(r model.TransitionRules) model.TransitionRules {
		return transition.Prune(r, p.Options())
	})
}

// SetMatrixColumns replaces the matrix columns.
func (p *Panel) SetMatrixColumns(raw any) {
	if !p.caps.AllowMatrixColumns {
		return
	}
	if c, ok := p.cfg.(model.MatrixConfig); ok {
		c.Columns = options.Normalize(raw)
		p.cfg = c
	}
}

// SetMatrixRows replaces the matrix rows.
func (p *Panel) SetMatrixRows(raw any) {
	if c, ok := p.cfg.(model.MatrixConfig); ok {
		c.Rows = options.Normalize(raw)
		p.cfg = c
	}
}

func (p *Panel) updateChoice(fn func(*model.ChoiceConfig)) {
	c, ok := p.cfg.(model.ChoiceConfig)
	if !ok {
		return
	}
	fn(&c)
	p.cfg = c
}

func (p *Panel) updateRules(fn func(model.TransitionRules) model.TransitionRules) {
	if !p.RulesEditable() {
		return
	}
	p.updateChoice(func(c *model.ChoiceConfig) {
		c.TransitionRules = fn(c.TransitionRules)
	})
}
