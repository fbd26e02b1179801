package workflow

import (
	"fmt"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/compat"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/fieldconfig"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/mapping"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Catalogue looks up form definitions.
type Catalogue interface {
	GetForm(formID string) (model.FormDefinition, bool)
}

// Validator checks workflow definitions against a catalogue.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateWorkflow returns every problem found in def. Paths are relative to
// the workflow.
func (v *Validator) ValidateWorkflow(def model.WorkflowDefinition, cat Catalogue) []model.FieldError {
	var errs []model.FieldError

	if def.ID == "" {
		errs = append(errs, model.FieldError{Field: "id", Code: model.CodeRequired, Message: "id is required"})
	}
	if def.Name == "" {
		errs = append(errs, model.FieldError{Field: "name", Code: model.CodeRequired, Message: "name is required"})
	}

	nodeTypes := make(map[string]string, len(def.Nodes))
	triggers := 0
	for i, n := range def.Nodes {
		np := fmt.Sprintf("nodes[%d]", i)
		if n.ID == "" {
			errs = append(errs, model.FieldError{Field: np + ".id", Code: model.CodeRequired, Message: "node id is required"})
		} else if _, dup := nodeTypes[n.ID]; dup {
			errs = append(errs, model.FieldError{Field: np + ".id", Code: model.CodeDuplicateID, Message: fmt.Sprintf("duplicate node id %q", n.ID)})
		}
		nodeTypes[n.ID] = n.Type
		if n.Type == model.NodeTrigger {
			triggers++
		}
	}
	switch {
	case triggers == 0:
		errs = append(errs, model.FieldError{Field: "nodes", Code: model.CodeRequired, Message: "a trigger node is required"})
	case triggers > 1:
		errs = append(errs, model.FieldError{Field: "nodes", Code: model.CodeDuplicateID, Message: "only one trigger node is allowed"})
	}

	trigger := TriggerForm(def, cat)
	for i, n := range def.Nodes {
		errs = append(errs, prefixed(fmt.Sprintf("nodes[%d]", i), v.ValidateNode(n, trigger, cat))...)
	}

	for i, e := range def.Edges {
		ep := fmt.Sprintf("edges[%d]", i)
		fromType, fromOK := nodeTypes[e.From]
		if !fromOK {
			errs = append(errs, model.FieldError{Field: ep + ".from", Code: model.CodeRefNotFound, Message: fmt.Sprintf("node %q not found", e.From)})
		}
		toType, toOK := nodeTypes[e.To]
		if !toOK {
			errs = append(errs, model.FieldError{Field: ep + ".to", Code: model.CodeRefNotFound, Message: fmt.Sprintf("node %q not found", e.To)})
		} else if toType == model.NodeTrigger {
			errs = append(errs, model.FieldError{Field: ep + ".to", Code: model.CodeInvalidConfig, Message: "a trigger node cannot have incoming edges"})
		}
		if e.Branch != "" {
			if fromOK && fromType != model.NodeCondition {
				errs = append(errs, model.FieldError{Field: ep + ".branch", Code: model.CodeInvalidConfig, Message: "only condition nodes have branches"})
			} else if e.Branch != "true" && e.Branch != "false" {
				errs = append(errs, model.FieldError{Field: ep + ".branch", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("invalid branch %q", e.Branch)})
			}
		}
	}

	return errs
}

// TriggerForm returns the form of the workflow's first trigger node, or nil.
func TriggerForm(def model.WorkflowDefinition, cat Catalogue) *model.FormDefinition {
	for _, n := range def.Nodes {
		if n.Type != model.NodeTrigger {
			continue
		}
		c, err := DecodeNode(n)
		if err != nil {
			return nil
		}
		if form, ok := cat.GetForm(c.(TriggerConfig).FormID); ok {
			return &form
		}
		return nil
	}
	return nil
}

// ValidateNode checks a single node. trigger is the workflow's trigger form
// and may be nil.
func (v *Validator) ValidateNode(n model.NodeDefinition, trigger *model.FormDefinition, cat Catalogue) []model.FieldError {
	if n.Type == "" {
		return []model.FieldError{{Field: "type", Code: model.CodeRequired, Message: "node type is required"}}
	}
	cfg, err := DecodeNode(n)
	if cfg == nil {
		return []model.FieldError{{Field: "type", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("invalid node type %q", n.Type)}}
	}
	if err != nil {
		return []model.FieldError{{Field: "config", Code: model.CodeInvalidConfig, Message: err.Error()}}
	}

	var errs []model.FieldError
	switch c := cfg.(type) {
	case TriggerConfig:
		errs = v.validateTrigger(c, cat)
	case ConditionConfig:
		errs = v.validateCondition(c, trigger)
	case CreateRecordConfig:
		errs = v.validateMappings("fieldMappings", c.Mappings, trigger, "", c.TargetFormID, "targetFormId", cat)
	case FieldMappingConfig:
		var src *model.FormDefinition
		if c.SourceFormID == "" {
			src = trigger
		}
		errs = v.validateMappings("fieldMappings", c.Mappings, src, c.SourceFormID, c.TargetFormID, "targetFormId", cat)
	case CreateCombinationRecordsConfig:
		errs = v.validateCombination(c, cat)
	case ChangeFieldValueConfig:
		errs = v.validateChangeValue(c, trigger, cat)
	case NotificationConfig:
		if len(c.Recipients) == 0 {
			errs = append(errs, model.FieldError{Field: "config.recipients", Code: model.CodeRequired, Message: "at least one recipient is required"})
		}
		if c.Message == "" {
			errs = append(errs, model.FieldError{Field: "config.message", Code: model.CodeRequired, Message: "message is required"})
		}
	case LinkRecordsConfig:
		errs = v.validateLink(c, cat)
	}
	return errs
}

func (v *Validator) validateTrigger(c TriggerConfig, cat Catalogue) []model.FieldError {
	var errs []model.FieldError
	form, formErrs := lookupForm(c.FormID, "config.formId", cat)
	errs = append(errs, formErrs...)

	if c.Event == "" {
		errs = append(errs, model.FieldError{Field: "config.event", Code: model.CodeRequired, Message: "event is required"})
	} else if !validEvents[c.Event] {
		errs = append(errs, model.FieldError{Field: "config.event", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("invalid event %q", c.Event)})
	}
	if c.Event != EventStageChanged || form == nil {
		return errs
	}

	if c.FieldID == "" {
		return append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeRequired, Message: "fieldId is required for stage_changed triggers"})
	}
	field, ok := form.Field(c.FieldID)
	if !ok {
		return append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeRefNotFound, Message: fmt.Sprintf("field %q not found in form %q", c.FieldID, form.ID)})
	}
	choice, ok := fieldconfig.Decode(field).(model.ChoiceConfig)
	if !ok || choice.Multiple {
		return append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeIncompatibleTypes, Message: fmt.Sprintf("field %q is not a single choice field", c.FieldID)})
	}
	for _, s := range []struct{ path, value string }{{"config.fromStage", c.FromStage}, {"config.toStage", c.ToStage}} {
		if s.value != "" && !options.Contains(choice.Options, s.value) {
			errs = append(errs, model.FieldError{Field: s.path, Code: model.CodeInvalidEnum, Message: fmt.Sprintf("%q is not an option of field %q", s.value, c.FieldID)})
		}
	}
	return errs
}

func (v *Validator) validateCondition(c ConditionConfig, trigger *model.FormDefinition) []model.FieldError {
	var errs []model.FieldError
	if c.Operator == "" {
		errs = append(errs, model.FieldError{Field: "config.operator", Code: model.CodeRequired, Message: "operator is required"})
	} else if !validOperators[c.Operator] {
		errs = append(errs, model.FieldError{Field: "config.operator", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("invalid operator %q", c.Operator)})
	}
	switch {
	case c.FieldID == "":
		errs = append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeRequired, Message: "fieldId is required"})
	case trigger == nil:
		errs = append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeRefNotFound, Message: "conditions need a trigger form"})
	default:
		f, ok := trigger.Field(c.FieldID)
		if !ok {
			errs = append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeRefNotFound, Message: fmt.Sprintf("field %q not found in form %q", c.FieldID, trigger.ID)})
		} else if compat.IsLayout(f.Type) {
			errs = append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeLayoutField, Message: fmt.Sprintf("field %q is a %s and holds no value", f.ID, f.Type)})
		}
	}
	return errs
}

// validateMappings resolves pairs from the source form (src, or sourceID
// looked up in cat) to the target form and validates the result.
func (v *Validator) validateMappings(path string, pairs []model.FieldPair, src *model.FormDefinition, sourceID, targetID, targetPath string, cat Catalogue) []model.FieldError {
	var errs []model.FieldError
	if src == nil {
		if sourceID == "" {
			return append(errs, model.FieldError{Field: "config.sourceFormId", Code: model.CodeRequired, Message: "a source form is required"})
		}
		var formErrs []model.FieldError
		src, formErrs = lookupForm(sourceID, "config.sourceFormId", cat)
		errs = append(errs, formErrs...)
	}
	tgt, formErrs := lookupForm(targetID, "config."+targetPath, cat)
	errs = append(errs, formErrs...)
	if src == nil || tgt == nil {
		return errs
	}
	set, refErrs := mapping.Resolve(pairs, src, tgt)
	errs = append(errs, prefixed("config."+path, refErrs)...)
	errs = append(errs, prefixed("config."+path, set.Validate())...)
	return errs
}

func (v *Validator) validateCombination(c CreateCombinationRecordsConfig, cat Catalogue) []model.FieldError {
	var errs []model.FieldError
	target, formErrs := lookupForm(c.TargetFormID, "config.targetFormId", cat)
	errs = append(errs, formErrs...)
	left, formErrs := lookupForm(c.LeftFormID, "config.leftFormId", cat)
	errs = append(errs, formErrs...)
	right, formErrs := lookupForm(c.RightFormID, "config.rightFormId", cat)
	errs = append(errs, formErrs...)
	if target == nil || left == nil || right == nil {
		return errs
	}

	errs = append(errs, checkReference(target, c.LeftReferenceFieldID, left.ID, "config.leftReferenceFieldId")...)
	errs = append(errs, checkReference(target, c.RightReferenceFieldID, right.ID, "config.rightReferenceFieldId")...)

	leftSet, refErrs := mapping.Resolve(c.LeftMappings, left, target)
	errs = append(errs, prefixed("config.leftFieldMappings", refErrs)...)
	errs = append(errs, prefixed("config.leftFieldMappings", leftSet.Validate())...)
	rightSet, refErrs := mapping.Resolve(c.RightMappings, right, target)
	errs = append(errs, prefixed("config.rightFieldMappings", refErrs)...)
	errs = append(errs, prefixed("config.rightFieldMappings", rightSet.Validate())...)

	taken := map[string]bool{c.LeftReferenceFieldID: true, c.RightReferenceFieldID: true}
	for _, m := range leftSet.Mappings() {
		taken[m.Target.ID] = true
	}
	for i, m := range rightSet.Mappings() {
		if taken[m.Target.ID] {
			errs = append(errs, model.FieldError{
				Field:   fmt.Sprintf("config.rightFieldMappings.mappings[%d].target", i),
				Code:    model.CodeDuplicateTarget,
				Message: fmt.Sprintf("field %q is already written by the left side or a reference", m.Target.ID),
			})
		}
	}
	for i, m := range leftSet.Mappings() {
		if m.Target.ID == c.LeftReferenceFieldID || m.Target.ID == c.RightReferenceFieldID {
			errs = append(errs, model.FieldError{
				Field:   fmt.Sprintf("config.leftFieldMappings.mappings[%d].target", i),
				Code:    model.CodeDuplicateTarget,
				Message: fmt.Sprintf("field %q is a reference field", m.Target.ID),
			})
		}
	}
	return errs
}

func (v *Validator) validateChangeValue(c ChangeFieldValueConfig, trigger *model.FormDefinition, cat Catalogue) []model.FieldError {
	var errs []model.FieldError
	target := trigger
	if c.TargetFormID != "" {
		var formErrs []model.FieldError
		target, formErrs = lookupForm(c.TargetFormID, "config.targetFormId", cat)
		errs = append(errs, formErrs...)
	}
	if target == nil {
		if c.TargetFormID == "" {
			errs = append(errs, model.FieldError{Field: "config.targetFormId", Code: model.CodeRequired, Message: "a target form is required"})
		}
		return errs
	}
	if c.FieldID == "" {
		return append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeRequired, Message: "fieldId is required"})
	}
	field, ok := target.Field(c.FieldID)
	if !ok {
		return append(errs, model.FieldError{Field: "config.fieldId", Code: model.CodeRefNotFound, Message: fmt.Sprintf("field %q not found in form %q", c.FieldID, target.ID)})
	}
	valueErrs := mapping.ValidateValue(c.Value, field, trigger)
	return append(errs, prefixed("config", valueErrs)...)
}

func (v *Validator) validateLink(c LinkRecordsConfig, cat Catalogue) []model.FieldError {
	var errs []model.FieldError
	source, formErrs := lookupForm(c.SourceFormID, "config.sourceFormId", cat)
	errs = append(errs, formErrs...)
	target, formErrs := lookupForm(c.TargetFormID, "config.targetFormId", cat)
	errs = append(errs, formErrs...)
	if source == nil || target == nil {
		return errs
	}
	return append(errs, checkReference(source, c.ReferenceFieldID, target.ID, "config.referenceFieldId")...)
}

// checkReference verifies that fieldID is a cross-reference field of form
// pointing at refFormID.
func checkReference(form *model.FormDefinition, fieldID, refFormID, path string) []model.FieldError {
	if fieldID == "" {
		return []model.FieldError{{Field: path, Code: model.CodeRequired, Message: "a reference field is required"}}
	}
	if _, ok := form.Field(fieldID); !ok {
		return []model.FieldError{{Field: path, Code: model.CodeRefNotFound, Message: fmt.Sprintf("field %q not found in form %q", fieldID, form.ID)}}
	}
	for _, f := range mapping.ReferenceFields(form, refFormID) {
		if f.ID == fieldID {
			return nil
		}
	}
	return []model.FieldError{{Field: path, Code: model.CodeWrongReference,
		Message: fmt.Sprintf("field %q does not reference form %q", fieldID, refFormID)}}
}

func lookupForm(formID, path string, cat Catalogue) (*model.FormDefinition, []model.FieldError) {
	if formID == "" {
		return nil, []model.FieldError{{Field: path, Code: model.CodeRequired, Message: "form id is required"}}
	}
	form, ok := cat.GetForm(formID)
	if !ok {
		return nil, []model.FieldError{{Field: path, Code: model.CodeRefNotFound, Message: fmt.Sprintf("form %q not found", formID)}}
	}
	return &form, nil
}

func prefixed(prefix string, errs []model.FieldError) []model.FieldError {
	if len(errs) == 0 {
		return nil
	}
	out := make([]model.FieldError, len(errs))
	for i, e := range errs {
		e.Field = prefix + "." + e.Field
		out[i] = e
	}
	return out
}

// CandidateFields returns the fields of formID that may feed a target field
// of type target, best matches first. The bool is false when the form is
// unknown.
func CandidateFields(cat Catalogue, formID string, target model.FieldType) ([]compat.Candidate, bool) {
	form, ok := cat.GetForm(formID)
	if !ok {
		return nil, false
	}
	return compat.Rank(form.Fields, target), true
}
