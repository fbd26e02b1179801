package workflow

import (
	"fmt"
	"time"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/mapping"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// PreviewInput holds the sample records a preview runs against. Trigger is
// the trigger record data; Left and Right feed combination nodes.
type PreviewInput struct {
	Trigger map[string]any `json:"trigger"`
	Left    []model.Record `json:"left,omitempty"`
	Right   []model.Record `json:"right,omitempty"`
}

// PreviewResult is what a node would write if the workflow ran now.
type PreviewResult struct {
	NodeID       string         `json:"node_id"`
	NodeType     string         `json:"node_type"`
	TargetFormID string         `json:"target_form_id"`
	Records      []model.Record `json:"records"`
}

// Preview computes the records node nodeID of def would write for the given
// input. Nothing is persisted. The node must pass validation.
func (v *Validator) Preview(def model.WorkflowDefinition, nodeID string, cat Catalogue, in PreviewInput, rc *model.RequestContext, now time.Time) (PreviewResult, error) {
	var node *model.NodeDefinition
	idx := -1
	for i := range def.Nodes {
		if def.Nodes[i].ID == nodeID {
			node, idx = &def.Nodes[i], i
			break
		}
	}
	if node == nil {
		return PreviewResult{}, model.NewNotFoundError(fmt.Sprintf("node %q not found in workflow %q", nodeID, def.ID))
	}

	trigger := TriggerForm(def, cat)
	if errs := v.ValidateNode(*node, trigger, cat); len(errs) > 0 {
		return PreviewResult{}, model.NewValidationError(prefixed(fmt.Sprintf("nodes[%d]", idx), errs))
	}
	cfg, err := DecodeNode(*node)
	if err != nil {
		return PreviewResult{}, model.NewBadRequestError(err.Error())
	}

	var actor string
	if rc != nil {
		actor = rc.ActorID
	}
	res := PreviewResult{NodeID: node.ID, NodeType: node.Type}

	switch c := cfg.(type) {
	case CreateRecordConfig:
		target := mustForm(cat, c.TargetFormID)
		res.TargetFormID = target.ID
		res.Records = []model.Record{draft(target.ID, applyPairs(c.Mappings, trigger, target, in.Trigger), actor, now)}

	case FieldMappingConfig:
		source := trigger
		if c.SourceFormID != "" {
			source = mustForm(cat, c.SourceFormID)
		}
		target := mustForm(cat, c.TargetFormID)
		res.TargetFormID = target.ID
		res.Records = []model.Record{draft(target.ID, applyPairs(c.Mappings, source, target, in.Trigger), actor, now)}

	case ChangeFieldValueConfig:
		target := trigger
		if c.TargetFormID != "" {
			target = mustForm(cat, c.TargetFormID)
		}
		field, _ := target.Field(c.FieldID)
		r := &mapping.ExpressionResolver{Trigger: in.Trigger, Context: rc, Now: now}
		val, err := mapping.ResolveValue(c.Value, field, r)
		if err != nil {
			return PreviewResult{}, model.NewBadRequestError(err.Error())
		}
		res.TargetFormID = target.ID
		res.Records = []model.Record{draft(target.ID, map[string]any{field.ID: val}, actor, now)}

	case CreateCombinationRecordsConfig:
		target := mustForm(cat, c.TargetFormID)
		left := mustForm(cat, c.LeftFormID)
		right := mustForm(cat, c.RightFormID)
		leftRef, _ := target.Field(c.LeftReferenceFieldID)
		rightRef, _ := target.Field(c.RightReferenceFieldID)
		leftSet, _ := mapping.Resolve(c.LeftMappings, left, target)
		rightSet, _ := mapping.Resolve(c.RightMappings, right, target)
		res.TargetFormID = target.ID
		res.Records = mapping.Combine(mapping.Combination{
			TargetFormID:   target.ID,
			LeftReference:  leftRef,
			RightReference: rightRef,
			LeftMappings:   leftSet.Mappings(),
			RightMappings:  rightSet.Mappings(),
			CreatedBy:      actor,
		}, in.Left, in.Right, now)

	default:
		return PreviewResult{}, model.NewBadRequestError(fmt.Sprintf("node type %q writes no records", node.Type))
	}
	return res, nil
}

// mustForm is only called after validation has confirmed the form exists.
func mustForm(cat Catalogue, formID string) *model.FormDefinition {
	form, _ := cat.GetForm(formID)
	return &form
}

func applyPairs(pairs []model.FieldPair, source, target *model.FormDefinition, data map[string]any) map[string]any {
	set, _ := mapping.Resolve(pairs, source, target)
	return mapping.Apply(set.Mappings(), data)
}

func draft(formID string, data map[string]any, actor string, now time.Time) model.Record {
	return model.Record{FormID: formID, Data: data, CreatedBy: actor, CreatedAt: now, UpdatedAt: now}
}
