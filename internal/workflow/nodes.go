// Package workflow decodes and validates the configuration of workflow
// automation nodes against the form-field catalogue.
package workflow

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Trigger events.
const (
	EventRecordCreated = "record_created"
	EventRecordUpdated = "record_updated"
	EventRecordDeleted = "record_deleted"
	EventStageChanged  = "stage_changed"
)

var validEvents = map[string]bool{
	EventRecordCreated: true, EventRecordUpdated: true, EventRecordDeleted: true, EventStageChanged: true,
}

var validOperators = map[string]bool{
	"equals": true, "not_equals": true, "contains": true, "greater_than": true,
	"less_than": true, "is_empty": true, "is_not_empty": true,
}

// NodeConfig is the typed configuration of a node.
type NodeConfig interface {
	NodeType() string
}

// TriggerConfig starts a workflow when a record event happens on FormID.
// For stage_changed triggers FieldID names the lifecycle field and
// FromStage/ToStage optionally narrow the move.
type TriggerConfig struct {
	FormID    string `mapstructure:"formId"`
	Event     string `mapstructure:"event"`
	FieldID   string `mapstructure:"fieldId"`
	FromStage string `mapstructure:"fromStage"`
	ToStage   string `mapstructure:"toStage"`
}

// ConditionConfig branches on a trigger record value.
type ConditionConfig struct {
	FieldID  string `mapstructure:"fieldId"`
	Operator string `mapstructure:"operator"`
	Value    any    `mapstructure:"value"`
}

// CreateRecordConfig creates a record in TargetFormID from the trigger
// record.
type CreateRecordConfig struct {
	TargetFormID string            `mapstructure:"targetFormId"`
	Mappings     []model.FieldPair `mapstructure:"fieldMappings"`
}

// CreateCombinationRecordsConfig creates one TargetFormID record per pair of
// LeftFormID and RightFormID records, linked through the reference fields.
type CreateCombinationRecordsConfig struct {
	TargetFormID          string            `mapstructure:"targetFormId"`
	LeftFormID            string            `mapstructure:"leftFormId"`
	RightFormID           string            `mapstructure:"rightFormId"`
	LeftReferenceFieldID  string            `mapstructure:"leftReferenceFieldId"`
	RightReferenceFieldID string            `mapstructure:"rightReferenceFieldId"`
	LeftMappings          []model.FieldPair `mapstructure:"leftFieldMappings"`
	RightMappings         []model.FieldPair `mapstructure:"rightFieldMappings"`
}

// ChangeFieldValueConfig writes a dynamic value into FieldID. TargetFormID
// defaults to the trigger form.
type ChangeFieldValueConfig struct {
	TargetFormID string          `mapstructure:"targetFormId"`
	FieldID      string          `mapstructure:"fieldId"`
	Value        model.ValueSpec `mapstructure:"value"`
}

// FieldMappingConfig copies values from SourceFormID into TargetFormID.
// SourceFormID defaults to the trigger form.
type FieldMappingConfig struct {
	SourceFormID string            `mapstructure:"sourceFormId"`
	TargetFormID string            `mapstructure:"targetFormId"`
	Mappings     []model.FieldPair `mapstructure:"fieldMappings"`
}

// NotificationConfig sends a message.
type NotificationConfig struct {
	Channel    string   `mapstructure:"channel"`
	Recipients []string `mapstructure:"recipients"`
	Subject    string   `mapstructure:"subject"`
	Message    string   `mapstructure:"message"`
}

// LinkRecordsConfig links SourceFormID records to TargetFormID records through
// ReferenceFieldID, a cross-reference field of the source form.
type LinkRecordsConfig struct {
	SourceFormID     string `mapstructure:"sourceFormId"`
	TargetFormID     string `mapstructure:"targetFormId"`
	ReferenceFieldID string `mapstructure:"referenceFieldId"`
}

func (TriggerConfig) NodeType() string                  { return model.NodeTrigger }
func (ConditionConfig) NodeType() string                { return model.NodeCondition }
func (CreateRecordConfig) NodeType() string             { return model.NodeCreateRecord }
func (CreateCombinationRecordsConfig) NodeType() string { return model.NodeCreateCombinationRecords }
func (ChangeFieldValueConfig) NodeType() string         { return model.NodeChangeFieldValue }
func (FieldMappingConfig) NodeType() string             { return model.NodeFieldMapping }
func (NotificationConfig) NodeType() string             { return model.NodeNotification }
func (LinkRecordsConfig) NodeType() string              { return model.NodeLinkRecords }

// DecodeNode decodes node.Config according to node.Type.
func DecodeNode(node model.NodeDefinition) (NodeConfig, error) {
	switch node.Type {
	case model.NodeTrigger:
		return decodeAs[TriggerConfig](node)
	case model.NodeCondition:
		return decodeAs[ConditionConfig](node)
	case model.NodeCreateRecord:
		return decodeAs[CreateRecordConfig](node)
	case model.NodeCreateCombinationRecords:
		return decodeAs[CreateCombinationRecordsConfig](node)
	case model.NodeChangeFieldValue:
		return decodeAs[ChangeFieldValueConfig](node)
	case model.NodeFieldMapping:
		return decodeAs[FieldMappingConfig](node)
	case model.NodeNotification:
		return decodeAs[NotificationConfig](node)
	case model.NodeLinkRecords:
		return decodeAs[LinkRecordsConfig](node)
	default:
		return nil, fmt.Errorf("unknown node type %q", node.Type)
	}
}

func decodeAs[T NodeConfig](node model.NodeDefinition) (NodeConfig, error) {
	var c T
	err := decode(node, &c)
	return c, err
}

func decode(node model.NodeDefinition, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(node.Config); err != nil {
		return fmt.Errorf("node %s: %w", node.ID, err)
	}
	return nil
}
