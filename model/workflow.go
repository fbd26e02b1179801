package model

// Workflow node types.
const (
	NodeTrigger                  = "trigger"
	NodeCondition                = "condition"
	NodeCreateRecord             = "create_record"
	NodeCreateCombinationRecords = "create_combination_records"
	NodeChangeFieldValue         = "change_field_value"
	NodeFieldMapping             = "field_mapping"
	NodeNotification             = "notification"
	NodeLinkRecords              = "link_records"
)

// Dynamic value sources for change_field_value nodes.
const (
	ValueStatic      = "static"
	ValueField       = "field"
	ValueCurrentDate = "current_date"
	ValueCurrentUser = "current_user"
	ValueExpression  = "expression"
)

// WorkflowDefinition describes an automation graph.
type WorkflowDefinition struct {
	ID          string           `yaml:"id"          json:"id"`
	Name        string           `yaml:"name"        json:"name"`
	Description string           `yaml:"description" json:"description,omitempty"`
	Nodes       []NodeDefinition `yaml:"nodes"       json:"nodes"`
	Edges       []EdgeDefinition `yaml:"edges"       json:"edges"`
}

// NodeDefinition describes a single node. Config is decoded according to Type.
type NodeDefinition struct {
	ID     string         `yaml:"id"     json:"id"`
	Type   string         `yaml:"type"   json:"type"`
	Name   string         `yaml:"name"   json:"name,omitempty"`
	Config map[string]any `yaml:"config" json:"config,omitempty"`
}

// EdgeDefinition connects two nodes. Branch selects the outcome of a
// condition node ("true" or "false") and is empty otherwise.
type EdgeDefinition struct {
	From   string `yaml:"from"   json:"from"`
	To     string `yaml:"to"     json:"to"`
	Branch string `yaml:"branch" json:"branch,omitempty"`
}

// FieldPair references a source field and a target field by id.
type FieldPair struct {
	SourceFieldID string `mapstructure:"sourceFieldId" yaml:"sourceFieldId" json:"sourceFieldId"`
	TargetFieldID string `mapstructure:"targetFieldId" yaml:"targetFieldId" json:"targetFieldId"`
}

// ValueSpec describes where a change_field_value node takes its value from.
type ValueSpec struct {
	Source     string `mapstructure:"source"     json:"source"`
	Value      any    `mapstructure:"value"      json:"value,omitempty"`
	FieldID    string `mapstructure:"fieldId"    json:"fieldId,omitempty"`
	Expression string `mapstructure:"expression" json:"expression,omitempty"`
}
