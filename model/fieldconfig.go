package model

// ConfigKind discriminates the FieldConfig variants.
type ConfigKind string

// Field configuration kinds.
const (
	ConfigChoice         ConfigKind = "choice"
	ConfigMatrix         ConfigKind = "matrix"
	ConfigCrossReference ConfigKind = "cross_reference"
	ConfigText           ConfigKind = "text"
	ConfigNumber         ConfigKind = "number"
	ConfigDate           ConfigKind = "date"
	ConfigGeneric        ConfigKind = "generic"
)

// FieldConfig is the typed configuration of a field. The concrete type is
// selected by the field's type tag.
type FieldConfig interface {
	Kind() ConfigKind
}

// ChoiceConfig configures select, radio, dropdown, status and the
// multi-value choice types. Lifecycle turns the field into a stage bar
// governed by TransitionRules.
type ChoiceConfig struct {
	Options         []Option        `mapstructure:"options"         json:"options"`
	Multiple        bool            `mapstructure:"multiple"        json:"multiple,omitempty"`
	AllowOther      bool            `mapstructure:"allowOther"      json:"allowOther,omitempty"`
	Lifecycle       bool            `mapstructure:"lifecycle"       json:"lifecycle,omitempty"`
	TransitionRules TransitionRules `mapstructure:"transitionRules" json:"transitionRules,omitempty"`
	DefaultValue    string          `mapstructure:"defaultValue"    json:"defaultValue,omitempty"`
}

// Kind implements FieldConfig.
func (ChoiceConfig) Kind() ConfigKind { return ConfigChoice }

// MatrixConfig configures a matrix-grid field.
type MatrixConfig struct {
	Rows      []Option `mapstructure:"rows"      json:"rows"`
	Columns   []Option `mapstructure:"columns"   json:"columns"`
	InputType string   `mapstructure:"inputType" json:"inputType,omitempty"`
	Multiple  bool     `mapstructure:"multiple"  json:"multiple,omitempty"`
}

// Kind implements FieldConfig.
func (MatrixConfig) Kind() ConfigKind { return ConfigMatrix }

// CrossReferenceConfig configures cross-reference and child-cross-reference
// fields.
type CrossReferenceConfig struct {
	TargetFormID    string   `mapstructure:"targetFormId"    json:"targetFormId"`
	DisplayFieldIDs []string `mapstructure:"displayFieldIds" json:"displayFieldIds,omitempty"`
	Multiple        bool     `mapstructure:"multiple"        json:"multiple,omitempty"`
	ParentFieldID   string   `mapstructure:"parentFieldId"   json:"parentFieldId,omitempty"`
}

// Kind implements FieldConfig.
func (CrossReferenceConfig) Kind() ConfigKind { return ConfigCrossReference }

// TextConfig configures the text-like field types.
type TextConfig struct {
	MinLength   int    `mapstructure:"minLength"   json:"minLength,omitempty"`
	MaxLength   int    `mapstructure:"maxLength"   json:"maxLength,omitempty"`
	Pattern     string `mapstructure:"pattern"     json:"pattern,omitempty"`
	Placeholder string `mapstructure:"placeholder" json:"placeholder,omitempty"`
}

// Kind implements FieldConfig.
func (TextConfig) Kind() ConfigKind { return ConfigText }

// NumberConfig configures the numeric field types.
type NumberConfig struct {
	Min       *float64 `mapstructure:"min"       json:"min,omitempty"`
	Max       *float64 `mapstructure:"max"       json:"max,omitempty"`
	Step      float64  `mapstructure:"step"      json:"step,omitempty"`
	Precision int      `mapstructure:"precision" json:"precision,omitempty"`
	Currency  string   `mapstructure:"currency"  json:"currency,omitempty"`
}

// Kind implements FieldConfig.
func (NumberConfig) Kind() ConfigKind { return ConfigNumber }

// DateConfig configures date and date-time fields.
type DateConfig struct {
	IncludeTime bool   `mapstructure:"includeTime" json:"includeTime,omitempty"`
	Format      string `mapstructure:"format"      json:"format,omitempty"`
	MinDate     string `mapstructure:"minDate"     json:"minDate,omitempty"`
	MaxDate     string `mapstructure:"maxDate"     json:"maxDate,omitempty"`
}

// Kind implements FieldConfig.
func (DateConfig) Kind() ConfigKind { return ConfigDate }

// GenericConfig keeps the untyped configuration of every other field type.
type GenericConfig struct {
	Values map[string]any `json:"values,omitempty"`
}

// Kind implements FieldConfig.
func (GenericConfig) Kind() ConfigKind { return ConfigGeneric }
