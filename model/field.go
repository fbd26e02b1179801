package model

// FieldType is the declared type tag of a form field.
type FieldType string

// Text-like field types.
const (
	FieldText           FieldType = "text"
	FieldShortText      FieldType = "short-text"
	FieldSingleLineText FieldType = "single-line-text"
	FieldTextarea       FieldType = "textarea"
	FieldLongText       FieldType = "long-text"
	FieldParagraph      FieldType = "paragraph"
)

// Numeric field types.
const (
	FieldNumber     FieldType = "number"
	FieldDecimal    FieldType = "decimal"
	FieldCurrency   FieldType = "currency"
	FieldPercentage FieldType = "percentage"
	FieldRating     FieldType = "rating"
	FieldSlider     FieldType = "slider"
)

// Date and boolean field types.
const (
	FieldDate           FieldType = "date"
	FieldDateTime       FieldType = "datetime"
	FieldDateTimeDashed FieldType = "date-time"
	FieldToggle         FieldType = "toggle"
	FieldCheckboxSingle FieldType = "checkbox-single"
	FieldSwitch         FieldType = "switch"
	FieldYesNo          FieldType = "yes-no"
)

// Choice field types.
const (
	FieldSelect      FieldType = "select"
	FieldRadio       FieldType = "radio"
	FieldDropdown    FieldType = "dropdown"
	FieldStatus      FieldType = "status"
	FieldMultiSelect FieldType = "multi-select"
	FieldCheckbox    FieldType = "checkbox"
	FieldTags        FieldType = "tags"
)

// Reference, people and file field types.
const (
	FieldCrossReference      FieldType = "cross-reference"
	FieldChildCrossReference FieldType = "child-cross-reference"
	FieldUserPicker          FieldType = "user-picker"
	FieldAssignee            FieldType = "assignee"
	FieldFile                FieldType = "file"
	FieldImageUpload         FieldType = "image-upload"
	FieldAttachment          FieldType = "attachment"
)

// Field types that only match themselves.
const (
	FieldEmail      FieldType = "email"
	FieldPhone      FieldType = "phone"
	FieldURL        FieldType = "url"
	FieldTime       FieldType = "time"
	FieldSignature  FieldType = "signature"
	FieldMatrixGrid FieldType = "matrix-grid"
	FieldAddress    FieldType = "address"
	FieldBarcode    FieldType = "barcode"
)

// Static layout types. They carry no value.
const (
	FieldHeader      FieldType = "header"
	FieldHeading     FieldType = "heading"
	FieldDivider     FieldType = "divider"
	FieldSeparator   FieldType = "separator"
	FieldDescription FieldType = "description"
	FieldRichText    FieldType = "rich-text"
	FieldSpacer      FieldType = "spacer"
	FieldSection     FieldType = "section"
	FieldPageBreak   FieldType = "page-break"
	FieldHTMLBlock   FieldType = "html-block"
)

// Option is one selectable value of an enumerated field.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
	Color string `yaml:"color" json:"color,omitempty"`
}

// TransitionRules maps a source stage value to the ordered set of stage
// values it may move to. An empty map allows every transition.
type TransitionRules map[string][]string

// FieldDescriptor describes a field in the form-field catalogue. Options and
// Config hold the stored representation as-is; use the options and
// fieldconfig packages to interpret them.
type FieldDescriptor struct {
	ID       string         `yaml:"id"            json:"id"`
	FormID   string         `yaml:"form_id"       json:"form_id,omitempty"`
	Type     FieldType      `yaml:"type"          json:"type"`
	Label    string         `yaml:"label"         json:"label"`
	Required bool           `yaml:"required"      json:"required,omitempty"`
	Options  any            `yaml:"options"       json:"options,omitempty"`
	Config   map[string]any `yaml:"custom_config" json:"custom_config,omitempty"`
}

// Compatibility is the level at which a source field type may be written into
// a target field type. Higher levels are better matches.
type Compatibility int

const (
	// Incompatible means the value cannot be copied.
	Incompatible Compatibility = iota
	// Equivalent means both types belong to the same equivalence class.
	Equivalent
	// Identical means both types are the same tag.
	Identical
)

// Compatibility verdicts as rendered in API payloads.
const (
	VerdictIdentical    = "identical"
	VerdictEquivalent   = "equivalent"
	VerdictIncompatible = "incompatible"
)

// String returns the verdict name.
func (c Compatibility) String() string {
	switch c {
	case Identical:
		return VerdictIdentical
	case Equivalent:
		return VerdictEquivalent
	case Incompatible:
		return VerdictIncompatible
	default:
		return "unknown"
	}
}

// MarshalText renders the verdict name.
func (c Compatibility) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// OK reports whether a value may be copied at this level.
func (c Compatibility) OK() bool {
	return c > Incompatible
}

// FieldMapping pairs a source field with a target field.
type FieldMapping struct {
	Source FieldDescriptor `json:"source"`
	Target FieldDescriptor `json:"target"`
	Status Compatibility   `json:"status"`
	Label  string          `json:"label"`
}
