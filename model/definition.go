package model

// DefinitionFile is the root structure of a definition file. Each file
// declares a set of forms and the workflows that automate them.
type DefinitionFile struct {
	Version   string               `yaml:"version"   json:"version"`
	Forms     []FormDefinition     `yaml:"forms"     json:"forms,omitempty"`
	Workflows []WorkflowDefinition `yaml:"workflows" json:"workflows,omitempty"`

	// Checksum is computed at load time and not part of the YAML.
	Checksum string `yaml:"-" json:"-"`
	// SourceFile records the originating file path.
	SourceFile string `yaml:"-" json:"-"`
}

// FormDefinition describes a form and its ordered fields.
type FormDefinition struct {
	ID          string            `yaml:"id"          json:"id"`
	Name        string            `yaml:"name"        json:"name"`
	Description string            `yaml:"description" json:"description,omitempty"`
	Fields      []FieldDescriptor `yaml:"fields"      json:"fields"`
}

// Field returns the field with the given id.
func (f *FormDefinition) Field(id string) (FieldDescriptor, bool) {
	for _, fd := range f.Fields {
		if fd.ID == id {
			return fd, true
		}
	}
	return FieldDescriptor{}, false
}
