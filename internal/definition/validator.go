package definition

import (
	"fmt"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/compat"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/fieldconfig"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/workflow"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator validates definitions structurally and referentially. Workflows
// are checked against every form in the set.
type Validator struct {
	workflows *workflow.Validator
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{workflows: workflow.NewValidator()}
}

// formSet is the catalogue the workflow checks see while definitions are
// still being validated.
type formSet map[string]model.FormDefinition

func (s formSet) GetForm(id string) (model.FormDefinition, bool) {
	f, ok := s[id]
	return f, ok
}

// Validate checks all definitions.
func (v *Validator) Validate(defs []model.DefinitionFile) []VError {
	var errs []VError

	forms := make(formSet)
	formAt := make(map[string]string)
	fieldAt := make(map[string]string)
	workflowAt := make(map[string]string)

	// 1. Index forms and fields, reporting duplicates across files.
	for i, def := range defs {
		for j, f := range def.Forms {
			fp := fmt.Sprintf("definitions[%d].forms[%d]", i, j)
			if f.ID != "" {
				if prev, dup := formAt[f.ID]; dup {
					errs = append(errs, VError{Path: fp + ".id", Code: model.CodeDuplicateID, Message: fmt.Sprintf("form %q already defined at %s", f.ID, prev)})
				} else {
					formAt[f.ID] = fp
					forms[f.ID] = f
				}
			}
			for k, fd := range f.Fields {
				if fd.ID == "" {
					continue
				}
				path := fmt.Sprintf("%s.fields[%d].id", fp, k)
				if prev, dup := fieldAt[fd.ID]; dup {
					errs = append(errs, VError{Path: path, Code: model.CodeDuplicateID, Message: fmt.Sprintf("field %q already defined at %s", fd.ID, prev)})
					continue
				}
				fieldAt[fd.ID] = path
			}
		}
	}

	// 2. Per file checks.
	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		if def.Version == "" {
			errs = append(errs, VError{Path: prefix + ".version", Code: model.CodeRequired, Message: "version is required"})
		}
		if len(def.Forms) == 0 && len(def.Workflows) == 0 {
			errs = append(errs, VError{Path: prefix, Code: model.CodeRequired, Message: "at least one form or workflow is required"})
		}
		for j, f := range def.Forms {
			errs = append(errs, v.validateForm(fmt.Sprintf("%s.forms[%d]", prefix, j), f, forms)...)
		}
		for j, w := range def.Workflows {
			wp := fmt.Sprintf("%s.workflows[%d]", prefix, j)
			if w.ID != "" {
				if prev, dup := workflowAt[w.ID]; dup {
					errs = append(errs, VError{Path: wp + ".id", Code: model.CodeDuplicateID, Message: fmt.Sprintf("workflow %q already defined at %s", w.ID, prev)})
				} else {
					workflowAt[w.ID] = wp
				}
			}
			for _, fe := range v.workflows.ValidateWorkflow(w, forms) {
				errs = append(errs, VError{Path: wp + "." + fe.Field, Code: fe.Code, Message: fe.Message})
			}
		}
	}

	return errs
}

func (v *Validator) validateForm(prefix string, f model.FormDefinition, forms formSet) []VError {
	var errs []VError

	if f.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: model.CodeRequired, Message: "id is required"})
	}
	if f.Name == "" {
		errs = append(errs, VError{Path: prefix + ".name", Code: model.CodeRequired, Message: "name is required"})
	}
	if len(f.Fields) == 0 {
		errs = append(errs, VError{Path: prefix + ".fields", Code: model.CodeRequired, Message: "at least one field is required"})
	}

	for i, fd := range f.Fields {
		errs = append(errs, v.validateField(fmt.Sprintf("%s.fields[%d]", prefix, i), fd, forms)...)
	}
	return errs
}

func (v *Validator) validateField(prefix string, fd model.FieldDescriptor, forms formSet) []VError {
	var errs []VError

	if fd.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: model.CodeRequired, Message: "id is required"})
	}
	if fd.Type == "" {
		errs = append(errs, VError{Path: prefix + ".type", Code: model.CodeRequired, Message: "type is required"})
		return errs
	}
	if compat.IsLayout(fd.Type) {
		return errs
	}

	cfg, err := fieldconfig.DecodeStrict(fd)
	if err != nil {
		errs = append(errs, VError{Path: prefix + ".custom_config", Code: model.CodeInvalidConfig, Message: err.Error()})
	}

	switch c := cfg.(type) {
	case model.ChoiceConfig:
		if len(c.Options) == 0 {
			errs = append(errs, VError{Path: prefix + ".options", Code: model.CodeRequired, Message: fmt.Sprintf("%s field needs options", fd.Type)})
		}
		if lc, _ := fd.Config["lifecycle"].(bool); lc && !fieldconfig.VariantFor(fd.Type).AllowLifecycle {
			errs = append(errs, VError{Path: prefix + ".custom_config.lifecycle", Code: model.CodeInvalidConfig, Message: fmt.Sprintf("%s fields cannot be lifecycle fields", fd.Type)})
		}
		if c.DefaultValue != "" && len(c.Options) > 0 && !options.Contains(c.Options, c.DefaultValue) {
			errs = append(errs, VError{Path: prefix + ".custom_config.defaultValue", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("default %q is not an option", c.DefaultValue)})
		}
	case model.CrossReferenceConfig:
		switch {
		case c.TargetFormID == "":
			errs = append(errs, VError{Path: prefix + ".custom_config.targetFormId", Code: model.CodeRequired, Message: "targetFormId is required"})
		default:
			target, ok := forms.GetForm(c.TargetFormID)
			if !ok {
				errs = append(errs, VError{Path: prefix + ".custom_config.targetFormId", Code: model.CodeRefNotFound, Message: fmt.Sprintf("form %q not found", c.TargetFormID)})
				break
			}
			for i, id := range c.DisplayFieldIDs {
				if _, ok := target.Field(id); !ok {
					errs = append(errs, VError{
						Path:    fmt.Sprintf("%s.custom_config.displayFieldIds[%d]", prefix, i),
						Code:    model.CodeRefNotFound,
						Message: fmt.Sprintf("form %q has no field %q", c.TargetFormID, id),
					})
				}
			}
		}
	}
	return errs
}
