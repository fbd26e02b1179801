package mapping

import (
	"fmt"
	"time"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/compat"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// ValueSources returns the dynamic value sources offered for a target field
// type, in display order.
func ValueSources(target model.FieldType) []string {
	out := []string{model.ValueStatic, model.ValueField}
	c, _ := compat.ClassOf(target)
	switch c {
	case compat.ClassDate:
		out = append(out, model.ValueCurrentDate)
	case compat.ClassPeople:
		out = append(out, model.ValueCurrentUser)
	case compat.ClassText:
		out = append(out, model.ValueCurrentDate, model.ValueCurrentUser)
	}
	return append(out, model.ValueExpression)
}

func sourceOffered(source string, target model.FieldType) bool {
	for _, s := range ValueSources(target) {
		if s == source {
			return true
		}
	}
	return false
}

// ValidateValue checks a dynamic value against the target field and the
// trigger form. trigger may be nil when the workflow has no trigger form.
func ValidateValue(spec model.ValueSpec, target model.FieldDescriptor, trigger *model.FormDefinition) []model.FieldError {
	var errs []model.FieldError
	if compat.IsLayout(target.Type) {
		return append(errs, model.FieldError{Field: "fieldId", Code: model.CodeLayoutField,
			Message: fmt.Sprintf("field %q is a %s and holds no value", target.ID, target.Type)})
	}
	if !sourceOffered(spec.Source, target.Type) {
		return append(errs, model.FieldError{Field: "value.source", Code: model.CodeInvalidEnum,
			Message: fmt.Sprintf("value source %q is not available for %s fields", spec.Source, target.Type)})
	}

	switch spec.Source {
	case model.ValueStatic:
		if c, ok := compat.ClassOf(target.Type); ok && c == compat.ClassSingleChoice && spec.Value != nil {
			opts := options.Normalize(target.Options)
			if key := options.Key(spec.Value); len(opts) > 0 && !options.Contains(opts, key) {
				errs = append(errs, model.FieldError{Field: "value.value", Code: model.CodeInvalidEnum,
					Message: fmt.Sprintf("%q is not an option of field %q", key, target.ID)})
			}
		}
	case model.ValueField:
		errs = append(errs, validateFieldRef(spec.FieldID, "value.fieldId", target, trigger)...)
	case model.ValueExpression:
		e, err := Parse(spec.Expression)
		if err != nil {
			return append(errs, model.FieldError{Field: "value.expression", Code: model.CodeInvalidEnum, Message: err.Error()})
		}
		if e.Kind == ExprTrigger {
			errs = append(errs, validateFieldRef(firstSegment(e.Path), "value.expression", target, trigger)...)
		}
	}
	return errs
}

func validateFieldRef(fieldID, path string, target model.FieldDescriptor, trigger *model.FormDefinition) []model.FieldError {
	if fieldID == "" {
		return []model.FieldError{{Field: path, Code: model.CodeRequired, Message: "a source field is required"}}
	}
	if trigger == nil {
		return []model.FieldError{{Field: path, Code: model.CodeRefNotFound,
			Message: fmt.Sprintf("field %q cannot be resolved without a trigger form", fieldID)}}
	}
	src, ok := trigger.Field(fieldID)
	if !ok {
		return []model.FieldError{{Field: path, Code: model.CodeRefNotFound,
			Message: fmt.Sprintf("field %q not found in form %q", fieldID, trigger.ID)}}
	}
	if compat.IsLayout(src.Type) {
		return []model.FieldError{{Field: path, Code: model.CodeLayoutField,
			Message: fmt.Sprintf("field %q is a %s and holds no value", src.ID, src.Type)}}
	}
	if !compat.Compatible(src.Type, target.Type) {
		return []model.FieldError{{Field: path, Code: model.CodeIncompatibleTypes,
			Message: compat.Label(src.Type, target.Type)}}
	}
	return nil
}

func firstSegment(path string) string {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i]
		}
	}
	return path
}

// ResolveValue computes the value a change_field_value node writes into
// target.
func ResolveValue(spec model.ValueSpec, target model.FieldDescriptor, r *ExpressionResolver) (any, error) {
	switch spec.Source {
	case model.ValueStatic:
		return convert(spec.Value, target.Type), nil
	case model.ValueField:
		v, err := r.resolveTrigger(spec.FieldID)
		if err != nil {
			return nil, err
		}
		return convert(v, target.Type), nil
	case model.ValueCurrentDate:
		now := r.now()
		if target.Type == model.FieldDate {
			return now.Format(time.DateOnly), nil
		}
		return now.Format(time.RFC3339), nil
	case model.ValueCurrentUser:
		return r.resolveContext("user_id")
	case model.ValueExpression:
		v, err := r.Resolve(spec.Expression)
		if err != nil {
			return nil, err
		}
		return convert(v, target.Type), nil
	default:
		return nil, fmt.Errorf("unknown value source %q", spec.Source)
	}
}
