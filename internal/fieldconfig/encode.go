package fieldconfig

import (
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/transition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Encode returns the configuration fragment the caller merges into the stored
// field. Keys use the stored (camelCase) names.
func Encode(cfg model.FieldConfig) map[string]any {
	switch c := cfg.(type) {
	case model.ChoiceConfig:
		out := map[string]any{
			"options":         copyOptions(c.Options),
			"lifecycle":       c.Lifecycle,
			"transitionRules": transition.Canonical(c.TransitionRules),
			"multiple":        c.Multiple,
			"allowOther":      c.AllowOther,
		}
		if c.DefaultValue != "" {
			out["defaultValue"] = c.DefaultValue
		}
		return out
	case model.MatrixConfig:
		out := map[string]any{
			"rows":     copyOptions(c.Rows),
			"columns":  copyOptions(c.Columns),
			"multiple": c.Multiple,
		}
		if c.InputType != "" {
			out["inputType"] = c.InputType
		}
		return out
	case model.CrossReferenceConfig:
		out := map[string]any{
			"targetFormId": c.TargetFormID,
			"multiple":     c.Multiple,
		}
		if len(c.DisplayFieldIDs) > 0 {
			out["displayFieldIds"] = append([]string(nil), c.DisplayFieldIDs...)
		}
		if c.ParentFieldID != "" {
			out["parentFieldId"] = c.ParentFieldID
		}
		return out
	case model.TextConfig:
		out := map[string]any{}
		putInt(out, "minLength", c.MinLength)
		putInt(out, "maxLength", c.MaxLength)
		putString(out, "pattern", c.Pattern)
		putString(out, "placeholder", c.Placeholder)
		return out
	case model.NumberConfig:
		out := map[string]any{}
		if c.Min != nil {
			out["min"] = *c.Min
		}
		if c.Max != nil {
			out["max"] = *c.Max
		}
		if c.Step != 0 {
			out["step"] = c.Step
		}
		putInt(out, "precision", c.Precision)
		putString(out, "currency", c.Currency)
		return out
	case model.DateConfig:
		out := map[string]any{"includeTime": c.IncludeTime}
		putString(out, "format", c.Format)
		putString(out, "minDate", c.MinDate)
		putString(out, "maxDate", c.MaxDate)
		return out
	case model.GenericConfig:
		out := make(map[string]any, len(c.Values))
		for k, v := range c.Values {
			out[k] = v
		}
		return out
	default:
		return map[string]any{}
	}
}

// Merge applies fragment over stored and returns the new stored configuration.
// Options live on the field itself and are returned separately.
func Merge(field model.FieldDescriptor, fragment map[string]any) model.FieldDescriptor {
	out := field
	out.Config = make(map[string]any, len(field.Config)+len(fragment))
	for k, v := range field.Config {
		out.Config[k] = v
	}
	for k, v := range fragment {
		if k == "options" {
			out.Options = v
			delete(out.Config, "options")
			continue
		}
		out.Config[k] = v
	}
	return out
}

func copyOptions(opts []model.Option) []model.Option {
	return append(make([]model.Option, 0, len(opts)), opts...)
}

func putInt(m map[string]any, key string, v int) {
	if v != 0 {
		m[key] = v
	}
}

func putString(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
