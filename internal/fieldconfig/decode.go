// Package fieldconfig turns the untyped configuration stored with a field into
// the typed model.FieldConfig variant selected by the field's type, and back
// into the fragment persisted by the caller.
package fieldconfig

import (
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/transition"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

var (
	optionSliceType = reflect.TypeOf([]model.Option(nil))
	rulesType       = reflect.TypeOf(model.TransitionRules(nil))
)

// KindFor returns the configuration kind used for fields of type t.
func KindFor(t model.FieldType) model.ConfigKind {
	switch t {
	case model.FieldSelect, model.FieldRadio, model.FieldDropdown, model.FieldStatus,
		model.FieldMultiSelect, model.FieldCheckbox, model.FieldTags:
		return model.ConfigChoice
	case model.FieldMatrixGrid:
		return model.ConfigMatrix
	case model.FieldCrossReference, model.FieldChildCrossReference:
		return model.ConfigCrossReference
	case model.FieldText, model.FieldShortText, model.FieldSingleLineText,
		model.FieldTextarea, model.FieldLongText, model.FieldParagraph,
		model.FieldEmail, model.FieldPhone, model.FieldURL:
		return model.ConfigText
	case model.FieldNumber, model.FieldDecimal, model.FieldCurrency,
		model.FieldPercentage, model.FieldRating, model.FieldSlider:
		return model.ConfigNumber
	case model.FieldDate, model.FieldDateTime, model.FieldDateTimeDashed:
		return model.ConfigDate
	default:
		return model.ConfigGeneric
	}
}

func isMultiChoice(t model.FieldType) bool {
	return t == model.FieldMultiSelect || t == model.FieldCheckbox || t == model.FieldTags
}

// Decode returns the typed configuration of field. Values that cannot be
// decoded are left at their zero value.
func Decode(field model.FieldDescriptor) model.FieldConfig {
	cfg, _ := DecodeStrict(field)
	return cfg
}

// DecodeStrict is Decode but also reports the values that could not be
// decoded. The returned configuration is always usable.
func DecodeStrict(field model.FieldDescriptor) (model.FieldConfig, error) {
	input := make(map[string]any, len(field.Config)+1)
	for k, v := range field.Config {
		input[k] = v
	}
	if field.Options != nil {
		input["options"] = field.Options
	}

	switch KindFor(field.Type) {
	case model.ConfigChoice:
		var c model.ChoiceConfig
		err := decode(input, &c)
		if c.Options == nil {
			c.Options = []model.Option{}
		}
		if c.TransitionRules == nil {
			c.TransitionRules = model.TransitionRules{}
		}
		if isMultiChoice(field.Type) {
			c.Multiple = true
			c.Lifecycle = false
		}
		return c, err
	case model.ConfigMatrix:
		var c model.MatrixConfig
		err := decode(input, &c)
		return c, err
	case model.ConfigCrossReference:
		var c model.CrossReferenceConfig
		err := decode(input, &c)
		return c, err
	case model.ConfigText:
		var c model.TextConfig
		err := decode(input, &c)
		return c, err
	case model.ConfigNumber:
		var c model.NumberConfig
		err := decode(input, &c)
		return c, err
	case model.ConfigDate:
		var c model.DateConfig
		err := decode(input, &c)
		if field.Type != model.FieldDate {
			c.IncludeTime = true
		}
		return c, err
	default:
		return model.GenericConfig{Values: input}, nil
	}
}

func decode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       optionHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// optionHook routes option lists and rule sets through the shared
// normalisers so every stored shape decodes the same way.
func optionHook(_ reflect.Type, to reflect.Type, data any) (any, error) {
	switch to {
	case optionSliceType:
		return options.Normalize(data), nil
	case rulesType:
		return transition.Coerce(data), nil
	}
	return data, nil
}
