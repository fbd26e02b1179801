package compat

import "github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"

// Class names an equivalence class of interchangeable field types.
type Class string

// Equivalence classes.
const (
	ClassText         Class = "text"
	ClassLongText     Class = "long text"
	ClassNumeric      Class = "numeric"
	ClassDate         Class = "date"
	ClassBoolean      Class = "boolean"
	ClassSingleChoice Class = "single choice"
	ClassMultiChoice  Class = "multi choice"
	ClassReference    Class = "reference"
	ClassPeople       Class = "people"
	ClassFile         Class = "file"
)

// classes is the table of record. A type belongs to at most one class.
var classes = map[Class][]model.FieldType{
	ClassText:         {model.FieldText, model.FieldShortText, model.FieldSingleLineText},
	ClassLongText:     {model.FieldTextarea, model.FieldLongText, model.FieldParagraph},
	ClassNumeric:      {model.FieldNumber, model.FieldDecimal, model.FieldCurrency, model.FieldPercentage, model.FieldRating, model.FieldSlider},
	ClassDate:         {model.FieldDate, model.FieldDateTime, model.FieldDateTimeDashed},
	ClassBoolean:      {model.FieldToggle, model.FieldCheckboxSingle, model.FieldSwitch, model.FieldYesNo},
	ClassSingleChoice: {model.FieldSelect, model.FieldRadio, model.FieldDropdown, model.FieldStatus},
	ClassMultiChoice:  {model.FieldMultiSelect, model.FieldCheckbox, model.FieldTags},
	ClassReference:    {model.FieldCrossReference, model.FieldChildCrossReference},
	ClassPeople:       {model.FieldUserPicker, model.FieldAssignee},
	ClassFile:         {model.FieldFile, model.FieldImageUpload, model.FieldAttachment},
}

// standalone types are known but only match themselves.
var standalone = []model.FieldType{
	model.FieldEmail, model.FieldPhone, model.FieldURL, model.FieldTime,
	model.FieldSignature, model.FieldMatrixGrid, model.FieldAddress, model.FieldBarcode,
}

var layout = map[model.FieldType]struct{}{
	model.FieldHeader:      {},
	model.FieldHeading:     {},
	model.FieldDivider:     {},
	model.FieldSeparator:   {},
	model.FieldDescription: {},
	model.FieldRichText:    {},
	model.FieldSpacer:      {},
	model.FieldSection:     {},
	model.FieldPageBreak:   {},
	model.FieldHTMLBlock:   {},
}

var classOf = func() map[model.FieldType]Class {
	m := make(map[model.FieldType]Class)
	for c, members := range classes {
		for _, t := range members {
			m[t] = c
		}
	}
	return m
}()

// ClassOf returns the equivalence class of t.
func ClassOf(t model.FieldType) (Class, bool) {
	c, ok := classOf[t]
	return c, ok
}

// Members returns the types of class c in table order.
func Members(c Class) []model.FieldType {
	return append([]model.FieldType(nil), classes[c]...)
}

// Known reports whether t appears anywhere in the table, including the
// layout and standalone lists.
func Known(t model.FieldType) bool {
	if _, ok := classOf[t]; ok {
		return true
	}
	if _, ok := layout[t]; ok {
		return true
	}
	for _, s := range standalone {
		if s == t {
			return true
		}
	}
	return false
}
