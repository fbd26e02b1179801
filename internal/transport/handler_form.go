package transport

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/compat"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/lifecycle"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/mapping"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/workflow"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

type formSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	FieldCount  int    `json:"field_count"`
}

func handleListForms(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		forms := cat.AllForms()
		out := make([]formSummary, len(forms))
		for i, f := range forms {
			out[i] = formSummary{ID: f.ID, Name: f.Name, Description: f.Description, FieldCount: len(f.Fields)}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": out})
	}
}

func handleGetForm(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formId")
		form, ok := cat.GetForm(formID)
		if !ok {
			WriteNotFound(w, fmt.Sprintf("form %q not found", formID))
			return
		}
		WriteJSON(w, http.StatusOK, form)
	}
}

// handleListFields returns the form's fields with stored lifecycle
// configuration applied. ?mappable=true drops layout fields.
func handleListFields(cat Catalogue, svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formId")
		form, ok := cat.GetForm(formID)
		if !ok {
			WriteNotFound(w, fmt.Sprintf("form %q not found", formID))
			return
		}

		fields := form.Fields
		if r.URL.Query().Get("mappable") == "true" {
			fields = compat.Mappable(fields)
		}

		out := make([]model.FieldDescriptor, len(fields))
		for i, f := range fields {
			eff, _, err := svc.Field(r.Context(), f.ID)
			if err != nil {
				WriteError(w, err)
				return
			}
			out[i] = eff
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": out})
	}
}

// handleCompatibleFields ranks the form's fields against ?target_type.
func handleCompatibleFields(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID := chi.URLParam(r, "formId")
		target := model.FieldType(r.URL.Query().Get("target_type"))
		if target == "" {
			WriteValidationError(w, []model.FieldError{{Field: "target_type", Code: model.CodeRequired, Message: "target_type is required"}})
			return
		}
		if !compat.Known(target) {
			WriteValidationError(w, []model.FieldError{{Field: "target_type", Code: model.CodeInvalidEnum, Message: fmt.Sprintf("unknown field type %q", target)}})
			return
		}

		candidates, ok := workflow.CandidateFields(cat, formID, target)
		if !ok {
			WriteNotFound(w, fmt.Sprintf("form %q not found", formID))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"target_type": target, "data": candidates})
	}
}

type compatibilityRequest struct {
	SourceType model.FieldType `json:"source_type"`
	TargetType model.FieldType `json:"target_type"`
}

type compatibilityResponse struct {
	SourceType    model.FieldType     `json:"source_type"`
	TargetType    model.FieldType     `json:"target_type"`
	Compatibility model.Compatibility `json:"compatibility"`
	Compatible    bool                `json:"compatible"`
	Label         string              `json:"label"`
}

func handleCompatibility(m *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body compatibilityRequest
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		var details []model.FieldError
		if body.SourceType == "" {
			details = append(details, model.FieldError{Field: "source_type", Code: model.CodeRequired, Message: "source_type is required"})
		}
		if body.TargetType == "" {
			details = append(details, model.FieldError{Field: "target_type", Code: model.CodeRequired, Message: "target_type is required"})
		}
		if len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		score := compat.Score(body.SourceType, body.TargetType)
		m.RecordCompatibilityCheck(score.String())
		WriteJSON(w, http.StatusOK, compatibilityResponse{
			SourceType:    body.SourceType,
			TargetType:    body.TargetType,
			Compatibility: score,
			Compatible:    compat.Compatible(body.SourceType, body.TargetType),
			Label:         compat.Label(body.SourceType, body.TargetType),
		})
	}
}

type formPairRequest struct {
	SourceFormID string            `json:"source_form_id"`
	TargetFormID string            `json:"target_form_id"`
	Mappings     []model.FieldPair `json:"mappings,omitempty"`
}

// forms resolves both forms of the request, reporting missing ones.
func (req formPairRequest) forms(cat Catalogue) (source, target model.FormDefinition, err error) {
	var details []model.FieldError
	lookup := func(field, id string) model.FormDefinition {
		if id == "" {
			details = append(details, model.FieldError{Field: field, Code: model.CodeRequired, Message: field + " is required"})
			return model.FormDefinition{}
		}
		f, ok := cat.GetForm(id)
		if !ok {
			details = append(details, model.FieldError{Field: field, Code: model.CodeRefNotFound, Message: fmt.Sprintf("form %q not found", id)})
		}
		return f
	}
	source = lookup("source_form_id", req.SourceFormID)
	target = lookup("target_form_id", req.TargetFormID)
	if len(details) > 0 {
		return source, target, model.NewValidationError(details)
	}
	return source, target, nil
}

// handleAutoMap proposes mappings between two forms.
func handleAutoMap(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body formPairRequest
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		source, target, err := body.forms(cat)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"mappings": mapping.AutoMap(source.Fields, target.Fields),
		})
	}
}

// handleResolveMappings checks a list of field pairs between two forms.
// Problems are part of the 200 response so editors can show them inline.
func handleResolveMappings(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body formPairRequest
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		source, target, err := body.forms(cat)
		if err != nil {
			WriteError(w, err)
			return
		}

		set, errs := mapping.Resolve(body.Mappings, &source, &target)
		errs = append(errs, set.Validate()...)
		if errs == nil {
			errs = []model.FieldError{}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"mappings": set.Mappings(),
			"valid":    len(errs) == 0,
			"errors":   errs,
		})
	}
}

func handleValueSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := model.FieldType(r.URL.Query().Get("target_type"))
		if target == "" {
			WriteValidationError(w, []model.FieldError{{Field: "target_type", Code: model.CodeRequired, Message: "target_type is required"}})
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"target_type": target, "sources": mapping.ValueSources(target)})
	}
}
