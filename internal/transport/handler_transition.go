package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/graph"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/lifecycle"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/options"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

type transitionRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (req transitionRequest) validate() error {
	var details []model.FieldError
	if req.From == "" {
		details = append(details, model.FieldError{Field: "from", Code: model.CodeRequired, Message: "from is required"})
	}
	if req.To == "" {
		details = append(details, model.FieldError{Field: "to", Code: model.CodeRequired, Message: "to is required"})
	}
	if len(details) > 0 {
		return model.NewValidationError(details)
	}
	return nil
}

func handleGetTransitions(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := svc.Rules(r.Context(), chi.URLParam(r, "fieldId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rs)
	}
}

// pairEdit handles the endpoints that take a {from,to} body.
func pairEdit(edit func(*lifecycle.Service, *http.Request, string, transitionRequest) (lifecycle.RuleSet, error), svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body transitionRequest
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if err := body.validate(); err != nil {
			WriteError(w, err)
			return
		}
		rs, err := edit(svc, r, chi.URLParam(r, "fieldId"), body)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rs)
	}
}

func handleAddTransition(svc *lifecycle.Service) http.HandlerFunc {
	return pairEdit(func(s *lifecycle.Service, r *http.Request, fieldID string, t transitionRequest) (lifecycle.RuleSet, error) {
		return s.AddTransition(r.Context(), fieldID, t.From, t.To)
	}, svc)
}

func handleRemoveTransition(svc *lifecycle.Service) http.HandlerFunc {
	return pairEdit(func(s *lifecycle.Service, r *http.Request, fieldID string, t transitionRequest) (lifecycle.RuleSet, error) {
		return s.RemoveTransition(r.Context(), fieldID, t.From, t.To)
	}, svc)
}

// wholeEdit handles the endpoints that take no body.
func wholeEdit(edit func(*lifecycle.Service, *http.Request, string) (lifecycle.RuleSet, error), svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rs, err := edit(svc, r, chi.URLParam(r, "fieldId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rs)
	}
}

func handleSequentialFlow(svc *lifecycle.Service) http.HandlerFunc {
	return wholeEdit(func(s *lifecycle.Service, r *http.Request, fieldID string) (lifecycle.RuleSet, error) {
		return s.SequentialFlow(r.Context(), fieldID)
	}, svc)
}

func handleClearTransitions(svc *lifecycle.Service) http.HandlerFunc {
	return wholeEdit(func(s *lifecycle.Service, r *http.Request, fieldID string) (lifecycle.RuleSet, error) {
		return s.ClearTransitions(r.Context(), fieldID)
	}, svc)
}

func handlePruneTransitions(svc *lifecycle.Service) http.HandlerFunc {
	return wholeEdit(func(s *lifecycle.Service, r *http.Request, fieldID string) (lifecycle.RuleSet, error) {
		return s.PruneTransitions(r.Context(), fieldID)
	}, svc)
}

func handleSetLifecycle(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Enabled *bool `json:"enabled"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if body.Enabled == nil {
			WriteValidationError(w, []model.FieldError{{Field: "enabled", Code: model.CodeRequired, Message: "enabled is required"}})
			return
		}
		rs, err := svc.SetLifecycle(r.Context(), chi.URLParam(r, "fieldId"), *body.Enabled)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rs)
	}
}

func handleCheckTransition(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body transitionRequest
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		if err := body.validate(); err != nil {
			WriteError(w, err)
			return
		}
		d, err := svc.CheckTransition(r.Context(), chi.URLParam(r, "fieldId"), body.From, body.To)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, d)
	}
}

// handleTransitionGraph renders the field's rules as a Mermaid flowchart.
// With ?record_id the record's current stage and past stages are
// highlighted. ?format=json wraps the chart in a JSON object.
func handleTransitionGraph(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		fieldID := chi.URLParam(r, "fieldId")

		rs, err := svc.Rules(ctx, fieldID)
		if err != nil {
			WriteError(w, err)
			return
		}

		var overlay *graph.Overlay
		if recordID := r.URL.Query().Get("record_id"); recordID != "" {
			rec, err := svc.GetRecord(ctx, recordID)
			if err != nil {
				WriteError(w, err)
				return
			}
			history, err := svc.History(ctx, recordID)
			if err != nil {
				WriteError(w, err)
				return
			}
			overlay = &graph.Overlay{}
			if v, ok := rec.Data[fieldID]; ok && v != nil {
				overlay.CurrentStage = options.Key(v)
			}
			for _, c := range history {
				if c.FieldID == fieldID {
					overlay.VisitedStages = append(overlay.VisitedStages, c.From)
				}
			}
		}

		chart := graph.Transitions(rs.Options, rs.Rules, overlay)
		if r.URL.Query().Get("format") == "json" {
			WriteJSON(w, http.StatusOK, map[string]any{"field_id": fieldID, "mermaid": chart})
			return
		}
		WriteText(w, http.StatusOK, chart)
	}
}
