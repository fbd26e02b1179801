package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/lifecycle"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func handleCreateRecord(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Values map[string]any `json:"values"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}

		rec, err := svc.CreateRecord(r.Context(), chi.URLParam(r, "formId"), body.Values)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, rec)
	}
}

func handleListRecords(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := queryInt(r, "limit", defaultPageSize)
		switch {
		case limit <= 0:
			limit = defaultPageSize
		case limit > maxPageSize:
			limit = maxPageSize
		}
		offset := queryInt(r, "offset", 0)
		if offset < 0 {
			offset = 0
		}

		recs, err := svc.ListRecords(r.Context(), chi.URLParam(r, "formId"), limit, offset)
		if err != nil {
			WriteError(w, err)
			return
		}
		if recs == nil {
			recs = []model.Record{}
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"data":   recs,
			"limit":  limit,
			"offset": offset,
		})
	}
}

func handleGetRecord(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := svc.GetRecord(r.Context(), chi.URLParam(r, "recordId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, rec)
	}
}

func handleChangeStage(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			FieldID string `json:"field_id"`
			To      string `json:"to"`
		}
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		var details []model.FieldError
		if body.FieldID == "" {
			details = append(details, model.FieldError{Field: "field_id", Code: model.CodeRequired, Message: "field_id is required"})
		}
		if body.To == "" {
			details = append(details, model.FieldError{Field: "to", Code: model.CodeRequired, Message: "to is required"})
		}
		if len(details) > 0 {
			WriteValidationError(w, details)
			return
		}

		res, err := svc.ChangeStage(r.Context(), chi.URLParam(r, "recordId"), body.FieldID, body.To)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}

func handleRecordHistory(svc *lifecycle.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		changes, err := svc.History(r.Context(), chi.URLParam(r, "recordId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": changes})
	}
}
