package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/graph"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/workflow"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

type workflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	NodeCount   int    `json:"node_count"`
}

func handleListWorkflows(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		defs := cat.AllWorkflows()
		out := make([]workflowSummary, len(defs))
		for i, d := range defs {
			out[i] = workflowSummary{ID: d.ID, Name: d.Name, Description: d.Description, NodeCount: len(d.Nodes)}
		}
		WriteJSON(w, http.StatusOK, map[string]any{"data": out})
	}
}

func handleGetWorkflow(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, err := lookupWorkflow(cat, chi.URLParam(r, "workflowId"), nil)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, def)
	}
}

// lookupWorkflow returns draft when it carries nodes, otherwise the loaded
// definition of workflowID.
func lookupWorkflow(cat Catalogue, workflowID string, draft *model.WorkflowDefinition) (model.WorkflowDefinition, error) {
	if draft != nil && len(draft.Nodes) > 0 {
		def := *draft
		if def.ID == "" {
			def.ID = workflowID
		}
		return def, nil
	}
	def, ok := cat.GetWorkflow(workflowID)
	if !ok {
		return model.WorkflowDefinition{}, model.NewNotFoundError(fmt.Sprintf("workflow %q not found", workflowID))
	}
	return def, nil
}

type validationResponse struct {
	WorkflowID string             `json:"workflow_id"`
	Valid      bool               `json:"valid"`
	Errors     []model.FieldError `json:"errors"`
}

// handleValidateWorkflow validates the loaded workflow, or the draft in the
// request body when one is sent. Problems are part of the 200 response.
func handleValidateWorkflow(cat Catalogue, v *workflow.Validator, m *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft model.WorkflowDefinition
		if err := decodeBody(w, r, &draft); err != nil {
			WriteError(w, err)
			return
		}
		def, err := lookupWorkflow(cat, chi.URLParam(r, "workflowId"), &draft)
		if err != nil {
			WriteError(w, err)
			return
		}

		errs := v.ValidateWorkflow(def, cat)
		result := "valid"
		if len(errs) > 0 {
			result = "invalid"
		} else {
			errs = []model.FieldError{}
		}
		m.RecordWorkflowValidation(def.ID, result)

		WriteJSON(w, http.StatusOK, validationResponse{WorkflowID: def.ID, Valid: len(errs) == 0, Errors: errs})
	}
}

func handleWorkflowGraph(cat Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		def, err := lookupWorkflow(cat, chi.URLParam(r, "workflowId"), nil)
		if err != nil {
			WriteError(w, err)
			return
		}
		chart := graph.Workflow(def)
		if r.URL.Query().Get("format") == "json" {
			WriteJSON(w, http.StatusOK, map[string]any{"workflow_id": def.ID, "mermaid": chart})
			return
		}
		WriteText(w, http.StatusOK, chart)
	}
}

type previewRequest struct {
	workflow.PreviewInput
	Workflow *model.WorkflowDefinition `json:"workflow,omitempty"`
}

// handlePreviewNode computes what a record-writing node would produce for
// sample input. Nothing is persisted.
func handlePreviewNode(cat Catalogue, v *workflow.Validator, m *observability.Metrics, now func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body previewRequest
		if err := decodeBody(w, r, &body); err != nil {
			WriteError(w, err)
			return
		}
		def, err := lookupWorkflow(cat, chi.URLParam(r, "workflowId"), body.Workflow)
		if err != nil {
			WriteError(w, err)
			return
		}

		nodeID := chi.URLParam(r, "nodeId")
		nodeType := "unknown"
		for _, n := range def.Nodes {
			if n.ID == nodeID {
				nodeType = n.Type
				break
			}
		}

		observability.RequestLogger(r.Context(), zap.NewNop()).Debug("previewing workflow node",
			zap.String("workflow_id", def.ID),
			zap.String("node_id", nodeID),
			zap.Any("trigger", observability.RedactValues(body.Trigger, workflow.TriggerForm(def, cat))),
		)

		res, err := v.Preview(def, nodeID, cat, body.PreviewInput, model.RequestContextFrom(r.Context()), now())
		if err != nil {
			m.RecordWorkflowPreview(nodeType, "error")
			WriteError(w, err)
			return
		}
		m.RecordWorkflowPreview(nodeType, "ok")
		WriteJSON(w, http.StatusOK, res)
	}
}
