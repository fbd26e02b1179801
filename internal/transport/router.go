package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/config"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/lifecycle"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/observability"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/internal/workflow"
	"github.com/Stelujin-Datacraft/topsqill-itsm-12-sub005/model"
)

// Catalogue is the read side of the definition registry.
type Catalogue interface {
	GetForm(formID string) (model.FormDefinition, bool)
	GetField(fieldID string) (model.FieldDescriptor, bool)
	GetWorkflow(workflowID string) (model.WorkflowDefinition, bool)
	AllForms() []model.FormDefinition
	AllWorkflows() []model.WorkflowDefinition
	Loaded() bool
}

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config    *config.Config
	Catalogue Catalogue
	Lifecycle *lifecycle.Service
	Workflows *workflow.Validator
	Metrics   *observability.Metrics
	Store     observability.Pinger
	Logger    *zap.Logger
	Now       func() time.Time
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints skip
// tracing and request logging.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Workflows == nil {
		deps.Workflows = workflow.NewValidator()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	var checksum func() string
	if c, ok := deps.Catalogue.(interface{ Checksum() string }); ok {
		checksum = c.Checksum
	}
	r.Get("/health", observability.HandleHealth(checksum))
	r.Get("/ready", observability.HandleReady(observability.ReadinessChecks{
		DefinitionsLoaded: deps.Catalogue.Loaded,
		Store:             deps.Store,
	}))
	if m := deps.Config.Observability.Metrics; m.Enabled {
		r.Handle(m.Path, observability.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(BuildRequestContext(logger))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Get("/forms", handleListForms(deps.Catalogue))
		r.Get("/forms/{formId}", handleGetForm(deps.Catalogue))
		r.Get("/forms/{formId}/fields", handleListFields(deps.Catalogue, deps.Lifecycle))
		r.Get("/forms/{formId}/fields/compatible", handleCompatibleFields(deps.Catalogue))
		r.Post("/compatibility", handleCompatibility(deps.Metrics))
		r.Post("/mappings/auto", handleAutoMap(deps.Catalogue))
		r.Post("/mappings/resolve", handleResolveMappings(deps.Catalogue))
		r.Get("/value-sources", handleValueSources())

		r.Route("/fields/{fieldId}/transitions", func(r chi.Router) {
			r.Get("/", handleGetTransitions(deps.Lifecycle))
			r.Post("/", handleAddTransition(deps.Lifecycle))
			r.Delete("/", handleRemoveTransition(deps.Lifecycle))
			r.Post("/sequential", handleSequentialFlow(deps.Lifecycle))
			r.Post("/clear", handleClearTransitions(deps.Lifecycle))
			r.Post("/prune", handlePruneTransitions(deps.Lifecycle))
			r.Post("/check", handleCheckTransition(deps.Lifecycle))
			r.Get("/graph", handleTransitionGraph(deps.Lifecycle))
		})
		r.Put("/fields/{fieldId}/lifecycle", handleSetLifecycle(deps.Lifecycle))

		r.Post("/forms/{formId}/records", handleCreateRecord(deps.Lifecycle))
		r.Get("/forms/{formId}/records", handleListRecords(deps.Lifecycle))
		r.Get("/records/{recordId}", handleGetRecord(deps.Lifecycle))
		r.Post("/records/{recordId}/stage", handleChangeStage(deps.Lifecycle))
		r.Get("/records/{recordId}/history", handleRecordHistory(deps.Lifecycle))

		r.Get("/workflows", handleListWorkflows(deps.Catalogue))
		r.Get("/workflows/{workflowId}", handleGetWorkflow(deps.Catalogue))
		r.Post("/workflows/{workflowId}/validate", handleValidateWorkflow(deps.Catalogue, deps.Workflows, deps.Metrics))
		r.Get("/workflows/{workflowId}/graph", handleWorkflowGraph(deps.Catalogue))
		r.Post("/workflows/{workflowId}/nodes/{nodeId}/preview", handlePreviewNode(deps.Catalogue, deps.Workflows, deps.Metrics, deps.Now))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "route not found")
	})
	return r
}
