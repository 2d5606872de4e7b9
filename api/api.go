// Package api exposes the workflow engine over HTTP. Routes are plain
// JSON over echo; error kinds map onto status codes so clients can
// distinguish rejected requests from failed workflows.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"github.com/certvine/certflow"
	"github.com/certvine/certflow/orchestrator"
)

// API wires the HTTP handlers for the workflow engine.
type API struct {
	orch   *orchestrator.Orchestrator
	logger *slog.Logger
}

// New creates an API serving the given orchestrator.
func New(orch *orchestrator.Orchestrator, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{orch: orch, logger: logger}
}

// Handler returns the fully assembled http.Handler with all routes and
// middleware.
func (a *API) Handler() http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware("certflow"))
	a.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers all workflow routes into the given echo
// instance.
func (a *API) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/v1")

	g.POST("/workflows", a.startWorkflow)
	g.GET("/workflows", a.listWorkflows)
	g.GET("/workflows/:workflowId", a.getWorkflow)
	g.POST("/workflows/:workflowId/resume", a.resumeWorkflow)
	g.POST("/workflows/:workflowId/advance", a.advanceWorkflow)

	e.GET("/healthz", a.health)
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// httpError maps engine errors onto HTTP status codes. Not-found maps
// to 404; precondition and resume-validation failures map to 409 since
// the request conflicts with the instance's current state.
func httpError(err error) error {
	switch {
	case errors.Is(err, certflow.ErrInstanceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, certflow.ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, errorResponse{Error: err.Error()})
	}

	switch kind := certflow.KindOf(err); kind {
	case certflow.KindPreconditionFailed, certflow.KindInvalidResume:
		return echo.NewHTTPError(http.StatusConflict, errorResponse{Error: err.Error(), Kind: string(kind)})
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, errorResponse{Error: err.Error(), Kind: string(kind)})
	}
}

// isRequestError reports whether err describes a rejected request, as
// opposed to a stage-execution failure that is recorded on the instance.
func isRequestError(err error) bool {
	switch certflow.KindOf(err) {
	case certflow.KindPreconditionFailed, certflow.KindInvalidResume:
		return true
	}
	return false
}
