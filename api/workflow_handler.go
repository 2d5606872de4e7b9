package api

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/certvine/certflow/id"
	"github.com/certvine/certflow/instance"
)

// StartWorkflowRequest is the body of POST /api/v1/workflows.
type StartWorkflowRequest struct {
	OwnerRef          string            `json:"owner_ref"`
	CertificationRef  string            `json:"certification_ref"`
	RequestParameters map[string]string `json:"request_parameters,omitempty"`
}

// ResumeWorkflowRequest is the body of POST /api/v1/workflows/:id/resume.
type ResumeWorkflowRequest struct {
	ExternalRef string `json:"external_ref"`
}

// startWorkflow creates an instance and advances it until it suspends,
// completes, or fails. The instance is returned even when a stage
// failed: the failure is part of the durable record, not of the request.
func (a *API) startWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	var req StartWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
	}
	if req.OwnerRef == "" || req.CertificationRef == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "owner_ref and certification_ref are required"})
	}

	inst, err := a.orch.Start(ctx, req.OwnerRef, req.CertificationRef, req.RequestParameters)
	if err != nil && (inst == nil || isRequestError(err)) {
		return httpError(err)
	}
	if err != nil {
		a.logger.Warn("workflow failed during initial advancement",
			slog.String("instance_id", inst.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return c.JSON(http.StatusCreated, inst)
}

// getWorkflow returns the full durable record of one instance.
func (a *API) getWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	instID, err := id.ParseInstanceID(c.Param("workflowId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "invalid workflow id: " + err.Error()})
	}

	inst, err := a.orch.Get(ctx, instID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, inst)
}

// listWorkflows returns instances, optionally filtered by status.
func (a *API) listWorkflows(c echo.Context) error {
	ctx := c.Request().Context()

	opts := instance.ListOpts{Status: instance.Status(c.QueryParam("status"))}
	if err := echo.QueryParamsBinder(c).
		Int("limit", &opts.Limit).
		Int("offset", &opts.Offset).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "invalid query parameters"})
	}

	instances, err := a.orch.List(ctx, opts)
	if err != nil {
		return httpError(err)
	}
	if instances == nil {
		instances = []*instance.Instance{}
	}
	return c.JSON(http.StatusOK, instances)
}

// resumeWorkflow supplies the external results reference to a suspended
// instance and continues it.
func (a *API) resumeWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	instID, err := id.ParseInstanceID(c.Param("workflowId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "invalid workflow id: " + err.Error()})
	}

	var req ResumeWorkflowRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
	}
	if req.ExternalRef == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "external_ref is required"})
	}

	inst, err := a.orch.Resume(ctx, instID, req.ExternalRef)
	if err != nil && (inst == nil || isRequestError(err)) {
		return httpError(err)
	}
	if err != nil {
		a.logger.Warn("workflow failed after resume",
			slog.String("instance_id", inst.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return c.JSON(http.StatusOK, inst)
}

// advanceWorkflow re-drives an active instance, for example after a
// process restart left it mid-flight.
func (a *API) advanceWorkflow(c echo.Context) error {
	ctx := c.Request().Context()

	instID, err := id.ParseInstanceID(c.Param("workflowId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errorResponse{Error: "invalid workflow id: " + err.Error()})
	}

	inst, err := a.orch.Advance(ctx, instID)
	if err != nil && (inst == nil || isRequestError(err)) {
		return httpError(err)
	}
	if err != nil {
		a.logger.Warn("workflow failed during advancement",
			slog.String("instance_id", inst.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	return c.JSON(http.StatusOK, inst)
}

func (a *API) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
