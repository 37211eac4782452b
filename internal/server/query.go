package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ebahrami/underthreat/internal/workflow"
	"github.com/ebahrami/underthreat/models"
)

// QueryHandler serves workflow runs.
type QueryHandler struct {
	Engine *workflow.Engine
}

// Register mounts the handler's routes on a group.
func (h *QueryHandler) Register(g *echo.Group) {
	g.POST("/query", h.handleQuery)
}

type queryRequest struct {
	Query        string               `json:"query"`
	WritePayload *models.WritePayload `json:"write_payload,omitempty"`
}

type queryResponse struct {
	RequestID      string            `json:"request_id"`
	RouteDecision  string            `json:"route_decision"`
	RouteReasons   []string          `json:"route_reasons,omitempty"`
	UIModel        *models.UISummary `json:"ui_model"`
	MarkdownReport string            `json:"markdown_report"`
	Warnings       []string          `json:"warnings,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
}

func (h *QueryHandler) handleQuery(c echo.Context) error {
	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	st, err := h.Engine.Run(c.Request().Context(), workflow.Request{
		Query:        req.Query,
		WritePayload: req.WritePayload,
	})
	if err != nil {
		if errors.Is(err, workflow.ErrNoUserInput) {
			return echo.NewHTTPError(http.StatusBadRequest, "query must not be blank")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, queryResponse{
		RequestID:      st.RequestID,
		RouteDecision:  st.RouteDecision,
		RouteReasons:   st.RouteReasons,
		UIModel:        st.UISummary,
		MarkdownReport: st.MarkdownReport,
		Warnings:       st.Warnings,
		Errors:         st.Errors,
	})
}
