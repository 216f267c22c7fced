package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/tables-retriever/service"
	"github.com/tieubaoca/tables-retriever/types"
)

type QueryHandler interface {
	HandleQuery(c *gin.Context)
	HandleModules(c *gin.Context)
	HandleRecentQueries(c *gin.Context)
}

type queryHandler struct {
	queries *service.QueryService
	modules types.ModulesResponse
}

func NewQueryHandler(queries *service.QueryService, modules types.ModulesResponse) QueryHandler {
	return &queryHandler{
		queries: queries,
		modules: modules,
	}
}

func (h *queryHandler) HandleQuery(c *gin.Context) {
	var req types.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	res, err := h.queries.Query(c.Request.Context(), req.Query)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrEmptyQuery) {
			status = http.StatusBadRequest
		}
		c.JSON(status, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   res,
	})
}

func (h *queryHandler) HandleModules(c *gin.Context) {
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   h.modules,
	})
}

func (h *queryHandler) HandleRecentQueries(c *gin.Context) {
	var req types.PaginateQueryLogRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid query parameters",
		})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 20
	}

	logs, err := h.queries.RecentQueries(c.Request.Context(), req.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   logs,
	})
}
