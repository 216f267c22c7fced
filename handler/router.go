package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tieubaoca/tables-retriever/metrics"
	"github.com/tieubaoca/tables-retriever/service"
	"github.com/tieubaoca/tables-retriever/types"
)

// NewRouter mounts the query API, the websocket endpoint, health and
// metrics on a gin engine.
func NewRouter(queries *service.QueryService, modules types.ModulesResponse, m *metrics.Metrics) *gin.Engine {
	corsHandler := NewCorsHandler("*")
	queryHandler := NewQueryHandler(queries, modules)
	wsService := service.NewWebSocketService(queries)

	router := gin.New()
	router.Use(gin.Recovery(), corsHandler.CorsMiddleware)

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/query", queryHandler.HandleQuery)
		apiV1.GET("/modules", queryHandler.HandleModules)
		apiV1.GET("/queries", queryHandler.HandleRecentQueries)
		apiV1.GET("/ws", func(c *gin.Context) {
			wsService.HandleQuery(c.Writer, c.Request)
		})
	}
	return router
}
