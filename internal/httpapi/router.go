package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/common"
	"github.com/suPer8Hu/yt-assistant/internal/httpapi/handlers"
	"github.com/suPer8Hu/yt-assistant/internal/httpapi/middleware"
)

func NewRouter(h *handlers.Handler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{common.RequestIDHeader},
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.GET("/ping", h.Ping)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/transcript", h.FetchTranscript)
	r.POST("/ask", h.Ask)
	r.POST("/action", h.PerformAction)
	r.POST("/suggested_questions", h.SuggestQuestions)

	if h.Exchanges != nil {
		r.GET("/videos/:video_id/exchanges", h.ListExchanges)
	}
	return r
}
