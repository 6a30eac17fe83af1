package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/chat"
)

// ExchangeLister reads the exchange log.
type ExchangeLister interface {
	ListExchangesByVideo(ctx context.Context, videoID string, limit int) ([]chat.Exchange, error)
}

type Handler struct {
	ChatSvc   *chat.Service
	Exchanges ExchangeLister
	Logger    *zap.Logger
}

// NewHandler builds the HTTP handlers. exchanges may be nil when the
// exchange log is disabled.
func NewHandler(svc *chat.Service, exchanges ExchangeLister, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ChatSvc: svc, Exchanges: exchanges, Logger: logger}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}
