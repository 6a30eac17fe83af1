package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/ai"
	"github.com/suPer8Hu/yt-assistant/internal/common"
	"github.com/suPer8Hu/yt-assistant/internal/httpapi/middleware"
	"github.com/suPer8Hu/yt-assistant/internal/prompt"
	"github.com/suPer8Hu/yt-assistant/internal/youtube"
)

// Fields are pointers so that a missing key fails binding while an empty
// string is passed through.
type videoReq struct {
	URL *string `json:"url" binding:"required"`
}

type askReq struct {
	URL         *string      `json:"url" binding:"required"`
	Question    *string      `json:"question" binding:"required"`
	ChatHistory []ai.Message `json:"chat_history"`
}

type actionReq struct {
	URL    *string `json:"url" binding:"required"`
	Action *string `json:"action" binding:"required"`
}

func (h *Handler) FetchTranscript(c *gin.Context) {
	var req videoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	transcript, err := h.ChatSvc.FetchTranscript(c.Request.Context(), *req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"transcript": transcript})
}

func (h *Handler) Ask(c *gin.Context) {
	var req askReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	history := req.ChatHistory
	if history == nil {
		history = []ai.Message{}
	}
	answer, updated, err := h.ChatSvc.Ask(c.Request.Context(), *req.URL, *req.Question, history)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"answer":          answer,
		"updated_history": updated,
	})
}

func (h *Handler) PerformAction(c *gin.Context) {
	var req actionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	result, err := h.ChatSvc.PerformAction(c.Request.Context(), *req.URL, *req.Action)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"result": result})
}

func (h *Handler) SuggestQuestions(c *gin.Context) {
	var req videoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	questions, err := h.ChatSvc.SuggestQuestions(c.Request.Context(), *req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"questions": questions})
}

func (h *Handler) ListExchanges(c *gin.Context) {
	if h.Exchanges == nil {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	out, err := h.Exchanges.ListExchangesByVideo(c.Request.Context(), c.Param("video_id"), limit)
	if err != nil {
		h.Logger.Error("list exchanges failed",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err),
		)
		common.Fail(c, http.StatusInternalServerError, 50002, "db error")
		return
	}
	common.OK(c, gin.H{"exchanges": out})
}

// fail maps service errors to status codes. Upstream messages are passed
// through verbatim.
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		invalid    *prompt.InvalidActionError
		transcript *youtube.TranscriptError
		completion *ai.CompletionError
	)
	switch {
	case errors.As(err, &invalid):
		common.Fail(c, http.StatusBadRequest, 40002, invalid.Error())
	case errors.As(err, &transcript):
		common.Fail(c, http.StatusBadRequest, 40003, transcript.Error())
	case errors.As(err, &completion):
		h.Logger.Warn("completion failed",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Int("upstream_status", completion.StatusCode),
			zap.Error(err),
		)
		if completion.Timeout() {
			common.Fail(c, http.StatusGatewayTimeout, 50401, completion.Error())
			return
		}
		common.Fail(c, http.StatusBadGateway, 50201, completion.Error())
	default:
		h.Logger.Error("request failed",
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal server error")
	}
}
