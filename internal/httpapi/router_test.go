package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/yt-assistant/internal/ai"
	"github.com/suPer8Hu/yt-assistant/internal/chat"
	"github.com/suPer8Hu/yt-assistant/internal/httpapi/handlers"
	"github.com/suPer8Hu/yt-assistant/internal/prompt"
	"github.com/suPer8Hu/yt-assistant/internal/transcript"
	"github.com/suPer8Hu/yt-assistant/internal/youtube"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	if videoID == "abc" {
		return "hello world", nil
	}
	return "", &youtube.TranscriptError{VideoID: videoID, Err: errors.New("Video unavailable")}
}

type stubCompleter struct {
	reply string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, messages []ai.Message) (string, error) {
	return s.reply, s.err
}

type stubExchanges struct {
	videoID string
	limit   int
}

func (s *stubExchanges) ListExchangesByVideo(ctx context.Context, videoID string, limit int) ([]chat.Exchange, error) {
	s.videoID = videoID
	s.limit = limit
	return []chat.Exchange{{ID: "01J00000000000000000000000", VideoID: videoID, Operation: chat.OpAsk, Status: chat.ExchangeSucceeded}}, nil
}

func newTestRouter(completer *stubCompleter, exchanges handlers.ExchangeLister) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := chat.NewService(transcript.NewCache(stubFetcher{}, nil), completer, prompt.NewBuilder(prompt.Instructions{}), nil)
	return NewRouter(handlers.NewHandler(svc, exchanges, nil), nil)
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var b errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	return b
}

func TestTranscript_OK(t *testing.T) {
	r := newTestRouter(&stubCompleter{}, nil)

	w := doJSON(r, http.MethodPost, "/transcript", `{"url":"https://www.youtube.com/watch?v=abc"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Transcript string `json:"transcript"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hello world", resp.Transcript)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestTranscript_UpstreamError(t *testing.T) {
	r := newTestRouter(&stubCompleter{}, nil)

	w := doJSON(r, http.MethodPost, "/transcript", `{"url":"https://www.youtube.com/watch?v=nonexistent"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	b := decodeError(t, w)
	assert.Equal(t, 40003, b.Code)
	assert.Equal(t, "Video unavailable", b.Message)
	assert.Nil(t, b.Data)
}

func TestInvalidJSON(t *testing.T) {
	r := newTestRouter(&stubCompleter{}, nil)

	for _, tc := range []struct{ path, body string }{
		{"/transcript", `{"url":`},
		{"/transcript", `{}`},
		{"/ask", `{"url":"abc"}`},
		{"/action", `{"url":"abc"}`},
		{"/suggested_questions", `[]`},
	} {
		w := doJSON(r, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.path+" "+tc.body)
		assert.Equal(t, 10001, decodeError(t, w).Code)
	}
}

func TestAsk_OK(t *testing.T) {
	r := newTestRouter(&stubCompleter{reply: "Because."}, nil)

	w := doJSON(r, http.MethodPost, "/ask", `{"url":"abc","question":"Why?","chat_history":[{"role":"user","content":"Hi"},{"role":"assistant","content":"Hello"}]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Answer         string       `json:"answer"`
		UpdatedHistory []ai.Message `json:"updated_history"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Because.", resp.Answer)
	require.Len(t, resp.UpdatedHistory, 6)
	assert.Equal(t, "Hi", resp.UpdatedHistory[2].Content)
	assert.Equal(t, ai.Message{Role: "assistant", Content: "Because."}, resp.UpdatedHistory[5])
}

func TestAsk_EmptyHistoryOptional(t *testing.T) {
	r := newTestRouter(&stubCompleter{reply: "ok"}, nil)

	w := doJSON(r, http.MethodPost, "/ask", `{"url":"abc","question":"Why?"}`)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAction_Invalid(t *testing.T) {
	r := newTestRouter(&stubCompleter{reply: "unused"}, nil)

	w := doJSON(r, http.MethodPost, "/action", `{"url":"abc","action":"translate"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	b := decodeError(t, w)
	assert.Equal(t, 40002, b.Code)
	assert.Equal(t, "Invalid action", b.Message)
}

func TestAction_OK(t *testing.T) {
	r := newTestRouter(&stubCompleter{reply: "Summary."}, nil)

	w := doJSON(r, http.MethodPost, "/action", `{"url":"abc","action":"key-points"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":"Summary."}`, w.Body.String())
}

func TestSuggestedQuestions_OK(t *testing.T) {
	r := newTestRouter(&stubCompleter{reply: "Q1?\n\nQ2?\n"}, nil)

	w := doJSON(r, http.MethodPost, "/suggested_questions", `{"url":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"questions":["Q1?","Q2?"]}`, w.Body.String())
}

func TestCompletionError_BadGateway(t *testing.T) {
	r := newTestRouter(&stubCompleter{err: &ai.CompletionError{Provider: "openai", StatusCode: 401, Message: "Incorrect API key provided"}}, nil)

	w := doJSON(r, http.MethodPost, "/suggested_questions", `{"url":"abc"}`)
	require.Equal(t, http.StatusBadGateway, w.Code)

	b := decodeError(t, w)
	assert.Equal(t, 50201, b.Code)
	assert.Contains(t, b.Message, "Incorrect API key provided")
}

func TestCompletionError_Timeout(t *testing.T) {
	r := newTestRouter(&stubCompleter{err: &ai.CompletionError{Provider: "openai", Message: "completion request timed out", Err: context.DeadlineExceeded}}, nil)

	w := doJSON(r, http.MethodPost, "/ask", `{"url":"abc","question":"q"}`)
	require.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Equal(t, 50401, decodeError(t, w).Code)
}

func TestUnexpectedError_Internal(t *testing.T) {
	r := newTestRouter(&stubCompleter{err: errors.New("boom")}, nil)

	w := doJSON(r, http.MethodPost, "/action", `{"url":"abc","action":"explain"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 50001, decodeError(t, w).Code)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	r := newTestRouter(&stubCompleter{}, nil)

	w := doJSON(r, http.MethodPost, "/nope", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 40400, decodeError(t, w).Code)

	w = doJSON(r, http.MethodGet, "/ask", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, 40500, decodeError(t, w).Code)

	w = doJSON(r, http.MethodGet, "/videos/abc/exchanges", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "exchange listing is off without a database")
}

func TestCORS(t *testing.T) {
	r := newTestRouter(&stubCompleter{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/ask", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodPost, "/transcript", strings.NewReader(`{"url":"abc"}`))
	req.Header.Set("Origin", "https://example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDHonorsInbound(t *testing.T) {
	r := newTestRouter(&stubCompleter{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))
	assert.JSONEq(t, `{"message":"pong"}`, w.Body.String())
}

func TestListExchanges(t *testing.T) {
	ex := &stubExchanges{}
	r := newTestRouter(&stubCompleter{}, ex)

	w := doJSON(r, http.MethodGet, "/videos/abc/exchanges?limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", ex.videoID)
	assert.Equal(t, 50, ex.limit)

	var resp struct {
		Exchanges []chat.Exchange `json:"exchanges"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Exchanges, 1)
	assert.Equal(t, chat.OpAsk, resp.Exchanges[0].Operation)

	w = doJSON(r, http.MethodGet, "/videos/abc/exchanges?limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, ex.limit)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(&stubCompleter{}, nil)
	_ = doJSON(r, http.MethodPost, "/transcript", `{"url":"abc"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ytassistant_http_requests_total")
}
