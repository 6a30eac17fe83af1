package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/ai"
	"github.com/suPer8Hu/yt-assistant/internal/common"
	"github.com/suPer8Hu/yt-assistant/internal/metrics"
	"github.com/suPer8Hu/yt-assistant/internal/prompt"
	"github.com/suPer8Hu/yt-assistant/internal/youtube"
)

// TranscriptCache resolves a video id to its transcript, fetching on a miss.
type TranscriptCache interface {
	GetOrFetch(ctx context.Context, videoID string) (string, error)
}

// Completer turns a message sequence into the model's reply.
type Completer interface {
	Complete(ctx context.Context, messages []ai.Message) (string, error)
}

// Recorder persists finished exchanges. Implemented by *Repo (direct) and
// the rabbitmq publisher (queued).
type Recorder interface {
	RecordExchange(ctx context.Context, e *Exchange) error
}

const recordTimeout = 5 * time.Second

// Service runs the four video operations: resolve the video id, load the
// transcript, build the prompt, dispatch it and shape the result.
type Service struct {
	transcripts TranscriptCache
	completer   Completer
	prompts     *prompt.Builder
	recorder    Recorder
	sink        string
	logger      *zap.Logger
}

func NewService(transcripts TranscriptCache, completer Completer, prompts *prompt.Builder, logger *zap.Logger) *Service {
	if prompts == nil {
		prompts = prompt.NewBuilder(prompt.Instructions{})
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		transcripts: transcripts,
		completer:   completer,
		prompts:     prompts,
		logger:      logger,
	}
}

// SetRecorder enables the exchange log. sink labels the metrics
// ("db" or "queue").
func (s *Service) SetRecorder(r Recorder, sink string) {
	s.recorder = r
	s.sink = sink
}

func (s *Service) FetchTranscript(ctx context.Context, url string) (string, error) {
	start := time.Now()
	videoID := youtube.ExtractVideoID(url)

	transcript, err := s.transcripts.GetOrFetch(ctx, videoID)
	s.record(ctx, &Exchange{
		VideoID:   videoID,
		Operation: OpTranscript,
		Result:    transcript,
	}, start, err)
	return transcript, err
}

// Ask answers question against the video. The returned history is every
// message sent to the model followed by the assistant's answer.
func (s *Service) Ask(ctx context.Context, url, question string, history []ai.Message) (string, []ai.Message, error) {
	start := time.Now()
	videoID := youtube.ExtractVideoID(url)
	ex := &Exchange{VideoID: videoID, Operation: OpAsk, Question: question}

	transcript, err := s.transcripts.GetOrFetch(ctx, videoID)
	if err != nil {
		s.record(ctx, ex, start, err)
		return "", nil, err
	}

	msgs := s.prompts.Ask(transcript, history, question)
	answer, err := s.completer.Complete(ctx, msgs)
	if err != nil {
		s.record(ctx, ex, start, err)
		return "", nil, err
	}

	ex.Result = answer
	s.record(ctx, ex, start, nil)
	return answer, append(msgs, ai.Message{Role: ai.RoleAssistant, Content: answer}), nil
}

// PerformAction runs one of the fixed analysis tasks. The transcript is
// loaded (and cached) first, so a bad video reports its transcript error even
// when the action is also unknown. An unknown action never reaches the model.
func (s *Service) PerformAction(ctx context.Context, url, action string) (string, error) {
	start := time.Now()
	videoID := youtube.ExtractVideoID(url)
	ex := &Exchange{VideoID: videoID, Operation: OpAction, Action: action}

	transcript, err := s.transcripts.GetOrFetch(ctx, videoID)
	if err != nil {
		s.record(ctx, ex, start, err)
		return "", err
	}

	msgs, err := s.prompts.Action(transcript, action)
	if err != nil {
		s.record(ctx, ex, start, err)
		return "", err
	}

	result, err := s.completer.Complete(ctx, msgs)
	if err != nil {
		s.record(ctx, ex, start, err)
		return "", err
	}

	ex.Result = result
	s.record(ctx, ex, start, nil)
	return result, nil
}

func (s *Service) SuggestQuestions(ctx context.Context, url string) ([]string, error) {
	start := time.Now()
	videoID := youtube.ExtractVideoID(url)
	ex := &Exchange{VideoID: videoID, Operation: OpSuggest}

	transcript, err := s.transcripts.GetOrFetch(ctx, videoID)
	if err != nil {
		s.record(ctx, ex, start, err)
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, s.prompts.Suggest(transcript))
	if err != nil {
		s.record(ctx, ex, start, err)
		return nil, err
	}

	ex.Result = reply
	s.record(ctx, ex, start, nil)
	return SplitQuestions(reply), nil
}

// SplitQuestions splits a model reply into trimmed, non-empty lines. Lines
// are not otherwise checked, so numbering or bullets are kept.
func SplitQuestions(reply string) []string {
	lines := strings.Split(reply, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if q := strings.TrimSpace(l); q != "" {
			out = append(out, q)
		}
	}
	return out
}

func (s *Service) record(ctx context.Context, ex *Exchange, start time.Time, opErr error) {
	if s.recorder == nil {
		return
	}
	ex.RequestID = clip(common.RequestIDFromContext(ctx), 64)
	ex.VideoID = clip(ex.VideoID, 255)
	ex.Action = clip(ex.Action, 32)
	ex.DurationMs = time.Since(start).Milliseconds()
	ex.Status = ExchangeSucceeded
	if opErr != nil {
		ex.Status = ExchangeFailed
		msg := opErr.Error()
		ex.Error = &msg
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := s.recorder.RecordExchange(rctx, ex); err != nil {
		metrics.ExchangesRecordedTotal.WithLabelValues(s.sink, metrics.StatusError).Inc()
		s.logger.Warn("record exchange failed",
			zap.String("request_id", ex.RequestID),
			zap.String("video_id", ex.VideoID),
			zap.String("operation", string(ex.Operation)),
			zap.Error(err),
		)
		return
	}
	metrics.ExchangesRecordedTotal.WithLabelValues(s.sink, metrics.StatusSuccess).Inc()
}

// clip truncates s to at most n bytes without splitting a rune.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
