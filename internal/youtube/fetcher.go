package youtube

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/yt-assistant/internal/metrics"
)

// DefaultLanguages is the caption language preference, most preferred first.
var DefaultLanguages = []string{"en", "en-US", "hi", "es", "fr", "de", "ja", "ko", "ru"}

const DefaultFetchTimeout = 30 * time.Second

// Fetcher turns a video's captions into a single transcript string.
type Fetcher struct {
	source  CaptionSource
	langs   []string
	timeout time.Duration
	logger  *zap.Logger
}

func NewFetcher(source CaptionSource, langs []string, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if len(langs) == 0 {
		langs = DefaultLanguages
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		source:  source,
		langs:   append([]string(nil), langs...),
		timeout: timeout,
		logger:  logger,
	}
}

// Fetch returns the caption texts of videoID joined by single spaces, in
// provider order. Failures are returned as *TranscriptError.
func (f *Fetcher) Fetch(ctx context.Context, videoID string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	captions, err := f.source.Captions(ctx, videoID, f.langs)
	metrics.UpstreamRequestDuration.WithLabelValues(metrics.UpstreamTranscript).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(metrics.UpstreamTranscript, metrics.StatusError).Inc()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("transcript request timed out after %s", f.timeout)
		}
		f.logger.Warn("transcript fetch failed",
			zap.String("video_id", videoID),
			zap.Error(err),
		)
		return "", &TranscriptError{VideoID: videoID, Err: err}
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(metrics.UpstreamTranscript, metrics.StatusSuccess).Inc()

	texts := make([]string, 0, len(captions))
	for _, c := range captions {
		texts = append(texts, c.Text)
	}
	return strings.Join(texts, " "), nil
}
