package youtube

import "context"

// Caption is one timed fragment of a video's captions.
type Caption struct {
	Text     string
	Start    float64
	Duration float64
}

// CaptionSource returns the caption fragments of a video in playback order,
// choosing a track by the given language preference.
type CaptionSource interface {
	Captions(ctx context.Context, videoID string, langs []string) ([]Caption, error)
}

// TranscriptError reports that no transcript could be obtained for a video.
// Its message is the upstream message.
type TranscriptError struct {
	VideoID string
	Err     error
}

func (e *TranscriptError) Error() string {
	if e.Err == nil {
		return "transcript unavailable"
	}
	return e.Err.Error()
}

func (e *TranscriptError) Unwrap() error { return e.Err }
