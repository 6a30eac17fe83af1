package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://www.youtube.com"

	androidClientVersion = "20.10.38"
	androidUserAgent     = "com.google.android.youtube/" + androidClientVersion + " (Linux; U; Android 11) gzip"
	browserUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

	playerResponseMarker = "ytInitialPlayerResponse = "
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

// InnertubeSource reads captions the way the YouTube web and Android clients
// do: the watch page's embedded player response first, then the Android
// player endpoint when the page carries no captions.
type InnertubeSource struct {
	BaseURL string
	Client  *http.Client
}

func NewInnertubeSource(baseURL string) *InnertubeSource {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &InnertubeSource{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type innertubeReq struct {
	VideoID        string       `json:"videoId"`
	Context        innertubeCtx `json:"context"`
	RacyCheckOk    bool         `json:"racyCheckOk"`
	ContentCheckOk bool         `json:"contentCheckOk"`
}

type innertubeCtx struct {
	Client innertubeClient `json:"client"`
}

type innertubeClient struct {
	ClientName        string `json:"clientName"`
	ClientVersion     string `json:"clientVersion"`
	AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
	Hl                string `json:"hl,omitempty"`
	Gl                string `json:"gl,omitempty"`
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

func (p *playerResponse) tracks() []captionTrack {
	if p.Captions == nil {
		return nil
	}
	return p.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
}

// unplayableReason returns the provider's reason when the video cannot be played.
func (p *playerResponse) unplayableReason() string {
	if p.PlayabilityStatus == nil || p.PlayabilityStatus.Status == "" || p.PlayabilityStatus.Status == "OK" {
		return ""
	}
	if p.PlayabilityStatus.Reason != "" {
		return p.PlayabilityStatus.Reason
	}
	return "Video unavailable"
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type timedText struct {
	Lines []timedLine `xml:"text"`
}

type timedLine struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

func (s *InnertubeSource) Captions(ctx context.Context, videoID string, langs []string) ([]Caption, error) {
	if s.Client == nil {
		return nil, errors.New("youtube: http client is nil")
	}

	player, err := s.watchPagePlayer(ctx, videoID)
	if err != nil || len(player.tracks()) == 0 {
		android, fallbackErr := s.androidPlayer(ctx, videoID)
		switch {
		case fallbackErr == nil:
			player = android
		case err == nil && player.unplayableReason() != "":
			return nil, errors.New(player.unplayableReason())
		case err != nil:
			return nil, fmt.Errorf("%w (watch page: %v)", fallbackErr, err)
		default:
			return nil, fallbackErr
		}
	}

	tracks := player.tracks()
	if len(tracks) == 0 {
		if reason := player.unplayableReason(); reason != "" {
			return nil, errors.New(reason)
		}
		return nil, fmt.Errorf("transcripts are disabled for video %s", videoID)
	}

	track, err := pickTrack(tracks, langs)
	if err != nil {
		return nil, err
	}
	return s.timedText(ctx, track.BaseURL)
}

func (s *InnertubeSource) watchPagePlayer(ctx context.Context, videoID string) (*playerResponse, error) {
	watchURL := s.BaseURL + "/watch?v=" + url.QueryEscape(videoID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, watchURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 6*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read watch page: %w", err)
	}
	idx := bytes.Index(body, []byte(playerResponseMarker))
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	raw := extractJSON(body[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	return &player, nil
}

func (s *InnertubeSource) androidPlayer(ctx context.Context, videoID string) (*playerResponse, error) {
	body, err := json.Marshal(innertubeReq{
		VideoID: videoID,
		Context: innertubeCtx{
			Client: innertubeClient{
				ClientName:        "ANDROID",
				ClientVersion:     androidClientVersion,
				AndroidSdkVersion: 30,
				Hl:                "en",
				Gl:                "US",
			},
		},
		RacyCheckOk:    true,
		ContentCheckOk: true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/youtubei/v1/player?prettyPrint=false", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", androidUserAgent)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", androidClientVersion)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("android player: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("android player: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var player playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&player); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}
	return &player, nil
}

func (s *InnertubeSource) timedText(ctx context.Context, trackURL string) ([]Caption, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, trackURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch timedtext: HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) ([]Caption, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext XML: %w", err)
	}
	out := make([]Caption, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		start, _ := strconv.ParseFloat(line.Start, 64)
		dur, _ := strconv.ParseFloat(line.Dur, 64)
		out = append(out, Caption{
			Text:     cleanCaption(line.Text),
			Start:    start,
			Duration: dur,
		})
	}
	return out, nil
}

// cleanCaption decodes the HTML entities left after XML decoding
// (e.g. "&amp;#39;") and strips inline formatting tags.
func cleanCaption(s string) string {
	s = html.UnescapeString(s)
	return strings.TrimSpace(tagRe.ReplaceAllString(s, ""))
}

func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack walks langs in order. Within the first language that has any
// usable track, a manually created track wins over an auto-generated one.
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, error) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, errors.New("all caption tracks require a PoToken")
	}

	for _, lang := range langs {
		var generated *captionTrack
		for i := range usable {
			t := usable[i]
			if t.LanguageCode != lang {
				continue
			}
			if t.Kind != "asr" {
				return t, nil
			}
			if generated == nil {
				generated = &usable[i]
			}
		}
		if generated != nil {
			return *generated, nil
		}
	}

	available := make([]string, 0, len(usable))
	for _, t := range usable {
		code := t.LanguageCode
		if t.Kind == "asr" {
			code += " (auto-generated)"
		}
		available = append(available, code)
	}
	return captionTrack{}, fmt.Errorf(
		"no transcripts were found for any of the requested language codes: %s. Available: %s",
		strings.Join(langs, ", "), strings.Join(available, ", "),
	)
}

// extractJSON returns the complete JSON object starting at b[0] == '{' by
// tracking brace depth outside of string literals.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, c := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
