package youtube

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTimedText = `<?xml version="1.0" encoding="utf-8" ?><transcript>` +
	`<text start="0.0" dur="1.5">Hello &amp;amp; welcome</text>` +
	`<text start="1.5" dur="2.0">it&amp;#39;s &lt;font color=&quot;#fff&quot;&gt;great&lt;/font&gt;</text>` +
	`</transcript>`

func newYouTubeServer(t *testing.T, playerJSON func(base string) string, androidJSON func(base string) string) (*httptest.Server, *int32) {
	t.Helper()
	var androidCalls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			if playerJSON == nil {
				_, _ = w.Write([]byte("<html><body>consent</body></html>"))
				return
			}
			fmt.Fprintf(w, `<html><script>var ytInitialPlayerResponse = %s;var meta = {};</script></html>`, playerJSON(srv.URL))
		case "/youtubei/v1/player":
			atomic.AddInt32(&androidCalls, 1)
			assert.Equal(t, "3", r.Header.Get("X-Youtube-Client-Name"))
			if androidJSON == nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			_, _ = w.Write([]byte(androidJSON(srv.URL)))
		case "/api/timedtext":
			_, _ = w.Write([]byte(sampleTimedText))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &androidCalls
}

func tracksJSON(base string) string {
	return fmt.Sprintf(`{"playabilityStatus":{"status":"OK"},"captions":{"playerCaptionsTracklistRenderer":{"captionTracks":[`+
		`{"baseUrl":"%[1]s/api/timedtext?lang=en&kind=asr","languageCode":"en","kind":"asr"},`+
		`{"baseUrl":"%[1]s/api/timedtext?lang=en","languageCode":"en"}]}}}`, base)
}

func TestInnertubeSource_WatchPage(t *testing.T) {
	srv, androidCalls := newYouTubeServer(t, tracksJSON, nil)
	src := NewInnertubeSource(srv.URL)

	caps, err := src.Captions(context.Background(), "abc", []string{"en"})
	require.NoError(t, err)
	require.Len(t, caps, 2)
	assert.Equal(t, "Hello & welcome", caps[0].Text)
	assert.Equal(t, "it's great", caps[1].Text)
	assert.InDelta(t, 1.5, caps[1].Start, 1e-9)
	assert.InDelta(t, 2.0, caps[1].Duration, 1e-9)
	assert.Equal(t, int32(0), atomic.LoadInt32(androidCalls))
}

func TestInnertubeSource_FallsBackToAndroidPlayer(t *testing.T) {
	srv, androidCalls := newYouTubeServer(t, nil, tracksJSON)
	src := NewInnertubeSource(srv.URL)

	caps, err := src.Captions(context.Background(), "abc", DefaultLanguages)
	require.NoError(t, err)
	assert.Len(t, caps, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(androidCalls))
}

func TestInnertubeSource_UnplayableReason(t *testing.T) {
	unplayable := func(string) string {
		return `{"playabilityStatus":{"status":"ERROR","reason":"Video unavailable"}}`
	}
	srv, _ := newYouTubeServer(t, unplayable, unplayable)
	src := NewInnertubeSource(srv.URL)

	_, err := src.Captions(context.Background(), "nonexistent", DefaultLanguages)
	require.Error(t, err)
	assert.Equal(t, "Video unavailable", err.Error())
}

func TestInnertubeSource_NoMatchingLanguage(t *testing.T) {
	srv, _ := newYouTubeServer(t, tracksJSON, nil)
	src := NewInnertubeSource(srv.URL)

	_, err := src.Captions(context.Background(), "abc", []string{"de"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "de")
	assert.Contains(t, err.Error(), "en (auto-generated)")
}

func TestPickTrack(t *testing.T) {
	tracks := []captionTrack{
		{BaseURL: "u1", LanguageCode: "en", Kind: "asr"},
		{BaseURL: "u2&exp=xpe", LanguageCode: "hi"},
		{BaseURL: "u3", LanguageCode: "es"},
		{BaseURL: "u4", LanguageCode: "en"},
	}

	got, err := pickTrack(tracks, []string{"en", "es"})
	require.NoError(t, err)
	assert.Equal(t, "u4", got.BaseURL, "manual track wins within a language")

	got, err = pickTrack(tracks, []string{"hi", "es"})
	require.NoError(t, err)
	assert.Equal(t, "u3", got.BaseURL, "PoToken tracks are skipped")

	got, err = pickTrack(tracks[:1], []string{"en"})
	require.NoError(t, err)
	assert.Equal(t, "u1", got.BaseURL)

	_, err = pickTrack(tracks[1:2], []string{"hi"})
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	in := []byte(`{"a":"x}\"\\","b":{"c":1}};var other = {}`)
	assert.Equal(t, `{"a":"x}\"\\","b":{"c":1}}`, string(extractJSON(in)))
	assert.Nil(t, extractJSON([]byte(`nope`)))
	assert.Nil(t, extractJSON([]byte(`{"open":`)))
}
