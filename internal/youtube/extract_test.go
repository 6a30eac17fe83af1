package youtube

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"watch url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"bare id", "dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"empty", "", ""},
		{"trailing params kept", "https://www.youtube.com/watch?v=abc123&t=30", "abc123&t=30"},
		{"last occurrence wins", "https://example.com/?v=first&v=second", "second"},
		{"short link unchanged", "https://youtu.be/abc123", "https://youtu.be/abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractVideoID(tc.in))
		})
	}
}
