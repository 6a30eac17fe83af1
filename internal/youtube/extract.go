// Package youtube resolves video identifiers and fetches caption transcripts.
package youtube

import "strings"

// ExtractVideoID returns the substring after the last "v=" in url, or url
// unchanged when it has no "v=".
//
// No validation is done. Trailing query parameters are kept, so
// "watch?v=abc&t=30" yields "abc&t=30", and short links such as
// "youtu.be/abc" come back whole.
func ExtractVideoID(url string) string {
	i := strings.LastIndex(url, "v=")
	if i < 0 {
		return url
	}
	return url[i+len("v="):]
}
