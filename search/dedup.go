package search

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
	"unicode"
)

// Normalize lowercases s and collapses every run of characters that are not
// letters or digits into a single space.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

// normalizeURL reduces a link to host and path so that scheme, www prefix,
// query, fragment and trailing slashes do not split duplicates.
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	return host + strings.TrimRight(u.EscapedPath(), "/")
}

// DedupKey derives the content key of a result. Results with a link are
// keyed by the normalized link; others by their normalized title and text.
func DedupKey(title, link, text string) string {
	basis := "url:" + normalizeURL(link)
	if basis == "url:" {
		basis = "txt:" + Normalize(title) + "|" + Normalize(text)
	}
	sum := sha256.Sum256([]byte(basis))
	return hex.EncodeToString(sum[:8])
}
