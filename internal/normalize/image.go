package normalize

import (
	"regexp"
	"strings"
)

const minRawBase64Len = 64

var (
	base64Payload    = regexp.MustCompile(`^[A-Za-z0-9+/\r\n]+={0,2}$`)
	embeddedDataURI  = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/]+={0,2}`)
	embeddedBase64   = regexp.MustCompile(`[A-Za-z0-9+/]{100,}={0,2}`)
	urlToken         = regexp.MustCompile(`(?i)https?://\S+`)
	markdownImage    = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	emptyCodeFence   = regexp.MustCompile("```[A-Za-z]*\\s*```")
	base64Signatures = []struct {
		prefix string
		mime   string
	}{
		{"/9j/", "image/jpeg"},
		{"iVBORw0KGgo", "image/png"},
		{"R0lGOD", "image/gif"},
		{"UklGR", "image/webp"},
	}
)

// DetectBase64Mime guesses an image MIME type from the leading characters of
// a base64 payload. Unknown payloads are reported as JPEG.
func DetectBase64Mime(b64 string) string {
	for _, sig := range base64Signatures {
		if strings.HasPrefix(b64, sig.prefix) {
			return sig.mime
		}
	}
	return "image/jpeg"
}

// asImage accepts a data URI, an absolute http(s) URL or a raw base64 payload
// and returns it as something an <img> can render.
func asImage(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	lower := strings.ToLower(v)
	switch {
	case strings.HasPrefix(lower, "data:image/"):
		return v
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return v
	case len(v) >= minRawBase64Len && base64Payload.MatchString(v):
		clean := strings.NewReplacer("\r", "", "\n", "").Replace(v)
		return "data:" + DetectBase64Mime(clean) + ";base64," + clean
	}
	return ""
}

// extractEmbeddedImage lifts an image smuggled inside the text into the image
// field and removes it from the text.
func extractEmbeddedImage(f fields) fields {
	if f.text == "" {
		return f
	}

	if matches := embeddedDataURI.FindAllString(f.text, -1); len(matches) > 0 {
		if f.image == "" {
			f.image = matches[0]
		}
		f.text = embeddedDataURI.ReplaceAllString(f.text, "")
		f.text = emptyCodeFence.ReplaceAllString(f.text, "")
	} else if runs := base64Runs(f.text); len(runs) > 0 {
		if f.image == "" {
			run := f.text[runs[0][0]:runs[0][1]]
			f.image = "data:" + DetectBase64Mime(run) + ";base64," + run
		}
		f.text = cutSpans(f.text, runs)
		f.text = emptyCodeFence.ReplaceAllString(f.text, "")
	}

	f.text = markdownImage.ReplaceAllString(f.text, "")
	return f
}

// base64Runs returns the spans of long base64 runs that are not part of a URL.
func base64Runs(text string) [][]int {
	urls := urlToken.FindAllStringIndex(text, -1)
	var runs [][]int
	for _, span := range embeddedBase64.FindAllStringIndex(text, -1) {
		inURL := false
		for _, u := range urls {
			if span[0] < u[1] && u[0] < span[1] {
				inURL = true
				break
			}
		}
		if !inURL {
			runs = append(runs, span)
		}
	}
	return runs
}

// cutSpans removes ordered, non-overlapping spans from text.
func cutSpans(text string, spans [][]int) string {
	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(text[last:span[0]])
		last = span[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
