package normalize

import (
	"regexp"
	"strings"
)

var (
	htmlFence = regexp.MustCompile("(?is)```html[ \\t]*\\r?\\n(.*?)```")
	cssFence  = regexp.MustCompile("(?is)```css[ \\t]*\\r?\\n(.*?)```")
	jsFence   = regexp.MustCompile("(?is)```(?:javascript|js)[ \\t]*\\r?\\n(.*?)```")
)

// extractFences fills empty game fields from fenced code blocks in the text
// and drops those blocks from the text.
func extractFences(f fields) fields {
	if !strings.Contains(f.text, "```") {
		return f
	}

	for _, c := range []struct {
		re  *regexp.Regexp
		dst *string
	}{
		{htmlFence, &f.html},
		{cssFence, &f.css},
		{jsFence, &f.js},
	} {
		if *c.dst != "" {
			continue
		}
		if m := c.re.FindStringSubmatch(f.text); m != nil {
			*c.dst = strings.TrimSpace(m[1])
		}
	}

	for _, re := range []*regexp.Regexp{htmlFence, cssFence, jsFence} {
		f.text = re.ReplaceAllString(f.text, "")
	}
	f.text = strings.TrimSpace(f.text)
	return f
}
