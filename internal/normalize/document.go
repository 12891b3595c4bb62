package normalize

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	fragmentPlaceholder = "{{fragment}}"
	dedupSampleLen      = 80
)

// documentTemplate hosts an html fragment. Its base style block never matches
// generated css, and nothing follows </body> so re-parsing is stable.
const documentTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Game</title>
<style>*{margin:0;padding:0;box-sizing:border-box}html,body{width:100%;height:100%;overflow:hidden;font-family:Arial,sans-serif}</style>
</head>
<body>
` + fragmentPlaceholder + `
</body></html>`

// IsFullDocument reports whether html already carries a doctype or <html> tag.
func IsFullDocument(html string) bool {
	lower := strings.ToLower(html)
	return strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html")
}

// BuildDocument assembles a self-contained page from a game bundle. External
// scripts and stylesheets are removed; css and js are injected once. Running it
// on its own output returns the same bytes.
func BuildDocument(gc GameCode) string {
	src := gc.HTML
	if !IsFullDocument(src) {
		src = strings.Replace(documentTemplate, fragmentPlaceholder, gc.HTML, 1)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		return src
	}

	doc.Find("script[src]").Remove()
	doc.Find("link[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return !strings.HasPrefix(strings.ToLower(strings.TrimSpace(href)), "data:")
	}).Remove()

	if css := strings.TrimSpace(gc.CSS); css != "" && !containsSample(src, css) {
		doc.Find("head").First().AppendHtml("<style>" + css + "</style>")
	}
	if js := strings.TrimSpace(gc.JavaScript); js != "" && !containsSample(src, js) {
		doc.Find("body").First().AppendHtml("<script>" + js + "</script>")
	}

	out, err := doc.Html()
	if err != nil {
		return src
	}
	return out
}

func containsSample(doc, code string) bool {
	sample := code
	if len(sample) > dedupSampleLen {
		sample = strings.TrimSpace(sample[:dedupSampleLen])
	}
	return strings.Contains(doc, sample)
}
