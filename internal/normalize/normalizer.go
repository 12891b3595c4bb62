// Package normalize turns the loosely shaped bodies returned by AI workflows
// into one canonical result of text, image and game code.
package normalize

import (
	"strings"

	"github.com/tidwall/gjson"
)

// GameCode is a generated browser game. Document is the self-contained page
// assembled from the three parts.
type GameCode struct {
	HTML       string `json:"html"`
	CSS        string `json:"css"`
	JavaScript string `json:"javascript"`
	Document   string `json:"document"`
}

// Result is the canonical form of an upstream response. Empty Image and nil
// GameCode mean the response carried none.
type Result struct {
	Text     string    `json:"text"`
	Image    string    `json:"image,omitempty"`
	GameCode *GameCode `json:"gameCode,omitempty"`
}

func (r Result) HasImage() bool { return r.Image != "" }
func (r Result) HasGame() bool  { return r.GameCode != nil }

// fields holds one extractor's candidates. Empty means "not produced".
type fields struct {
	text  string
	image string
	html  string
	css   string
	js    string
}

// fill copies every field of o that is still empty in f.
func (f *fields) fill(o fields) {
	if f.text == "" {
		f.text = o.text
	}
	if f.image == "" {
		f.image = o.image
	}
	if f.html == "" {
		f.html = o.html
	}
	if f.css == "" {
		f.css = o.css
	}
	if f.js == "" {
		f.js = o.js
	}
}

func (f fields) hasGame() bool { return f.html != "" || f.css != "" || f.js != "" }

// probe is the resolved view an extractor reads from.
type probe struct {
	top        gjson.Result // element 0 of a batch, before any output unwrapping
	work       gjson.Result // current working object
	outputText string       // non-JSON output string or raw body
	mode       Mode
}

type extractor struct {
	name string
	run  func(p *probe) fields
}

// extractors run in priority order; earlier producers win per field.
var extractors = []extractor{
	{name: "output_text", run: fromOutputText},
	{name: "content_parts", run: fromParts("content.parts")},
	{name: "candidate_parts", run: fromParts("candidates.0.content.parts")},
	{name: "direct_media", run: fromDirectMedia},
	{name: "direct_text", run: fromDirectText},
	{name: "openai_choices", run: fromChoices},
}

// Normalize extracts the canonical result from an upstream body. It never
// fails: anything it cannot recognise is simply absent from the result.
func Normalize(raw []byte, mode Mode) Result {
	p := resolve(raw, mode)

	var f fields
	for _, ex := range extractors {
		f.fill(ex.run(p))
	}

	switch mode {
	case ModeGameCode:
		f = extractFences(f)
		f.image = ""
	case ModeTextImage:
		f = extractEmbeddedImage(f)
		f.html, f.css, f.js = "", "", ""
	default:
		f.image, f.html, f.css, f.js = "", "", "", ""
	}

	res := Result{Text: strings.TrimSpace(f.text), Image: f.image}
	if res.Text == "" {
		res.Text = mode.defaultText()
	}
	if safetyBlocked(p) {
		res.Text = SafetyBlockedText
	}
	if f.hasGame() {
		gc := GameCode{HTML: f.html, CSS: f.css, JavaScript: f.js}
		gc.Document = BuildDocument(gc)
		res.GameCode = &gc
	}
	return res
}

func resolve(raw []byte, mode Mode) *probe {
	p := &probe{mode: mode}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return p
	}
	if !gjson.Valid(trimmed) {
		p.outputText = trimmed
		return p
	}

	root := unwrapBatch(gjson.Parse(trimmed))
	if root.Type == gjson.String {
		// A bare JSON string behaves like an output field.
		s := root.String()
		root = gjson.Parse(`{}`)
		if inner, ok := parseObject(s); ok {
			root = inner
		} else {
			p.outputText = s
		}
	}
	p.top = root
	p.work = root

	if out := root.Get("output"); out.Type == gjson.String {
		if inner, ok := parseObject(out.String()); ok {
			p.work = inner
		} else {
			p.outputText = out.String()
		}
	}

	if mode == ModeGameCode {
		for _, path := range []string{"content.parts.0.text", "candidates.0.content.parts.0.text"} {
			if inner, ok := parseObject(p.work.Get(path).String()); ok {
				p.work = inner
				break
			}
		}
	}
	return p
}

func unwrapBatch(r gjson.Result) gjson.Result {
	if r.IsArray() {
		return r.Get("0")
	}
	return r
}

// parseObject parses s as JSON and reports whether it is an object, or an
// array whose first element is used.
func parseObject(s string) (gjson.Result, bool) {
	s = strings.TrimSpace(s)
	if s == "" || (s[0] != '{' && s[0] != '[') || !gjson.Valid(s) {
		return gjson.Result{}, false
	}
	r := unwrapBatch(gjson.Parse(s))
	if !r.IsObject() {
		return gjson.Result{}, false
	}
	return r, true
}

func safetyBlocked(p *probe) bool {
	for _, r := range []gjson.Result{p.top, p.work} {
		if r.Get("candidates.0.finishReason").String() == "SAFETY" {
			return true
		}
	}
	return false
}

// stringish reads a value that is either a string or an object with a string
// content field.
func stringish(r gjson.Result) string {
	if r.Type == gjson.String {
		return strings.TrimSpace(r.String())
	}
	if r.IsObject() {
		if c := r.Get("content"); c.Type == gjson.String {
			return strings.TrimSpace(c.String())
		}
	}
	return ""
}

func fromOutputText(p *probe) fields {
	return fields{text: strings.TrimSpace(p.outputText)}
}

func fromParts(path string) func(p *probe) fields {
	return func(p *probe) fields {
		var f fields
		parts := p.work.Get(path)
		if !parts.IsArray() {
			return f
		}
		// Long answers arrive split across parts.
		var text strings.Builder
		parts.ForEach(func(_, part gjson.Result) bool {
			if t := part.Get("text"); t.Type == gjson.String {
				text.WriteString(t.String())
			}
			if f.image == "" {
				f.image = inlinePartImage(part)
			}
			return true
		})
		f.text = strings.TrimSpace(text.String())
		return f
	}
}

func inlinePartImage(part gjson.Result) string {
	for _, key := range []string{"inline_data", "inlineData"} {
		d := part.Get(key)
		if !d.IsObject() {
			continue
		}
		data := strings.TrimSpace(d.Get("data").String())
		if data == "" {
			continue
		}
		mime := d.Get("mime_type").String()
		if mime == "" {
			mime = d.Get("mimeType").String()
		}
		if mime == "" {
			mime = DetectBase64Mime(data)
		}
		if !strings.HasPrefix(mime, "image/") {
			continue
		}
		return "data:" + mime + ";base64," + data
	}
	for _, key := range []string{"fileData", "file_data"} {
		d := part.Get(key)
		uri := d.Get("fileUri").String()
		if uri == "" {
			uri = d.Get("file_uri").String()
		}
		if uri != "" {
			return uri
		}
	}
	return ""
}

func fromDirectMedia(p *probe) fields {
	var f fields
	for _, key := range []string{"image", "processedImage", "data"} {
		if img := asImage(stringish(p.work.Get(key))); img != "" {
			f.image = img
			break
		}
	}
	if p.mode == ModeGameCode {
		f.html = stringish(p.work.Get("html"))
		f.css = stringish(p.work.Get("css"))
		f.js = stringish(p.work.Get("javascript"))
		if f.js == "" {
			f.js = stringish(p.work.Get("js"))
		}
	}
	return f
}

func fromDirectText(p *probe) fields {
	for _, key := range []string{"text", "message", "description"} {
		if t := stringish(p.work.Get(key)); t != "" {
			return fields{text: t}
		}
	}
	return fields{}
}

func fromChoices(p *probe) fields {
	msg := p.work.Get("choices.0.message")
	if !msg.Exists() {
		return fields{}
	}
	f := fields{text: stringish(msg.Get("content"))}

	img := msg.Get("images.0")
	for _, candidate := range []gjson.Result{img.Get("image_url.url"), img.Get("url"), img} {
		if candidate.Type != gjson.String {
			continue
		}
		if v := asImage(candidate.String()); v != "" {
			f.image = v
			break
		}
	}
	return f
}
