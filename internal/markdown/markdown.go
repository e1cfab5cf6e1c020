// Package markdown turns user-authored markdown into HTML that is safe to
// embed in a page.
package markdown

import (
	"bytes"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var allowedElements = []string{
	"p", "br", "strong", "em", "code", "pre", "blockquote",
	"ul", "ol", "li",
	"h1", "h2", "h3", "h4", "h5", "h6",
	"a", "img", "hr",
	"table", "thead", "tbody", "tr", "th", "td",
}

var targetPattern = regexp.MustCompile(`^_(blank|self|parent|top)$`)

type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			// Raw HTML is passed through and stripped by the policy.
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithUnsafe()),
		),
		policy: newPolicy(),
	}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedElements...)
	p.AllowStandardURLs()
	p.AllowAttrs("title").Globally()
	p.AllowAttrs("href").OnElements("a")
	p.AllowAttrs("target").Matching(targetPattern).OnElements("a")
	p.AllowAttrs("rel").Matching(bluemonday.SpaceSeparatedTokens).OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	return p
}

// Render converts src to sanitized HTML. Disallowed tags are removed, not
// escaped.
func (r *Renderer) Render(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return r.policy.Sanitize(buf.String())
}

var defaultRenderer = New()

func Render(src string) string {
	return defaultRenderer.Render(src)
}
