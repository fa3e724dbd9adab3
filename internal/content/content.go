// Package content inspects the serialized editor body without knowing the editor's document model.
//
// Bodies are treated as HTML fragments; plain text is a valid fragment too.
package content

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	nethtml "golang.org/x/net/html"
	"mvdan.cc/xurls/v2"
)

// embedded content counts as non-empty even without text
const mediaSelector = "img, video, iframe, audio, embed, object"

var httpsURLRe = xurls.Strict()

func parse(body string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(body))
}

// IsEmpty reports whether the body has no visible text and no embedded media.
func IsEmpty(body string) bool {
	if strings.TrimSpace(body) == "" {
		return true
	}
	doc, err := parse(body)
	if err != nil {
		return false
	}
	if doc.Find(mediaSelector).Length() > 0 {
		return false
	}
	return strings.TrimSpace(doc.Text()) == ""
}

// PlainText strips markup and collapses whitespace.
func PlainText(body string) string {
	doc, err := parse(body)
	if err != nil {
		return strings.Join(strings.Fields(body), " ")
	}
	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// writeText appends text nodes, separating block-level elements and line breaks with a space.
func writeText(b *strings.Builder, n *nethtml.Node) {
	switch n.Type {
	case nethtml.TextNode:
		b.WriteString(n.Data)
		return
	case nethtml.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "br":
			b.WriteByte(' ')
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == nethtml.ElementNode && isBlock(n.Data) {
		b.WriteByte(' ')
	}
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "tr", "td", "th", "section", "article":
		return true
	}
	return false
}

// Excerpt returns at most n runes of plain text, marking truncation with an ellipsis.
func Excerpt(body string, n int) string {
	text := PlainText(body)
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:n])) + "…"
}

// FirstLink returns the first https link in the body: anchors first, then bare URLs in the text.
func FirstLink(body string) string {
	if doc, err := parse(body); err == nil {
		var href string
		doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			v, _ := s.Attr("href")
			if strings.HasPrefix(v, "https://") {
				href = v
				return false
			}
			return true
		})
		if href != "" {
			return href
		}
	}
	for _, u := range httpsURLRe.FindAllString(body, -1) {
		if strings.HasPrefix(u, "https://") {
			return u
		}
	}
	return ""
}

// MarkdownToHTML renders Markdown into the HTML fragment format used for draft bodies.
func MarkdownToHTML(md []byte) string {
	md = markdown.NormalizeNewlines(md)
	p := parser.NewWithExtensions(
		parser.CommonExtensions | parser.AutoHeadingIDs | parser.Footnotes | parser.NoEmptyLineBeforeBlock,
	)
	doc := p.Parse(md)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return strings.TrimSpace(string(markdown.Render(doc, renderer)))
}
