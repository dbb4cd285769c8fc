package htmlutil

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("caseharvest.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

// CollapseText trims a rendered text blob down to single-spaced words.
func CollapseText(s string) string {
	return innerWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// SpanText returns the trimmed text of the element with the given id,
// or the empty string when it is absent.
func SpanText(doc *goquery.Document, id string) string {
	sel := doc.Find("#" + id).First()
	if len(sel.Nodes) == 0 {
		return ""
	}
	return strings.TrimSpace(GetText(sel.Nodes[0]))
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors extracts the anchors under sel, resolving each href
// against base when it is relative.
func GetAnchors(ctx context.Context, sel *goquery.Selection, base *url.URL) []Anchor {
	ctx, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := a.AttrOr("href", "")
		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			return
		}
		if base != nil {
			link = base.ResolveReference(link)
		}
		name := ""
		if len(a.Nodes) > 0 {
			name = CollapseText(GetText(a.Nodes[0]))
		}
		anchors = append(anchors, Anchor{
			Name: name,
			Href: link.String(),
		})
	})
	return anchors
}

// SplitLines breaks the inner HTML of a selection on <br> boundaries
// and returns the cleaned text of each segment. Used for fields the
// upstream form packs several values into one span.
func SplitLines(sel *goquery.Selection) []string {
	rendered, err := sel.Html()
	if err != nil {
		return nil
	}
	var out []string
	for _, part := range brTag.Split(rendered, -1) {
		text := CollapseText(stripTags.ReplaceAllString(part, ""))
		if text != "" {
			out = append(out, html.UnescapeString(text))
		}
	}
	return out
}

var brTag = regexp.MustCompile(`(?i)<br\s*/?>`)
var stripTags = regexp.MustCompile(`<[^>]+>`)
