package market

import (
	"bytes"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/soledexapp/soledex-server/internal/normalize"
	"github.com/soledexapp/soledex-server/internal/source"
)

// parseListing extracts product cards from a listing page. The markup is
// stable enough to key on class names; anything unrecognized is skipped
// rather than failing the page.
func parseListing(body []byte, query string) ([]source.RawItem, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var items []source.RawItem
	walk(doc, func(n *html.Node) {
		if hasClass(n, "product-card") {
			if item, ok := parseCard(n, query); ok {
				items = append(items, item)
			}
		}
	})
	return items, nil
}

// parseCard reads one product card. A card without a name is garbage and
// is dropped.
func parseCard(card *html.Node, query string) (source.RawItem, bool) {
	item := source.RawItem{
		Brand:       attr(card, "data-brand"),
		SKU:         attr(card, "data-sku"),
		Source:      SourceName,
		Query:       query,
		ReleaseDate: normalize.ParseReleaseDate(attr(card, "data-release")),
	}

	walk(card, func(n *html.Node) {
		switch {
		case hasClass(n, "product-name"):
			item.Name = strings.TrimSpace(textContent(n))
		case hasClass(n, "product-price"):
			item.Price = normalize.ParsePrice(textContent(n))
			if item.Price > 0 {
				item.Currency = "USD"
			}
		case hasClass(n, "product-desc"):
			if md, err := htmltomarkdown.ConvertString(innerHTML(n)); err == nil {
				item.Description = strings.TrimSpace(md)
			}
		case n.Data == "img" && hasClass(n, "product-image"):
			if src := attr(n, "src"); src != "" {
				item.Images = append(item.Images, source.RawImageRef{
					URL:     src,
					Primary: len(item.Images) == 0,
				})
			}
		}
	})

	if item.Name == "" {
		return source.RawItem{}, false
	}
	return item, true
}

// walk visits every element node under n, depth first.
func walk(n *html.Node, visit func(*html.Node)) {
	if n.Type == html.ElementNode {
		visit(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// hasClass reports whether an element carries a class token.
func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, token := range strings.Fields(attr(n, "class")) {
		if token == class {
			return true
		}
	}
	return false
}

// attr returns an attribute value, empty when absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// textContent concatenates all text under a node.
func textContent(n *html.Node) string {
	var buf strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return buf.String()
}

// innerHTML renders the markup inside a node.
func innerHTML(n *html.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		// Render only fails on unrenderable node types, which cannot
		// appear under a parsed element.
		_ = html.Render(&buf, c)
	}
	return buf.String()
}
