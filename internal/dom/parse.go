// File: internal/dom/parse.go
package dom

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

// maxTextLen truncates extracted element text for snapshots.
const maxTextLen = 64

// ParseHTML parses a static HTML document into raw nodes for offline
// resolution and tests. Static markup carries no layout, so every element
// that is not structurally hidden gets a nominal 1x1 box ordered down the
// page; real runs get their geometry from the browser collaborator.
func ParseHTML(r io.Reader) ([]schemas.RawNode, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var nodes []schemas.RawNode
	order := 0
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "head", "script", "style", "noscript":
				// Non-rendered subtrees contribute no candidates.
				return
			}
		}
		if n.Type == html.ElementNode && n.Data != "html" {
			attrs := make(map[string]string, len(n.Attr))
			for _, a := range n.Attr {
				attrs[a.Key] = a.Val
			}

			_, disabled := attrs["disabled"]
			raw := schemas.RawNode{
				Ref:         fmt.Sprintf("n%04d", order),
				TagName:     n.Data,
				Attributes:  attrs,
				Text:        nodeText(n),
				Box:         schemas.BoundingBox{X: 0, Y: float64(order), Width: 1, Height: 1},
				StyleHidden: styleHides(attrs["style"]),
				Disabled:    disabled,
				DOMOrder:    order,
			}
			nodes = append(nodes, raw)
			order++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return nodes, nil
}

// nodeText collects the trimmed text content of a node, truncated for
// snapshot purposes.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
		for gc := c.FirstChild; gc != nil; gc = gc.NextSibling {
			collect(gc)
		}
	}
	collect(n)

	text := strings.Join(strings.Fields(sb.String()), " ")
	if runes := []rune(text); len(runes) > maxTextLen {
		text = string(runes[:maxTextLen])
	}
	return text
}

// styleHides checks inline style for the hiding declarations that matter
// to visibility.
func styleHides(style string) bool {
	s := strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(s, "display:none") ||
		strings.Contains(s, "visibility:hidden") ||
		strings.Contains(s, "opacity:0;") ||
		strings.HasSuffix(s, "opacity:0")
}
