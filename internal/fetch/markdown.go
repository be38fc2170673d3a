package fetch

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"docpipe/internal/services"
)

var contentClassRe = regexp.MustCompile(`body|content`)

var skipElements = map[string]struct{}{
	"nav":    {},
	"footer": {},
	"script": {},
	"style":  {},
}

var blockElements = map[string]struct{}{
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"p": {}, "pre": {}, "ul": {}, "ol": {}, "dl": {}, "table": {},
}

// HTMLToMarkdown reduces a documentation page to Markdown: headings,
// paragraphs, fenced code blocks, lists, definition lists, and tables, in
// document order. Navigation chrome is dropped.
func HTMLToMarkdown(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", services.Wrap(services.ErrContent, "fetch", "parse html", "", err)
	}

	main := findMainContent(doc)
	var lines []string
	walkBlocks(main, func(n *html.Node) {
		if rendered := renderBlock(n); rendered != "" {
			lines = append(lines, rendered)
		}
	})
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// findMainContent picks the densest content container: <main>, then a div
// whose class mentions body or content, then <body>, then the whole tree.
func findMainContent(doc *html.Node) *html.Node {
	if n := findElement(doc, func(n *html.Node) bool { return n.Data == "main" }); n != nil {
		return n
	}
	if n := findElement(doc, func(n *html.Node) bool {
		return n.Data == "div" && contentClassRe.MatchString(attrValue(n, "class"))
	}); n != nil {
		return n
	}
	if n := findElement(doc, func(n *html.Node) bool { return n.Data == "body" }); n != nil {
		return n
	}
	return doc
}

func attrValue(n *html.Node, name string) string {
	for _, attr := range n.Attr {
		if attr.Key == name {
			return attr.Val
		}
	}
	return ""
}

func findElement(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

// walkBlocks visits the top-most block elements in document order, skipping
// navigation chrome and never descending into an emitted block.
func walkBlocks(root *html.Node, emit func(*html.Node)) {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			walkBlocks(c, emit)
			continue
		}
		if _, skip := skipElements[c.Data]; skip {
			continue
		}
		if _, block := blockElements[c.Data]; block {
			emit(c)
			continue
		}
		walkBlocks(c, emit)
	}
}

func renderBlock(n *html.Node) string {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		level := int(n.Data[1] - '0')
		text := collapseSpace(nodeText(n))
		if text == "" {
			return ""
		}
		return fmt.Sprintf("\n%s %s\n", strings.Repeat("#", level), text)
	case "p":
		text := collapseSpace(nodeText(n))
		if text == "" {
			return ""
		}
		return text + "\n\n"
	case "pre":
		code := strings.Trim(nodeText(n), "\n")
		lang := ""
		if strings.Contains(code, ">>>") || strings.Contains(code, "def ") {
			lang = "python"
		}
		return fmt.Sprintf("\n```%s\n%s\n```\n\n", lang, code)
	case "ul", "ol":
		prefix := "- "
		if n.Data == "ol" {
			prefix = "1. "
		}
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "li" {
				if text := collapseSpace(nodeText(c)); text != "" {
					b.WriteString(prefix + text + "\n")
				}
			}
		}
		if b.Len() == 0 {
			return ""
		}
		return b.String() + "\n"
	case "dl":
		var b strings.Builder
		var term string
		var visit func(*html.Node)
		visit = func(c *html.Node) {
			for child := c.FirstChild; child != nil; child = child.NextSibling {
				if child.Type != html.ElementNode {
					continue
				}
				switch child.Data {
				case "dt":
					term = collapseSpace(nodeText(child))
				case "dd":
					if term != "" {
						b.WriteString(fmt.Sprintf("- **%s**: %s\n", term, collapseSpace(nodeText(child))))
						term = ""
					}
				default:
					visit(child)
				}
			}
		}
		visit(n)
		if term != "" {
			b.WriteString(fmt.Sprintf("- **%s**:\n", term))
		}
		if b.Len() == 0 {
			return ""
		}
		return b.String() + "\n"
	case "table":
		var b strings.Builder
		var visitRows func(*html.Node)
		visitRows = func(c *html.Node) {
			for child := c.FirstChild; child != nil; child = child.NextSibling {
				if child.Type != html.ElementNode {
					continue
				}
				if child.Data == "tr" {
					cells := tableCells(child)
					if len(cells) > 0 {
						b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
					}
					continue
				}
				visitRows(child)
			}
		}
		visitRows(n)
		if b.Len() == 0 {
			return ""
		}
		return b.String() + "\n"
	default:
		return ""
	}
}

func tableCells(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "th" || c.Data == "td") {
			text := collapseSpace(nodeText(c))
			cells = append(cells, strings.ReplaceAll(text, "|", `\|`))
		}
	}
	return cells
}

// nodeText concatenates the text content of a subtree, skipping chrome.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var visit func(*html.Node)
	visit = func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
			return
		}
		if c.Type == html.ElementNode {
			if _, skip := skipElements[c.Data]; skip {
				return
			}
		}
		for child := c.FirstChild; child != nil; child = child.NextSibling {
			visit(child)
		}
	}
	visit(n)
	return b.String()
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
