package catalog

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// ParseContents extracts documentation page addresses from the rendered
// contents.html table of contents. Index pages (genindex, py-modindex) are
// skipped. The result is sorted and deduplicated so enumeration is
// deterministic across runs.
func ParseContents(contents []byte, baseURL string) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("parse contents page: %w", err)
	}

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	seen := map[string]struct{}{}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if path, ok := normalizeHref(attr.Val, base); ok {
					seen[path] = struct{}{}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, nil
}

func normalizeHref(href, base string) (string, bool) {
	href = strings.TrimSpace(href)
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		href = href[:idx]
	}
	if !strings.HasSuffix(href, ".html") {
		return "", false
	}
	if strings.Contains(href, "genindex") || strings.Contains(href, "py-modindex") {
		return "", false
	}
	switch {
	case base != "" && strings.HasPrefix(href, base+"/"):
		href = strings.TrimPrefix(href, base+"/")
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		// External site, not part of the documentation tree.
		return "", false
	case strings.HasPrefix(href, "/3/"):
		href = strings.TrimPrefix(href, "/3/")
	}
	href = strings.TrimPrefix(href, "/")
	if href == "" {
		return "", false
	}
	return href, true
}

// FromContents enumerates the fetch-stage catalog from the contents page.
// Addresses that map to the same Markdown path are all kept: keys stay
// distinct, every page is fetched and recorded, and the consistency checker
// reports the output-path collision.
func FromContents(contents []byte, baseURL string) ([]WorkItem, error) {
	paths, err := ParseContents(contents, baseURL)
	if err != nil {
		return nil, err
	}
	items := make([]WorkItem, 0, len(paths))
	for _, p := range paths {
		items = append(items, ItemForURL(p))
	}
	return items, nil
}
