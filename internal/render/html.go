// Package render is the third stage: it converts translated Markdown into
// styled HTML and prints that to PDF through a headless browser.
package render

import (
	"bytes"
	"fmt"
	"html"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	highlighting "github.com/yuin/goldmark-highlighting/v2"

	"docpipe/internal/services"
)

const documentCSS = `
body {
  font-family: "DejaVu Sans", "Noto Sans", sans-serif;
  font-size: 11pt;
  line-height: 1.5;
  color: #1a1a1a;
  max-width: 100%;
}
h1, h2, h3, h4, h5, h6 {
  font-weight: 600;
  line-height: 1.25;
  margin-top: 1.2em;
  margin-bottom: 0.5em;
}
h1 { font-size: 20pt; border-bottom: 1px solid #d0d0d0; padding-bottom: 0.2em; }
h2 { font-size: 16pt; }
h3 { font-size: 13pt; }
pre {
  background: #f5f5f5;
  border: 1px solid #e0e0e0;
  border-radius: 4px;
  padding: 0.6em;
  font-family: "DejaVu Sans Mono", "Noto Sans Mono", monospace;
  font-size: 9pt;
  white-space: pre-wrap;
  word-wrap: break-word;
}
code {
  font-family: "DejaVu Sans Mono", "Noto Sans Mono", monospace;
  font-size: 9.5pt;
  background: #f5f5f5;
  padding: 0.1em 0.3em;
  border-radius: 3px;
}
pre code { background: none; padding: 0; }
table { border-collapse: collapse; margin: 0.8em 0; }
th, td { border: 1px solid #c0c0c0; padding: 0.3em 0.6em; }
th { background: #f0f0f0; }
a { color: #0b5394; text-decoration: none; }
blockquote { border-left: 3px solid #d0d0d0; margin-left: 0; padding-left: 1em; color: #555; }
`

// Converter renders Markdown to a standalone HTML document ready for the
// print engine.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter builds the Markdown renderer with GFM tables and
// class-based syntax highlighting.
func NewConverter() *Converter {
	return &Converter{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithFormatOptions(chromahtml.WithClasses(true)),
				),
			),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			goldmark.WithRendererOptions(goldmarkhtml.WithXHTML()),
		),
	}
}

// Convert produces a full HTML page for one Markdown document.
func (c *Converter) Convert(title string, markdown []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := c.md.Convert(markdown, &body); err != nil {
		return nil, services.Wrap(services.ErrContent, "render", "markdown to html", "", err)
	}

	var page bytes.Buffer
	fmt.Fprintf(&page, `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>%s</style>
</head>
<body>
`, html.EscapeString(title), documentCSS)
	page.Write(body.Bytes())
	page.WriteString("\n</body>\n</html>\n")
	return page.Bytes(), nil
}
