// Package cleaner turns the raw key-information fragment read from the
// document view into the forms returned to callers.
package cleaner

import (
	"fmt"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Fragment is a normalized key-information block.
type Fragment struct {
	HTML     string
	Text     string
	Markdown string
}

// Cleaner holds the reusable converters. It is safe for concurrent use.
type Cleaner struct {
	md     *converter.Converter
	domain string
}

// NewCleaner creates a Cleaner that resolves relative links against domain.
func NewCleaner(domain string) *Cleaner {
	return &Cleaner{md: newMarkdownConverter(), domain: domain}
}

// Normalize parses the fragment, drops script and style nodes and renders
// Markdown. The HTML is returned as extracted. text is the browser's
// rendered text and is returned unchanged; when it is blank the text is
// rebuilt from the markup.
func (c *Cleaner) Normalize(fragmentHTML, text string) (Fragment, error) {
	out := Fragment{HTML: fragmentHTML, Text: text}
	if strings.TrimSpace(text) == "" {
		out.Text = ""
	}
	if strings.TrimSpace(fragmentHTML) == "" {
		return out, nil
	}

	root := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragmentHTML), root)
	if err != nil {
		return out, fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		root.AppendChild(n)
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Find("script, style, noscript").Remove()

	if out.Text == "" {
		var sb strings.Builder
		for _, n := range doc.Nodes {
			writeText(&sb, n)
		}
		out.Text = collapseSpace(sb.String())
	}

	clean, err := doc.Html()
	if err != nil {
		return out, fmt.Errorf("render fragment: %w", err)
	}
	md, err := ToMarkdown(c.md, clean, c.domain)
	if err != nil {
		return out, fmt.Errorf("convert to markdown: %w", err)
	}
	out.Markdown = strings.TrimSpace(md)
	return out, nil
}

// blockAtoms end a run of inline text, like a line break in innerText.
var blockAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.H1: true,
	atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Ol: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Table: true, atom.Td: true,
	atom.Th: true, atom.Tr: true, atom.Ul: true,
}

// writeText appends the text under n, separating block elements by a space.
func writeText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode, html.DocumentNode:
	default:
		return
	}
	block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
	if block {
		sb.WriteByte(' ')
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		writeText(sb, child)
	}
	if block {
		sb.WriteByte(' ')
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
