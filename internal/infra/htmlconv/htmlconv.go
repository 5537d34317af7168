// Package htmlconv renders web pages and uploaded HTML syllabi as markdown.
package htmlconv

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// ToMarkdown strips page chrome (scripts, styles, navigation) and renders
// the main content as markdown.
func ToMarkdown(page string) (string, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	root := mainContent(doc)
	stripNodes(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	md, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(md, "\n\n")), nil
}

var unwanted = map[string]bool{
	"script": true, "style": true, "noscript": true, "nav": true,
	"header": true, "footer": true, "aside": true, "iframe": true, "form": true,
}

func stripNodes(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode && unwanted[strings.ToLower(c.Data)] {
			n.RemoveChild(c)
		} else {
			stripNodes(c)
		}
		c = next
	}
}

// mainContent prefers <main>, then <article>, then <body>.
func mainContent(doc *html.Node) *html.Node {
	found := map[string]*html.Node{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if (tag == "main" || tag == "article" || tag == "body") && found[tag] == nil {
				found[tag] = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	for _, tag := range []string{"main", "article", "body"} {
		if n := found[tag]; n != nil {
			return n
		}
	}
	return doc
}
