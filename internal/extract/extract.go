// Package extract derives a title and a textual body from captured HTML.
// The HTML is the durable source of truth; extraction is deterministic so a
// snapshot's text can always be recomputed from it.
package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

const maxTitleLen = 300

// MaxTextLen caps extracted body text to bound diff cost downstream.
const MaxTextLen = 80000

// skipTags are subtrees that contribute no readable text.
var skipTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"canvas":   true,
}

// TitleText parses HTML and returns the page title and a whitespace-normalized
// body text. The body prefers <article>, then <main>, then <body>, falling
// back to the whole document. Malformed HTML degrades to whatever the parser
// can recover; it never fails.
func TitleText(src string) (string, string) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", ""
	}

	title := clip(collectText(findElement(doc, "title")), maxTitleLen)

	root := findElement(doc, "article")
	if root == nil {
		root = findElement(doc, "main")
	}
	if root == nil {
		root = findElement(doc, "body")
	}
	if root == nil {
		root = doc
	}
	return title, clip(collectText(root), MaxTextLen)
}

// findElement returns the first element with the given tag, depth-first.
func findElement(n *html.Node, tag string) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// collectText gathers text nodes under n, skipping non-content subtrees, and
// collapses all whitespace runs to single spaces.
func collectText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && skipTags[node.Data] {
			return
		}
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			sb.WriteByte(' ')
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// clip cuts s to at most max bytes without splitting a UTF-8 rune.
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
