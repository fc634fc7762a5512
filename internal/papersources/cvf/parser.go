package cvf

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// listing is one title entry of an open-access index page.
type listing struct {
	Title   string
	Link    string
	Authors []string
	PDF     string
}

// parseIndex extracts every <dt class="ptitle"> entry together with the
// authors and PDF link found in the <dd> blocks that follow it.
// Relative links are resolved against base.
func parseIndex(r io.Reader, base *url.URL) ([]listing, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []listing
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if isElement(n, "dt") && hasClass(n, "ptitle") {
			if l, ok := parseEntry(n, base); ok {
				out = append(out, l)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return out, nil
}

func parseEntry(dt *html.Node, base *url.URL) (listing, bool) {
	a := findFirst(dt, func(n *html.Node) bool { return isElement(n, "a") })
	if a == nil {
		return listing{}, false
	}
	title := strings.TrimSpace(textContent(a))
	if title == "" {
		return listing{}, false
	}

	// Link identifies the paper downstream; entries without one are dropped.
	href := strings.TrimSpace(getAttr(a, "href"))
	if href == "" || strings.HasPrefix(href, "#") {
		return listing{}, false
	}
	link := resolve(base, href)
	if link == "" {
		return listing{}, false
	}

	l := listing{
		Title:   title,
		Link:    link,
		Authors: []string{},
	}

	// Metadata lives in the dd siblings up to the next title.
	for sib := dt.NextSibling; sib != nil; sib = sib.NextSibling {
		if isElement(sib, "dt") {
			break
		}
		if !isElement(sib, "dd") {
			continue
		}
		l.Authors = append(l.Authors, authorsIn(sib)...)
		if l.PDF == "" {
			if pdf := findFirst(sib, isPDFAnchor); pdf != nil {
				l.PDF = resolve(base, getAttr(pdf, "href"))
			}
		}
	}
	return l, true
}

// authorsIn returns anchor texts inside author search forms or a div#authors.
func authorsIn(dd *html.Node) []string {
	var names []string
	var walk func(n *html.Node, inAuthors bool)
	walk = func(n *html.Node, inAuthors bool) {
		if isElement(n, "form") || (isElement(n, "div") && getAttr(n, "id") == "authors") {
			inAuthors = true
		}
		if inAuthors && isElement(n, "a") {
			if name := strings.TrimSpace(textContent(n)); name != "" {
				names = append(names, name)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inAuthors)
		}
	}
	walk(dd, false)
	return names
}

func isPDFAnchor(n *html.Node) bool {
	return isElement(n, "a") && strings.EqualFold(strings.TrimSpace(textContent(n)), "pdf")
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(getAttr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if match(c) {
			return c
		}
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
