package scraper

import (
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// Elements and classes that carry page chrome rather than content.
var (
	chromeTags = []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button", "svg",
	}
	chromeClasses = []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "footer", "header",
		"cookie", "cookie-banner", "ad", "advertisement", "social", "share",
		"comments", "breadcrumb",
	}
)

// htmlConverter turns a fetched page into Markdown suitable for a prompt.
type htmlConverter struct {
	converter *md.Converter
}

func newHTMLConverter() *htmlConverter {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	return &htmlConverter{converter: converter}
}

// convert returns the page title and the Markdown body.
func (c *htmlConverter) convert(content []byte) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(string(content)))
	if err != nil {
		cleaned := styleRe.ReplaceAllString(scriptRe.ReplaceAllString(string(content), ""), "")
		markdown, convErr := c.converter.ConvertString(cleaned)
		if convErr != nil {
			return "", "", convErr
		}
		return "", tidy(markdown), nil
	}

	title := pageTitle(doc)

	markdown, err := c.converter.ConvertString(mainContent(doc))
	if err != nil {
		return "", "", err
	}
	return title, tidy(markdown), nil
}

func pageTitle(doc *html.Node) string {
	if n := findElement(doc, "title"); n != nil && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	return ""
}

// mainContent prefers an explicit main region and otherwise strips chrome
// from the body.
func mainContent(doc *html.Node) string {
	for _, selector := range []string{"main", "article", "[role=main]"} {
		if node := findElement(doc, selector); node != nil {
			removeMatching(node, chromeTags, nil)
			return render(node)
		}
	}

	removeMatching(doc, chromeTags, chromeClasses)
	if body := findElement(doc, "body"); body != nil {
		return render(body)
	}
	return render(doc)
}

func findElement(n *html.Node, selector string) *html.Node {
	if n.Type == html.ElementNode && matches(n, selector) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, selector); found != nil {
			return found
		}
	}
	return nil
}

// matches supports tag names and [attr=value].
func matches(n *html.Node, selector string) bool {
	if strings.HasPrefix(selector, "[") && strings.HasSuffix(selector, "]") {
		key, val, ok := strings.Cut(strings.Trim(selector, "[]"), "=")
		if !ok {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == key && a.Val == val {
				return true
			}
		}
		return false
	}
	return n.Data == selector
}

// removeMatching detaches every element whose tag is in tags or whose class
// list intersects classes.
func removeMatching(root *html.Node, tags, classes []string) {
	tagSet := toSet(tags)
	classSet := toSet(classes)

	var doomed []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (tagSet[n.Data] || hasClass(n, classSet)) {
			doomed = append(doomed, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	for _, n := range doomed {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
	}
}

func hasClass(n *html.Node, classes map[string]bool) bool {
	if len(classes) == 0 {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(strings.ToLower(a.Val)) {
			if classes[c] {
				return true
			}
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}

func render(n *html.Node) string {
	var sb strings.Builder
	_ = html.Render(&sb, n)
	return sb.String()
}

func tidy(markdown string) string {
	lines := strings.Split(markdown, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
