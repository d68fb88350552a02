package textutil

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

var (
	excessNewlines = regexp.MustCompile(`\n{3,}`)
	inlineRuns     = regexp.MustCompile(`[ \t]+`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// NormalizeBody cleans up extracted message text. It is deterministic
// and idempotent: re-running it on its own output changes nothing.
func NormalizeBody(text string) string {
	text = excessNewlines.ReplaceAllString(text, "\n\n")
	text = inlineRuns.ReplaceAllString(text, " ")
	return strings.Trim(text, " \t\n")
}

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRuns.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

func RemoveNonPrintable(s string) string {
	out := strings.Builder{}
	for _, c := range s {
		if unicode.IsPrint(c) || c == '\n' || c == '\t' {
			out.WriteRune(c)
		}
	}
	return out.String()
}

// NodeText returns the concatenated text content of a node subtree,
// the same way the browser's innerText walks text nodes.
func NodeText(node *html.Node) string {
	var buffer bytes.Buffer
	nodeTextRecursive(node, &buffer)
	return buffer.String()
}

func nodeTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		nodeTextRecursive(child, buffer)
		child = child.NextSibling
	}
}
