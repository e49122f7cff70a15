package drafting

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	firstDivMargin = "margin: 1cm;"
	defaultFont    = "font-family: Arial, sans-serif;"
)

var (
	fencePattern     = regexp.MustCompile("```(?:html)?\\n?")
	marginPattern    = regexp.MustCompile(`(?i)margin:\s*[^;"']+;?`)
	styledDivPattern = regexp.MustCompile(`(?i)<div([^>]*)style="([^"]*)"`)
)

// defaultStyles は書式指定のない見出し・段落に付与するスタイル。
var defaultStyles = map[atom.Atom]string{
	atom.H1: defaultFont + " text-align: center; font-weight: bold; margin-bottom: 20px;",
	atom.H2: defaultFont + " font-weight: bold; margin-top: 20px; margin-bottom: 10px;",
	atom.H3: defaultFont + " font-weight: bold; margin-top: 15px; margin-bottom: 8px;",
	atom.P:  defaultFont + " line-height: 1.5; margin-bottom: 10px;",
}

// cleanHTML はモデル出力を印刷向けのHTML断片に整える。
// コードフェンスと既存のmargin指定を除去し、最初のスタイル付きdivに1cmの余白を設定する。
// フォント指定が一切ない場合は見出しと段落に既定のスタイルを付与する。
func cleanHTML(raw string) string {
	cleaned := strings.TrimSpace(fencePattern.ReplaceAllString(raw, ""))
	cleaned = marginPattern.ReplaceAllString(cleaned, "")

	if loc := styledDivPattern.FindStringSubmatchIndex(cleaned); loc != nil {
		attrs := cleaned[loc[2]:loc[3]]
		style := strings.TrimSpace(cleaned[loc[4]:loc[5]])
		cleaned = cleaned[:loc[0]] + `<div` + attrs + `style="` + firstDivMargin + " " + style + `"` + cleaned[loc[1]:]
	}

	if !strings.Contains(cleaned, "font-family") {
		if styled, err := applyDefaultStyles(cleaned); err == nil {
			cleaned = styled
		}
	}
	return cleaned
}

// applyDefaultStyles はstyle属性を持たないh1/h2/h3/pに既定のスタイルを設定する。
func applyDefaultStyles(fragment string) (string, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return "", err
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if style, ok := defaultStyles[n.DataAtom]; ok && !hasAttr(n, "style") {
				n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: style})
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var buf bytes.Buffer
	for _, n := range nodes {
		walk(n)
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}
