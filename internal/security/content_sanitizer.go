package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContractSanitizerService は生成AIが出力した契約書HTMLのサニタイズ機能を定義する。
type ContractSanitizerService interface {
	// Sanitize は文書構造とレイアウト用のインラインスタイルを残し、
	// script, iframe, フォーム要素, on*イベント属性, 外部リソース参照を除去する。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// contractSanitizer はContractSanitizerServiceの実装。
// bluemondayのPolicyはスレッドセーフ。
type contractSanitizer struct {
	policy *bluemonday.Policy
}

// NewContractSanitizer は契約書向けのポリシーでサニタイザーを生成する。
func NewContractSanitizer() *contractSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"div", "span", "section", "article", "header", "footer",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr", "blockquote",
		"ul", "ol", "li",
		"strong", "b", "em", "i", "u", "small", "sub", "sup",
		"table", "thead", "tbody", "tfoot", "tr", "th", "td", "caption",
	)
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")

	// 印刷レイアウトに必要なスタイルのみ許可する
	p.AllowStyles(
		"margin", "margin-top", "margin-right", "margin-bottom", "margin-left",
		"padding", "padding-top", "padding-right", "padding-bottom", "padding-left",
		"font-family", "font-size", "font-weight", "font-style",
		"line-height", "text-align", "text-decoration", "text-indent",
		"color", "background-color", "border", "border-collapse",
		"width", "max-width", "vertical-align", "page-break-before", "page-break-after",
	).Globally()

	return &contractSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズする。
func (s *contractSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
