package signer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// 署名者名の抽出戦略
const (
	StrategyAI      = "ai"
	StrategySection = "section"
	StrategyPattern = "pattern"
)

const (
	minNameWords = 2
	maxNameWords = 4
	maxNameLen   = 60

	// AIに渡す本文の上限（文字数）
	maxAIInputRunes = 30000
)

// NameExtractor は契約本文から署名者候補の名前を抽出する。
type NameExtractor interface {
	// Strategy は戦略名を返す。メトリクス・ログのラベルに使用する。
	Strategy() string
	// ExtractNames は候補名を出現順に返す。重複排除・正規化は呼び出し側が行う。
	ExtractNames(ctx context.Context, text string) ([]string, error)
}

// JSONGenerator はJSONで応答する生成AIクライアントのインターフェース。
type JSONGenerator interface {
	GenerateJSON(ctx context.Context, systemInstruction, prompt string) (string, error)
}

// ErrMalformedResponse はAIの応答が文字列のJSON配列として解釈できないことを示す。
var ErrMalformedResponse = errors.New("malformed name list response")

// NewNameExtractor は戦略名に対応するNameExtractorを生成する。
func NewNameExtractor(strategy string, gen JSONGenerator) (NameExtractor, error) {
	switch strategy {
	case StrategyAI:
		if gen == nil {
			return nil, errors.New("ai name extraction requires a generator")
		}
		return &AIExtractor{gen: gen}, nil
	case StrategySection, "":
		return SectionExtractor{}, nil
	case StrategyPattern:
		return PatternExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown name extraction strategy: %q", strategy)
	}
}

// --- AI ---

const aiSystemInstruction = `You read contract text and list the people who are parties to it or are expected to sign it.
Return only a JSON array of strings, each string being one person's full name as written in the text.
Do not include company names, roles, titles or placeholder text. Return [] when no person is named.`

// AIExtractor は生成AIに本文を渡して名前の配列を取得する。
type AIExtractor struct {
	gen JSONGenerator
}

// NewAIExtractor はAIExtractorを生成する。
func NewAIExtractor(gen JSONGenerator) *AIExtractor {
	return &AIExtractor{gen: gen}
}

func (e *AIExtractor) Strategy() string { return StrategyAI }

// ExtractNames は生成AIの応答を名前の配列として解析する。
// 解析できない応答はErrMalformedResponseを返す。
func (e *AIExtractor) ExtractNames(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	raw, err := e.gen.GenerateJSON(ctx, aiSystemInstruction, "Contract text:\n"+truncateRunes(text, maxAIInputRunes))
	if err != nil {
		return nil, fmt.Errorf("failed to generate name list: %w", err)
	}
	return ParseNameList(raw)
}

var codeFence = regexp.MustCompile("(?s)^\\s*```(?:json)?\\s*(.*?)\\s*```\\s*$")

// ParseNameList はAIの応答を文字列配列として解析する。
// コードフェンスは取り除き、空白のみの要素は捨てる。
func ParseNameList(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// --- パターン ---

// capitalizedRun は同一行内で連続する大文字始まりの単語列に一致する。
// アクセント付きの文字を含む名前も対象とする。
var capitalizedRun = regexp.MustCompile(`\p{Lu}[\p{L}'\-]*\.?(?:[ \t]+\p{Lu}[\p{L}'\-]*\.?)*`)

// stopWords は大文字始まりでも人名ではない契約書の定型語（小文字）。
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "this": true, "that": true, "of": true,
	"by": true, "for": true, "to": true, "in": true, "on": true, "or": true, "with": true,
	"agreement": true, "contract": true, "party": true, "parties": true, "effective": true,
	"date": true, "dated": true, "governing": true, "law": true, "signature": true,
	"signatures": true, "signed": true, "sign": true, "witness": true, "whereof": true,
	"whereas": true, "now": true, "therefore": true, "section": true, "article": true,
	"schedule": true, "exhibit": true, "appendix": true, "clause": true, "terms": true,
	"conditions": true, "confidentiality": true, "termination": true, "payment": true,
	"services": true, "service": true, "company": true, "inc": true,
	"llc": true, "ltd": true, "corp": true, "corporation": true,
	"client": true, "provider": true, "contractor": true, "consultant": true,
	"employer": true, "employee": true, "landlord": true, "tenant": true, "buyer": true,
	"seller": true, "lessor": true, "lessee": true, "licensor": true, "licensee": true,
	"name": true, "title": true, "page": true, "notice": true, "notices": true,
	"non-disclosure": true, "nda": true, "mutual": true, "general": true, "entire": true,
	"scope": true, "work": true, "fees": true, "term": true, "liability": true,
	"indemnification": true, "dispute": true, "resolution": true, "amendment": true,
	"amendments": true, "severability": true, "miscellaneous": true, "recitals": true,
	"definitions": true, "representative": true, "authorized": true, "address": true,
	"email": true, "phone": true, "print": true, "printed": true,
	"force": true, "majeure": true, "intellectual": true, "property": true,
	"mr": true, "mrs": true, "ms": true, "dr": true,
}

// PatternExtractor は本文全体から人名らしき大文字始まりの単語列を抽出する。
type PatternExtractor struct{}

func (PatternExtractor) Strategy() string { return StrategyPattern }

func (PatternExtractor) ExtractNames(_ context.Context, text string) ([]string, error) {
	return matchNames(text), nil
}

// matchNames は大文字始まりの単語列を定型語で区切り、2〜4語の列を候補とする。
func matchNames(text string) []string {
	var names []string
	for _, run := range capitalizedRun.FindAllString(text, -1) {
		var seg []string
		flush := func() {
			if len(seg) >= minNameWords && len(seg) <= maxNameWords {
				name := strings.Join(seg, " ")
				if len(name) <= maxNameLen {
					names = append(names, name)
				}
			}
			seg = seg[:0]
		}
		for _, w := range strings.Fields(run) {
			// 文末のピリオドは除去し、イニシャル（"J."）は残す
			if len(w) > 2 {
				w = strings.TrimSuffix(w, ".")
			}
			if stopWords[strings.ToLower(w)] {
				flush()
				continue
			}
			seg = append(seg, w)
		}
		flush()
	}
	return names
}

// --- セクション ---

var (
	// sectionHeading は当事者・署名欄の見出しに一致する。
	sectionHeading = regexp.MustCompile(`(?im)^[ \t]*(?:the[ \t]+)?(?:parties|signatures?|signed[ \t]+by|in[ \t]+witness[ \t]+whereof|signatories)\b`)
	// betweenClause は「between X and Y」形式の当事者記述に一致する。
	betweenClause = regexp.MustCompile(`(?is)\bbetween\b(.{1,400}?)(?:\.[ \t]*\n|\n[ \t]*\n|$)`)
)

// sectionWindow は見出しから切り出す範囲の上限（バイト数）。
const sectionWindow = 2000

var (
	// numberedHeading は「1.」「2.3」「IV.」「Article 5」などで始まる条項見出しに一致する。
	numberedHeading = regexp.MustCompile(`(?i)^(?:\d+(?:\.\d+)*\.?|[ivx]+\.)(?:[ \t]+|$)`)
	// namedHeading は「Article 5」「Schedule A」などの見出しに一致する。
	namedHeading = regexp.MustCompile(`(?i)^(?:article|section|clause|schedule|exhibit|appendix)[ \t]+[\dA-Z]`)

	// headingWords は条項見出しに現れる語（小文字）。役割名（Client等）は署名欄に現れるため含めない。
	headingWords = map[string]bool{
		"recitals": true, "background": true, "purpose": true, "definitions": true,
		"scope": true, "services": true, "work": true, "deliverables": true, "term": true,
		"termination": true, "payment": true, "fees": true, "compensation": true,
		"confidentiality": true, "intellectual": true, "property": true, "force": true,
		"majeure": true, "governing": true, "law": true, "dispute": true, "resolution": true,
		"jurisdiction": true, "arbitration": true, "liability": true, "limitation": true,
		"indemnification": true, "warranties": true, "representations": true,
		"obligations": true, "insurance": true, "notices": true, "assignment": true,
		"waiver": true, "amendment": true, "amendments": true, "severability": true,
		"counterparts": true, "miscellaneous": true, "general": true, "provisions": true,
		"entire": true, "agreement": true,
	}

	// titleConnectors は見出し中で小文字のまま現れる語。
	titleConnectors = map[string]bool{"of": true, "and": true, "the": true, "&": true, "to": true, "for": true, "in": true, "on": true}
)

const maxHeadingWords = 6

// SectionExtractor は当事者・署名欄に範囲を絞ってパターン抽出する。
// 該当する範囲が見つからない、または範囲内に候補がない場合は本文全体を対象とする。
type SectionExtractor struct{}

func (SectionExtractor) Strategy() string { return StrategySection }

func (SectionExtractor) ExtractNames(_ context.Context, text string) ([]string, error) {
	scoped := scopedSections(text)
	if scoped != "" {
		if names := matchNames(scoped); len(names) > 0 {
			return names, nil
		}
	}
	return matchNames(text), nil
}

// scopedSections は当事者記述と署名欄の本文を連結して返す。
func scopedSections(text string) string {
	var parts []string
	if m := betweenClause.FindStringSubmatch(text); m != nil {
		parts = append(parts, m[1])
	}
	for _, loc := range sectionHeading.FindAllStringIndex(text, -1) {
		parts = append(parts, sectionBody(text[loc[0]:]))
	}
	return strings.Join(parts, "\n")
}

// sectionBody は見出し行から次の条項見出しの直前までを返す。
// 署名欄は空行で区切られることが多いため、空行では打ち切らない。
func sectionBody(text string) string {
	if len(text) > sectionWindow {
		text = text[:sectionWindow]
	}
	lines := strings.SplitAfter(text, "\n")
	end := len(lines[0])
	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		if sectionHeading.MatchString(trimmed) || isClauseHeading(trimmed) {
			break
		}
		end += len(line)
	}
	return text[:end]
}

// isClauseHeading は行が当事者・署名欄以外の条項見出しらしいかを判定する。
func isClauseHeading(line string) bool {
	if line == "" {
		return false
	}
	if namedHeading.MatchString(line) {
		return true
	}
	// 番号付きの行は、条項本文か条項名なら見出しとし、「1. Jane Doe, of London」のような当事者の列挙は続ける
	if loc := numberedHeading.FindStringIndex(line); loc != nil {
		rest := line[loc[1]:]
		return len(strings.Fields(rest)) > maxHeadingWords || isTitleHeading(rest)
	}
	return isTitleHeading(line)
}

// isTitleHeading は見出し語を含む短いタイトル形式の行かを判定する。
func isTitleHeading(line string) bool {
	// 「Name: ...」「Jane Doe, of London」のような記入欄・当事者記述は見出しではない
	if strings.ContainsAny(line, ":;,_()\"") || strings.HasSuffix(line, ".") {
		return false
	}
	words := strings.Fields(line)
	if len(words) > maxHeadingWords {
		return false
	}
	hasHeadingWord := false
	for _, w := range words {
		lower := strings.ToLower(w)
		if titleConnectors[lower] {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(w); !unicode.IsUpper(r) {
			return false
		}
		if headingWords[lower] {
			hasHeadingWord = true
		}
	}
	return hasHeadingWord
}
