// Package markup recognizes the inline span delimiters of the delivery
// dialect and tracks which spans are open across segment boundaries.
package markup

import (
	"sort"
	"strings"
)

// Kind 标记类型（封闭枚举）
type Kind int

const (
	Bold Kind = iota
	Underline
	Strikethrough
	Spoiler
	Italic
	Code
	Fence
)

// String returns the name of the span kind.
func (k Kind) String() string {
	switch k {
	case Bold:
		return "bold"
	case Underline:
		return "underline"
	case Strikethrough:
		return "strikethrough"
	case Spoiler:
		return "spoiler"
	case Italic:
		return "italic"
	case Code:
		return "code"
	case Fence:
		return "fence"
	default:
		return "unknown"
	}
}

// Delimiter pairs a symmetric marker with the span kind it opens and closes.
type Delimiter struct {
	Marker string
	Kind   Kind
}

// DefaultDelimiters 返回默认的对称标记（长标记在前）
func DefaultDelimiters() []Delimiter {
	return []Delimiter{
		{Marker: "**", Kind: Bold},
		{Marker: "__", Kind: Underline},
		{Marker: "~~", Kind: Strikethrough},
		{Marker: "||", Kind: Spoiler},
		{Marker: "*", Kind: Italic},
		{Marker: "_", Kind: Italic},
		{Marker: "`", Kind: Code},
	}
}

// Token is one recognized delimiter. Lang is only set for fence openers.
type Token struct {
	Kind   Kind
	Marker string
	Lang   string
}

// Closes reports whether t closes a span opened by open. Fences match any
// fence regardless of language tag; symmetric markers must match exactly.
func (t Token) Closes(open Token) bool {
	if t.Kind == Fence || open.Kind == Fence {
		return t.Kind == Fence && open.Kind == Fence
	}
	return t.Marker == open.Marker
}

// OpenForm renders the token as it appears when a span is (re)opened.
func (t Token) OpenForm() string {
	if t.Kind == Fence {
		return t.Marker + t.Lang + "\n"
	}
	return t.Marker
}

// CloseForm renders the token as it appears when a span is closed. Fences
// close on their own line and never repeat the language tag.
func (t Token) CloseForm() string {
	if t.Kind == Fence {
		return "\n" + t.Marker
	}
	return t.Marker
}

// Grammar is the token grammar: a fence delimiter with an optional language
// tag, then the symmetric markers tried longest first.
type Grammar struct {
	fence      string
	delims     []Delimiter
	codeMarker string
	escapes    bool
	markerSet  [256]bool
}

// GrammarOptions 可选的识别规则，零值即基础规则
type GrammarOptions struct {
	// OpaqueInlineCode 内联代码内部只识别其结束标记
	OpaqueInlineCode bool
	// BackslashEscapes 反斜杠转义下一个字符
	BackslashEscapes bool
}

// NewGrammar 根据配置构建 Grammar
func NewGrammar(fence string, delims []Delimiter, opts GrammarOptions) *Grammar {
	if fence == "" {
		fence = "```"
	}
	sorted := make([]Delimiter, 0, len(delims))
	for _, d := range delims {
		if d.Marker != "" {
			sorted = append(sorted, d)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Marker) > len(sorted[j].Marker)
	})

	g := &Grammar{fence: fence, delims: sorted, escapes: opts.BackslashEscapes}
	for _, d := range sorted {
		if opts.OpaqueInlineCode && d.Kind == Code && g.codeMarker == "" {
			g.codeMarker = d.Marker
		}
		for i := 0; i < len(d.Marker); i++ {
			g.markerSet[d.Marker[i]] = true
		}
	}
	for i := 0; i < len(fence); i++ {
		g.markerSet[fence[i]] = true
	}
	return g
}

// Fence returns the fence delimiter.
func (g *Grammar) Fence() string {
	return g.fence
}

// IsMarkerByte reports whether b can be part of any delimiter.
func (g *Grammar) IsMarkerByte(b byte) bool {
	return g.markerSet[b]
}

// match tries to recognize a token at the start of s.
func (g *Grammar) match(s string) (Token, int, bool) {
	if strings.HasPrefix(s, g.fence) {
		n := len(g.fence) + langLen(s[len(g.fence):])
		return Token{Kind: Fence, Marker: g.fence, Lang: s[len(g.fence):n]}, n, true
	}
	for _, d := range g.delims {
		if strings.HasPrefix(s, d.Marker) {
			return Token{Kind: d.Kind, Marker: d.Marker}, len(d.Marker), true
		}
	}
	return Token{}, 0, false
}

// langLen returns the length of the language tag at the start of s.
func langLen(s string) int {
	n := 0
	for n < len(s) && isLangByte(s[n]) {
		n++
	}
	return n
}

func isLangByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '_', b == '+', b == '#', b == '.', b == '-':
		return true
	}
	return false
}
