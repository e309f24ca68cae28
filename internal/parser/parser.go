// Package parser 使用 goldmark 检查片段能否被独立解析
package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// StandardOptions goldmark 扩展配置，启用删除线以识别 ~~
var StandardOptions = []goldmark.Option{
	goldmark.WithExtensions(
		extension.Strikethrough,
	),
}

// emphasisMarkers are the paired markers goldmark understands. Spoilers
// (||) are Telegram-only and are not checked.
var emphasisMarkers = []string{"**", "__", "~~"}

// Leak is a paired marker that goldmark left as literal text.
type Leak struct {
	Marker string
	Offset int // byte offset in the checked text
}

// ParseAST 仅解析为 AST，不遍历
func ParseAST(markdown string) (ast.Node, []byte) {
	md := goldmark.New(StandardOptions...)
	source := []byte(markdown)
	return md.Parser().Parse(text.NewReader(source)), source
}

// Check parses one rendered segment on its own and reports paired
// markers that did not pair up. Code spans and code blocks are skipped.
func Check(segment string) []Leak {
	doc, source := ParseAST(segment)

	var leaks []Leak
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindFencedCodeBlock, ast.KindCodeBlock, ast.KindCodeSpan:
			return ast.WalkSkipChildren, nil
		case ast.KindText:
			t := n.(*ast.Text)
			value := string(t.Segment.Value(source))
			for _, m := range emphasisMarkers {
				if i := strings.Index(value, m); i >= 0 {
					leaks = append(leaks, Leak{Marker: m, Offset: t.Segment.Start + i})
				}
			}
		}
		return ast.WalkContinue, nil
	})
	return leaks
}

// CodeLanguages returns the info strings of the fenced code blocks in
// segment, in order. A block without a language yields "".
func CodeLanguages(segment string) []string {
	doc, source := ParseAST(segment)

	var langs []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindFencedCodeBlock {
			langs = append(langs, string(n.(*ast.FencedCodeBlock).Language(source)))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return langs
}
