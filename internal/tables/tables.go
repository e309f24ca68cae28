// Package tables wraps pipe-delimited ASCII tables in code fences so that
// the delivery channel renders them as monospace blocks.
package tables

import (
	"regexp"
	"strings"
)

var (
	// borderRe 匹配表格的水平分隔线，例如 +---+===+
	borderRe = regexp.MustCompile(`^\+[-=+]*\+\s*$`)

	// rowRe 匹配以 | 开始并以 | 结束的数据行
	rowRe = regexp.MustCompile(`^\|.*\|\s*$`)

	// borderStartRe 匹配仍可能补全为分隔线的不完整行
	borderStartRe = regexp.MustCompile(`^\+[-=+]*\s*$`)
)

type state int

const (
	stateNormal state = iota
	stateInsideFence
	stateTable
)

type lineClass int

const (
	classOther lineClass = iota
	classFence
	classBorder
	classRow
)

// Fencer is the streaming form of the table transform. Lines are
// classified once complete. A partial trailing line is passed on at once
// unless it could still become part of a table, in which case it is held
// until more text arrives or Close is called. A Fencer is not safe for
// concurrent use.
type Fencer struct {
	fence   string
	state   state
	head    string // part of the current line already passed on
	pending string
	table   []string
	hasRow  bool
}

// NewFencer 创建 Fencer，fence 为空时使用 ```
func NewFencer(fence string) *Fencer {
	if fence == "" {
		fence = "```"
	}
	return &Fencer{fence: fence}
}

// Write feeds a chunk and returns the output that is final so far.
func (f *Fencer) Write(chunk string) string {
	f.pending += chunk
	var out strings.Builder
	for {
		i := strings.IndexByte(f.pending, '\n')
		if i < 0 {
			break
		}
		line := f.head + f.pending[:i+1]
		f.pending = f.pending[i+1:]
		f.line(&out, line, len(f.head))
		f.head = ""
	}
	f.release(&out)
	return out.String()
}

// release passes on the partial line when no table can start or continue
// with it.
func (f *Fencer) release(out *strings.Builder) {
	if f.pending == "" {
		return
	}
	switch f.state {
	case stateTable:
		if c := f.pending[0]; c == '+' || c == '|' {
			return
		}
		f.endTable(out)
	case stateNormal:
		if f.head == "" && borderStartRe.MatchString(f.pending) {
			return
		}
	}
	out.WriteString(f.pending)
	f.head += f.pending
	f.pending = ""
}

// Close flushes the held partial line and any table block still open.
func (f *Fencer) Close() string {
	var out strings.Builder
	if f.head != "" || f.pending != "" {
		f.line(&out, f.head+f.pending, len(f.head))
		f.head, f.pending = "", ""
	}
	if f.state == stateTable {
		f.endTable(&out)
	}
	f.state = stateNormal
	return out.String()
}

// Reset discards all state.
func (f *Fencer) Reset() {
	f.state = stateNormal
	f.head = ""
	f.pending = ""
	f.table = nil
	f.hasRow = false
}

func (f *Fencer) classify(line string) lineClass {
	stripped := strings.TrimRight(line, "\r\n")
	switch {
	case strings.HasPrefix(strings.TrimSpace(stripped), f.fence):
		return classFence
	case borderRe.MatchString(stripped):
		return classBorder
	case rowRe.MatchString(stripped):
		return classRow
	default:
		return classOther
	}
}

// line runs one physical line through the state machine. The first skip
// bytes were already passed on by release.
func (f *Fencer) line(out *strings.Builder, line string, skip int) {
	class := f.classify(line)
	switch f.state {
	case stateInsideFence:
		if class == classFence {
			f.state = stateNormal
		}
		out.WriteString(line[skip:])
	case stateTable:
		if class == classBorder || class == classRow {
			f.table = append(f.table, line)
			f.hasRow = f.hasRow || class == classRow
			return
		}
		f.endTable(out)
		f.line(out, line, skip)
	default:
		switch class {
		case classFence:
			f.state = stateInsideFence
			out.WriteString(line[skip:])
		case classBorder:
			f.state = stateTable
			f.table = append(f.table[:0], line)
			f.hasRow = false
		default:
			out.WriteString(line[skip:])
		}
	}
}

// endTable emits the accumulated block, fenced only if it holds a data row.
func (f *Fencer) endTable(out *strings.Builder) {
	if f.hasRow {
		out.WriteString(f.fence + "\n")
	}
	for _, l := range f.table {
		out.WriteString(l)
	}
	if f.hasRow {
		if last := f.table[len(f.table)-1]; !strings.HasSuffix(last, "\n") {
			out.WriteString("\n")
		}
		out.WriteString(f.fence + "\n")
	}
	f.table = f.table[:0]
	f.hasRow = false
	f.state = stateNormal
}

// Wrap 对完整文本做一次表格围栏处理
func Wrap(text string, fence string) string {
	f := NewFencer(fence)
	return f.Write(text) + f.Close()
}
