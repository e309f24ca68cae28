package markup

import "strings"

// Stack is the LIFO record of spans opened but not yet closed.
type Stack struct {
	items []Token
	// escaped marks the next byte as literal; it carries across Apply calls.
	escaped bool
}

// Len returns the number of open spans.
func (s *Stack) Len() int {
	return len(s.items)
}

// Top returns the innermost open span.
func (s *Stack) Top() (Token, bool) {
	if len(s.items) == 0 {
		return Token{}, false
	}
	return s.items[len(s.items)-1], true
}

// Push opens a span.
func (s *Stack) Push(t Token) {
	s.items = append(s.items, t)
}

// Pop closes the innermost span.
func (s *Stack) Pop() (Token, bool) {
	t, ok := s.Top()
	if ok {
		s.items = s.items[:len(s.items)-1]
	}
	return t, ok
}

// Items returns a copy of the open spans, bottom first.
func (s *Stack) Items() []Token {
	out := make([]Token, len(s.items))
	copy(out, s.items)
	return out
}

// Clone returns an independent copy of the stack.
func (s *Stack) Clone() Stack {
	return Stack{items: append([]Token(nil), s.items...), escaped: s.escaped}
}

// Escaped reports whether the text applied so far ended in a backslash
// that escapes the next byte.
func (s *Stack) Escaped() bool {
	return s.escaped
}

// Reset empties the stack.
func (s *Stack) Reset() {
	s.items = s.items[:0]
	s.escaped = false
}

// Prefix 为当前仍打开的所有 span 生成重新打开的标记（自底向上）
func (s *Stack) Prefix() string {
	var sb strings.Builder
	for _, t := range s.items {
		sb.WriteString(t.OpenForm())
	}
	return sb.String()
}

// Postfix 为当前仍打开的所有 span 生成关闭标记（自顶向下）
func (s *Stack) Postfix() string {
	var sb strings.Builder
	for i := len(s.items) - 1; i >= 0; i-- {
		sb.WriteString(s.items[i].CloseForm())
	}
	return sb.String()
}

// Apply scans text for tokens in order of appearance and updates the stack.
//
// While a fence is on top only a fence delimiter is recognized, and it closes
// the fence whatever its language tag. With opaque inline code the same holds
// for the code marker. Elsewhere a token equal to the top closes it and any
// other token opens a new span. When the grammar enables escapes, a
// backslash outside code makes the next byte literal, even when that byte
// arrives in a later call.
func (s *Stack) Apply(g *Grammar, text string) {
	for i := 0; i < len(text); {
		if s.escaped {
			s.escaped = false
			i++
			continue
		}
		top, open := s.Top()
		switch {
		case open && top.Kind == Fence:
			if strings.HasPrefix(text[i:], g.fence) {
				s.Pop()
				i += len(g.fence) + langLen(text[i+len(g.fence):])
				continue
			}
			i++
			continue
		case open && top.Kind == Code && g.codeMarker != "" && top.Marker == g.codeMarker:
			if strings.HasPrefix(text[i:], g.codeMarker) {
				s.Pop()
				i += len(g.codeMarker)
				continue
			}
			i++
			continue
		}

		if g.escapes && text[i] == '\\' {
			s.escaped = true
			i++
			continue
		}
		tok, n, ok := g.match(text[i:])
		if !ok {
			i++
			continue
		}
		if open && tok.Closes(top) {
			s.Pop()
		} else {
			s.Push(tok)
		}
		i += n
	}
}
