package transform

// scan.go implements the lexical half of the rewrite: a comment/string-aware
// byte scanner used to locate identifier occurrences and call sites within
// spans the parser already told us are statements or the function body.
// Splicing by byte offset (rather than re-printing a rewritten AST) keeps
// the original formatting, comments, and whitespace of the task body intact
// — the same reason the teacher's CSV writer works line-by-line instead of
// re-serializing an in-memory model.

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// buildSkipMask marks every byte that lies inside a string, template, or
// comment literal, so identifier/call scanning can ignore lookalike text
// inside them (e.g. the word "delay" appearing in a log message).
func buildSkipMask(src string) []bool {
	skip := make([]bool, len(src))
	mark := func(from, to int) {
		for i := from; i < to && i < len(skip); i++ {
			skip[i] = true
		}
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			start := i
			for i < len(src) && src[i] != '\n' {
				i++
			}
			mark(start, i)
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			start := i
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			if i+1 < len(src) {
				i += 2
			} else {
				i = len(src)
			}
			mark(start, i)
		case c == '"' || c == '\'' || c == '`':
			quote := c
			start := i
			i++
			for i < len(src) && src[i] != quote {
				if src[i] == '\\' && i+1 < len(src) {
					i++
				}
				i++
			}
			if i < len(src) {
				i++
			}
			mark(start, i)
		default:
			i++
		}
	}
	return skip
}

// span is a half-open byte range [Start, End) into the original source.
type span struct {
	Start, End int
}

func (s span) empty() bool { return s.Start >= s.End }

// findWordOccurrences returns every standalone occurrence of word as a full
// identifier token within [lo, hi), skipping string/comment content.
func findWordOccurrences(src string, skip []bool, lo, hi int, word string) []span {
	var out []span
	n := len(word)
	for i := lo; i+n <= hi; i++ {
		if skip[i] {
			continue
		}
		if !isIdentStart(src[i]) {
			continue
		}
		if i > 0 && isIdentPart(src[i-1]) {
			continue
		}
		if src[i:i+n] != word {
			continue
		}
		if i+n < len(src) && isIdentPart(src[i+n]) {
			continue
		}
		out = append(out, span{i, i + n})
		i += n - 1
	}
	return out
}

// skipSpaceForward returns the index of the first non-space, non-skip byte
// at or after from, or len(src) if none exists.
func skipSpaceForward(src string, skip []bool, from int) int {
	i := from
	for i < len(src) && (isSpace(src[i]) || skip[i]) {
		i++
	}
	return i
}

// skipSpaceBackward returns the index of the last non-space, non-skip byte
// strictly before from, or -1 if none exists.
func skipSpaceBackward(src string, skip []bool, from int) int {
	i := from - 1
	for i >= 0 && (isSpace(src[i]) || skip[i]) {
		i--
	}
	return i
}

// matchParen finds the index of the ')' matching the '(' at src[open],
// honoring the skip mask so parens inside strings/comments are ignored.
func matchParen(src string, skip []bool, open int) (int, bool) {
	depth := 0
	for i := open; i < len(src); i++ {
		if skip[i] {
			continue
		}
		switch src[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

// identBefore scans backward from just-before end to find the span of the
// identifier token ending at end (end is the index just past its last
// byte), or !ok if there is no identifier there.
func identBefore(src string, skip []bool, end int) (span, bool) {
	if end <= 0 || skip[end-1] || !isIdentPart(src[end-1]) {
		return span{}, false
	}
	start := end
	for start > 0 && !skip[start-1] && isIdentPart(src[start-1]) {
		start--
	}
	if !isIdentStart(src[start]) {
		return span{}, false
	}
	return span{start, end}, true
}
