package transform

import (
	"fmt"
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// delayCall is one detected suspension point: a call of the form
// receiver.delay(...) or receiver.delayMs(...), given in canonical form.
type delayCall struct {
	Method string // "delay" or "delayMs"
	Call   span   // the whole "recv.method(args)" expression
}

// analysis is the structural picture of a task body the rewriter needs:
// where the function and its statements live in the source, what its
// receiver parameter is called, and every suspension point found inside it.
type analysis struct {
	Src         string
	FnStart     int
	FnBodyStart int // index of '{'
	FnBodyEnd   int // index just past '}'
	ParamName   string
	ParamSpan   span // the parameter identifier's own occurrence in the header
	Statements  []span
	Qualified   []delayCall
	HasBareCall bool // saw a bare delay(...)/delayMs(...) call, unqualified
}

// analyze parses src as a single top-level function (declaration or
// parenthesized expression) and locates its receiver parameter and every
// delay/delayMs call reachable from its top-level statements.
func analyze(src string) (*analysis, error) {
	prog, err := parser.ParseFile(nil, "task.js", src, 0)
	if err != nil {
		return nil, fmt.Errorf("parsing task body: %w", err)
	}
	if len(prog.Body) != 1 {
		return nil, fmt.Errorf("task body must contain exactly one top-level function, found %d statements", len(prog.Body))
	}

	var fn *ast.FunctionLiteral
	switch stmt := prog.Body[0].(type) {
	case *ast.FunctionDeclaration:
		fn = stmt.Function
	case *ast.ExpressionStatement:
		if lit, ok := stmt.Expression.(*ast.FunctionLiteral); ok {
			fn = lit
		}
	}
	if fn == nil {
		return nil, fmt.Errorf("task body must be a function declaration or a parenthesized function expression")
	}
	if fn.Generator {
		return nil, fmt.Errorf("task body must not already be a generator function")
	}
	if fn.Body == nil {
		return nil, fmt.Errorf("task body function has no block body")
	}

	a := &analysis{
		Src:         src,
		FnStart:     int(fn.Idx0()) - 1,
		FnBodyStart: int(fn.Body.Idx0()) - 1,
		FnBodyEnd:   int(fn.Body.Idx1()) - 1,
	}
	for _, st := range fn.Body.List {
		a.Statements = append(a.Statements, span{int(st.Idx0()) - 1, int(st.Idx1()) - 1})
	}

	skip := buildSkipMask(src)

	paramName, paramSpan, err := extractParam(src, skip, a.FnStart, a.FnBodyStart)
	if err != nil {
		return nil, err
	}
	a.ParamName = paramName
	a.ParamSpan = paramSpan

	if paramName != "" {
		if err := collectDelayCalls(a, skip); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// extractParam recovers the sole formal parameter's name and source span
// from the text between the function's parameter list parentheses. Only a
// single bare identifier parameter is supported, matching the receiver
// contract every task body is written against.
func extractParam(src string, skip []bool, fnStart, bodyStart int) (string, span, error) {
	closeParen := -1
	for i := skipSpaceBackward(src, skip, bodyStart); i >= fnStart; i-- {
		if !skip[i] && src[i] == ')' {
			closeParen = i
			break
		}
	}
	if closeParen < 0 {
		return "", span{}, fmt.Errorf("could not locate parameter list")
	}
	openParen, ok := matchOpenParen(src, skip, closeParen)
	if !ok {
		return "", span{}, fmt.Errorf("unbalanced parameter list")
	}

	text := strings.TrimSpace(src[openParen+1 : closeParen])
	if text == "" {
		return "", span{}, nil // zero-arg task body: no receiver, no suspension possible
	}
	if strings.Contains(text, ",") {
		return "", span{}, fmt.Errorf("task body function must take at most one parameter")
	}

	pStart := openParen + 1
	for pStart < closeParen && isSpace(src[pStart]) {
		pStart++
	}
	pEnd := pStart
	for pEnd < closeParen && isIdentPart(src[pEnd]) {
		pEnd++
	}
	if pStart == pEnd || !isIdentStart(src[pStart]) {
		return "", span{}, fmt.Errorf("unsupported parameter form %q", text)
	}
	return src[pStart:pEnd], span{pStart, pEnd}, nil
}

func matchOpenParen(src string, skip []bool, close int) (int, bool) {
	depth := 0
	for i := close; i >= 0; i-- {
		if skip[i] {
			continue
		}
		switch src[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}

// collectDelayCalls scans the whole function body for receiver.delay(...)
// and receiver.delayMs(...) calls, and flags any bare delay(...)/delayMs(...)
// call that is not qualified by the receiver.
func collectDelayCalls(a *analysis, skip []bool) error {
	src := a.Src
	for _, method := range []string{"delay", "delayMs"} {
		for _, word := range findWordOccurrences(src, skip, a.FnBodyStart, a.FnBodyEnd, method) {
			openParen := skipSpaceForward(src, skip, word.End)
			if openParen >= len(src) || skip[openParen] || src[openParen] != '(' {
				continue // "delay" used as a plain identifier, not a call
			}
			closeParen, ok := matchParen(src, skip, openParen)
			if !ok {
				return fmt.Errorf("unbalanced call to %s", method)
			}

			dotPos := skipSpaceBackward(src, skip, word.Start)
			if dotPos < 0 || skip[dotPos] || src[dotPos] != '.' {
				a.HasBareCall = true
				continue
			}
			recv, ok := identBefore(src, skip, skipSpaceBackward(src, skip, dotPos)+1)
			if !ok || src[recv.Start:recv.End] != a.ParamName {
				a.HasBareCall = true
				continue
			}
			a.Qualified = append(a.Qualified, delayCall{
				Method: method,
				Call:   span{recv.Start, closeParen + 1},
			})
		}
	}
	return nil
}

// edit is a single splice: replace src[Start:End) with Text. Start == End
// makes it a pure insertion.
type edit struct {
	Start, End int
	Text       string
}

// applyEdits performs every edit against src in right-to-left order, so
// earlier (leftward) edits never see offsets invalidated by later ones.
func applyEdits(src string, edits []edit) string {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0; j-- {
			a, b := sorted[j-1], sorted[j]
			if a.Start < b.Start || (a.Start == b.Start && a.End < b.End) {
				sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
			}
		}
	}
	out := src
	for _, e := range sorted {
		out = out[:e.Start] + e.Text + out[e.End:]
	}
	return out
}
