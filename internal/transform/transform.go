// Package transform implements the source-to-generator rewrite that turns a
// task body written as plain, blocking-looking JavaScript into a restartable
// unit: a real ECMAScript generator function whose native next() call is
// exactly one step().
//
// The pipeline mirrors the teacher's own two-phase style — parse structure,
// then apply targeted edits — except where the teacher parses YAML into a
// config struct, this parses JavaScript far enough to find statement and
// call boundaries, then splices the original source text right-to-left
// (see rewrite.go) rather than re-printing a rewritten AST. That keeps
// every byte of the author's formatting and comments intact outside the
// handful of insertions the rewrite actually makes.
package transform

import (
	"fmt"
	"strings"
)

// Mode selects how aggressively the rewrite introduces suspension points.
type Mode int

const (
	// ModeDelayOnly suspends only at receiver.delay/delayMs calls.
	ModeDelayOnly Mode = iota
	// ModeStatementLevel additionally suspends after every other top-level
	// statement, so a single tick's worth of scheduling latency is bounded
	// by one statement rather than by a whole task body.
	ModeStatementLevel
)

const canonicalReceiver = "__rtos_ctx"

// Result is the outcome of transforming one task body.
type Result struct {
	// Generator is true if the produced program is a generator function
	// with at least one yield point; false means the body was wrapped as a
	// trivial synchronous unit (§4.1 step 2/3 fallback).
	Generator bool
	// Program is a self-contained JavaScript expression: either
	// "(function* (ctx) {...})" or, for the trivial case, the original
	// body wrapped in parentheses.
	Program string
	// Diagnostics records why a fallback to trivial wrapping occurred, if
	// it did. Empty when Generator is true.
	Diagnostics []string
	// SuspensionPoints counts the yield points inserted into Program: one
	// per qualified delay/delayMs call, plus (in ModeStatementLevel) one
	// per top-level statement that wasn't already such a call.
	SuspensionPoints int
}

// Transform analyzes src (a single JavaScript function, declaration or
// parenthesized expression) and produces the program text and receiver
// binding info needed to instantiate a restartable unit for it.
func Transform(src string, mode Mode) (*Result, error) {
	a, err := analyze(src)
	if err != nil {
		return nil, err
	}

	if a.ParamName == "" {
		return &Result{
			Program:     "(" + strings.TrimSpace(src) + ")",
			Diagnostics: []string{"task body takes no parameter; no suspension points are possible"},
		}, nil
	}

	if len(a.Qualified) == 0 && (mode != ModeStatementLevel || len(statementYieldEdits(a)) == 0) {
		diags := []string{fmt.Sprintf("no calls of the form %s.delay(...) or %s.delayMs(...) were found", a.ParamName, a.ParamName)}
		if a.HasBareCall {
			diags = append(diags, "found unqualified delay(...)/delayMs(...) calls; these are not suspension points and run as ordinary calls")
		}
		return &Result{
			Program:     "(" + strings.TrimSpace(src) + ")",
			Diagnostics: diags,
		}, nil
	}

	var edits []edit

	// Turn "function" into "function*".
	edits = append(edits, edit{Start: a.FnStart + len("function"), End: a.FnStart + len("function"), Text: "*"})

	// Wrap every qualified delay/delayMs call in "(yield ...)".
	for _, c := range a.Qualified {
		edits = append(edits, edit{Start: c.Call.Start, End: c.Call.Start, Text: "(yield "})
		edits = append(edits, edit{Start: c.Call.End, End: c.Call.End, Text: ")"})
	}

	// Rename every occurrence of the receiver parameter to the canonical
	// name, including its own declaration in the parameter list.
	skip := buildSkipMask(src)
	for _, occ := range findWordOccurrences(src, skip, a.FnStart, a.FnBodyEnd, a.ParamName) {
		edits = append(edits, edit{Start: occ.Start, End: occ.End, Text: canonicalReceiver})
	}

	points := len(a.Qualified)
	if mode == ModeStatementLevel {
		stmtEdits := statementYieldEdits(a)
		edits = append(edits, stmtEdits...)
		points += len(stmtEdits)
	}

	rewritten := applyEdits(src, edits)
	return &Result{
		Generator:        true,
		Program:          "(" + strings.TrimSpace(rewritten) + ")",
		SuspensionPoints: points,
	}, nil
}

// statementYieldEdits inserts "yield undefined;" after every top-level
// statement that is not itself a function definition and is not already a
// bare suspension point (a statement whose entire content is one qualified
// delay/delayMs call).
func statementYieldEdits(a *analysis) []edit {
	isBareCall := make(map[span]bool, len(a.Qualified))
	for _, c := range a.Qualified {
		isBareCall[c.Call] = true
	}

	var edits []edit
	for _, st := range a.Statements {
		text := strings.TrimSpace(a.Src[st.Start:st.End])
		if strings.HasPrefix(text, "function") {
			continue // a nested function definition is not a step of this body
		}
		trimmed := strings.TrimSuffix(text, ";")
		if isSoleCall(a.Src, st, trimmed, isBareCall) {
			continue // already a suspension point on its own
		}
		edits = append(edits, edit{Start: st.End, End: st.End, Text: "\nyield undefined;\n"})
	}
	return edits
}

// isSoleCall reports whether the statement at st contains nothing but one
// of the recorded qualified calls (module whitespace and a trailing ';').
func isSoleCall(src string, st span, trimmedText string, calls map[span]bool) bool {
	for callSpan := range calls {
		if strings.TrimSpace(src[callSpan.Start:callSpan.End]) == trimmedText {
			return true
		}
	}
	return false
}
