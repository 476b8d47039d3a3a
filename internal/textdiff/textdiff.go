// Package textdiff aligns two whitespace-tokenized texts, classifies spans as
// equal/insert/delete/replace, renders annotated HTML markup, and computes a
// normalized change ratio.
package textdiff

import (
	"html"
	"strings"

	"github.com/mandela-labs/report-cli/internal/model"
)

// Op classifies one aligned span.
type Op string

const (
	OpEqual   Op = "equal"
	OpInsert  Op = "insert"
	OpDelete  Op = "delete"
	OpReplace Op = "replace"
)

// OpCode is one classified span over both token sequences: tokens a[A1:A2]
// versus b[B1:B2]. A full opcode list covers both sequences contiguously,
// ordered left to right.
type OpCode struct {
	Op             Op
	A1, A2, B1, B2 int
}

// Tokenize splits text on runs of whitespace. Tokens compare by exact string
// equality; no punctuation normalization, no case folding.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// Align computes a longest-matching-blocks alignment between two token
// sequences and returns opcodes covering both. Adjacent delete-then-insert
// runs collapse into a single replace opcode. Two empty sequences yield a
// single zero-length equal opcode.
func Align(a, b []string) []OpCode {
	blocks := matchingBlocks(a, b)

	var ops []OpCode
	ai, bj := 0, 0
	for _, m := range blocks {
		var op Op
		switch {
		case ai < m.a && bj < m.b:
			op = OpReplace
		case ai < m.a:
			op = OpDelete
		case bj < m.b:
			op = OpInsert
		}
		if op != "" {
			ops = append(ops, OpCode{Op: op, A1: ai, A2: m.a, B1: bj, B2: m.b})
		}
		ai, bj = m.a+m.size, m.b+m.size
		if m.size > 0 {
			ops = append(ops, OpCode{Op: OpEqual, A1: m.a, A2: ai, B1: m.b, B2: bj})
		}
	}
	if len(ops) == 0 {
		ops = []OpCode{{Op: OpEqual}}
	}
	return ops
}

// Render produces the annotated HTML for an opcode sequence. Equal spans copy
// the b side verbatim; insertions and deletions are wrapped in tagged spans; a
// replace renders its deletion immediately followed by its insertion. Tokens
// are HTML-escaped and joined by single spaces.
func Render(ops []OpCode, a, b []string) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		switch op.Op {
		case OpEqual:
			parts = append(parts, escapeJoin(b[op.B1:op.B2]))
		case OpInsert:
			parts = append(parts, `<ins class="diff-ins">`+escapeJoin(b[op.B1:op.B2])+`</ins>`)
		case OpDelete:
			parts = append(parts, `<del class="diff-del">`+escapeJoin(a[op.A1:op.A2])+`</del>`)
		case OpReplace:
			parts = append(parts,
				`<del class="diff-del">`+escapeJoin(a[op.A1:op.A2])+`</del>`+
					`<ins class="diff-ins">`+escapeJoin(b[op.B1:op.B2])+`</ins>`)
		}
	}
	return `<div class="diff-body">` + strings.Join(parts, " ") + `</div>`
}

// Stats computes change statistics for an opcode sequence. The denominator is
// the longer side's token count, floored at 1; each non-equal opcode
// contributes the larger of its two span lengths so a same-length word swap
// counts once, not twice.
func Stats(ops []OpCode, lenA, lenB int) model.DiffStats {
	total := lenA
	if lenB > total {
		total = lenB
	}
	if total < 1 {
		total = 1
	}

	changed := 0
	for _, op := range ops {
		if op.Op == OpEqual {
			continue
		}
		da, db := op.A2-op.A1, op.B2-op.B1
		if db > da {
			da = db
		}
		changed += da
	}

	ratio := float64(changed) / float64(total)
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return model.DiffStats{TotalTokens: total, ChangedTokens: changed, Ratio: ratio}
}

// Diff tokenizes both texts, aligns them once, and returns the annotated
// markup together with change statistics.
func Diff(aText, bText string) (string, model.DiffStats) {
	a := Tokenize(aText)
	b := Tokenize(bText)
	ops := Align(a, b)
	return Render(ops, a, b), Stats(ops, len(a), len(b))
}

func escapeJoin(tokens []string) string {
	escaped := make([]string, len(tokens))
	for i, tok := range tokens {
		escaped[i] = html.EscapeString(tok)
	}
	return strings.Join(escaped, " ")
}
