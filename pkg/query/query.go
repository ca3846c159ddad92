// Package query evaluates news search expressions such as
// `grains AND tender AND (GASC OR Tunisia OR Algeria)` against headline text
// for providers that only filter by symbol.
package query

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrEmpty = errors.New("query: empty expression")

// Expr is a parsed search expression.
type Expr struct {
	source string
	root   node
}

// Parse compiles a search expression. Operators are upper-case AND, OR and
// NOT; adjacent terms are ANDed; double quotes group a phrase. NOT binds
// tighter than AND, AND tighter than OR.
func Parse(s string) (*Expr, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, ErrEmpty
	}

	p := &parser{tokens: tokens}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("query: unexpected %q at token %d", p.peek().text, p.pos+1)
	}

	return &Expr{source: strings.TrimSpace(s), root: root}, nil
}

// MustParse is Parse for expressions known at compile time.
func MustParse(s string) *Expr {
	e, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return e
}

// Match reports whether text satisfies the expression. Terms match whole
// words, case-insensitively.
func (e *Expr) Match(text string) bool {
	return e.root.eval(words(text))
}

func (e *Expr) String() string {
	return e.source
}

type node interface {
	eval(text []string) bool
}

type termNode struct {
	words []string
}

func (n termNode) eval(text []string) bool {
	if len(n.words) == 0 {
		return false
	}
	for i := 0; i+len(n.words) <= len(text); i++ {
		matched := true
		for j, w := range n.words {
			if text[i+j] != w {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

type andNode struct{ left, right node }

func (n andNode) eval(text []string) bool { return n.left.eval(text) && n.right.eval(text) }

type orNode struct{ left, right node }

func (n orNode) eval(text []string) bool { return n.left.eval(text) || n.right.eval(text) }

type notNode struct{ operand node }

func (n notNode) eval(text []string) bool { return !n.operand.eval(text) }

// words lower-cases text and splits it on anything that is not a letter or digit.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
