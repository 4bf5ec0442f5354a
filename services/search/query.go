package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/meghashyamc/corescout/errs"
)

// Term is a positive query operand, kept for highlighting.
type Term struct {
	Text   string
	Prefix bool
}

// Query is a parsed search query. An empty Expression is the wildcard.
type Query struct {
	Raw        string
	Expression string
	Terms      []Term
}

func (q Query) IsWildcard() bool {
	return q.Expression == ""
}

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenPhrase
	tokenAnd
	tokenOr
	tokenNot
	tokenOpen
	tokenClose
)

type token struct {
	kind   tokenKind
	text   string
	prefix bool
	pos    int
}

// ParseQuery turns user input into an FTS5 expression in which every operand
// is quoted, so no user text is ever interpreted as FTS5 syntax. Operators are
// recognised in upper case only; "and" is an ordinary term.
func ParseQuery(raw string) (Query, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "*" {
		return Query{Raw: raw}, nil
	}

	tokens, err := lex(raw)
	if err != nil {
		return Query{}, err
	}
	if len(tokens) == 0 {
		return Query{Raw: raw}, nil
	}

	p := &parser{raw: raw, tokens: tokens}
	group, err := p.parseOr(false)
	if err != nil {
		return Query{}, err
	}
	if t, ok := p.peek(); ok {
		return Query{}, p.fail(t.pos, "unexpected closing parenthesis")
	}
	return Query{Raw: raw, Expression: group.expr, Terms: p.terms}, nil
}

func lex(raw string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(raw); {
		r, size := utf8.DecodeRuneInString(raw[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '(':
			tokens = append(tokens, token{kind: tokenOpen, pos: i})
			i++
		case r == ')':
			tokens = append(tokens, token{kind: tokenClose, pos: i})
			i++
		case r == '"':
			end := strings.IndexByte(raw[i+1:], '"')
			if end < 0 {
				return nil, &errs.QuerySyntaxError{Query: raw, Position: i, Reason: "unbalanced quote"}
			}
			if phrase := strings.TrimSpace(raw[i+1 : i+1+end]); phrase != "" {
				tokens = append(tokens, token{kind: tokenPhrase, text: phrase, pos: i})
			}
			i += end + 2
		default:
			start := i
			for i < len(raw) {
				r, size := utf8.DecodeRuneInString(raw[i:])
				if unicode.IsSpace(r) || r == '"' || r == '(' || r == ')' {
					break
				}
				i += size
			}
			word := raw[start:i]
			switch word {
			case "AND":
				tokens = append(tokens, token{kind: tokenAnd, pos: start})
			case "OR":
				tokens = append(tokens, token{kind: tokenOr, pos: start})
			case "NOT":
				tokens = append(tokens, token{kind: tokenNot, pos: start})
			default:
				t := token{kind: tokenWord, text: word, pos: start}
				if strings.HasSuffix(word, "*") {
					t.text = strings.TrimRight(word, "*")
					t.prefix = true
					if t.text == "" {
						return nil, &errs.QuerySyntaxError{Query: raw, Position: start, Reason: "prefix search needs at least one character before *"}
					}
				}
				tokens = append(tokens, t)
			}
		}
	}
	return tokens, nil
}

type parser struct {
	raw    string
	tokens []token
	pos    int
	terms  []Term
}

type group struct {
	expr     string
	compound bool
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	p.pos++
	return t
}

func (p *parser) fail(pos int, reason string) error {
	return &errs.QuerySyntaxError{Query: p.raw, Position: pos, Reason: reason}
}

// endPos is where errors about missing operands at the end of input point.
func (p *parser) endPos() int {
	return len(p.raw)
}

func (p *parser) parseOr(negated bool) (group, error) {
	first, err := p.parseAnd(negated)
	if err != nil {
		return group{}, err
	}
	parts := []group{first}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokenOr {
			break
		}
		p.next()
		if !p.startsOperand() {
			return group{}, p.fail(t.pos, "OR needs a term on its right")
		}
		part, err := p.parseAnd(negated)
		if err != nil {
			return group{}, err
		}
		parts = append(parts, part)
	}
	if len(parts) == 1 {
		return first, nil
	}

	exprs := make([]string, len(parts))
	for i, part := range parts {
		exprs[i] = part.expr
		if part.compound {
			exprs[i] = "(" + part.expr + ")"
		}
	}
	return group{expr: strings.Join(exprs, " OR "), compound: true}, nil
}

// parseAnd reads a run of operands joined by AND or by juxtaposition. FTS5
// only knows binary NOT, so negated operands are attached after the positive
// ones.
func (p *parser) parseAnd(negated bool) (group, error) {
	var positives, negatives []string
	notPos := -1
	for {
		t, ok := p.peek()
		if !ok || t.kind == tokenOr || t.kind == tokenClose {
			break
		}
		if t.kind == tokenAnd {
			if len(positives)+len(negatives) == 0 {
				return group{}, p.fail(t.pos, "AND needs a term on its left")
			}
			p.next()
			if !p.startsOperand() {
				return group{}, p.fail(t.pos, "AND needs a term on its right")
			}
			continue
		}

		exclude := false
		if t.kind == tokenNot {
			p.next()
			if !p.startsOperand() {
				return group{}, p.fail(t.pos, "NOT needs a term to exclude")
			}
			exclude = true
			if notPos < 0 {
				notPos = t.pos
			}
		}
		operand, err := p.parseOperand(negated || exclude)
		if err != nil {
			return group{}, err
		}
		if exclude {
			negatives = append(negatives, operand)
		} else {
			positives = append(positives, operand)
		}
	}

	if len(positives)+len(negatives) == 0 {
		t, ok := p.peek()
		switch {
		case !ok:
			return group{}, p.fail(p.endPos(), "expected a search term")
		case t.kind == tokenOr:
			return group{}, p.fail(t.pos, "OR needs a term on its left")
		case p.pos > 0 && p.tokens[p.pos-1].kind == tokenOpen:
			return group{}, p.fail(t.pos, "empty parentheses")
		default:
			return group{}, p.fail(t.pos, "unexpected closing parenthesis")
		}
	}
	if len(positives) == 0 {
		return group{}, p.fail(notPos, "NOT must follow a term to exclude from")
	}

	expr := strings.Join(positives, " AND ")
	if len(positives) > 1 && len(negatives) > 0 {
		expr = "(" + expr + ")"
	}
	for _, negative := range negatives {
		expr += " NOT " + negative
	}
	return group{expr: expr, compound: len(positives)+len(negatives) > 1}, nil
}

func (p *parser) parseOperand(negated bool) (string, error) {
	t := p.next()
	switch t.kind {
	case tokenWord:
		if !negated {
			p.terms = append(p.terms, Term{Text: t.text, Prefix: t.prefix})
		}
		if t.prefix {
			return quote(t.text) + "*", nil
		}
		return quote(t.text), nil
	case tokenPhrase:
		if !negated {
			p.terms = append(p.terms, Term{Text: t.text})
		}
		return quote(t.text), nil
	case tokenOpen:
		inner, err := p.parseOr(negated)
		if err != nil {
			return "", err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokenClose {
			return "", p.fail(t.pos, "unbalanced parenthesis")
		}
		p.next()
		return "(" + inner.expr + ")", nil
	default:
		return "", p.fail(t.pos, "unexpected operator")
	}
}

func (p *parser) startsOperand() bool {
	t, ok := p.peek()
	if !ok {
		return false
	}
	switch t.kind {
	case tokenWord, tokenPhrase, tokenOpen, tokenNot:
		return true
	}
	return false
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
