package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aprove-developers/loat-accel/pkg/expr"
	"github.com/aprove-developers/loat-accel/pkg/its"
	"github.com/aprove-developers/loat-accel/pkg/ratio"
	"github.com/aprove-developers/loat-accel/pkg/vars"
)

// loadITS reads a minimal, line-oriented reading of spec.md 6's Format B
// ("a structured expression language with explicit locations, updates, and
// guards"). Parsing itself is an explicit Non-goal collaborator (spec.md
// 1); this loader covers only linear rules, which is enough to exercise
// every pkg/driver/pkg/chain/pkg/simplify operation end to end, and is not
// a claim of fidelity to the original tool's full grammar.
//
// Grammar (blank lines and lines starting with # are ignored):
//
//	initial: <location>
//	rule: <location> -> <location> [ <guard atoms, comma-separated> ] cost <expr> : <var> := <expr>, ...
//
// The "[ ... ]" guard clause and "cost ..." clause are both optional (guard
// defaults to true, cost defaults to 1); the ": ..." update clause is
// optional and defaults to the identity. Variable names are alphanumeric
// plus "_" and "'", beginning with a letter; a bare "I" is rewritten to "Q"
// to avoid the symbolic back-end's complex-number clash, per spec.md 6.
func loadITS(r io.Reader) (*its.ITS, error) {
	scanner := bufio.NewScanner(r)
	var g *its.ITS
	var pendingRules []string
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasPrefix(line, "initial:"):
			loc := strings.TrimSpace(strings.TrimPrefix(line, "initial:"))
			if loc == "" {
				return nil, fmt.Errorf("line %d: empty initial location", lineNo)
			}
			g = its.New(its.Location(loc))
		case strings.HasPrefix(line, "rule:"):
			pendingRules = append(pendingRules, strings.TrimSpace(strings.TrimPrefix(line, "rule:")))
		default:
			return nil, fmt.Errorf("line %d: expected \"initial:\" or \"rule:\", got %q", lineNo, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("missing \"initial:\" directive")
	}

	names := make(map[string]vars.Var)
	for _, body := range pendingRules {
		rule, err := parseRule(body, names)
		if err != nil {
			return nil, err
		}
		g.AddRule(rule)
	}
	return g, nil
}

func parseRule(body string, names map[string]vars.Var) (*its.Rule, error) {
	arrowIdx := strings.Index(body, "->")
	if arrowIdx < 0 {
		return nil, fmt.Errorf("rule %q: missing \"->\"", body)
	}
	source := strings.TrimSpace(body[:arrowIdx])
	rest := strings.TrimSpace(body[arrowIdx+2:])

	guard := its.True()
	cost := expr.ConstInt(1)
	update := its.NewUpdate()

	if idx := strings.Index(rest, "["); idx >= 0 {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil, fmt.Errorf("rule %q: unterminated guard clause", body)
		}
		target := strings.TrimSpace(rest[:idx])
		g, err := parseGuard(rest[idx+1:end], names)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", body, err)
		}
		guard = g
		rest = target + " " + strings.TrimSpace(rest[end+1:])
	}

	if idx := strings.Index(rest, "cost"); idx >= 0 {
		tail := strings.TrimSpace(rest[idx+len("cost"):])
		exprText, updateText, hasUpdate := cutOnce(tail, ":")
		c, err := parseExpr(strings.TrimSpace(exprText), names)
		if err != nil {
			return nil, fmt.Errorf("rule %q: cost: %w", body, err)
		}
		cost = c
		rest = strings.TrimSpace(rest[:idx])
		if hasUpdate {
			u, err := parseUpdate(updateText, names)
			if err != nil {
				return nil, fmt.Errorf("rule %q: %w", body, err)
			}
			update = u
		}
	} else if updateText, hasUpdate := cutUpdateClause(rest); hasUpdate {
		u, err := parseUpdate(updateText, names)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", body, err)
		}
		update = u
		rest = strings.TrimSpace(strings.SplitN(rest, ":", 2)[0])
	}

	target := strings.TrimSpace(rest)
	if target == "" {
		return nil, fmt.Errorf("rule %q: missing target location", body)
	}

	return its.NewRule(its.Location(source), guard, cost, []its.Branch{{Target: its.Location(target), Update: update}}), nil
}

// cutOnce splits s on the first occurrence of sep, reporting whether sep
// was present.
func cutOnce(s, sep string) (before, after string, found bool) {
	idx := strings.Index(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+len(sep):], true
}

func cutUpdateClause(s string) (string, bool) {
	idx := strings.Index(s, ":")
	if idx < 0 {
		return "", false
	}
	return s[idx+1:], true
}

func parseGuard(s string, names map[string]vars.Var) (its.Guard, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return its.True(), nil
	}
	var atoms []its.Atom
	for _, part := range strings.Split(s, ",") {
		a, err := parseAtom(strings.TrimSpace(part), names)
		if err != nil {
			return its.Guard{}, err
		}
		atoms = append(atoms, a)
	}
	return its.Guard{Atoms: atoms}, nil
}

var relOps = []struct {
	text string
	rel  its.Relation
}{
	{"<=", its.LE}, {">=", its.GE}, {"<", its.LT}, {">", its.GT}, {"=", its.EQ},
}

func parseAtom(s string, names map[string]vars.Var) (its.Atom, error) {
	for _, op := range relOps {
		if idx := strings.Index(s, op.text); idx >= 0 {
			lhs, err := parseExpr(strings.TrimSpace(s[:idx]), names)
			if err != nil {
				return its.Atom{}, err
			}
			rhs, err := parseExpr(strings.TrimSpace(s[idx+len(op.text):]), names)
			if err != nil {
				return its.Atom{}, err
			}
			return its.Atom{LHS: lhs, Rel: op.rel, RHS: rhs}, nil
		}
	}
	return its.Atom{}, fmt.Errorf("guard atom %q: no relational operator", s)
}

func parseUpdate(s string, names map[string]vars.Var) (its.Update, error) {
	u := its.NewUpdate()
	s = strings.TrimSpace(s)
	if s == "" {
		return u, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		before, after, ok := cutOnce(part, ":=")
		if !ok {
			before, after, ok = cutOnce(part, "=")
		}
		if !ok {
			return its.Update{}, fmt.Errorf("update assignment %q: missing \":=\" or \"=\"", part)
		}
		v := varFor(strings.TrimSpace(before), names)
		rhs, err := parseExpr(strings.TrimSpace(after), names)
		if err != nil {
			return its.Update{}, fmt.Errorf("update assignment %q: %w", part, err)
		}
		u = u.Set(v, rhs)
	}
	return u, nil
}

func varFor(name string, names map[string]vars.Var) vars.Var {
	if name == "I" {
		name = "Q"
	}
	if v, ok := names[name]; ok {
		return v
	}
	v := vars.FreshProgram(name)
	names[name] = v
	return v
}

// --- arithmetic expression parser (sum of products, +, -, *, ^, parens) ---

type exprParser struct {
	tokens []string
	pos    int
	names  map[string]vars.Var
}

func parseExpr(s string, names map[string]vars.Var) (expr.Expression, error) {
	toks, err := tokenize(s)
	if err != nil {
		return expr.Expression{}, err
	}
	p := &exprParser{tokens: toks, names: names}
	e, err := p.parseSum()
	if err != nil {
		return expr.Expression{}, err
	}
	if p.pos != len(p.tokens) {
		return expr.Expression{}, fmt.Errorf("unexpected token %q", p.tokens[p.pos])
	}
	return e, nil
}

func tokenize(s string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case strings.ContainsRune("+-*/^()", rune(c)):
			toks = append(toks, string(c))
			i++
		case isDigit(c):
			j := i
			for j < len(s) && (isDigit(s[j]) || s[j] == '/') {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) || c == '_' || c == '\'' }

func (p *exprParser) peek() string {
	if p.pos >= len(p.tokens) {
		return ""
	}
	return p.tokens[p.pos]
}

func (p *exprParser) parseSum() (expr.Expression, error) {
	term, err := p.parseProduct()
	if err != nil {
		return expr.Expression{}, err
	}
	for p.peek() == "+" || p.peek() == "-" {
		op := p.tokens[p.pos]
		p.pos++
		rhs, err := p.parseProduct()
		if err != nil {
			return expr.Expression{}, err
		}
		if op == "+" {
			term = expr.Add(term, rhs)
		} else {
			term = expr.Sub(term, rhs)
		}
	}
	return term, nil
}

func (p *exprParser) parseProduct() (expr.Expression, error) {
	factor, err := p.parsePower()
	if err != nil {
		return expr.Expression{}, err
	}
	for p.peek() == "*" || p.peek() == "/" {
		op := p.tokens[p.pos]
		p.pos++
		rhs, err := p.parsePower()
		if err != nil {
			return expr.Expression{}, err
		}
		if op == "*" {
			factor = expr.Mul(factor, rhs)
		} else {
			denom, ok := rhs.IsConst()
			if !ok {
				return expr.Expression{}, fmt.Errorf("division by a non-constant expression is not supported")
			}
			factor = expr.Mul(factor, expr.Const(ratio.One().Quo(denom)))
		}
	}
	return factor, nil
}

func (p *exprParser) parsePower() (expr.Expression, error) {
	if p.peek() == "-" {
		p.pos++
		base, err := p.parsePower()
		if err != nil {
			return expr.Expression{}, err
		}
		return expr.Neg(base), nil
	}
	base, err := p.parseAtomExpr()
	if err != nil {
		return expr.Expression{}, err
	}
	if p.peek() == "^" {
		p.pos++
		expText := p.peek()
		p.pos++
		n, err := strconv.ParseInt(expText, 10, 64)
		if err != nil {
			return expr.Expression{}, fmt.Errorf("exponent %q: %w", expText, err)
		}
		return expr.Pow(base, n), nil
	}
	return base, nil
}

func (p *exprParser) parseAtomExpr() (expr.Expression, error) {
	tok := p.peek()
	switch {
	case tok == "":
		return expr.Expression{}, fmt.Errorf("unexpected end of expression")
	case tok == "(":
		p.pos++
		e, err := p.parseSum()
		if err != nil {
			return expr.Expression{}, err
		}
		if p.peek() != ")" {
			return expr.Expression{}, fmt.Errorf("missing closing paren")
		}
		p.pos++
		return e, nil
	case isDigit(tok[0]):
		p.pos++
		if before, after, ok := cutOnce(tok, "/"); ok {
			n, err1 := strconv.ParseInt(before, 10, 64)
			d, err2 := strconv.ParseInt(after, 10, 64)
			if err1 != nil || err2 != nil {
				return expr.Expression{}, fmt.Errorf("malformed rational literal %q", tok)
			}
			return expr.Const(ratio.New(n, d)), nil
		}
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return expr.Expression{}, fmt.Errorf("malformed integer literal %q: %w", tok, err)
		}
		return expr.ConstInt(n), nil
	case isIdentStart(tok[0]):
		p.pos++
		return expr.FromVar(varFor(tok, p.names)), nil
	default:
		return expr.Expression{}, fmt.Errorf("unexpected token %q", tok)
	}
}
