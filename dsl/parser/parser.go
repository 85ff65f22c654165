// Package parser implements the aspect DSL's recursive-descent parser
// (spec.md §4.1): "(aspect <advice>*)" where each advice is either
// "(global <code>)" or "(advice <kind> <formals> <code>)".
package parser

import (
	"strings"

	"github.com/aaronmunsters/wastrumentation/dsl/ast"
	"github.com/aaronmunsters/wastrumentation/dsl/token"
	"github.com/aaronmunsters/wastrumentation/errors"
	"github.com/aaronmunsters/wastrumentation/sig"
)

type Parser struct {
	tokens []token.Token
	pos    int
}

func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) next() *token.Token {
	t := p.peek()
	if t != nil {
		p.pos++
	}
	return t
}

func (p *Parser) pos0() (line, col int) {
	if t := p.peek(); t != nil {
		return t.Line, t.Col
	}
	if len(p.tokens) > 0 {
		last := p.tokens[len(p.tokens)-1]
		return last.Line, last.Col
	}
	return 1, 1
}

func (p *Parser) expect(typ token.Type) (*token.Token, error) {
	t := p.next()
	if t == nil {
		line, col := p.pos0()
		return nil, errors.ParseError(line, col, "unexpected end of input, expected "+typ.String())
	}
	if t.Type != typ {
		return nil, errors.ParseError(t.Line, t.Col, "expected "+typ.String()+", got "+t.Value)
	}
	return t, nil
}

func (p *Parser) expectIdent(value string) (*token.Token, error) {
	t, err := p.expect(token.Ident)
	if err != nil {
		return nil, err
	}
	if t.Value != value {
		return nil, errors.ParseError(t.Line, t.Col, "expected \""+value+"\", got \""+t.Value+"\"")
	}
	return t, nil
}

// Parse parses a complete "(aspect <advice>*)" program.
func (p *Parser) Parse() (*ast.Root, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return nil, err
	}
	if _, err := p.expectIdent("aspect"); err != nil {
		return nil, err
	}

	var root ast.Root
	for {
		t := p.peek()
		if t == nil {
			line, col := p.pos0()
			return nil, errors.ParseError(line, col, "unterminated aspect: expected ')'")
		}
		if t.Type == token.RParen {
			p.next()
			break
		}
		advice, err := p.parseAdvice()
		if err != nil {
			return nil, err
		}
		root.Advice = append(root.Advice, advice)
	}

	if p.peek() != nil {
		t := p.peek()
		return nil, errors.ParseError(t.Line, t.Col, "unexpected trailing input after aspect")
	}

	return &root, nil
}

func (p *Parser) parseAdvice() (ast.Advice, error) {
	open, err := p.expect(token.LParen)
	if err != nil {
		return ast.Advice{}, err
	}
	head, err := p.expect(token.Ident)
	if err != nil {
		return ast.Advice{}, err
	}

	switch head.Value {
	case "global":
		code, err := p.parseCode()
		if err != nil {
			return ast.Advice{}, err
		}
		if _, err := p.expect(token.RParen); err != nil {
			return ast.Advice{}, err
		}
		return ast.Advice{IsGlobal: true, Code: code, Line: open.Line, Col: open.Col}, nil

	case "advice":
		kindTok, err := p.expect(token.Ident)
		if err != nil {
			return ast.Advice{}, err
		}
		kind := ast.Kind(kindTok.Value)

		advice := ast.Advice{Kind: kind, Line: open.Line, Col: open.Col}

		if kind == ast.KindApply {
			formals, err := p.parseApplyFormals(open.Line, open.Col)
			if err != nil {
				return ast.Advice{}, err
			}
			advice.Apply = formals
		} else {
			formals, err := p.parsePlainFormals()
			if err != nil {
				return ast.Advice{}, err
			}
			advice.Formals = formals
		}

		code, err := p.parseCode()
		if err != nil {
			return ast.Advice{}, err
		}
		advice.Code = code

		if _, err := p.expect(token.RParen); err != nil {
			return ast.Advice{}, err
		}
		return advice, nil

	default:
		return ast.Advice{}, errors.ParseError(head.Line, head.Col, "expected \"global\" or \"advice\", got \""+head.Value+"\"")
	}
}

func (p *Parser) parseCode() (string, error) {
	t, err := p.expect(token.GuestCode)
	if err != nil {
		if t == nil {
			return "", errors.ParseError(0, 0, "advice body must be delimited exactly by >>>GUEST>>> ... <<<GUEST<<<")
		}
		return "", err
	}
	return strings.TrimSpace(t.Value), nil
}

// parsePlainFormals parses the "(name*)" formal list non-apply traps use.
func (p *Parser) parsePlainFormals() ([]string, error) {
	open, err := p.expect(token.LParen)
	if err != nil {
		return nil, err
	}
	var names []string
	seen := map[string]bool{}
	var dupes []string
	for {
		t := p.peek()
		if t == nil {
			line, col := p.pos0()
			return nil, errors.ParseError(line, col, "unterminated formal list")
		}
		if t.Type == token.RParen {
			p.next()
			break
		}
		name, err := p.expect(token.Ident)
		if err != nil {
			return nil, err
		}
		if seen[name.Value] {
			dupes = append(dupes, name.Value)
		}
		seen[name.Value] = true
		names = append(names, name.Value)
	}
	if len(dupes) > 0 {
		return nil, errors.NonUniqueParameters(open.Line, open.Col, dupes)
	}
	return names, nil
}

var genericArgTiers = map[string]ast.GenericTier{
	"Args":       ast.HighLevel,
	"DynArgs":    ast.Dynamic,
	"MutDynArgs": ast.MutableDynamic,
}

var genericResultTiers = map[string]ast.GenericTier{
	"Results":       ast.HighLevel,
	"DynResults":    ast.Dynamic,
	"MutDynResults": ast.MutableDynamic,
}

var wasmTypeNames = map[string]sig.WasmType{
	"I32": sig.I32,
	"F32": sig.F32,
	"I64": sig.I64,
	"F64": sig.F64,
}

// parseApplyFormals parses "(func-ref-name <args-side> <results-side>)"
// for an apply advice, dispatching on whether the sides use the generic
// symbolic bindings or typed positional bindings.
func (p *Parser) parseApplyFormals(line, col int) (ast.ApplyFormals, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return ast.ApplyFormals{}, err
	}
	funcRef, err := p.expect(token.Ident)
	if err != nil {
		return ast.ApplyFormals{}, err
	}

	// Peek ahead to decide generic vs specialized: a generic side is a
	// single "(name TIER)" pair where TIER is one of the six keywords.
	argsGeneric, argsTier, argsBindings, argsMut, err := p.parseApplySide(genericArgTiers)
	if err != nil {
		return ast.ApplyFormals{}, err
	}
	resultsGeneric, resultsTier, resultsBindings, resultsMut, err := p.parseApplySide(genericResultTiers)
	if err != nil {
		return ast.ApplyFormals{}, err
	}

	if _, err := p.expect(token.RParen); err != nil {
		return ast.ApplyFormals{}, err
	}

	if argsGeneric != resultsGeneric {
		return ast.ApplyFormals{}, errors.IncorrectArgsRessType(line, col, tierOrTyped(argsGeneric, argsTier), tierOrTyped(resultsGeneric, resultsTier))
	}

	if argsGeneric {
		if argsTier != resultsTier {
			return ast.ApplyFormals{}, errors.IncorrectArgsRessType(line, col, argsTier.String(), resultsTier.String())
		}
		return ast.ApplyFormals{
			FuncRefName: funcRef.Value,
			IsGeneric:   true,
			Tier:        argsTier,
			ArgsName:    argsBindings[0].Name,
			ResultsName: resultsBindings[0].Name,
		}, nil
	}

	if dupe, ok := firstDuplicate(namesOf(append([]ast.TypedFormal{{Name: funcRef.Value}}, argsBindings...))); ok {
		return ast.ApplyFormals{}, errors.DuplicateParameter(line, col, dupe)
	}
	if dupe, ok := firstDuplicate(namesOf(append([]ast.TypedFormal{{Name: funcRef.Value}}, resultsBindings...))); ok {
		return ast.ApplyFormals{}, errors.DuplicateParameter(line, col, dupe)
	}
	if dupe, ok := crossDuplicate(namesOf(argsBindings), namesOf(resultsBindings)); ok {
		return ast.ApplyFormals{}, errors.DuplicateArgsRessParam(line, col, dupe)
	}

	for i := range argsBindings {
		argsBindings[i].Mut = argsMut
	}
	for i := range resultsBindings {
		resultsBindings[i].Mut = resultsMut
	}

	return ast.ApplyFormals{
		FuncRefName: funcRef.Value,
		IsGeneric:   false,
		Args:        argsBindings,
		Results:     resultsBindings,
	}, nil
}

func tierOrTyped(generic bool, tier ast.GenericTier) string {
	if generic {
		return tier.String()
	}
	return "typed"
}

// parseApplySide parses one of an apply's argument or result formal
// groups: either "(name TIER)" (generic) or "( (name TYPE)* )" /
// "(Mut ( (name TYPE)* ))" (specialized).
func (p *Parser) parseApplySide(tiers map[string]ast.GenericTier) (generic bool, tier ast.GenericTier, bindings []ast.TypedFormal, mut bool, err error) {
	if _, err = p.expect(token.LParen); err != nil {
		return
	}

	t := p.peek()
	if t != nil && t.Type == token.Ident && t.Value == "Mut" {
		p.next()
		mut = true
		if _, err = p.expect(token.LParen); err != nil {
			return
		}
		bindings, err = p.parseTypedBindingList()
		if err != nil {
			return
		}
		if _, err = p.expect(token.RParen); err != nil {
			return
		}
		if _, err = p.expect(token.RParen); err != nil {
			return
		}
		return false, 0, bindings, mut, nil
	}

	// Generic form: "(name TIER)" — the token right after the side's
	// opening paren is the binding name (an Ident), whereas the
	// specialized form opens immediately onto a nested "(name TYPE)"
	// list (an LParen). That one token of lookahead disambiguates them.
	if t != nil && t.Type == token.Ident {
		nameTok, e := p.expect(token.Ident)
		if e != nil {
			err = e
			return
		}
		tierTok, e := p.expect(token.Ident)
		if e != nil {
			err = e
			return
		}
		tr, ok := tiers[tierTok.Value]
		if !ok {
			err = errors.ParseError(tierTok.Line, tierTok.Col, "unknown generic tier keyword \""+tierTok.Value+"\"")
			return
		}
		if _, e := p.expect(token.RParen); e != nil {
			err = e
			return
		}
		return true, tr, []ast.TypedFormal{{Name: nameTok.Value}}, false, nil
	}

	bindings, err = p.parseTypedBindingList()
	if err != nil {
		return
	}
	if _, err = p.expect(token.RParen); err != nil {
		return
	}
	return false, 0, bindings, false, nil
}

func (p *Parser) parseTypedBindingList() ([]ast.TypedFormal, error) {
	var out []ast.TypedFormal
	for {
		t := p.peek()
		if t == nil {
			line, col := p.pos0()
			return nil, errors.ParseError(line, col, "unterminated binding list")
		}
		if t.Type == token.RParen {
			break
		}
		binding, err := p.parseTypedBinding()
		if err != nil {
			return nil, err
		}
		out = append(out, binding)
	}
	return out, nil
}

func (p *Parser) parseTypedBinding() (ast.TypedFormal, error) {
	if _, err := p.expect(token.LParen); err != nil {
		return ast.TypedFormal{}, err
	}
	name, err := p.expect(token.Ident)
	if err != nil {
		return ast.TypedFormal{}, err
	}
	typeTok, err := p.expect(token.Ident)
	if err != nil {
		return ast.TypedFormal{}, err
	}
	wt, ok := wasmTypeNames[typeTok.Value]
	if !ok {
		return ast.TypedFormal{}, errors.UnsupportedIdentifierType(typeTok.Line, typeTok.Col, typeTok.Value, []string{"I32", "F32", "I64", "F64"})
	}
	if _, err := p.expect(token.RParen); err != nil {
		return ast.TypedFormal{}, err
	}
	return ast.TypedFormal{Name: name.Value, Type: wt}, nil
}

func firstDuplicate(names []string) (string, bool) {
	seen := map[string]bool{}
	for _, n := range names {
		if seen[n] {
			return n, true
		}
		seen[n] = true
	}
	return "", false
}

func crossDuplicate(a, b []string) (string, bool) {
	inA := map[string]bool{}
	for _, n := range a {
		inA[n] = true
	}
	for _, n := range b {
		if inA[n] {
			return n, true
		}
	}
	return "", false
}

func namesOf(bindings []ast.TypedFormal) []string {
	out := make([]string, len(bindings))
	for i, b := range bindings {
		out[i] = b.Name
	}
	return out
}
