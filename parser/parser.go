// Package parser implements a recursive-descent, precedence-climbing parser
// for the guest language, turning a lexer.Lexer token stream into an
// ast.Program. It follows the teacher repository's parser shape: a single
// struct holding current/peek tokens, a slice of accumulated Error values
// (never a panic/recover loop), and one method per grammar production.
package parser

import (
	"fmt"
	"strconv"

	"github.com/wudi/heysandbox/ast"
	"github.com/wudi/heysandbox/lexer"
)

const (
	_ int = iota
	precLowest
	precOr
	precAnd
	precEquality
	precComparison
	precShovel
	precAdditive
	precMultiplicative
	precPower
	precUnary
	precPostfix
)

var precedences = map[lexer.TokenType]int{
	lexer.OR_OR:   precOr,
	lexer.OR:      precOr,
	lexer.AND_AND: precAnd,
	lexer.AND:     precAnd,
	lexer.EQ:      precEquality,
	lexer.NEQ:     precEquality,
	lexer.LT:      precComparison,
	lexer.LTE:     precComparison,
	lexer.GT:      precComparison,
	lexer.GTE:     precComparison,
	lexer.SHOVEL:  precShovel,
	lexer.PLUS:    precAdditive,
	lexer.MINUS:   precAdditive,
	lexer.STAR:    precMultiplicative,
	lexer.SLASH:   precMultiplicative,
	lexer.PERCENT: precMultiplicative,
	lexer.POW:     precPower,
	lexer.LBRACKET: precPostfix,
}

// Error describes a single parse failure, with the line it occurred on as
// the lexer counted it, i.e. starting from the lexer's starting line (before
// any compile-context rebasing the caller applies).
type Error struct {
	Message string
	Line    int
}

func (e Error) Error() string { return fmt.Sprintf("%s (line %d)", e.Message, e.Line) }

// Parser consumes tokens from a lexer.Lexer and builds an ast.Program.
type Parser struct {
	l      *lexer.Lexer
	cur    lexer.Token
	peek   lexer.Token
	errors []Error
}

// New constructs a Parser reading from l.
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}
	p.advance()
	p.advance()
	return p
}

// Errors returns every parse error accumulated so far, in encounter order.
func (p *Parser) Errors() []Error { return p.errors }

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func (p *Parser) addError(format string, args ...interface{}) {
	p.errors = append(p.errors, Error{Message: fmt.Sprintf(format, args...), Line: p.cur.Line})
}

func (p *Parser) curIs(t lexer.TokenType) bool  { return p.cur.Type == t }
func (p *Parser) peekIs(t lexer.TokenType) bool { return p.peek.Type == t }

func (p *Parser) expect(t lexer.TokenType, what string) bool {
	if p.curIs(t) {
		p.advance()
		return true
	}
	p.addError("expected %s, got %q", what, p.cur.Literal)
	return false
}

func (p *Parser) skipTerminators() {
	for p.curIs(lexer.NEWLINE) || p.curIs(lexer.SEMICOLON) {
		p.advance()
	}
}

// ParseProgram parses the entire token stream into an ast.Program. Partial
// results are still returned on error; callers must check Errors().
func (p *Parser) ParseProgram() *ast.Program {
	line := p.cur.Line
	var stmts []ast.Node
	p.skipTerminators()
	for !p.curIs(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.skipTerminators()
	}
	return ast.NewProgram(line, stmts)
}

func (p *Parser) parseStatement() ast.Node {
	switch p.cur.Type {
	case lexer.IF:
		return p.parseIf()
	case lexer.WHILE:
		return p.parseWhile()
	case lexer.LOOP:
		return p.parseLoop()
	case lexer.IDENT:
		return p.parseIdentStatement()
	default:
		return p.parseExpression(precLowest)
	}
}

// parseIdentStatement disambiguates a leading identifier between a plain
// expression, an assignment (`x = expr`), and a parenthesis-free "command"
// call (`puts 1, 2, 3`), the way the guest language's real grammar would.
func (p *Parser) parseIdentStatement() ast.Node {
	name := p.cur.Literal
	line := p.cur.Line

	if p.peekIs(lexer.ASSIGN) {
		p.advance() // consume ident
		p.advance() // consume '='
		value := p.parseExpression(precLowest)
		return ast.NewAssign(line, name, value)
	}

	// A `[` after puts/print/p opens an array argument (`puts [1, 2]`);
	// after any other identifier it starts an index (`a[0]`).
	bracketIsArg := name == "puts" || name == "print" || name == "p"
	if p.peekIs(lexer.LPAREN) || (p.peekIs(lexer.LBRACKET) && !bracketIsArg) {
		// Ordinary expression starting with a call or index; fall through to
		// the normal precedence-climbing parser so postfix forms apply.
		return p.parseExpression(precLowest)
	}

	if p.startsCommandArg(p.peek.Type) {
		p.advance() // consume ident, cur is now first arg token
		var args []ast.Node
		args = append(args, p.parseExpression(precLowest))
		for p.curIs(lexer.COMMA) {
			p.advance()
			args = append(args, p.parseExpression(precLowest))
		}
		var block *ast.BlockStmt
		if p.curIs(lexer.LBRACE) {
			block = p.parseBraceBlock()
		}
		return ast.NewCallExpr(line, name, args, block)
	}

	if p.peekIs(lexer.LBRACE) {
		p.advance() // consume ident
		block := p.parseBraceBlock()
		return ast.NewCallExpr(line, name, nil, block)
	}

	// Bare call with no arguments and no parens, e.g. a registered tool
	// invoked as `foo`: it parses as an identifier, and the VM runs it as a
	// zero-argument call when no local of that name is bound.
	return p.parseExpression(precLowest)
}

// startsCommandArg reports whether t can begin an argument expression
// immediately following a bare identifier on the same statement.
func (p *Parser) startsCommandArg(t lexer.TokenType) bool {
	switch t {
	case lexer.INT, lexer.FLOAT, lexer.STRING, lexer.IDENT, lexer.NIL, lexer.TRUE, lexer.FALSE,
		lexer.LBRACKET, lexer.MINUS, lexer.BANG, lexer.NOT:
		return true
	default:
		return false
	}
}

func (p *Parser) parseBraceBlock() *ast.BlockStmt {
	line := p.cur.Line
	p.expect(lexer.LBRACE, "'{'")
	// Optional `|params|` is accepted and discarded: the sandbox's block
	// bodies never bind block-local parameters, matching the guest
	// language's restricted (no closures over tool-supplied args) surface.
	if p.curIs(lexer.PIPE) {
		p.advance()
		for !p.curIs(lexer.PIPE) && !p.curIs(lexer.EOF) {
			p.advance()
		}
		if p.curIs(lexer.PIPE) {
			p.advance()
		}
	}
	p.skipTerminators()
	var stmts []ast.Node
	for !p.curIs(lexer.RBRACE) && !p.curIs(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.skipTerminators()
	}
	p.expect(lexer.RBRACE, "'}'")
	return ast.NewBlockStmt(line, stmts)
}

func (p *Parser) parseEndTerminatedBlock() *ast.BlockStmt {
	line := p.cur.Line
	p.skipTerminators()
	var stmts []ast.Node
	for !p.curIs(lexer.END) && !p.curIs(lexer.ELSE) && !p.curIs(lexer.ELSIF) && !p.curIs(lexer.EOF) {
		stmt := p.parseStatement()
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
		p.skipTerminators()
	}
	return ast.NewBlockStmt(line, stmts)
}

func (p *Parser) parseIf() ast.Node {
	line := p.cur.Line
	p.advance() // consume 'if'
	cond := p.parseExpression(precLowest)
	p.skipTerminators()
	then := p.parseEndTerminatedBlock()

	var els *ast.BlockStmt
	switch p.cur.Type {
	case lexer.ELSIF:
		elsifLine := p.cur.Line
		nested := p.parseIf2AsElsif()
		els = ast.NewBlockStmt(elsifLine, []ast.Node{nested})
	case lexer.ELSE:
		p.advance()
		els = p.parseEndTerminatedBlock()
	}
	p.expect(lexer.END, "'end'")
	return ast.NewIfStmt(line, cond, then, els)
}

// parseIf2AsElsif parses the `elsif cond ... (elsif|else|end)` tail as if it
// were a nested if, without consuming a matching `end` of its own (the
// outer parseIf's `end` closes it too).
func (p *Parser) parseIf2AsElsif() ast.Node {
	line := p.cur.Line
	p.advance() // consume 'elsif'
	cond := p.parseExpression(precLowest)
	p.skipTerminators()
	then := p.parseEndTerminatedBlock()

	var els *ast.BlockStmt
	switch p.cur.Type {
	case lexer.ELSIF:
		elsifLine := p.cur.Line
		nested := p.parseIf2AsElsif()
		els = ast.NewBlockStmt(elsifLine, []ast.Node{nested})
	case lexer.ELSE:
		p.advance()
		els = p.parseEndTerminatedBlock()
	}
	return ast.NewIfStmt(line, cond, then, els)
}

func (p *Parser) parseWhile() ast.Node {
	line := p.cur.Line
	p.advance() // consume 'while'
	cond := p.parseExpression(precLowest)
	p.skipTerminators()
	body := p.parseEndTerminatedBlock()
	p.expect(lexer.END, "'end'")
	return ast.NewWhileStmt(line, cond, body)
}

func (p *Parser) parseLoop() ast.Node {
	line := p.cur.Line
	p.advance() // consume 'loop'
	body := p.parseBraceBlock()
	return ast.NewLoopStmt(line, body)
}

// parseExpression implements precedence climbing over infix operators,
// prefixed by parsePrimary/parsePrefix and followed by postfix index/call
// handling.
func (p *Parser) parseExpression(precedence int) ast.Node {
	left := p.parsePrefix()
	if left == nil {
		return nil
	}

	for !p.curIs(lexer.NEWLINE) && !p.curIs(lexer.SEMICOLON) && !p.curIs(lexer.EOF) {
		opPrec, ok := precedences[p.cur.Type]
		if !ok || precedence >= opPrec {
			break
		}
		left = p.parseInfix(left, opPrec)
	}
	return left
}

func (p *Parser) parsePrefix() ast.Node {
	line := p.cur.Line
	switch p.cur.Type {
	case lexer.NIL:
		p.advance()
		return ast.NewNilLit(line)
	case lexer.TRUE:
		p.advance()
		return ast.NewBoolLit(line, true)
	case lexer.FALSE:
		p.advance()
		return ast.NewBoolLit(line, false)
	case lexer.INT:
		lit := p.cur.Literal
		p.advance()
		n, err := strconv.ParseInt(lit, 10, 64)
		if err != nil {
			p.addError("invalid integer literal %q", lit)
			return ast.NewIntLit(line, 0)
		}
		return ast.NewIntLit(line, n)
	case lexer.FLOAT:
		lit := p.cur.Literal
		p.advance()
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			p.addError("invalid float literal %q", lit)
			return ast.NewFloatLit(line, 0)
		}
		return ast.NewFloatLit(line, f)
	case lexer.STRING:
		s := p.cur.Literal
		p.advance()
		return ast.NewStringLit(line, s)
	case lexer.IDENT:
		return p.parseIdentExpr()
	case lexer.LPAREN:
		p.advance()
		inner := p.parseExpression(precLowest)
		p.expect(lexer.RPAREN, "')'")
		return p.parsePostfix(inner)
	case lexer.LBRACKET:
		return p.parseArrayLit()
	case lexer.LBRACE:
		return p.parseHashLit()
	case lexer.MINUS:
		p.advance()
		operand := p.parseExpression(precUnary)
		return ast.NewUnaryExpr(line, "-", operand)
	case lexer.BANG, lexer.NOT:
		p.advance()
		operand := p.parseExpression(precUnary)
		return ast.NewUnaryExpr(line, "!", operand)
	default:
		p.addError("unexpected token %q", p.cur.Literal)
		p.advance()
		return nil
	}
}

func (p *Parser) parseIdentExpr() ast.Node {
	name := p.cur.Literal
	line := p.cur.Line
	p.advance()

	if p.curIs(lexer.LPAREN) {
		p.advance()
		var args []ast.Node
		for !p.curIs(lexer.RPAREN) && !p.curIs(lexer.EOF) {
			args = append(args, p.parseExpression(precLowest))
			if p.curIs(lexer.COMMA) {
				p.advance()
			}
		}
		p.expect(lexer.RPAREN, "')'")
		var block *ast.BlockStmt
		if p.curIs(lexer.LBRACE) {
			block = p.parseBraceBlock()
		}
		return p.parsePostfix(ast.NewCallExpr(line, name, args, block))
	}

	return p.parsePostfix(ast.NewIdentifier(line, name))
}

// parsePostfix attaches trailing `[index]` accesses to an already-parsed
// primary expression.
func (p *Parser) parsePostfix(left ast.Node) ast.Node {
	for p.curIs(lexer.LBRACKET) {
		line := p.cur.Line
		p.advance()
		idx := p.parseExpression(precLowest)
		p.expect(lexer.RBRACKET, "']'")
		left = ast.NewIndexExpr(line, left, idx)
	}
	return left
}

func (p *Parser) parseArrayLit() ast.Node {
	line := p.cur.Line
	p.advance() // consume '['
	var elems []ast.Node
	for !p.curIs(lexer.RBRACKET) && !p.curIs(lexer.EOF) {
		elems = append(elems, p.parseExpression(precLowest))
		if p.curIs(lexer.COMMA) {
			p.advance()
		}
	}
	p.expect(lexer.RBRACKET, "']'")
	return p.parsePostfix(ast.NewArrayLit(line, elems))
}

func (p *Parser) parseHashLit() ast.Node {
	line := p.cur.Line
	p.advance() // consume '{'
	var entries []ast.HashEntry
	for !p.curIs(lexer.RBRACE) && !p.curIs(lexer.EOF) {
		var key ast.Node
		if p.curIs(lexer.IDENT) && p.peekIs(lexer.COLON) {
			key = ast.NewStringLit(p.cur.Line, p.cur.Literal)
			p.advance()
			p.advance() // consume ':'
		} else {
			key = p.parseExpression(precLowest)
			p.expect(lexer.HASHROCKET, "'=>'")
		}
		value := p.parseExpression(precLowest)
		entries = append(entries, ast.HashEntry{Key: key, Value: value})
		if p.curIs(lexer.COMMA) {
			p.advance()
		}
	}
	p.expect(lexer.RBRACE, "'}'")
	return p.parsePostfix(ast.NewHashLit(line, entries))
}

func (p *Parser) parseInfix(left ast.Node, prec int) ast.Node {
	op := p.cur
	line := op.Line
	if op.Type == lexer.SHOVEL {
		p.advance()
		right := p.parseExpression(prec)
		return ast.NewShovelExpr(line, left, right)
	}
	p.advance()
	right := p.parseExpression(prec)
	return ast.NewBinaryExpr(line, opLiteral(op.Type), left, right)
}

func opLiteral(t lexer.TokenType) string {
	switch t {
	case lexer.PLUS:
		return "+"
	case lexer.MINUS:
		return "-"
	case lexer.STAR:
		return "*"
	case lexer.SLASH:
		return "/"
	case lexer.PERCENT:
		return "%"
	case lexer.POW:
		return "**"
	case lexer.EQ:
		return "=="
	case lexer.NEQ:
		return "!="
	case lexer.LT:
		return "<"
	case lexer.LTE:
		return "<="
	case lexer.GT:
		return ">"
	case lexer.GTE:
		return ">="
	case lexer.AND_AND, lexer.AND:
		return "&&"
	case lexer.OR_OR, lexer.OR:
		return "||"
	default:
		return "?"
	}
}
