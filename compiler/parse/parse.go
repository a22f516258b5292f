package parse

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"

	"github.com/wty92911/sysy-cargo/compiler/ast"
)

type (
	State struct {
		b []byte

		name string
	}

	Token any

	Char    byte
	Punct   string
	Keyword string
	Ident   string
	Number  string

	UnexpectedError struct {
		Pos   int
		Token Token
		Want  []Token
	}
)

// binary operators by precedence, loosest first
var levels = [][]string{
	{"||"},
	{"&&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"+", "-"},
	{"*", "/", "%"},
}

func ParseFile(ctx context.Context, name string) (*ast.CompUnit, error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	s := New()
	s.AddFile(name, text)

	return s.Parse(ctx)
}

func Parse(ctx context.Context, text []byte) (*ast.CompUnit, error) {
	s := New()
	s.AddFile("", text)

	return s.Parse(ctx)
}

func New() *State {
	return &State{}
}

func (s *State) AddFile(name string, text []byte) {
	s.name = name
	s.b = text
}

func (s *State) Parse(ctx context.Context) (x *ast.CompUnit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "parse", "name", s.name, "size", len(s.b))
	defer tr.Finish("err", &err)

	f, i, err := s.parseFunc(ctx, 0)
	if err != nil {
		return nil, errors.Wrap(err, "at %v", s.position(i))
	}

	tk, tst, _ := s.next(ctx, i)
	if tk != nil {
		return nil, errors.Wrap(NewUnexpected(tst, tk), "at %v", s.position(tst))
	}

	x = &ast.CompUnit{
		Base: ast.Base{Pos: 0, End: i},
		Func: f,
	}

	return x, nil
}

func (s *State) parseFunc(ctx context.Context, st int) (f *ast.FuncDef, i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if tk != Keyword("int") {
		return nil, tst, NewUnexpected(tst, tk, Keyword("int"))
	}

	tk, tst, i = s.next(ctx, i)
	name, ok := tk.(Ident)
	if !ok {
		return nil, tst, NewUnexpected(tst, tk, Ident(""))
	}

	i, err = s.expect(ctx, i, Char('('))
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(ctx, i, Char(')'))
	if err != nil {
		return nil, i, err
	}

	body, i, err := s.parseBlock(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "func %v", name)
	}

	f = &ast.FuncDef{
		Base: ast.Base{Pos: st, End: i},
		Type: "int",
		Name: string(name),
		Body: body,
	}

	return f, i, nil
}

func (s *State) parseBlock(ctx context.Context, st int) (b *ast.Block, i int, err error) {
	i, err = s.expect(ctx, st, Char('{'))
	if err != nil {
		return nil, i, err
	}

	b = &ast.Block{}

	for {
		tk, _, e := s.next(ctx, i)
		if tk == Char('}') {
			i = e
			break
		}

		if tk == nil {
			return nil, i, NewUnexpected(i, tk, Char('}'))
		}

		var item ast.Stmt

		item, i, err = s.parseItem(ctx, i)
		if err != nil {
			return nil, i, err
		}

		b.Items = append(b.Items, item)
	}

	b.Base = ast.Base{Pos: st, End: i}

	return b, i, nil
}

func (s *State) parseItem(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, _, i := s.next(ctx, st)

	switch tk {
	case Keyword("const"):
		return s.parseConstDecl(ctx, st, i)
	case Keyword("int"):
		return s.parseVarDecl(ctx, st, i)
	}

	return s.parseStmt(ctx, st)
}

func (s *State) parseConstDecl(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	i, err = s.expect(ctx, vst, Keyword("int"))
	if err != nil {
		return nil, i, err
	}

	d := &ast.ConstDecl{}

	for {
		dst := i

		tk, tst, e := s.next(ctx, i)
		name, ok := tk.(Ident)
		if !ok {
			return nil, tst, NewUnexpected(tst, tk, Ident(""))
		}

		i, err = s.expect(ctx, e, Char('='))
		if err != nil {
			return nil, i, err
		}

		var val ast.Expr

		val, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, errors.Wrap(err, "const %v", name)
		}

		d.Defs = append(d.Defs, ast.ConstDef{
			Base:  ast.Base{Pos: dst, End: i},
			Name:  string(name),
			Value: val,
		})

		tk, tst, e = s.next(ctx, i)
		if tk == Char(',') {
			i = e
			continue
		}

		if tk != Char(';') {
			return nil, tst, NewUnexpected(tst, tk, Char(','), Char(';'))
		}

		i = e

		break
	}

	d.Base = ast.Base{Pos: st, End: i}

	return d, i, nil
}

func (s *State) parseVarDecl(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	d := &ast.VarDecl{}
	i = vst

	for {
		dst := i

		tk, tst, e := s.next(ctx, i)
		name, ok := tk.(Ident)
		if !ok {
			return nil, tst, NewUnexpected(tst, tk, Ident(""))
		}

		i = e

		def := ast.VarDef{Name: string(name)}

		if tk, _, e = s.next(ctx, i); tk == Char('=') {
			def.Init, i, err = s.parseExpr(ctx, e)
			if err != nil {
				return nil, i, errors.Wrap(err, "var %v", name)
			}
		}

		def.Base = ast.Base{Pos: dst, End: i}
		d.Defs = append(d.Defs, def)

		tk, tst, e = s.next(ctx, i)
		if tk == Char(',') {
			i = e
			continue
		}

		if tk != Char(';') {
			return nil, tst, NewUnexpected(tst, tk, Char(','), Char(';'))
		}

		i = e

		break
	}

	d.Base = ast.Base{Pos: st, End: i}

	return d, i, nil
}

func (s *State) parseStmt(ctx context.Context, st int) (x ast.Stmt, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	switch tk := tk.(type) {
	case Char:
		switch tk {
		case ';':
			return &ast.ExprStmt{Base: ast.Base{Pos: tst, End: i}}, i, nil
		case '{':
			return s.parseBlock(ctx, st)
		}
	case Keyword:
		switch tk {
		case "return":
			return s.parseReturn(ctx, tst, i)
		case "if":
			return s.parseIf(ctx, tst, i)
		default:
			return nil, tst, NewUnexpected(tst, tk)
		}
	case Ident:
		if next, _, e := s.next(ctx, i); next == Char('=') {
			return s.parseAssign(ctx, tst, string(tk), e)
		}
	}

	val, i, err := s.parseExpr(ctx, st)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(ctx, i, Char(';'))
	if err != nil {
		return nil, i, err
	}

	return &ast.ExprStmt{Base: ast.Base{Pos: tst, End: i}, Value: val}, i, nil
}

func (s *State) parseAssign(ctx context.Context, st int, name string, vst int) (x ast.Stmt, i int, err error) {
	val, i, err := s.parseExpr(ctx, vst)
	if err != nil {
		return nil, i, errors.Wrap(err, "assign %v", name)
	}

	i, err = s.expect(ctx, i, Char(';'))
	if err != nil {
		return nil, i, err
	}

	tlog.SpanFromContext(ctx).V("parse_stmt").Printw("assignment", "lhs", name, "rhs", val)

	return &ast.Assign{
		Base:  ast.Base{Pos: st, End: i},
		Name:  name,
		Value: val,
	}, i, nil
}

func (s *State) parseReturn(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	r := &ast.Return{}

	i = vst

	if tk, _, e := s.next(ctx, i); tk == Char(';') {
		r.Base = ast.Base{Pos: st, End: e}

		return r, e, nil
	}

	r.Value, i, err = s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "return")
	}

	i, err = s.expect(ctx, i, Char(';'))
	if err != nil {
		return nil, i, err
	}

	r.Base = ast.Base{Pos: st, End: i}

	return r, i, nil
}

func (s *State) parseIf(ctx context.Context, st, vst int) (x ast.Stmt, i int, err error) {
	i, err = s.expect(ctx, vst, Char('('))
	if err != nil {
		return nil, i, err
	}

	n := &ast.If{}

	n.Cond, i, err = s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "if cond")
	}

	i, err = s.expect(ctx, i, Char(')'))
	if err != nil {
		return nil, i, err
	}

	n.Then, i, err = s.parseStmt(ctx, i)
	if err != nil {
		return nil, i, errors.Wrap(err, "if then")
	}

	if tk, _, e := s.next(ctx, i); tk == Keyword("else") {
		n.Else, i, err = s.parseStmt(ctx, e)
		if err != nil {
			return nil, i, errors.Wrap(err, "if else")
		}
	}

	n.Base = ast.Base{Pos: st, End: i}

	return n, i, nil
}

func (s *State) parseExpr(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	return s.parseBinary(ctx, st, 0)
}

func (s *State) parseBinary(ctx context.Context, st, lvl int) (x ast.Expr, i int, err error) {
	if lvl == len(levels) {
		return s.parseUnary(ctx, st)
	}

	x, i, err = s.parseBinary(ctx, st, lvl+1)
	if err != nil {
		return nil, i, err
	}

	for {
		tk, _, e := s.next(ctx, i)

		op, ok := isOp(tk, levels[lvl])
		if !ok {
			break
		}

		var r ast.Expr

		r, i, err = s.parseBinary(ctx, e, lvl+1)
		if err != nil {
			return nil, i, errors.Wrap(err, "%v rhs", op)
		}

		x = &ast.Binary{
			Base: ast.Base{Pos: st, End: i},
			Op:   op,
			L:    x,
			R:    r,
		}
	}

	return x, i, nil
}

func (s *State) parseUnary(ctx context.Context, st int) (x ast.Expr, i int, err error) {
	tk, tst, i := s.next(ctx, st)

	switch tk {
	case Char('+'), Char('-'), Char('!'):
		var sub ast.Expr

		sub, i, err = s.parseUnary(ctx, i)
		if err != nil {
			return nil, i, err
		}

		return &ast.Unary{
			Base: ast.Base{Pos: tst, End: i},
			Op:   string(rune(tk.(Char))),
			X:    sub,
		}, i, nil
	case Char('('):
		x, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(ctx, i, Char(')'))
		if err != nil {
			return nil, i, err
		}

		return x, i, nil
	}

	switch tk := tk.(type) {
	case Number:
		v, err := parseNumber(string(tk))
		if err != nil {
			return nil, tst, errors.Wrap(err, "number %v", tk)
		}

		return &ast.Number{Base: ast.Base{Pos: tst, End: i}, Value: v}, i, nil
	case Ident:
		return &ast.Ident{Base: ast.Base{Pos: tst, End: i}, Name: string(tk)}, i, nil
	}

	return nil, tst, NewUnexpected(tst, tk, Number(""), Ident(""), Char('('))
}

func (s *State) expect(ctx context.Context, st int, want Token) (i int, err error) {
	tk, tst, i := s.next(ctx, st)
	if tk != want {
		return tst, NewUnexpected(tst, tk, want)
	}

	return i, nil
}

// next returns the token at st, the position it starts at and the position after it.
// tk is nil at the end of input.
func (s *State) next(ctx context.Context, st int) (tk Token, tst int, i int) {
	if tr := tlog.SpanFromContext(ctx); tr.If("next_token") {
		defer func(st int) {
			tr.Printw("next token", "st", st, "tk", tk, "tst", tst, "i", i, "from", loc.Callers(1, 3))
		}(st)
	}

	st = skipSpaces(s.b, st)
	i = st

	if i == len(s.b) {
		return nil, st, i
	}

	c := s.b[i]

	if i+1 < len(s.b) {
		switch p := string(s.b[i : i+2]); p {
		case "==", "!=", "<=", ">=", "&&", "||":
			return Punct(p), st, i + 2
		}
	}

	switch c {
	case '{', '}', '(', ')', '=', '+', '-', '*', '/', '%', '<', '>', '!', ';', ',':
		return Char(c), st, i + 1
	}

	switch {
	case c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_':
		e := skipIdent(s.b, i)

		switch w := string(s.b[i:e]); w {
		case "int", "const", "return", "if", "else":
			return Keyword(w), st, e
		}

		return Ident(s.b[i:e]), st, e
	case c >= '0' && c <= '9':
		e := skipIdent(s.b, i)

		return Number(s.b[i:e]), st, e
	default:
		return Char(c), st, i + 1
	}
}

func (s *State) position(pos int) string {
	line, col := 1, 1

	for _, c := range s.b[:min(pos, len(s.b))] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}

	if s.name == "" {
		return fmt.Sprintf("%d:%d", line, col)
	}

	return fmt.Sprintf("%s:%d:%d", s.name, line, col)
}

func isOp(tk Token, ops []string) (string, bool) {
	var op string

	switch tk := tk.(type) {
	case Char:
		op = string(rune(tk))
	case Punct:
		op = string(tk)
	default:
		return "", false
	}

	for _, o := range ops {
		if o == op {
			return op, true
		}
	}

	return "", false
}

// parseNumber accepts decimal, 0-prefixed octal and 0x-prefixed hex literals.
func parseNumber(s string) (int32, error) {
	base := 10

	switch {
	case len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X'):
		base = 16
		s = s[2:]
	case len(s) > 1 && s[0] == '0':
		base = 8
		s = s[1:]
	}

	v, err := strconv.ParseUint(s, base, 32)
	if err != nil {
		return 0, err
	}

	return int32(uint32(v)), nil
}

func NewUnexpected(pos int, got Token, want ...Token) error {
	return UnexpectedError{
		Pos:   pos,
		Token: got,
		Want:  want,
	}
}

func (e UnexpectedError) Error() string {
	if e.Token == nil {
		e.Token = "EOF"
	}

	if len(e.Want) == 0 {
		return fmt.Sprintf("unexpected token: %v", e.Token)
	}

	l := make([]string, len(e.Want))

	for i, w := range e.Want {
		switch w := w.(type) {
		case Ident:
			l[i] = "identifier"
		case Number:
			l[i] = "number"
		default:
			l[i] = fmt.Sprintf("%q", fmt.Sprint(w))
		}
	}

	return fmt.Sprintf("unexpected token: %v, want: %v", e.Token, strings.Join(l, " or "))
}

func (c Char) String() string {
	return string(rune(c))
}

func skipIdent(b []byte, i int) int {
	for i < len(b) && (b[i] >= 'a' && b[i] <= 'z' || b[i] >= 'A' && b[i] <= 'Z' || b[i] >= '0' && b[i] <= '9' || b[i] == '_') {
		i++
	}

	return i
}

func skipSpaces(b []byte, i int) int {
	for i < len(b) {
		switch {
		case b[i] == ' ', b[i] == '\t', b[i] == '\n', b[i] == '\r':
			i++
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '/':
			for i < len(b) && b[i] != '\n' {
				i++
			}
		case b[i] == '/' && i+1 < len(b) && b[i+1] == '*':
			i += 2

			for i+1 < len(b) && !(b[i] == '*' && b[i+1] == '/') {
				i++
			}

			i = min(i+2, len(b))
		default:
			return i
		}
	}

	return i
}
