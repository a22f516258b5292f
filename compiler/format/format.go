package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/wty92911/sysy-cargo/compiler/ast"
	"github.com/wty92911/sysy-cargo/compiler/ir"
)

// Format appends the text form of a syntax tree or an ir program.
func Format(ctx context.Context, b []byte, x any) ([]byte, error) {
	return format(ctx, b, x, 0)
}

func format(ctx context.Context, b []byte, x any, d int) ([]byte, error) {
	switch x := x.(type) {
	case *ast.CompUnit:
		return formatUnit(ctx, b, x, d)
	case *ir.Program:
		return formatProgram(ctx, b, x)
	case *ir.Func:
		return formatFunc(ctx, b, x)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func formatUnit(ctx context.Context, b []byte, x *ast.CompUnit, d int) (_ []byte, err error) {
	if x.Func == nil {
		return b, nil
	}

	f := x.Func

	b = app(b, d, "%s %s() ", f.Type, f.Name)

	b, err = formatBlock(ctx, b, f.Body, d)
	if err != nil {
		return nil, errors.Wrap(err, "func %v", f.Name)
	}

	b = append(b, '\n')

	return b, nil
}

// formatBlock writes braces and items. The opening brace is written at the current position.
func formatBlock(ctx context.Context, b []byte, x *ast.Block, d int) (_ []byte, err error) {
	b = append(b, "{\n"...)

	for _, s := range x.Items {
		b = app(b, d+1, "")

		b, err = formatStmt(ctx, b, s, d+1)
		if err != nil {
			return nil, err
		}

		b = append(b, '\n')
	}

	b = app(b, d, "}")

	return b, nil
}

func formatStmt(ctx context.Context, b []byte, s ast.Stmt, d int) (_ []byte, err error) {
	switch s := s.(type) {
	case *ast.Block:
		return formatBlock(ctx, b, s, d)
	case *ast.ConstDecl:
		b = append(b, "const int "...)

		for i, def := range s.Defs {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = hfmt.Appendf(b, "%s = ", def.Name)

			b, err = formatExpr(ctx, b, def.Value, false)
			if err != nil {
				return nil, errors.Wrap(err, "const %v", def.Name)
			}
		}

		b = append(b, ';')
	case *ast.VarDecl:
		b = append(b, "int "...)

		for i, def := range s.Defs {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = append(b, def.Name...)

			if def.Init == nil {
				continue
			}

			b = append(b, " = "...)

			b, err = formatExpr(ctx, b, def.Init, false)
			if err != nil {
				return nil, errors.Wrap(err, "var %v", def.Name)
			}
		}

		b = append(b, ';')
	case *ast.Assign:
		b = hfmt.Appendf(b, "%s = ", s.Name)

		b, err = formatExpr(ctx, b, s.Value, false)
		if err != nil {
			return nil, errors.Wrap(err, "assign %v", s.Name)
		}

		b = append(b, ';')
	case *ast.ExprStmt:
		if s.Value != nil {
			b, err = formatExpr(ctx, b, s.Value, false)
			if err != nil {
				return nil, errors.Wrap(err, "expr")
			}
		}

		b = append(b, ';')
	case *ast.Return:
		b = append(b, "return"...)

		if s.Value != nil {
			b = append(b, ' ')

			b, err = formatExpr(ctx, b, s.Value, false)
			if err != nil {
				return nil, errors.Wrap(err, "return")
			}
		}

		b = append(b, ';')
	case *ast.If:
		b = append(b, "if ("...)

		b, err = formatExpr(ctx, b, s.Cond, false)
		if err != nil {
			return nil, errors.Wrap(err, "cond")
		}

		b = append(b, ") "...)

		b, err = formatArm(ctx, b, s.Then, d)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		if s.Else != nil {
			b = append(b, " else "...)

			b, err = formatArm(ctx, b, s.Else, d)
			if err != nil {
				return nil, errors.Wrap(err, "else")
			}
		}
	default:
		return nil, errors.New("unsupported stmt: %T", s)
	}

	return b, nil
}

// formatArm writes an if arm always as a block so dangling else stays unambiguous.
func formatArm(ctx context.Context, b []byte, s ast.Stmt, d int) ([]byte, error) {
	if blk, ok := s.(*ast.Block); ok {
		return formatBlock(ctx, b, blk, d)
	}

	return formatBlock(ctx, b, &ast.Block{Items: []ast.Stmt{s}}, d)
}

func formatExpr(ctx context.Context, b []byte, x ast.Expr, paren bool) (_ []byte, err error) {
	switch x := x.(type) {
	case *ast.Ident:
		b = append(b, x.Name...)
	case *ast.Number:
		b = hfmt.Appendf(b, "%d", x.Value)
	case *ast.Unary:
		b = append(b, x.Op...)

		b, err = formatExpr(ctx, b, x.X, true)
		if err != nil {
			return nil, errors.Wrap(err, "unary %v", x.Op)
		}
	case *ast.Binary:
		if paren {
			b = append(b, '(')
		}

		b, err = formatExpr(ctx, b, x.L, true)
		if err != nil {
			return nil, errors.Wrap(err, "lhs")
		}

		b = hfmt.Appendf(b, " %s ", x.Op)

		b, err = formatExpr(ctx, b, x.R, true)
		if err != nil {
			return nil, errors.Wrap(err, "rhs")
		}

		if paren {
			b = append(b, ')')
		}
	default:
		return nil, errors.New("unsupported expr: %T", x)
	}

	return b, nil
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"

	for d > len(tabs) {
		b = append(b, tabs...)
		d -= len(tabs)
	}

	b = append(b, tabs[:d]...)
	b = hfmt.Appendf(b, f, args...)

	return b
}
