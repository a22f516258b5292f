package front

import (
	"tlog.app/go/errors"

	"github.com/wty92911/sysy-cargo/compiler/ast"
)

// evalConst folds a constant initializer. Arithmetic wraps around as int32.
func (s *Scopes) evalConst(x ast.Expr) (int32, error) {
	switch x := x.(type) {
	case *ast.Number:
		return x.Value, nil
	case *ast.Ident:
		d, ok := s.Get(x.Name)
		if !ok {
			return 0, errors.Wrap(ErrUndefinedSymbol, "%v", x.Name)
		}

		if !d.IsConst() {
			return 0, errors.Wrap(ErrNonConstantExpression, "variable %v", x.Name)
		}

		return d.Const, nil
	case *ast.Unary:
		v, err := s.evalConst(x.X)
		if err != nil {
			return 0, err
		}

		switch x.Op {
		case "+":
			return v, nil
		case "-":
			return -v, nil
		case "!":
			return b2i(v == 0), nil
		}

		return 0, errors.New("unsupported unary op: %q", x.Op)
	case *ast.Binary:
		return s.evalBinary(x)
	}

	return 0, errors.New("unsupported expr: %T", x)
}

func (s *Scopes) evalBinary(x *ast.Binary) (int32, error) {
	l, err := s.evalConst(x.L)
	if err != nil {
		return 0, err
	}

	switch x.Op {
	case "||":
		if l != 0 {
			return 1, nil
		}
	case "&&":
		if l == 0 {
			return 0, nil
		}
	}

	r, err := s.evalConst(x.R)
	if err != nil {
		return 0, err
	}

	switch x.Op {
	case "||", "&&":
		return b2i(r != 0), nil
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/", "%":
		if r == 0 {
			return 0, ErrDivisionByZero
		}

		if x.Op == "/" {
			return l / r, nil
		}

		return l % r, nil
	case "==":
		return b2i(l == r), nil
	case "!=":
		return b2i(l != r), nil
	case "<":
		return b2i(l < r), nil
	case ">":
		return b2i(l > r), nil
	case "<=":
		return b2i(l <= r), nil
	case ">=":
		return b2i(l >= r), nil
	}

	return 0, errors.New("unsupported op: %q", x.Op)
}

func b2i(b bool) int32 {
	if b {
		return 1
	}

	return 0
}
