package front

import (
	"context"
	"fmt"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/wty92911/sysy-cargo/compiler/ast"
	"github.com/wty92911/sysy-cargo/compiler/ir"
)

type (
	// Front lowers syntax trees into ir.
	// Block labels are unique across all the programs built by the same Front.
	Front struct {
		nextLabel int
	}

	funContext struct {
		*Front
		*ir.Func

		Scopes

		bb ir.BlockID
	}
)

var binOps = map[string]ir.Op{
	"==": ir.Eq,
	"!=": ir.NotEq,
	"<":  ir.Lt,
	">":  ir.Gt,
	"<=": ir.Le,
	">=": ir.Ge,
	"+":  ir.Add,
	"-":  ir.Sub,
	"*":  ir.Mul,
	"/":  ir.Div,
	"%":  ir.Mod,
}

func New() *Front {
	return &Front{}
}

func (c *Front) Build(ctx context.Context, x *ast.CompUnit) (p *ir.Program, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "front: build program")
	defer tr.Finish("err", &err)

	if x == nil || x.Func == nil {
		return nil, errors.New("no function defined")
	}

	f, err := c.buildFunc(ctx, x.Func)
	if err != nil {
		return nil, errors.Wrap(err, "func %v", x.Func.Name)
	}

	return &ir.Program{Funcs: []*ir.Func{f}}, nil
}

func (c *Front) buildFunc(ctx context.Context, d *ast.FuncDef) (f *ir.Func, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "build func", "name", d.Name)
	defer tr.Finish("err", &err)

	fc := &funContext{
		Front: c,
		Func:  ir.NewFunc("@"+d.Name, ir.Int32),
	}

	fc.bb = fc.NewBlock(c.label("entry"))

	err = fc.compileBlock(ctx, d.Body)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	if d := fc.Depth(); d != 0 {
		return nil, errors.New("unbalanced scopes: depth %d", d)
	}

	fc.finish()

	if tr.If("dump_ir") {
		for _, b := range fc.Layout {
			blk := fc.Block(b)

			tr.Printw("block", "id", b, "name", blk.Name, "succs", fc.Succs(b))

			for _, id := range blk.Code {
				x := fc.Values[id]

				tr.Printw("code", "id", id, "tp", fc.VType[id], "typ", tlog.NextAsType, x, "val", x)
			}
		}
	}

	return fc.Func, nil
}

func (c *Front) label(tag string) string {
	l := fmt.Sprintf("%%%s_%d", tag, c.nextLabel)
	c.nextLabel++

	return l
}

func (fc *funContext) compileBlock(ctx context.Context, b *ast.Block) (err error) {
	fc.Push()
	defer fc.Pop()

	for _, s := range b.Items {
		err = fc.compileStmt(ctx, s)
		if err != nil {
			return err
		}
	}

	return nil
}

func (fc *funContext) compileStmt(ctx context.Context, s ast.Stmt) (err error) {
	switch s := s.(type) {
	case *ast.Block:
		return fc.compileBlock(ctx, s)
	case *ast.ConstDecl:
		for _, d := range s.Defs {
			v, err := fc.evalConst(d.Value)
			if err != nil {
				return errors.Wrap(err, "const %v", d.Name)
			}

			err = fc.InsertConst(d.Name, v)
			if err != nil {
				return err
			}
		}
	case *ast.VarDecl:
		for _, d := range s.Defs {
			slot := fc.emit(ir.Alloc{})

			if d.Init != nil {
				v, err := fc.compileExpr(ctx, d.Init)
				if err != nil {
					return errors.Wrap(err, "var %v", d.Name)
				}

				fc.emit(ir.Store{Value: v, Dest: slot})
			}

			err = fc.InsertVar(d.Name, slot)
			if err != nil {
				return err
			}
		}
	case *ast.Assign:
		d, ok := fc.Get(s.Name)
		if !ok {
			return errors.Wrap(ErrUndefinedSymbol, "%v", s.Name)
		}

		if d.IsConst() {
			return errors.Wrap(ErrAssignmentToConstant, "%v", s.Name)
		}

		v, err := fc.compileExpr(ctx, s.Value)
		if err != nil {
			return errors.Wrap(err, "assign %v", s.Name)
		}

		fc.emit(ir.Store{Value: v, Dest: d.Var})
	case *ast.ExprStmt:
		if s.Value == nil {
			return nil
		}

		_, err = fc.compileExpr(ctx, s.Value)
		if err != nil {
			return errors.Wrap(err, "expr stmt")
		}
	case *ast.Return:
		if fc.Terminated(fc.bb) {
			fc.bb = fc.NewBlock(fc.label("ret"))
		}

		v := ir.Nil

		if s.Value != nil {
			v, err = fc.compileExpr(ctx, s.Value)
			if err != nil {
				return errors.Wrap(err, "return")
			}
		}

		fc.emit(ir.Return{Value: v})
	case *ast.If:
		return fc.compileIf(ctx, s.Cond, s.Then, s.Else)
	default:
		return errors.New("unsupported stmt: %T", s)
	}

	return nil
}

// compileIf lowers both if and if-else statements. els may be nil.
func (fc *funContext) compileIf(ctx context.Context, cond ast.Expr, then, els ast.Stmt) error {
	v, err := fc.compileExpr(ctx, cond)
	if err != nil {
		return errors.Wrap(err, "if cond")
	}

	tb := fc.NewBlock(fc.label("if"))
	fb := fc.NewBlock(fc.label("else"))
	end := fc.NewBlock(fc.label("if_end"))

	fc.emit(ir.Branch{Cond: v, True: tb, False: fb})

	arms := []struct {
		bb   ir.BlockID
		stmt ast.Stmt
		name string
	}{
		{tb, then, "then"},
		{fb, els, "else"},
	}

	for _, arm := range arms {
		fc.bb = arm.bb

		if arm.stmt != nil {
			fc.Push()
			err = fc.compileStmt(ctx, arm.stmt)
			fc.Pop()

			if err != nil {
				return errors.Wrap(err, "if %v", arm.name)
			}
		}

		if !fc.Terminated(fc.bb) {
			fc.emit(ir.Jump{Target: end})
		}
	}

	fc.bb = end

	return nil
}

func (fc *funContext) compileExpr(ctx context.Context, x ast.Expr) (v ir.Value, err error) {
	switch x := x.(type) {
	case *ast.Number:
		return fc.NewValue(ir.Integer{Value: x.Value}), nil
	case *ast.Ident:
		d, ok := fc.Get(x.Name)
		if !ok {
			return ir.Nil, errors.Wrap(ErrUndefinedSymbol, "%v", x.Name)
		}

		if d.IsConst() {
			return fc.NewValue(ir.Integer{Value: d.Const}), nil
		}

		return fc.emit(ir.Load{Src: d.Var}), nil
	case *ast.Unary:
		v, err = fc.compileExpr(ctx, x.X)
		if err != nil {
			return ir.Nil, err
		}

		switch x.Op {
		case "+":
			return v, nil
		case "-":
			return fc.emit(ir.Binary{Op: ir.Sub, L: fc.zero(), R: v}), nil
		case "!":
			return fc.emit(ir.Binary{Op: ir.Eq, L: v, R: fc.zero()}), nil
		}

		return ir.Nil, errors.New("unsupported unary op: %q", x.Op)
	case *ast.Binary:
		switch x.Op {
		case "||":
			return fc.compileShortCircuit(ctx, x, false)
		case "&&":
			return fc.compileShortCircuit(ctx, x, true)
		}

		op, ok := binOps[x.Op]
		if !ok {
			return ir.Nil, errors.New("unsupported op: %q", x.Op)
		}

		l, err := fc.compileExpr(ctx, x.L)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "%v lhs", x.Op)
		}

		r, err := fc.compileExpr(ctx, x.R)
		if err != nil {
			return ir.Nil, errors.Wrap(err, "%v rhs", x.Op)
		}

		return fc.emit(ir.Binary{Op: op, L: l, R: r}), nil
	}

	return ir.Nil, errors.New("unsupported expr: %T", x)
}

// compileShortCircuit lowers || and &&.
// The left value is stored into a result slot and the right operand is only
// evaluated when the left one does not decide the result.
// The join block normalizes the slot to 0 or 1.
func (fc *funContext) compileShortCircuit(ctx context.Context, x *ast.Binary, and bool) (v ir.Value, err error) {
	tag := "or"
	if and {
		tag = "and"
	}

	res := fc.emit(ir.Alloc{})

	l, err := fc.compileExpr(ctx, x.L)
	if err != nil {
		return ir.Nil, errors.Wrap(err, "%v lhs", x.Op)
	}

	fc.emit(ir.Store{Value: l, Dest: res})

	rb := fc.NewBlock(fc.label(tag + "_r"))
	end := fc.NewBlock(fc.label(tag + "_end"))

	if and {
		fc.emit(ir.Branch{Cond: l, True: rb, False: end})
	} else {
		fc.emit(ir.Branch{Cond: l, True: end, False: rb})
	}

	fc.bb = rb

	r, err := fc.compileExpr(ctx, x.R)
	if err != nil {
		return ir.Nil, errors.Wrap(err, "%v rhs", x.Op)
	}

	fc.emit(ir.Store{Value: r, Dest: res})
	fc.emit(ir.Jump{Target: end})

	fc.bb = end

	ld := fc.emit(ir.Load{Src: res})

	return fc.emit(ir.Binary{Op: ir.NotEq, L: ld, R: fc.zero()}), nil
}

// emit appends x to the current block.
// A terminated block is never extended: code following a terminator goes to a fresh unreachable block.
func (fc *funContext) emit(x any) ir.Value {
	if fc.Terminated(fc.bb) {
		fc.bb = fc.NewBlock(fc.label("dead"))
	}

	return fc.Append(fc.bb, x)
}

func (fc *funContext) zero() ir.Value {
	return fc.NewValue(ir.Integer{})
}

// finish drops empty blocks nothing jumps to and terminates the blocks that fall off the function end.
func (fc *funContext) finish() {
	preds := fc.Preds()
	layout := make([]ir.BlockID, 0, len(fc.Layout))

	for i, b := range fc.Layout {
		if i != 0 && preds[b] == 0 && len(fc.Blocks[b].Code) == 0 {
			continue
		}

		layout = append(layout, b)
	}

	fc.Layout = layout

	for _, b := range fc.Layout {
		if !fc.Terminated(b) {
			fc.Append(b, ir.Return{Value: fc.zero()})
		}
	}
}
