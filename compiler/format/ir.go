package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"

	"github.com/wty92911/sysy-cargo/compiler/ir"
)

type names struct {
	f   *ir.Func
	ids map[ir.Value]int
}

func formatProgram(ctx context.Context, b []byte, p *ir.Program) (_ []byte, err error) {
	for i, f := range p.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b, err = formatFunc(ctx, b, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func formatFunc(ctx context.Context, b []byte, f *ir.Func) (_ []byte, err error) {
	n := &names{f: f, ids: make(map[ir.Value]int)}

	b = hfmt.Appendf(b, "fun %s(): %v {\n", f.Name, f.Ret)

	for i, bb := range f.Layout {
		if i != 0 {
			b = append(b, '\n')
		}

		blk := f.Block(bb)

		b = hfmt.Appendf(b, "%s:\n", blk.Name)

		for _, id := range blk.Code {
			b, err = n.formatInst(b, id)
			if err != nil {
				return nil, errors.Wrap(err, "block %v", blk.Name)
			}
		}
	}

	b = append(b, "}\n"...)

	return b, nil
}

func (n *names) formatInst(b []byte, id ir.Value) ([]byte, error) {
	f := n.f

	b = app(b, 1, "")

	if f.VType[id] != ir.Unit {
		b = n.operand(b, id)
		b = append(b, " = "...)
	}

	switch x := f.Values[id].(type) {
	case ir.Alloc:
		b = append(b, "alloc i32"...)
	case ir.Load:
		b = append(b, "load "...)
		b = n.operand(b, x.Src)
	case ir.Store:
		b = append(b, "store "...)
		b = n.operand(b, x.Value)
		b = append(b, ", "...)
		b = n.operand(b, x.Dest)
	case ir.Binary:
		b = hfmt.Appendf(b, "%v ", x.Op)
		b = n.operand(b, x.L)
		b = append(b, ", "...)
		b = n.operand(b, x.R)
	case ir.Jump:
		b = hfmt.Appendf(b, "jump %s", f.Blocks[x.Target].Name)
	case ir.Branch:
		b = append(b, "br "...)
		b = n.operand(b, x.Cond)
		b = hfmt.Appendf(b, ", %s, %s", f.Blocks[x.True].Name, f.Blocks[x.False].Name)
	case ir.Return:
		b = append(b, "ret"...)

		if x.Value != ir.Nil {
			b = append(b, ' ')
			b = n.operand(b, x.Value)
		}
	default:
		return nil, errors.New("unsupported instruction: %T", x)
	}

	b = append(b, '\n')

	return b, nil
}

// operand appends integers inline and instructions numbered in order of appearance.
func (n *names) operand(b []byte, v ir.Value) []byte {
	if c, ok := n.f.Values[v].(ir.Integer); ok {
		return hfmt.Appendf(b, "%d", c.Value)
	}

	id, ok := n.ids[v]
	if !ok {
		id = len(n.ids)
		n.ids[v] = id
	}

	return hfmt.Appendf(b, "%%%d", id)
}
