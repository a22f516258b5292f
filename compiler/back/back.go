package back

import (
	"context"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/wty92911/sysy-cargo/compiler/asm/riscv"
	"github.com/wty92911/sysy-cargo/compiler/ir"
)

type (
	// Compiler generates RISC-V assembly text.
	Compiler struct{}

	funContext struct {
		*ir.Func
		*Locations

		tr tlog.Span
		w  *riscv.Writer

		frames []frame
		b      ir.BlockID
	}
)

var ErrFrameOverflow = errors.New("stack frame overflow")

var plainOps = map[ir.Op]string{
	ir.And: "and",
	ir.Or:  "or",
	ir.Add: "add",
	ir.Sub: "sub",
	ir.Mul: "mul",
	ir.Div: "div",
	ir.Mod: "rem",
}

func New() *Compiler { return &Compiler{} }

// CompileProgram appends assembly for p to b.
// b is returned unchanged on error.
func (c *Compiler) CompileProgram(ctx context.Context, b []byte, p *ir.Program) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile program", "funcs", len(p.Funcs))
	defer tr.Finish("err", &err)

	w := &riscv.Writer{B: b}

	w.Section("text")

	for _, f := range p.Funcs {
		w.Directive("global", symbol(f.Name))
	}

	for _, f := range p.Funcs {
		err = c.compileFunc(ctx, w, f)
		if err != nil {
			return b, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return w.B, nil
}

func (c *Compiler) compileFunc(ctx context.Context, w *riscv.Writer, f *ir.Func) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "compile func", "name", f.Name)
	defer tr.Finish("err", &err)

	frames, err := layoutFrames(f)
	if err != nil {
		return errors.Wrap(err, "layout frames")
	}

	if tr.If("dump_frames") {
		for _, b := range f.Layout {
			tr.Printw("frame", "block", f.Blocks[b].Name, "entry", frames[b].Entry, "size", frames[b].Size, "depth", frames[b].Depth)
		}
	}

	fc := &funContext{
		Func:      f,
		Locations: NewLocations(tr, w),
		tr:        tr,
		w:         w,
		frames:    frames,
	}

	w.Label(symbol(f.Name))

	for i, b := range f.Layout {
		err = fc.compileBlock(b, i == 0)
		if err != nil {
			return errors.Wrap(err, "block %v", f.Blocks[b].Name)
		}
	}

	return nil
}

func (fc *funContext) compileBlock(b ir.BlockID, entry bool) (err error) {
	fc.b = b
	fr := fc.frames[b]

	if !entry {
		fc.w.Label(blockLabel(fc.Blocks[b].Name))
	}

	fc.w.Addi(riscv.SP, riscv.SP, -fr.Size)

	fc.EnterBlock(fr.Depth)

	for _, id := range fc.Blocks[b].Code {
		err = fc.compileInst(id)
		if err != nil {
			return errors.Wrap(err, "inst %d: %T", id, fc.Values[id])
		}
	}

	return nil
}

func (fc *funContext) compileInst(id ir.Value) (err error) {
	var r riscv.Reg

	switch x := fc.Values[id].(type) {
	case ir.Alloc:
		fc.AllocSlot(id, slotSize)
	case ir.Load:
		fc.AllocSlot(id, slotSize)

		r, err = fc.operand(x.Src, riscv.NoReg)
		if err != nil {
			return err
		}

		fc.Bind(id, r)

		return fc.CopyToMem(r)
	case ir.Store:
		r, err = fc.operand(x.Value, riscv.NoReg)
		if err != nil {
			return err
		}

		fc.Bind(x.Dest, r)

		return fc.CopyToMem(r)
	case ir.Binary:
		fc.AllocSlot(id, slotSize)

		return fc.compileBinary(id, x)
	case ir.Return:
		if x.Value != ir.Nil {
			_, err = fc.operand(x.Value, riscv.A0)
			if err != nil {
				return err
			}
		}

		fc.adjustSP(fc.Depth())
		fc.w.Ret()
	case ir.Jump:
		fc.adjustSP(fc.Depth() - fc.frames[x.Target].Entry)
		fc.w.J(fc.label(x.Target))
	case ir.Branch:
		for _, s := range []ir.BlockID{x.True, x.False} {
			if e := fc.frames[s].Entry; e != fc.Depth() {
				return errors.New("branch target %v entry depth %d, have %d", fc.Blocks[s].Name, e, fc.Depth())
			}
		}

		r, err = fc.operand(x.Cond, riscv.NoReg)
		if err != nil {
			return err
		}

		fc.w.Bnez(r, fc.label(x.True))
		fc.w.J(fc.label(x.False))
	default:
		return errors.New("unsupported instruction")
	}

	return nil
}

func (fc *funContext) compileBinary(id ir.Value, x ir.Binary) (err error) {
	l, err := fc.operand(x.L, riscv.NoReg)
	if err != nil {
		return errors.Wrap(err, "lhs")
	}

	fc.Lock(l)
	defer fc.Unlock(l)

	r, err := fc.operand(x.R, riscv.NoReg)
	if err != nil {
		return errors.Wrap(err, "rhs")
	}

	fc.Lock(r)
	defer fc.Unlock(r)

	rd, err := fc.AllocReg(riscv.NoReg)
	if err != nil {
		return errors.Wrap(err, "dest")
	}

	fc.Lock(rd)
	defer fc.Unlock(rd)

	w := fc.w

	switch x.Op {
	case ir.Eq:
		w.Op("sub", rd, l, r)
		w.Op1("seqz", rd, rd)
	case ir.NotEq:
		w.Op("sub", rd, l, r)
		w.Op1("snez", rd, rd)
	case ir.Lt:
		w.Op("slt", rd, l, r)
	case ir.Gt:
		w.Op("slt", rd, r, l)
	case ir.Le:
		w.Op("slt", rd, r, l)
		w.Op1("seqz", rd, rd)
	case ir.Ge:
		w.Op("slt", rd, l, r)
		w.Op1("seqz", rd, rd)
	default:
		mn, ok := plainOps[x.Op]
		if !ok {
			return errors.New("unsupported op: %v", x.Op)
		}

		w.Op(mn, rd, l, r)
	}

	fc.Bind(id, rd)

	return fc.CopyToMem(rd)
}

// operand loads v into a register. Integer operands get their constant location on first use.
func (fc *funContext) operand(v ir.Value, want riscv.Reg) (riscv.Reg, error) {
	if c, ok := fc.Values[v].(ir.Integer); ok {
		if _, ok := fc.mem[v]; !ok {
			fc.BindConst(v, c.Value)
		}
	}

	return fc.LoadToReg(v, want)
}

// adjustSP moves sp by d bytes, in several addi steps if d does not fit an immediate.
func (fc *funContext) adjustSP(d int) {
	for d != 0 {
		step := min(max(d, riscv.MinImm), riscv.MaxImm)

		fc.w.Addi(riscv.SP, riscv.SP, step)
		d -= step
	}
}

func (fc *funContext) label(b ir.BlockID) string {
	return blockLabel(fc.Blocks[b].Name)
}

func symbol(name string) string { return strings.TrimPrefix(name, "@") }

func blockLabel(name string) string { return strings.TrimPrefix(name, "%") }
