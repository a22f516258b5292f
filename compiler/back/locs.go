package back

import (
	"tlog.app/go/errors"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/tlwire"

	"github.com/wty92911/sysy-cargo/compiler/asm/riscv"
	"github.com/wty92911/sysy-cargo/compiler/ir"
	"github.com/wty92911/sysy-cargo/compiler/set"
)

type (
	// Locations tracks where each value lives while a function is generated.
	// A value has at most one memory location (stack slot or constant)
	// and may additionally be cached in one register.
	Locations struct {
		tr tlog.Span
		w  *riscv.Writer

		res    [riscv.NumRegs]ir.Value
		reg    map[ir.Value]riscv.Reg
		mem    map[ir.Value]Mem
		locked set.Bits[riscv.Reg]

		off   int // next free slot offset in the current block
		depth int // sp distance below the function entry sp
	}

	Mem struct {
		Const   int32
		IsConst bool

		Off   int // slot offset from sp of the block it was allocated in
		Depth int // depth of that block
	}
)

// allocatable excludes x0 and sp.
var allocatable = set.Of(append([]riscv.Reg{riscv.A0}, riscv.Scratch...)...)

func NewLocations(tr tlog.Span, w *riscv.Writer) *Locations {
	l := &Locations{
		tr:  tr,
		w:   w,
		reg: make(map[ir.Value]riscv.Reg),
		mem: make(map[ir.Value]Mem),
	}

	for r := range l.res {
		l.res[r] = ir.Nil
	}

	return l
}

// EnterBlock starts a new block with the given sp depth.
// Registers are forgotten: memory holds every value at block boundaries.
func (l *Locations) EnterBlock(depth int) {
	for r, v := range l.res {
		if v != ir.Nil {
			delete(l.reg, v)
		}

		l.res[r] = ir.Nil
	}

	l.locked.Reset()
	l.off = 0
	l.depth = depth
}

func (l *Locations) Lock(r riscv.Reg)   { l.locked.Set(r) }
func (l *Locations) Unlock(r riscv.Reg) { l.locked.Clear(r) }

// AllocReg returns a register ready to be overwritten.
// want == riscv.NoReg picks the lowest-numbered free scratch register,
// or the lowest-numbered unlocked one after spilling its resident.
func (l *Locations) AllocReg(want riscv.Reg) (r riscv.Reg, err error) {
	r = want

	if r == riscv.NoReg {
		r = l.pick()
	}

	if !allocatable.IsSet(r) {
		panic(errors.New("alloc reserved register: %v", r))
	}

	if l.locked.IsSet(r) {
		panic(errors.New("alloc locked register: %v", r))
	}

	if l.res[r] != ir.Nil {
		err = l.Spill(r)
		if err != nil {
			return riscv.NoReg, err
		}
	}

	return r, nil
}

func (l *Locations) pick() riscv.Reg {
	var free, unlocked set.Bits[riscv.Reg]

	for _, r := range riscv.Scratch {
		if l.locked.IsSet(r) {
			continue
		}

		unlocked.Set(r)

		if l.res[r] == ir.Nil {
			free.Set(r)
		}
	}

	if r, ok := free.First(); ok {
		return r
	}

	if r, ok := unlocked.First(); ok {
		return r
	}

	panic(errors.New("out of registers: locked %v", l.locked.Size()))
}

// LoadToReg makes v available in a register.
// With want set the value ends up exactly in want.
func (l *Locations) LoadToReg(v ir.Value, want riscv.Reg) (r riscv.Reg, err error) {
	if cur, ok := l.reg[v]; ok {
		if want == riscv.NoReg || want == cur {
			return cur, nil
		}

		r, err = l.AllocReg(want)
		if err != nil {
			return riscv.NoReg, err
		}

		l.w.Mv(r, cur)
		l.Bind(v, r)

		return r, nil
	}

	m, ok := l.mem[v]
	if !ok {
		panic(errors.New("value %v has no location", v))
	}

	r, err = l.AllocReg(want)
	if err != nil {
		return riscv.NoReg, err
	}

	if m.IsConst {
		l.w.Li(r, m.Const)
	} else {
		off, err := l.slotOff(m)
		if err != nil {
			return riscv.NoReg, err
		}

		l.w.Lw(r, off)
	}

	l.Bind(v, r)

	return r, nil
}

// Bind makes r the register holding v.
// The previous resident of r and the previous register of v are forgotten.
func (l *Locations) Bind(v ir.Value, r riscv.Reg) {
	if old := l.res[r]; old != ir.Nil {
		delete(l.reg, old)
	}

	if old, ok := l.reg[v]; ok {
		l.res[old] = ir.Nil
	}

	l.res[r] = v
	l.reg[v] = r

	l.tr.V("regalloc").Printw("bind", "val", v, "reg", r, "from", loc.Caller(1))
}

func (l *Locations) BindConst(v ir.Value, c int32) {
	l.mem[v] = Mem{Const: c, IsConst: true}
}

// AllocSlot reserves size bytes of the current block frame for v.
func (l *Locations) AllocSlot(v ir.Value, size int) {
	l.mem[v] = Mem{Off: l.off, Depth: l.depth}
	l.off += size
}

// Spill frees r storing its resident to its stack slot.
func (l *Locations) Spill(r riscv.Reg) error {
	v := l.res[r]
	if v == ir.Nil {
		return nil
	}

	l.tr.V("regalloc").Printw("spill", "reg", r, "val", v, "from", loc.Caller(1))

	err := l.CopyToMem(r)
	if err != nil {
		return err
	}

	delete(l.reg, v)
	l.res[r] = ir.Nil

	return nil
}

// CopyToMem stores the resident of r to its stack slot keeping it in the register.
func (l *Locations) CopyToMem(r riscv.Reg) error {
	v := l.res[r]
	if v == ir.Nil {
		return nil
	}

	m, ok := l.mem[v]
	if !ok {
		panic(errors.New("value %v has no memory location", v))
	}

	if m.IsConst {
		return nil
	}

	off, err := l.slotOff(m)
	if err != nil {
		return err
	}

	l.w.Sw(r, off)

	return nil
}

func (l *Locations) Depth() int { return l.depth }

func (l *Locations) slotOff(m Mem) (int, error) {
	off := m.Off + l.depth - m.Depth

	if !riscv.FitsImm(off) {
		return 0, errors.Wrap(ErrFrameOverflow, "slot offset %d", off)
	}

	return off, nil
}

func (m Mem) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	b = e.AppendMap(b, 1)

	if m.IsConst {
		return e.AppendKeyInt(b, "const", int(m.Const))
	}

	return e.AppendKeyInt(b, "slot", m.Off-m.Depth)
}
