package riscv

import (
	"github.com/nikandfor/hacked/hfmt"
)

type (
	Reg int

	// Writer appends assembly text lines to B.
	Writer struct {
		B []byte
	}
)

const (
	Zero Reg = iota
	T0
	T1
	T2
	T3
	T4
	T5
	T6
	A0
	SP

	NumRegs

	NoReg Reg = -1
)

// 12-bit signed immediate range of I and S type instructions.
const (
	MinImm = -2048
	MaxImm = 2047
)

var regNames = [NumRegs]string{
	Zero: "x0",
	T0:   "t0",
	T1:   "t1",
	T2:   "t2",
	T3:   "t3",
	T4:   "t4",
	T5:   "t5",
	T6:   "t6",
	A0:   "a0",
	SP:   "sp",
}

// Scratch registers in allocation preference order.
var Scratch = []Reg{T0, T1, T2, T3, T4, T5, T6}

func (r Reg) String() string {
	if r < 0 || r >= NumRegs {
		return "r?"
	}

	return regNames[r]
}

func RegByName(name string) (Reg, bool) {
	for r, n := range regNames {
		if n == name {
			return Reg(r), true
		}
	}

	if name == "zero" {
		return Zero, true
	}

	return NoReg, false
}

func FitsImm(x int) bool {
	return x >= MinImm && x <= MaxImm
}

func (w *Writer) Directive(name, arg string) {
	w.B = hfmt.Appendf(w.B, "  .%s %s\n", name, arg)
}

func (w *Writer) Section(name string) {
	w.B = hfmt.Appendf(w.B, "  .%s\n", name)
}

func (w *Writer) Label(name string) {
	w.B = hfmt.Appendf(w.B, "%s:\n", name)
}

func (w *Writer) Li(rd Reg, imm int32) {
	w.B = hfmt.Appendf(w.B, "  li %v, %d\n", rd, imm)
}

func (w *Writer) Mv(rd, rs Reg) {
	w.B = hfmt.Appendf(w.B, "  mv %v, %v\n", rd, rs)
}

func (w *Writer) Lw(rd Reg, off int) {
	w.B = hfmt.Appendf(w.B, "  lw %v, %d(sp)\n", rd, off)
}

func (w *Writer) Sw(rs Reg, off int) {
	w.B = hfmt.Appendf(w.B, "  sw %v, %d(sp)\n", rs, off)
}

func (w *Writer) Addi(rd, rs Reg, imm int) {
	w.B = hfmt.Appendf(w.B, "  addi %v, %v, %d\n", rd, rs, imm)
}

// Op emits a three register instruction: add, sub, slt and such.
func (w *Writer) Op(mn string, rd, rs1, rs2 Reg) {
	w.B = hfmt.Appendf(w.B, "  %s %v, %v, %v\n", mn, rd, rs1, rs2)
}

// Op1 emits a two register pseudo instruction: seqz or snez.
func (w *Writer) Op1(mn string, rd, rs Reg) {
	w.B = hfmt.Appendf(w.B, "  %s %v, %v\n", mn, rd, rs)
}

func (w *Writer) J(label string) {
	w.B = hfmt.Appendf(w.B, "  j %s\n", label)
}

func (w *Writer) Bnez(rs Reg, label string) {
	w.B = hfmt.Appendf(w.B, "  bnez %v, %s\n", rs, label)
}

func (w *Writer) Ret() {
	w.B = append(w.B, "  ret\n"...)
}
