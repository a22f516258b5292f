package riscv

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Machine interprets the assembly subset the back end emits.
	Machine struct {
		Regs [NumRegs]int32
		Mem  map[int32]int32

		MaxSteps int
	}

	Result struct {
		A0    int32
		SP    int32 // sp after ret relative to sp on entry
		Steps int
	}

	inst struct {
		line int
		op   string
		args []string
	}
)

const stackTop = 1 << 20

func NewMachine() *Machine {
	return &Machine{
		Mem:      make(map[int32]int32),
		MaxSteps: 1 << 16,
	}
}

// Exec runs function entry of the text until it returns.
// If entry is empty the first .global symbol is used.
func (m *Machine) Exec(ctx context.Context, text []byte, entry string) (res Result, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "riscv: exec", "entry", entry)
	defer tr.Finish("err", &err)

	prog, labels, global, err := assemble(text)
	if err != nil {
		return res, errors.Wrap(err, "assemble")
	}

	if entry == "" {
		entry = global
	}

	pc, ok := labels[entry]
	if !ok {
		return res, errors.New("no entry label: %q", entry)
	}

	m.Regs[SP] = stackTop

	for {
		if pc >= len(prog) {
			return res, errors.New("fell off the text end")
		}

		if res.Steps == m.MaxSteps {
			return res, errors.New("step limit exceeded: %d", m.MaxSteps)
		}

		res.Steps++

		in := prog[pc]
		pc++

		if tr.If("exec_trace") {
			tr.Printw("exec", "line", in.line, "op", in.op, "args", in.args)
		}

		if in.op == "ret" {
			res.A0 = m.Regs[A0]
			res.SP = m.Regs[SP] - stackTop

			return res, nil
		}

		next, err := m.step(in, labels)
		if err != nil {
			return res, errors.Wrap(err, "line %d: %v", in.line, in.op)
		}

		if next >= 0 {
			pc = next
		}

		m.Regs[Zero] = 0
	}
}

func (m *Machine) step(in inst, labels map[string]int) (next int, err error) {
	next = -1

	arg := func(i int) (string, error) {
		if i >= len(in.args) {
			return "", errors.New("operand %d missing", i)
		}

		return in.args[i], nil
	}

	imm := func(i int) (int32, error) {
		a, err := arg(i)
		if err != nil {
			return 0, err
		}

		v, err := strconv.ParseInt(a, 0, 32)
		if err != nil {
			return 0, errors.Wrap(err, "immediate")
		}

		return int32(v), nil
	}

	reg := func(i int) (Reg, error) {
		a, err := arg(i)
		if err != nil {
			return NoReg, err
		}

		r, ok := RegByName(a)
		if !ok {
			return NoReg, errors.New("bad register: %q", a)
		}

		return r, nil
	}

	regs := func(n int) (r []Reg, err error) {
		r = make([]Reg, n)

		for i := range r {
			r[i], err = reg(i)
			if err != nil {
				return nil, err
			}
		}

		return r, nil
	}

	label := func(i int) (int, error) {
		if i >= len(in.args) {
			return -1, errors.New("operand %d missing", i)
		}

		pc, ok := labels[in.args[i]]
		if !ok {
			return -1, errors.New("unknown label: %q", in.args[i])
		}

		return pc, nil
	}

	switch in.op {
	case "li":
		rd, err := reg(0)
		if err != nil {
			return next, err
		}

		v, err := imm(1)
		if err != nil {
			return next, err
		}

		m.Regs[rd] = v
	case "mv", "seqz", "snez":
		r, err := regs(2)
		if err != nil {
			return next, err
		}

		v := m.Regs[r[1]]

		switch in.op {
		case "seqz":
			v = b2i(v == 0)
		case "snez":
			v = b2i(v != 0)
		}

		m.Regs[r[0]] = v
	case "lw", "sw":
		r, err := reg(0)
		if err != nil {
			return next, err
		}

		a, err := arg(1)
		if err != nil {
			return next, err
		}

		addr, err := m.addr(a)
		if err != nil {
			return next, err
		}

		if in.op == "lw" {
			m.Regs[r] = m.Mem[addr]
		} else {
			m.Mem[addr] = m.Regs[r]
		}
	case "addi":
		r, err := regs(2)
		if err != nil {
			return next, err
		}

		v, err := imm(2)
		if err != nil {
			return next, err
		}

		if !FitsImm(int(v)) {
			return next, errors.New("immediate out of range: %d", v)
		}

		m.Regs[r[0]] = m.Regs[r[1]] + v
	case "add", "sub", "mul", "div", "rem", "and", "or", "slt":
		r, err := regs(3)
		if err != nil {
			return next, err
		}

		m.Regs[r[0]] = alu(in.op, m.Regs[r[1]], m.Regs[r[2]])
	case "j":
		return label(0)
	case "bnez":
		r, err := reg(0)
		if err != nil {
			return next, err
		}

		if m.Regs[r] != 0 {
			return label(1)
		}
	default:
		return next, errors.New("unsupported instruction")
	}

	return next, nil
}

func (m *Machine) addr(s string) (int32, error) {
	p := strings.IndexByte(s, '(')
	if p < 0 || !strings.HasSuffix(s, ")") {
		return 0, errors.New("bad address: %q", s)
	}

	off, err := strconv.ParseInt(s[:p], 0, 32)
	if err != nil {
		return 0, errors.Wrap(err, "offset")
	}

	base, ok := RegByName(s[p+1 : len(s)-1])
	if !ok {
		return 0, errors.New("bad base register: %q", s)
	}

	return m.Regs[base] + int32(off), nil
}

func alu(op string, a, b int32) int32 {
	switch op {
	case "add":
		return a + b
	case "sub":
		return a - b
	case "mul":
		return a * b
	case "div":
		if b == 0 {
			return -1
		}

		return a / b
	case "rem":
		if b == 0 {
			return a
		}

		return a % b
	case "and":
		return a & b
	case "or":
		return a | b
	case "slt":
		return b2i(a < b)
	}

	panic(op)
}

func assemble(text []byte) (prog []inst, labels map[string]int, global string, err error) {
	labels = make(map[string]int)

	for n, line := range bytes.Split(text, []byte("\n")) {
		s := strings.TrimSpace(string(line))

		if p := strings.IndexByte(s, '#'); p >= 0 {
			s = strings.TrimSpace(s[:p])
		}

		if s == "" {
			continue
		}

		if strings.HasSuffix(s, ":") {
			labels[s[:len(s)-1]] = len(prog)
			continue
		}

		op, rest, _ := strings.Cut(s, " ")

		var args []string

		for _, a := range strings.Split(rest, ",") {
			if a = strings.TrimSpace(a); a != "" {
				args = append(args, a)
			}
		}

		if strings.HasPrefix(op, ".") {
			if op == ".global" || op == ".globl" {
				if len(args) == 0 {
					return nil, nil, "", errors.New("line %d: %v: symbol expected", n+1, op)
				}

				if global == "" {
					global = args[0]
				}
			}

			continue
		}

		prog = append(prog, inst{line: n + 1, op: op, args: args})
	}

	return prog, labels, global, nil
}

func b2i(b bool) int32 {
	if b {
		return 1
	}

	return 0
}
