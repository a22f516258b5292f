package ir

import "tlog.app/go/tlog/tlwire"

type (
	Value   int
	BlockID int
	Type    int
	Op      int

	Program struct {
		Funcs []*Func
	}

	Func struct {
		Name string
		Ret  Type

		Values []any
		VType  []Type
		VBlock []BlockID

		Blocks []*Block
		Layout []BlockID
	}

	Block struct {
		Name string
		Code []Value
	}

	Integer struct {
		Value int32
	}

	Alloc struct{}

	Load struct {
		Src Value
	}

	Store struct {
		Value Value
		Dest  Value
	}

	Binary struct {
		Op   Op
		L, R Value
	}

	Jump struct {
		Target BlockID
	}

	Branch struct {
		Cond        Value
		True, False BlockID
	}

	Return struct {
		Value Value
	}
)

const (
	Nil Value = -1

	NoBlock BlockID = -1
)

const (
	Unit Type = iota
	Int32
	Pointer
)

const (
	Eq Op = iota
	NotEq
	Lt
	Gt
	Le
	Ge
	And
	Or
	Add
	Sub
	Mul
	Div
	Mod
)

var opNames = []string{
	Eq:    "eq",
	NotEq: "ne",
	Lt:    "lt",
	Gt:    "gt",
	Le:    "le",
	Ge:    "ge",
	And:   "and",
	Or:    "or",
	Add:   "add",
	Sub:   "sub",
	Mul:   "mul",
	Div:   "div",
	Mod:   "mod",
}

func NewFunc(name string, ret Type) *Func {
	return &Func{
		Name: name,
		Ret:  ret,
	}
}

// NewValue adds x to the value arena without placing it into any block.
func (f *Func) NewValue(x any) Value {
	id := Value(len(f.Values))

	f.Values = append(f.Values, x)
	f.VType = append(f.VType, TypeOf(x))
	f.VBlock = append(f.VBlock, NoBlock)

	return id
}

// NewBlock creates a block and appends it to the layout.
func (f *Func) NewBlock(name string) BlockID {
	id := BlockID(len(f.Blocks))

	f.Blocks = append(f.Blocks, &Block{Name: name})
	f.Layout = append(f.Layout, id)

	return id
}

// Append creates instruction x at the end of block b.
func (f *Func) Append(b BlockID, x any) Value {
	id := f.NewValue(x)

	f.VBlock[id] = b
	f.Blocks[b].Code = append(f.Blocks[b].Code, id)

	return id
}

func (f *Func) Block(b BlockID) *Block { return f.Blocks[b] }

func (f *Func) Entry() BlockID {
	if len(f.Layout) == 0 {
		return NoBlock
	}

	return f.Layout[0]
}

// Last returns the last instruction of the block or Nil.
func (f *Func) Last(b BlockID) Value {
	code := f.Blocks[b].Code
	if len(code) == 0 {
		return Nil
	}

	return code[len(code)-1]
}

// Terminated reports whether the block already ends with a terminator.
func (f *Func) Terminated(b BlockID) bool {
	last := f.Last(b)

	return last != Nil && IsTerminator(f.Values[last])
}

// Succs returns the blocks the terminator of b transfers control to.
func (f *Func) Succs(b BlockID) []BlockID {
	last := f.Last(b)
	if last == Nil {
		return nil
	}

	switch x := f.Values[last].(type) {
	case Jump:
		return []BlockID{x.Target}
	case Branch:
		return []BlockID{x.True, x.False}
	}

	return nil
}

// Preds counts incoming edges per block.
func (f *Func) Preds() []int {
	preds := make([]int, len(f.Blocks))

	for _, b := range f.Layout {
		for _, s := range f.Succs(b) {
			preds[s]++
		}
	}

	return preds
}

func IsTerminator(x any) bool {
	switch x.(type) {
	case Jump, Branch, Return:
		return true
	}

	return false
}

func TypeOf(x any) Type {
	switch x.(type) {
	case Integer, Load, Binary:
		return Int32
	case Alloc:
		return Pointer
	default:
		return Unit
	}
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return "op?"
	}

	return opNames[op]
}

func (t Type) String() string {
	switch t {
	case Int32:
		return "i32"
	case Pointer:
		return "*i32"
	default:
		return "unit"
	}
}

func (op Op) TlogAppend(b []byte) []byte {
	var e tlwire.Encoder

	return e.AppendString(b, op.String())
}
