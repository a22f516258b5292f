package front

import (
	"tlog.app/go/errors"

	"github.com/wty92911/sysy-cargo/compiler/ir"
)

type (
	// Decl is either a compile-time constant or a variable slot.
	Decl struct {
		Const int32
		Var   ir.Value // ir.Nil for constants
	}

	Scopes struct {
		frames []map[string]Decl
	}
)

func ConstDecl(v int32) Decl { return Decl{Const: v, Var: ir.Nil} }

func VarDecl(v ir.Value) Decl { return Decl{Var: v} }

func (d Decl) IsConst() bool { return d.Var == ir.Nil }

func (s *Scopes) Push() {
	s.frames = append(s.frames, make(map[string]Decl))
}

func (s *Scopes) Pop() {
	s.frames = s.frames[:len(s.frames)-1]
}

func (s *Scopes) Depth() int { return len(s.frames) }

func (s *Scopes) InsertConst(name string, v int32) error {
	return s.insert(name, ConstDecl(v))
}

func (s *Scopes) InsertVar(name string, v ir.Value) error {
	return s.insert(name, VarDecl(v))
}

func (s *Scopes) insert(name string, d Decl) error {
	top := s.frames[len(s.frames)-1]

	if _, ok := top[name]; ok {
		return errors.Wrap(ErrDuplicateDeclaration, "%v", name)
	}

	top[name] = d

	return nil
}

// Get finds the innermost binding of name.
func (s *Scopes) Get(name string) (Decl, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if d, ok := s.frames[i][name]; ok {
			return d, true
		}
	}

	return Decl{}, false
}
