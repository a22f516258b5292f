package ast

type (
	Node any
	Expr any
	Stmt any

	Base struct {
		Pos int
		End int
	}

	CompUnit struct {
		Base `tlog:",embed"`

		Func *FuncDef
	}

	FuncDef struct {
		Base `tlog:",embed"`

		Type string
		Name string
		Body *Block
	}

	Block struct {
		Base `tlog:",embed"`

		Items []Stmt
	}

	ConstDecl struct {
		Base `tlog:",embed"`

		Defs []ConstDef
	}

	ConstDef struct {
		Base `tlog:",embed"`

		Name  string
		Value Expr
	}

	VarDecl struct {
		Base `tlog:",embed"`

		Defs []VarDef
	}

	VarDef struct {
		Base `tlog:",embed"`

		Name string
		Init Expr // nil if absent
	}

	Assign struct {
		Base `tlog:",embed"`

		Name  string
		Value Expr
	}

	// ExprStmt is an expression evaluated for nothing. Value is nil for an empty statement.
	ExprStmt struct {
		Base `tlog:",embed"`

		Value Expr
	}

	Return struct {
		Base `tlog:",embed"`

		Value Expr // nil if absent
	}

	If struct {
		Base `tlog:",embed"`

		Cond Expr
		Then Stmt
		Else Stmt // nil if absent
	}

	Number struct {
		Base `tlog:",embed"`

		Value int32
	}

	Ident struct {
		Base `tlog:",embed"`

		Name string
	}

	Unary struct {
		Base `tlog:",embed"`

		Op string
		X  Expr
	}

	Binary struct {
		Base `tlog:",embed"`

		Op   string
		L, R Expr
	}
)
