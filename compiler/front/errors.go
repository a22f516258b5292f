package front

import "tlog.app/go/errors"

var (
	ErrDuplicateDeclaration  = errors.New("duplicate declaration")
	ErrUndefinedSymbol       = errors.New("undefined symbol")
	ErrAssignmentToConstant  = errors.New("assignment to constant")
	ErrNonConstantExpression = errors.New("non-constant expression")
	ErrDivisionByZero        = errors.New("division by zero")
)
