package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/wty92911/sysy-cargo/compiler/ast"
	"github.com/wty92911/sysy-cargo/compiler/back"
	"github.com/wty92911/sysy-cargo/compiler/front"
	"github.com/wty92911/sysy-cargo/compiler/ir"
	"github.com/wty92911/sysy-cargo/compiler/parse"
)

func CompileFile(ctx context.Context, name string) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, name, text)
}

// Compile translates SysY source text into RISC-V assembly text.
func Compile(ctx context.Context, name string, text []byte) (obj []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "compile", "name", name)
	defer tr.Finish("err", &err)

	x, err := ParseText(ctx, name, text)
	if err != nil {
		return nil, err
	}

	return CompileTree(ctx, x)
}

func CompileTree(ctx context.Context, x *ast.CompUnit) (obj []byte, err error) {
	p, err := front.New().Build(ctx, x)
	if err != nil {
		return nil, errors.Wrap(err, "build ir")
	}

	obj, err = back.New().CompileProgram(ctx, nil, p)
	if err != nil {
		return nil, errors.Wrap(err, "generate")
	}

	return obj, nil
}

func BuildIR(ctx context.Context, name string, text []byte) (p *ir.Program, err error) {
	x, err := ParseText(ctx, name, text)
	if err != nil {
		return nil, err
	}

	p, err = front.New().Build(ctx, x)
	if err != nil {
		return nil, errors.Wrap(err, "build ir")
	}

	return p, nil
}

func ParseText(ctx context.Context, name string, text []byte) (x *ast.CompUnit, err error) {
	st := parse.New()

	st.AddFile(name, text)

	x, err = st.Parse(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "parse text")
	}

	return x, nil
}
