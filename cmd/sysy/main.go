package main

import (
	"context"
	"os"

	"github.com/nikandfor/hacked/hfmt"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"tlog.app/go/tlog/ext/tlflag"

	"github.com/wty92911/sysy-cargo/compiler"
	"github.com/wty92911/sysy-cargo/compiler/asm/riscv"
	"github.com/wty92911/sysy-cargo/compiler/format"
	"github.com/wty92911/sysy-cargo/compiler/parse"
)

func main() {
	parseCmd := &cli.Command{
		Name:        "parse",
		Description: "parse and print source back",
		Action:      parseAct,
		Args:        cli.Args{},
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "print intermediate representation",
		Action:      irAct,
		Args:        cli.Args{},
	}

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile to risc-v assembly",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: []*cli.Flag{
			cli.NewFlag("output,o", "", "output file, stdout if empty"),
		},
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile and interpret, print main result",
		Action:      runAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "sysy",
		Description: "sysy is a compiler of a small C subset to risc-v",
		Before:      before,
		Flags: []*cli.Flag{
			cli.NewFlag("log", "stderr?console=dm", "log output file (or stderr)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
		},
		Commands: []*cli.Command{
			parseCmd,
			irCmd,
			compileCmd,
			runCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) error {
	w, err := tlflag.OpenWriter(c.String("log"))
	if err != nil {
		return errors.Wrap(err, "open log file")
	}

	tlog.DefaultLogger = tlog.New(w)

	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func parseAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		x, err := parse.ParseFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "parse %v", a)
		}

		b, err := format.Format(ctx, nil, x)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		_, err = os.Stdout.Write(b)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

func irAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		text, err := os.ReadFile(a)
		if err != nil {
			return errors.Wrap(err, "read %v", a)
		}

		p, err := compiler.BuildIR(ctx, a, text)
		if err != nil {
			return errors.Wrap(err, "build %v", a)
		}

		b, err := format.Format(ctx, nil, p)
		if err != nil {
			return errors.Wrap(err, "format %v", a)
		}

		_, err = os.Stdout.Write(b)
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}

func compileAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	var out []byte

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		out = append(out, obj...)
	}

	if name := c.String("output"); name != "" {
		err = os.WriteFile(name, out, 0o644)
		if err != nil {
			return errors.Wrap(err, "write output")
		}

		return nil
	}

	_, err = os.Stdout.Write(out)
	if err != nil {
		return errors.Wrap(err, "write")
	}

	return nil
}

func runAct(c *cli.Command) (err error) {
	ctx := context.Background()
	ctx = tlog.ContextWithSpan(ctx, tlog.Root())

	for _, a := range c.Args {
		obj, err := compiler.CompileFile(ctx, a)
		if err != nil {
			return errors.Wrap(err, "compile %v", a)
		}

		res, err := riscv.NewMachine().Exec(ctx, obj, "")
		if err != nil {
			return errors.Wrap(err, "run %v", a)
		}

		tlog.Printw("run", "file", a, "steps", res.Steps, "sp", res.SP)

		_, err = os.Stdout.Write(hfmt.Appendf(nil, "%v: %d\n", a, res.A0))
		if err != nil {
			return errors.Wrap(err, "write")
		}
	}

	return nil
}
