package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wty92911/sysy-cargo/compiler/asm/riscv"
	"github.com/wty92911/sysy-cargo/compiler/back"
	"github.com/wty92911/sysy-cargo/compiler/front"
	"github.com/wty92911/sysy-cargo/compiler/parse"
)

func TestConstReturn(t *testing.T) {
	obj, err := Compile(context.Background(), "const.c", []byte(`int main() { const int x = 1 + 2 * 3; return x; }`))
	require.NoError(t, err)

	assert.Equal(t, "  .text\n  .global main\nmain:\n  addi sp, sp, 0\n  li a0, 7\n  ret\n", string(obj))
}

func TestIfElse(t *testing.T) {
	obj, err := Compile(context.Background(), "if.c", []byte(`int main(){ int a = 1; int b = 2; if (a < b) { return a + b; } else { return 0; } }`))
	require.NoError(t, err)

	text := string(obj)

	assert.Equal(t, 2, strings.Count(text, "ret\n"))
	assert.Contains(t, text, "\nif_1:\n")
	assert.Contains(t, text, "\nelse_2:\n")
	assert.NotContains(t, text, "if_end")

	tb := text[strings.Index(text, "if_1:"):strings.Index(text, "else_2:")]
	assert.Contains(t, tb, "  add ")
	assert.Contains(t, tb, "  mv a0, ")

	fb := text[strings.Index(text, "else_2:"):]
	assert.Contains(t, fb, "  li a0, 0\n")

	assert.Contains(t, text[:strings.Index(text, "if_1:")], "  slt ")

	res := run(t, obj)
	assert.Equal(t, int32(3), res.A0)
}

func TestShortCircuitTables(t *testing.T) {
	for _, tc := range []struct {
		op   string
		want [2][2]int32
	}{
		{"||", [2][2]int32{{0, 1}, {1, 1}}},
		{"&&", [2][2]int32{{0, 0}, {0, 1}}},
	} {
		for l := 0; l < 2; l++ {
			for r := 0; r < 2; r++ {
				// l and r scaled to show the result is normalized
				src := `int main() { int l = ` + itoa(l*5) + `; int r = ` + itoa(r*3) + `; return l ` + tc.op + ` r; }`

				res := compileRun(t, src)
				assert.Equal(t, tc.want[l][r], res, "%d %v %d", l, tc.op, r)
			}
		}
	}
}

func TestShortCircuitSkipsRight(t *testing.T) {
	steps := func(src string) int {
		obj, err := Compile(context.Background(), "", []byte(src))
		require.NoError(t, err)

		return run(t, obj).Steps
	}

	const right = "(b * b + b / 3 - b % 5 * b)"

	for _, tc := range []struct {
		op          string
		skip, taken int
	}{
		{"||", 1, 0},
		{"&&", 0, 1},
	} {
		short := steps(`int main() { int a = ` + itoa(tc.skip) + `; int b = 9; return a ` + tc.op + ` ` + right + `; }`)
		long := steps(`int main() { int a = ` + itoa(tc.taken) + `; int b = 9; return a ` + tc.op + ` ` + right + `; }`)

		assert.Less(t, short, long, "%v", tc.op)
	}
}

func TestPrograms(t *testing.T) {
	for _, tc := range []struct {
		name string
		src  string
		want int32
	}{
		{"arith", `int main() { int a = 10; int b = 3; return a * b - a / b + a % b; }`, 28},
		{"negative", `int main() { int a = 7; return -a / 2 + -a % 2; }`, -4},
		{"compare", `int main() { int a = 2; int b = 3; return (a < b) + (a > b) * 2 + (a <= 2) * 4 + (b >= 4) * 8 + (a == 2) * 16 + (a != b) * 32; }`, 53},
		{"not", `int main() { int a = 0; return !a + !!5 * 2; }`, 3},
		{"shadow", `int main() { int a = 1; { int a = 2; a = a + 1; } return a; }`, 1},
		{"inner", `int main() { int a = 1; { int a = 5; return a; } }`, 5},
		{"nested if", `int main() { int a = 3; int r = 0; if (a > 1) { if (a > 2) r = 2; else r = 1; } else r = -1; return r; }`, 2},
		{"if chain", `int main() { int a = 7; if (a < 5) return 1; else if (a < 10) return 2; else return 3; }`, 2},
		{"no else", `int main() { int a = 1; if (a) a = a + 41; return a; }`, 42},
		{"fallthrough", `int main() { int a = 0; if (a) { return 1; } }`, 0},
		{"dead code", `int main() { return 4; return 5; }`, 4},
		{"const scope", `int main() { const int n = 4; int s = 0; { const int n = 6; s = n; } return s + n; }`, 10},
		{"cond values", `int main() { int a = 2; int b = 0; if (a && !b || b) { b = a || b; } return b; }`, 1},
		{"deep or", `int main() { int a = 0; int b = 0; int c = 7; return a || b || c; }`, 1},
		{"and in if", `int main() { int x = 5; if (x > 0 && x < 10) { x = x * 2; } else { x = 0; } return x; }`, 10},
		{"overflow", `int main() { int a = 2147483647; return a + 1 == -2147483647 - 1; }`, 1},
		{"expr stmt", `int main() { int a = 1; a + 2; ; return a; }`, 1},
		{"many values", `int main() { int a = 1; int b = a + 1; int c = b + a; int d = c * b; int e = d - c; int f = e * e; int g = f + e + d + c + b + a; return g; }`, 24},
		{"var init", `int main() { int a = 3, b = a * a; return b; }`, 9},
		{"uninit", `int main() { int a; a = 6; return a; }`, 6},
	} {
		res := compileRun(t, tc.src)
		assert.Equal(t, tc.want, res, "%v: %s", tc.name, tc.src)
	}
}

func TestDeterministic(t *testing.T) {
	src := []byte(`int main() { int a = 1; int b = 2; if (a < b || b) { return a + b; } return 0; }`)

	a, err := Compile(context.Background(), "", src)
	require.NoError(t, err)

	b, err := Compile(context.Background(), "", src)
	require.NoError(t, err)

	assert.Equal(t, string(a), string(b))
}

func TestMirrorToMemory(t *testing.T) {
	obj, err := Compile(context.Background(), "", []byte(`int main() { int a = 1; int b = a + 2; return b * a; }`))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(obj)), "\n")

	// every computed value is stored right after it is produced
	for i, l := range lines {
		l = strings.TrimSpace(l)

		op, args, _ := strings.Cut(l, " ")

		switch op {
		case "add", "sub", "mul", "div", "rem", "slt", "seqz", "snez", "and", "or":
		default:
			continue
		}

		rd, _, _ := strings.Cut(args, ",")

		next := strings.TrimSpace(lines[i+1])
		if strings.HasPrefix(next, "seqz") || strings.HasPrefix(next, "snez") {
			continue
		}

		assert.True(t, strings.HasPrefix(next, "sw "+rd+", "), "line %d: %q followed by %q", i, l, next)
	}
}

func TestErrors(t *testing.T) {
	for _, tc := range []struct {
		src string
		err error
	}{
		{`int main() { return x; }`, front.ErrUndefinedSymbol},
		{`int main() { const int c = 1; c = 2; return c; }`, front.ErrAssignmentToConstant},
		{`int main() { int a; int a; return 0; }`, front.ErrDuplicateDeclaration},
	} {
		obj, err := Compile(context.Background(), "", []byte(tc.src))
		assert.ErrorIs(t, err, tc.err)
		assert.Nil(t, obj)
	}

	_, err := Compile(context.Background(), "", []byte(`int main() { return 1 }`))
	var ue parse.UnexpectedError
	assert.ErrorAs(t, err, &ue)
}

func TestFrameOverflow(t *testing.T) {
	var b strings.Builder

	b.WriteString("int main() { int a = 0;\n")

	for i := 0; i < 300; i++ {
		b.WriteString("a = a + 1;\n")
	}

	b.WriteString("return a; }\n")

	_, err := Compile(context.Background(), "", []byte(b.String()))
	assert.ErrorIs(t, err, back.ErrFrameOverflow)
}

func TestCompileFile(t *testing.T) {
	name := filepath.Join(t.TempDir(), "main.c")

	err := os.WriteFile(name, []byte("int main() { return 0x10; }\n"), 0o644)
	require.NoError(t, err)

	obj, err := CompileFile(context.Background(), name)
	require.NoError(t, err)
	assert.Contains(t, string(obj), "li a0, 16")

	_, err = CompileFile(context.Background(), filepath.Join(t.TempDir(), "missing.c"))
	assert.Error(t, err)
}

func TestBuildIR(t *testing.T) {
	p, err := BuildIR(context.Background(), "", []byte(`int main() { int a = 1; return a; }`))
	require.NoError(t, err)
	require.Len(t, p.Funcs, 1)
	assert.Equal(t, "@main", p.Funcs[0].Name)
}

func compileRun(t testing.TB, src string) int32 {
	t.Helper()

	obj, err := Compile(context.Background(), "", []byte(src))
	require.NoError(t, err, "src: %s", src)

	return run(t, obj).A0
}

func run(t testing.TB, obj []byte) riscv.Result {
	t.Helper()

	res, err := riscv.NewMachine().Exec(context.Background(), obj, "")
	require.NoError(t, err, "text:\n%s", obj)

	// sp is restored on every return path
	assert.Equal(t, int32(0), res.SP)

	return res
}

func itoa(x int) string {
	return string(rune('0' + x))
}
