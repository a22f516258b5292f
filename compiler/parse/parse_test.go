package parse

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wty92911/sysy-cargo/compiler/ast"
)

func TestParseFunc(t *testing.T) {
	x, err := Parse(context.Background(), []byte(`
int main() {
	const int a = 1, b = a + 2;
	int c, d = b * 3;
	c = d - 1;
	;
	c;
	if (c > 5) return c; else { return 0; }
}
`))
	require.NoError(t, err)
	require.NotNil(t, x.Func)

	f := x.Func
	assert.Equal(t, "main", f.Name)
	assert.Equal(t, "int", f.Type)
	require.Len(t, f.Body.Items, 6)

	cd := f.Body.Items[0].(*ast.ConstDecl)
	require.Len(t, cd.Defs, 2)
	assert.Equal(t, "a", cd.Defs[0].Name)
	assert.Equal(t, "b", cd.Defs[1].Name)
	assert.Equal(t, "(+ a 2)", sexpr(cd.Defs[1].Value))

	vd := f.Body.Items[1].(*ast.VarDecl)
	require.Len(t, vd.Defs, 2)
	assert.Nil(t, vd.Defs[0].Init)
	assert.Equal(t, "(* b 3)", sexpr(vd.Defs[1].Init))

	as := f.Body.Items[2].(*ast.Assign)
	assert.Equal(t, "c", as.Name)
	assert.Equal(t, "(- d 1)", sexpr(as.Value))

	assert.Nil(t, f.Body.Items[3].(*ast.ExprStmt).Value)
	assert.Equal(t, "c", sexpr(f.Body.Items[4].(*ast.ExprStmt).Value))

	st := f.Body.Items[5].(*ast.If)
	assert.Equal(t, "(> c 5)", sexpr(st.Cond))
	assert.IsType(t, &ast.Return{}, st.Then)
	assert.IsType(t, &ast.Block{}, st.Else)
}

func TestPrecedence(t *testing.T) {
	for _, tc := range []struct {
		src, want string
	}{
		{"1 + 2 * 3", "(+ 1 (* 2 3))"},
		{"1 - 2 - 3", "(- (- 1 2) 3)"},
		{"(1 + 2) * 3", "(* (+ 1 2) 3)"},
		{"a || b && c", "(|| a (&& b c))"},
		{"a == b < c", "(== a (< b c))"},
		{"a <= b != c >= d", "(!= (<= a b) (>= c d))"},
		{"!a + -b % +c", "(+ (! a) (% (- b) (+ c)))"},
		{"- -a", "(- (- a))"},
		{"a % 7 / 2", "(/ (% a 7) 2)"},
		{"0x10 + 010", "(+ 16 8)"},
	} {
		x, err := Parse(context.Background(), []byte("int main() { return "+tc.src+"; }"))
		require.NoError(t, err, "src: %s", tc.src)

		r := x.Func.Body.Items[0].(*ast.Return)
		assert.Equal(t, tc.want, sexpr(r.Value), "src: %s", tc.src)
	}
}

func TestDanglingElse(t *testing.T) {
	x, err := Parse(context.Background(), []byte(`int main() { if (a) if (b) return 1; else return 2; return 3; }`))
	require.NoError(t, err)

	outer := x.Func.Body.Items[0].(*ast.If)
	assert.Nil(t, outer.Else)

	inner := outer.Then.(*ast.If)
	assert.NotNil(t, inner.Else)
}

func TestComments(t *testing.T) {
	x, err := Parse(context.Background(), []byte(`// leading
int /* inline */ main() {
	return 1; // trailing
	/* multi
	   line */
}
`))
	require.NoError(t, err)
	assert.Len(t, x.Func.Body.Items, 1)
}

func TestReturnEmpty(t *testing.T) {
	x, err := Parse(context.Background(), []byte(`int main() { return; }`))
	require.NoError(t, err)

	r := x.Func.Body.Items[0].(*ast.Return)
	assert.Nil(t, r.Value)
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		src string
		pos string
	}{
		{"int main() { return 1 }", "1:23"},
		{"int main() {\n\tint = 3;\n}", "2:6"},
		{"int main( { }", "1:11"},
		{"int main() { return 1; } extra", "1:26"},
		{"int main() { const a = 1; }", "1:20"},
		{"int main() {", "1:13"},
		{"void main() { }", "1:1"},
	} {
		_, err := Parse(context.Background(), []byte(tc.src))
		require.Error(t, err, "src: %q", tc.src)

		var ue UnexpectedError
		assert.True(t, errors.As(err, &ue), "src: %q: %v", tc.src, err)
		assert.Contains(t, err.Error(), "at "+tc.pos, "src: %q", tc.src)
	}
}

func TestBigNumber(t *testing.T) {
	x, err := Parse(context.Background(), []byte(`int main() { return 2147483648; }`))
	require.NoError(t, err)

	r := x.Func.Body.Items[0].(*ast.Return)
	assert.Equal(t, int32(-2147483648), r.Value.(*ast.Number).Value)

	_, err = Parse(context.Background(), []byte(`int main() { return 4294967296; }`))
	assert.Error(t, err)
}

func TestNumberLiterals(t *testing.T) {
	for _, tc := range []struct {
		src  string
		want int32
	}{
		{"0", 0},
		{"17", 17},
		{"017", 15},
		{"0x1f", 31},
		{"0XFF", 255},
	} {
		x, err := Parse(context.Background(), []byte("int main() { return "+tc.src+"; }"))
		require.NoError(t, err, "src: %s", tc.src)

		r := x.Func.Body.Items[0].(*ast.Return)
		assert.Equal(t, tc.want, r.Value.(*ast.Number).Value, "src: %s", tc.src)
	}

	for _, src := range []string{"1_0", "0b11", "0o7", "08", "0x", "0x_1"} {
		_, err := Parse(context.Background(), []byte("int main() { return "+src+"; }"))
		assert.Error(t, err, "src: %s", src)
	}
}

func sexpr(x ast.Expr) string {
	switch x := x.(type) {
	case *ast.Number:
		return fmt.Sprintf("%d", x.Value)
	case *ast.Ident:
		return x.Name
	case *ast.Unary:
		return fmt.Sprintf("(%s %s)", x.Op, sexpr(x.X))
	case *ast.Binary:
		return fmt.Sprintf("(%s %s %s)", x.Op, sexpr(x.L), sexpr(x.R))
	}

	return fmt.Sprintf("<%T>", x)
}
