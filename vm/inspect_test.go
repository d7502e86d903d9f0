package vm

import (
	"math"
	"testing"
)

func TestInspect(t *testing.T) {
	r := NewRealm(Config{})

	nums := func(n int) *Object {
		var elems []Value
		for i := 1; i <= n; i++ {
			elems = append(elems, float64(i))
		}
		return r.NewArray(elems)
	}
	nested := func() *Object {
		inner := r.NewObject()
		inner.Define("d", 1.0)
		c := r.NewObject()
		c.Define("c", inner)
		b := r.NewObject()
		b.Define("b", c)
		a := r.NewObject()
		a.Define("a", b)
		return a
	}
	circular := func() *Object {
		o := r.NewObject()
		o.Define("self", o)
		return o
	}
	withSymbol := func() *Object {
		o := r.NewObject()
		o.Define("a-b", true)
		o.Define(NewSymbol("tag"), Null)
		return o
	}
	fulfilled := func() *Object {
		p := r.NewPromise()
		r.ResolvePromise(p, "ok")
		return p.Object
	}

	tests := []struct {
		name  string
		value Value
		want  string
	}{
		{"string", "it's", `"it's"`},
		{"plain string", "abc", `'abc'`},
		{"negative zero", math.Copysign(0, -1), "-0"},
		{"number", 1.5, "1.5"},
		{"undefined", Undefined, "undefined"},
		{"null", Null, "null"},
		{"empty array", r.NewArray(nil), "[]"},
		{"empty object", r.NewObject(), "{}"},
		{"null prototype", NewObject(nil), "[Object: null prototype] {}"},
		{"short array", nums(3), "[ 1, 2, 3 ]"},
		{"grouped array", nums(10), "[\n  1, 2, 3, 4,  5,\n  6, 7, 8, 9, 10\n]"},
		{"depth limit", nested(), "{ a: { b: { c: [Object] } } }"},
		{"circular", circular(), "<ref *1> { self: [Circular *1] }"},
		{"quoted and symbol keys", withSymbol(), "{ 'a-b': true, [Symbol(tag)]: null }"},
		{"native function", r.NewNative("f", returnThis), "[Function: f]"},
		{"anonymous function", r.NewNative("", returnThis), "[Function (anonymous)]"},
		{"pending promise", r.NewPromise().Object, "Promise { <pending> }"},
		{"fulfilled promise", fulfilled(), "Promise { 'ok' }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Inspect(tt.value); got != tt.want {
				t.Errorf("Inspect = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatLog(t *testing.T) {
	r := NewRealm(Config{})
	tests := []struct {
		args []Value
		want string
	}{
		{[]Value{"a", 1.0, true}, "a 1 true"},
		{[]Value{"%d%%", 50.0}, "50%"},
		{[]Value{"%i", 3.9}, "3"},
		{[]Value{"%s", "x", "y"}, "x y"},
		{[]Value{"%o", "x"}, "'x'"},
		{[]Value{"100%"}, "100%"},
	}
	for _, tt := range tests {
		if got := FormatLog(r, tt.args); got != tt.want {
			t.Errorf("FormatLog(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestInspectShort(t *testing.T) {
	r := NewRealm(Config{})
	tests := []struct {
		value Value
		want  string
	}{
		{Undefined, "undefined"},
		{r.NewObject(), "#<Object>"},
		{r.NewNative("g", returnThis), "g"},
		{"s", "'s'"},
	}
	for _, tt := range tests {
		if got := inspectShort(tt.value); got != tt.want {
			t.Errorf("inspectShort(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}
