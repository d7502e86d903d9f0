package vm

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/chazu/neojs/compiler"
)

// run compiles and runs source in a fresh realm, capturing console output.
func run(t *testing.T, source string) (string, Value, error) {
	t.Helper()
	return runWith(t, Config{}, source)
}

func runWith(t *testing.T, config Config, source string) (string, Value, error) {
	t.Helper()
	prog, err := compiler.Compile(source, "test.js")
	if err != nil {
		t.Fatalf("compile %q: %v", source, err)
	}
	var out bytes.Buffer
	config.Stdout = &out
	config.Stderr = &out
	r := NewRealm(config)
	v, err := r.Run(context.Background(), prog)
	return out.String(), v, err
}

// errorOf returns the error object carried by an uncaught exception.
func errorOf(t *testing.T, err error) *Object {
	t.Helper()
	var exc *Exception
	if !errors.As(err, &exc) {
		t.Fatalf("expected an uncaught exception, got %v", err)
	}
	obj, ok := exc.Value.(*Object)
	if !ok || obj.Class != ClassError {
		t.Fatalf("expected an error object, got %s", Inspect(exc.Value))
	}
	return obj
}

func TestOutput(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{
			"per-iteration let bindings",
			`const fs = [];
			for (let i = 0; i < 3; i++) { fs.push(() => i); }
			console.log(fs.map(f => f()).join(","));`,
			"0,1,2\n",
		},
		{
			"generator protocol",
			`function* g() { yield 1; yield 2; return 3; }
			const it = g();
			const rs = [it.next(), it.next(), it.next(), it.next()];
			console.log(rs.map(r => r.value + ":" + r.done).join(" "));`,
			"1:false 2:false 3:true 3:true\n",
		},
		{
			"yield receives next argument",
			`function* echo() { const a = yield "first"; console.log("got", a); }
			const it = echo();
			it.next();
			it.next(42);`,
			"got 42\n",
		},
		{
			"generator return runs finally",
			`function* g() { try { yield 1; yield 2; } finally { console.log("cleanup"); } }
			const it = g();
			it.next();
			const r = it.return(7);
			console.log(r.value, r.done);`,
			"cleanup\n7 true\n",
		},
		{
			"finally runs on return",
			`function f() { try { return "a"; } finally { console.log("fin"); } }
			console.log(f());`,
			"fin\na\n",
		},
		{
			"finally runs on break",
			`for (let i = 0; i < 3; i++) {
				try { if (i === 1) break; console.log("body", i); } finally { console.log("fin", i); }
			}`,
			"body 0\nfin 0\nfin 1\n",
		},
		{
			"catch binds the thrown value",
			`try { throw new TypeError("bad"); } catch (e) { console.log(e.name, e.message, e instanceof Error); }`,
			"TypeError bad true\n",
		},
		{
			"labelled continue and break",
			`outer: for (let i = 0; i < 3; i++) {
				for (let j = 0; j < 3; j++) {
					if (j === 1) continue outer;
					if (i === 2) break outer;
					console.log(i, j);
				}
			}`,
			"0 0\n1 0\n",
		},
		{
			"using disposes in reverse order",
			`function res(name) {
				const o = {};
				o[Symbol.dispose] = function () { console.log("dispose " + name); };
				return o;
			}
			{
				using a = res("a");
				using b = res("b");
				console.log("body");
			}`,
			"body\ndispose b\ndispose a\n",
		},
		{
			"microtask ordering",
			`console.log("1");
			Promise.resolve().then(() => console.log("3"));
			(async () => { console.log("2"); await null; console.log("4"); })();
			console.log("2b");`,
			"1\n2\n2b\n3\n4\n",
		},
		{
			"async generator with for await",
			`async function* ag() { yield 1; yield 2; }
			(async () => {
				for await (const v of ag()) console.log(v);
				console.log("done");
			})();`,
			"1\n2\ndone\n",
		},
		{
			"classes and super",
			`class A { constructor(x) { this.x = x; } hello() { return "A" + this.x; } }
			class B extends A { hello() { return "B" + super.hello(); } }
			console.log(new B(1).hello());`,
			"BA1\n",
		},
		{
			"spread and rest",
			`function sum(...xs) { return xs.reduce((a, b) => a + b, 0); }
			console.log(sum(...[1, 2, 3], 4));`,
			"10\n",
		},
		{
			"format directives",
			`console.log("%s is %d years", "Ann", 42, "!");`,
			"Ann is 42 years !\n",
		},
		{
			"inspect nested values",
			`console.log({ a: 1, b: "x", c: [1, 2] });`,
			"{ a: 1, b: 'x', c: [ 1, 2 ] }\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(t, tt.source)
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if out != tt.want {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
		})
	}
}

func TestCompletionValue(t *testing.T) {
	_, v, err := run(t, "let x = 2; x * 21")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v != 42.0 {
		t.Errorf("completion = %v, want 42", v)
	}
}

func TestTopLevelAwait(t *testing.T) {
	_, v, err := run(t, `await Promise.resolve(5)`)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if v != 5.0 {
		t.Errorf("completion = %v, want 5", v)
	}
}

func TestUncaughtErrors(t *testing.T) {
	tests := []struct {
		source  string
		name    string
		message string
	}{
		{"let x = y;", "ReferenceError", "y is not defined"},
		{"{ x; let x = 1; }", "ReferenceError", "Cannot access 'x' before initialization"},
		{"const c = 1; c = 2;", "TypeError", "Assignment to constant variable."},
		{"class A {} A();", "TypeError", "Class constructor A cannot be invoked without 'new'"},
		{"null.foo;", "TypeError", "Cannot read properties of null (reading 'foo')"},
		{"throw new RangeError('out');", "RangeError", "out"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, _, err := run(t, tt.source)
			obj := errorOf(t, err)
			if got := obj.Get("name"); got != tt.name {
				t.Errorf("name = %v, want %s", got, tt.name)
			}
			if got := obj.Get("message"); got != tt.message {
				t.Errorf("message = %v, want %q", got, tt.message)
			}
		})
	}
}

func TestMaxCallDepth(t *testing.T) {
	_, _, err := runWith(t, Config{MaxCallDepth: 64}, "function f() { return f(); } f();")
	obj := errorOf(t, err)
	if obj.Get("name") != "RangeError" {
		t.Errorf("name = %v, want RangeError", obj.Get("name"))
	}
	if obj.Get("message") != "Maximum call stack size exceeded" {
		t.Errorf("message = %v", obj.Get("message"))
	}
}

func TestErrorStack(t *testing.T) {
	_, _, err := run(t, "function f() { throw new Error('boom'); }\nf();")
	obj := errorOf(t, err)
	stack, _ := obj.Get("stack").(string)
	if !strings.HasPrefix(stack, "Error: boom\n    at test.js:") {
		t.Errorf("stack = %q", stack)
	}
}

func TestAbortOnCancel(t *testing.T) {
	prog, err := compiler.Compile("while (true) {}", "spin.js")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := NewRealm(Config{PollInterval: 16})
	_, err = r.Run(ctx, prog)
	var abort *Abort
	if !errors.As(err, &abort) {
		t.Fatalf("expected an abort, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("abort does not wrap context.Canceled: %v", err)
	}
}

func TestUnhandledRejections(t *testing.T) {
	prog, err := compiler.Compile(`Promise.reject(1); Promise.reject(2).catch(() => {});`, "test.js")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	r := NewRealm(Config{Stdout: &bytes.Buffer{}})
	if _, err := r.Run(context.Background(), prog); err != nil {
		t.Fatalf("run: %v", err)
	}
	got := r.UnhandledRejections()
	if len(got) != 1 || got[0] != 1.0 {
		t.Errorf("unhandled = %v, want [1]", got)
	}
	if len(r.UnhandledRejections()) != 0 {
		t.Error("rejections not cleared")
	}
}

func TestRejectedCompletionStaysUnhandled(t *testing.T) {
	prog, err := compiler.Compile(`Promise.reject("late");`, "test.js")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	r := NewRealm(Config{Stdout: &bytes.Buffer{}})
	v, err := r.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if obj, ok := v.(*Object); !ok || obj.Class != ClassPromise {
		t.Errorf("completion = %s, want the rejected promise", Inspect(v))
	}
	got := r.UnhandledRejections()
	if len(got) != 1 || got[0] != "late" {
		t.Errorf("unhandled = %v, want [late]", got)
	}
}
