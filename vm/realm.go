package vm

import (
	"context"
	"io"
	"os"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
	"github.com/emirpasic/gods/sets/linkedhashset"
	"github.com/joomcode/errorx"
	"github.com/tliron/commonlog"

	"github.com/chazu/neojs/pkg/bytecode"
)

var log = commonlog.GetLogger("neo.vm")

// Config tunes a realm.
type Config struct {
	// MaxCallDepth bounds nested calls; deeper calls raise RangeError.
	MaxCallDepth int
	// Trace logs every dispatched instruction at debug level.
	Trace bool
	// PollInterval is the number of instructions between context checks.
	PollInterval int

	Stdout io.Writer
	Stderr io.Writer
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		MaxCallDepth: 2000,
		PollInterval: 1024,
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
	}
}

// ---------------------------------------------------------------------------
// Realm: global state shared by every VM of one engine
// ---------------------------------------------------------------------------

// Realm owns the global scope, the builtin prototypes and the microtask
// queue. A realm is single threaded: every VM, native and microtask runs
// on the goroutine that called Run.
type Realm struct {
	config Config
	ctx    context.Context

	Global       *Scope
	GlobalObject *Object

	ObjectPrototype         *Object
	FunctionPrototype       *Object
	ArrayPrototype          *Object
	StringPrototype         *Object
	NumberPrototype         *Object
	BooleanPrototype        *Object
	SymbolPrototype         *Object
	ErrorPrototype          *Object
	PromisePrototype        *Object
	IteratorPrototype       *Object
	ArrayIteratorPrototype  *Object
	GeneratorPrototype      *Object
	AsyncGeneratorPrototype *Object
	AsyncFromSyncPrototype  *Object

	errorPrototypes map[string]*Object

	microtasks *linkedlistqueue.Queue // func()
	rejections *linkedhashset.Set     // *Object, rejected promises nobody handled
	uncaught   []*Exception

	depth int
	sites []callSite
	steps int
}

// NewRealm creates a realm with the builtin globals installed.
func NewRealm(config Config) *Realm {
	def := DefaultConfig()
	if config.MaxCallDepth <= 0 {
		config.MaxCallDepth = def.MaxCallDepth
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.Stdout == nil {
		config.Stdout = def.Stdout
	}
	if config.Stderr == nil {
		config.Stderr = def.Stderr
	}
	r := &Realm{
		config:          config,
		ctx:             context.Background(),
		Global:          NewScope(nil),
		errorPrototypes: make(map[string]*Object),
		microtasks:      linkedlistqueue.New(),
		rejections:      linkedhashset.New(),
	}
	r.setupBuiltins()
	return r
}

// Config returns the realm's configuration.
func (r *Realm) Config() Config {
	return r.config
}

// DefineGlobal binds name in the global scope.
func (r *Realm) DefineGlobal(name string, v Value) {
	r.Global.Define(name, &Binding{Value: v, Initialized: true})
	if r.GlobalObject != nil {
		r.GlobalObject.DefineHidden(name, v)
	}
}

// ---------------------------------------------------------------------------
// Running programs
// ---------------------------------------------------------------------------

// Run executes prog as a top-level body in the global scope and drains the
// microtask queue. The body may await; its completion value is the value
// of the last expression statement. An uncaught exception is returned as
// an *Exception, a cancelled context as an *Abort.
func (r *Realm) Run(ctx context.Context, prog *bytecode.Program) (result Value, err error) {
	if err := prog.Validate(); err != nil {
		errorx.Panic(errorx.Decorate(err, "refusing to run %s", prog.Filename))
	}
	r.ctx = ctx
	r.steps = 0
	defer func() {
		r.ctx = context.Background()
		if rec := recover(); rec != nil {
			abort, ok := rec.(*Abort)
			if !ok {
				panic(rec)
			}
			r.reset()
			result, err = nil, abort
		}
	}()

	vm := r.newVM(prog, nil, Undefined, r.Global)
	promise := r.startScript(vm)
	r.drain()

	p := promise.Internal.(*Promise)
	switch p.State {
	case PromiseFulfilled:
		result = p.Value
	case PromiseRejected:
		r.rejections.Remove(promise)
		log.Debugf("uncaught exception in %s", prog.Filename)
		return nil, &Exception{Value: p.Value}
	default:
		log.Debugf("%s finished with its top-level promise still pending", prog.Filename)
		result = Undefined
	}
	if len(r.uncaught) > 0 {
		exc := r.uncaught[0]
		r.uncaught = nil
		return result, exc
	}
	return result, nil
}

// reset clears per-run state after an abort.
func (r *Realm) reset() {
	r.depth = 0
	r.sites = nil
	r.microtasks.Clear()
}

// UnhandledRejections returns the reasons of rejected promises that never
// got a handler, and forgets them.
func (r *Realm) UnhandledRejections() []Value {
	var out []Value
	for _, v := range r.rejections.Values() {
		out = append(out, v.(*Object).Internal.(*Promise).Value)
	}
	r.rejections.Clear()
	return out
}

// ---------------------------------------------------------------------------
// Microtasks
// ---------------------------------------------------------------------------

// QueueMicrotask schedules job to run after the current task.
func (r *Realm) QueueMicrotask(job func()) {
	r.microtasks.Enqueue(job)
}

// drain runs queued jobs until the queue is empty. A job that throws is
// recorded as uncaught and the queue keeps going.
func (r *Realm) drain() {
	for {
		job, ok := r.microtasks.Dequeue()
		if !ok {
			return
		}
		if exc := Try(job.(func())); exc != nil {
			log.Debugf("uncaught exception in microtask: %s", Inspect(exc.Value))
			r.uncaught = append(r.uncaught, exc)
		}
	}
}

// ---------------------------------------------------------------------------
// Depth and polling
// ---------------------------------------------------------------------------

func (r *Realm) enter() {
	if r.depth >= r.config.MaxCallDepth {
		r.Throw(KindRangeError, "Maximum call stack size exceeded")
	}
	r.depth++
}

func (r *Realm) leave() {
	r.depth--
}

// poll checks the host context every PollInterval instructions.
func (r *Realm) poll() {
	r.steps++
	if r.steps < r.config.PollInterval {
		return
	}
	r.steps = 0
	if err := r.ctx.Err(); err != nil {
		panic(&Abort{Err: err})
	}
}
