package compiler

import (
	"fmt"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// ---------------------------------------------------------------------------
// Scopes: lexical scope table built by the parser
// ---------------------------------------------------------------------------

// ScopeID indexes a scope in a ScopeTable.
type ScopeID int

// NoScope is the parent of the outermost scope.
const NoScope ScopeID = -1

// ScopeKind separates function boundaries from plain blocks.
type ScopeKind int

const (
	ScopeBlock ScopeKind = iota
	ScopeFunction
)

// VarKind is the declaration form that introduced a binding.
type VarKind int

const (
	VarVar VarKind = iota
	VarLet
	VarConst
	VarUsing
	VarFunction
	VarCallee // a named function expression's own name
)

var varKindNames = [...]string{"var", "let", "const", "using", "function", "callee"}

func (k VarKind) String() string {
	if int(k) < len(varKindNames) {
		return varKindNames[k]
	}
	return fmt.Sprintf("VarKind(%d)", int(k))
}

// Lexical reports whether the binding is block scoped and starts out
// uninitialized.
func (k VarKind) Lexical() bool {
	return k == VarLet || k == VarConst || k == VarUsing
}

// Binding is a name declared in a scope.
type Binding struct {
	Name string
	Kind VarKind
	Pos  Position
	Func *FunctionLiteral // hoisted function declarations only
}

// Scope is one entry of the scope table. Bindings keep declaration order,
// which is the order scope entry initializes them in.
type Scope struct {
	ID       ScopeID
	Kind     ScopeKind
	Parent   ScopeID
	Bindings []*Binding
	index    map[string]*Binding
}

// Lookup returns the binding declared directly in this scope.
func (s *Scope) Lookup(name string) *Binding {
	return s.index[name]
}

// Has reports whether name is declared directly in this scope.
func (s *Scope) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Functions returns the hoisted function declarations of this scope.
func (s *Scope) Functions() []*Binding {
	var out []*Binding
	for _, b := range s.Bindings {
		if b.Kind == VarFunction && b.Func != nil {
			out = append(out, b)
		}
	}
	return out
}

// ScopeTable owns every scope of a compilation unit. Scopes refer to their
// parents by index.
type ScopeTable struct {
	scopes []*Scope
}

func NewScopeTable() *ScopeTable {
	return &ScopeTable{}
}

// New allocates a scope under parent.
func (t *ScopeTable) New(kind ScopeKind, parent ScopeID) ScopeID {
	id := ScopeID(len(t.scopes))
	t.scopes = append(t.scopes, &Scope{
		ID:     id,
		Kind:   kind,
		Parent: parent,
		index:  make(map[string]*Binding),
	})
	return id
}

// Get returns the scope with the given id.
func (t *ScopeTable) Get(id ScopeID) *Scope {
	return t.scopes[id]
}

// Len returns the number of scopes.
func (t *ScopeTable) Len() int {
	return len(t.scopes)
}

// FunctionOf returns the nearest function scope at or above id.
func (t *ScopeTable) FunctionOf(id ScopeID) ScopeID {
	for id != NoScope {
		s := t.scopes[id]
		if s.Kind == ScopeFunction {
			return id
		}
		id = s.Parent
	}
	return NoScope
}

// Declare adds name to the scope at id. var declarations hoist to the
// nearest function scope. A lexical declaration that collides with any
// other declaration of the same scope fails, as does a var that would be
// hoisted across a lexical declaration of the same name.
func (t *ScopeTable) Declare(id ScopeID, name string, kind VarKind, pos Position) (*Binding, error) {
	if kind == VarVar {
		target := t.FunctionOf(id)
		for cur := id; cur != NoScope; cur = t.scopes[cur].Parent {
			if b := t.scopes[cur].Lookup(name); b != nil && b.Kind.Lexical() {
				return nil, redeclared(name)
			}
			if cur == target {
				break
			}
		}
		s := t.scopes[target]
		if b := s.Lookup(name); b != nil {
			if b.Kind == VarCallee {
				b.Kind = VarVar
			}
			return b, nil
		}
		return s.add(name, kind, pos), nil
	}

	s := t.scopes[id]
	if b := s.Lookup(name); b != nil {
		switch {
		case b.Kind == VarCallee:
			b.Kind = kind
			b.Pos = pos
			return b, nil
		case kind == VarFunction && (b.Kind == VarVar || b.Kind == VarFunction):
			b.Kind = VarFunction
			b.Pos = pos
			return b, nil
		default:
			return nil, redeclared(name)
		}
	}
	return s.add(name, kind, pos), nil
}

func (s *Scope) add(name string, kind VarKind, pos Position) *Binding {
	b := &Binding{Name: name, Kind: kind, Pos: pos}
	s.Bindings = append(s.Bindings, b)
	s.index[name] = b
	return b
}

func redeclared(name string) error {
	return fmt.Errorf("Identifier '%s' has already been declared", name)
}

// ---------------------------------------------------------------------------
// Closure sets
// ---------------------------------------------------------------------------

// ClosureSet is the ordered set of names a function captures from the
// functions that enclose it.
type ClosureSet struct {
	set *linkedhashset.Set
}

func NewClosureSet() *ClosureSet {
	return &ClosureSet{set: linkedhashset.New()}
}

// Add inserts name, keeping first-insertion order.
func (c *ClosureSet) Add(name string) {
	c.set.Add(name)
}

func (c *ClosureSet) Contains(name string) bool {
	return c.set.Contains(name)
}

func (c *ClosureSet) Len() int {
	if c == nil {
		return 0
	}
	return c.set.Size()
}

// Names returns the captured names in insertion order.
func (c *ClosureSet) Names() []string {
	if c == nil {
		return nil
	}
	values := c.set.Values()
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = v.(string)
	}
	return names
}
