package vm

// Binding is a variable cell. Closures share cells by pointer, so a cell
// outlives the frame that created it.
type Binding struct {
	Value       Value
	Initialized bool
	Const       bool
	Using       bool
}

// Scope is one runtime scope frame. The global scope has no parent;
// every call scope and block frame chains up to it.
type Scope struct {
	parent *Scope
	vars   map[string]*Binding
	order  []string
}

// NewScope creates an empty frame below parent.
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: make(map[string]*Binding)}
}

// Parent returns the enclosing frame.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Own returns the cell declared in this frame.
func (s *Scope) Own(name string) *Binding {
	return s.vars[name]
}

// Lookup finds the nearest cell named name along the chain.
func (s *Scope) Lookup(name string) *Binding {
	for sc := s; sc != nil; sc = sc.parent {
		if b, ok := sc.vars[name]; ok {
			return b
		}
	}
	return nil
}

// Define installs cell under name in this frame, replacing any earlier
// cell of the same name.
func (s *Scope) Define(name string, cell *Binding) {
	if _, ok := s.vars[name]; !ok {
		s.order = append(s.order, name)
	}
	s.vars[name] = cell
}

// Names returns the names declared in this frame in declaration order.
func (s *Scope) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// renew gives every binding of the frame a fresh cell holding the current
// value. Closures created before keep the old cells. The frame itself
// stays the same, since label and try frames refer to it.
func (s *Scope) renew() {
	for name, b := range s.vars {
		fresh := *b
		s.vars[name] = &fresh
	}
}

// usings returns the initialized using bindings in reverse declaration
// order, which is the order they are disposed in.
func (s *Scope) usings() []*Binding {
	var out []*Binding
	for i := len(s.order) - 1; i >= 0; i-- {
		b := s.vars[s.order[i]]
		if b.Using && b.Initialized && !IsNullish(b.Value) {
			out = append(out, b)
		}
	}
	return out
}
