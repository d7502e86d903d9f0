package vm

import "github.com/oklog/ulid/v2"

// Symbol is a unique property key. Two symbols are never equal, even with
// the same description; the ID tells them apart in logs and dumps.
type Symbol struct {
	Description string
	ID          ulid.ULID
}

// NewSymbol creates a fresh symbol.
func NewSymbol(description string) *Symbol {
	return &Symbol{Description: description, ID: ulid.Make()}
}

func (s *Symbol) String() string {
	return "Symbol(" + s.Description + ")"
}

// Well-known symbols shared by every realm.
var (
	SymbolIterator      = NewSymbol("Symbol.iterator")
	SymbolAsyncIterator = NewSymbol("Symbol.asyncIterator")
	SymbolDispose       = NewSymbol("Symbol.dispose")
)
