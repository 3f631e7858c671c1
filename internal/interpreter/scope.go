package interpreter

import "github.com/mehditeymorian/rested/internal/ast"

// binding is one name in a table. A failed binding has no value; lookups
// report it against the declaration that failed.
type binding struct {
	value  any
	failed bool
	decl   ast.Span
}

// Scope keeps two tables: locals (let) are consulted before globals (set).
// Both only ever grow forward in declaration order.
type Scope struct {
	globals map[string]binding
	locals  map[string]binding
}

// NewScope returns an empty scope.
func NewScope() *Scope {
	return &Scope{
		globals: map[string]binding{},
		locals:  map[string]binding{},
	}
}

// SetGlobal binds a set constant.
func (s *Scope) SetGlobal(name string, value any, decl ast.Span) {
	s.globals[name] = binding{value: value, decl: decl}
}

// SetLocal binds a let name.
func (s *Scope) SetLocal(name string, value any, decl ast.Span) {
	s.locals[name] = binding{value: value, decl: decl}
}

// FailGlobal marks a set constant whose value could not be computed.
func (s *Scope) FailGlobal(name string, decl ast.Span) {
	s.globals[name] = binding{failed: true, decl: decl}
}

// FailLocal marks a let name whose value could not be computed.
func (s *Scope) FailLocal(name string, decl ast.Span) {
	s.locals[name] = binding{failed: true, decl: decl}
}

// Lookup resolves name, locals first.
func (s *Scope) Lookup(name string) (binding, bool) {
	if b, ok := s.locals[name]; ok {
		return b, true
	}
	b, ok := s.globals[name]
	return b, ok
}

// Global resolves name among set constants only.
func (s *Scope) Global(name string) (binding, bool) {
	b, ok := s.globals[name]
	return b, ok
}
