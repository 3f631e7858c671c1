package ast

// Builtin is the closed set of callable functions.
type Builtin int

const (
	BuiltinUnknown Builtin = iota
	BuiltinEnv
	BuiltinRead
	BuiltinJSON
	BuiltinEscapeNewLines
)

var builtinNames = map[Builtin]string{
	BuiltinEnv:            "env",
	BuiltinRead:           "read",
	BuiltinJSON:           "json",
	BuiltinEscapeNewLines: "escape_new_lines",
}

// Builtins lists every known builtin in a stable order.
func Builtins() []Builtin {
	return []Builtin{BuiltinEnv, BuiltinRead, BuiltinJSON, BuiltinEscapeNewLines}
}

// LookupBuiltin resolves a call name.
func LookupBuiltin(name string) Builtin {
	for b, n := range builtinNames {
		if n == name {
			return b
		}
	}
	return BuiltinUnknown
}

// Name returns the script name of the builtin.
func (b Builtin) Name() string {
	return builtinNames[b]
}

// Arity returns the number of arguments the builtin takes. Every builtin
// takes exactly one.
func (b Builtin) Arity() int {
	switch b {
	case BuiltinEnv, BuiltinRead, BuiltinJSON, BuiltinEscapeNewLines:
		return 1
	}
	return -1
}
