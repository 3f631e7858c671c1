package langserver

import (
	"github.com/mehditeymorian/rested/internal/analysis"
	"github.com/mehditeymorian/rested/internal/parser"
)

// DocumentSymbol is one outline entry.
type DocumentSymbol struct {
	Name           string              `json:"name"`
	Kind           analysis.SymbolKind `json:"kind"`
	Detail         string              `json:"detail,omitempty"`
	Range          Range               `json:"range"`
	SelectionRange Range               `json:"selectionRange"`
}

// DocumentSymbols outlines src in declaration order: bindings by name and
// requests by @name, or by method and url when unnamed.
func DocumentSymbols(path, src string) []DocumentSymbol {
	prog, _, _ := parser.Parse(path, src)
	table := analysis.Analyze(prog).Table
	out := make([]DocumentSymbol, 0, len(table.Symbols))
	for _, sym := range table.Symbols {
		out = append(out, DocumentSymbol{
			Name:           sym.Name,
			Kind:           sym.Kind,
			Detail:         sym.Detail,
			Range:          RangeOf(sym.Decl),
			SelectionRange: RangeOf(sym.Span),
		})
	}
	return out
}
