// Package parse lists the definitions inside region code using tree-sitter.
package parse

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/livedoc/internal/lang"
)

// Definitions parses source and returns the names of the definitions it
// contains, in source order and without duplicates. Methods are qualified
// with their container ("Server.Start") when the language knows how.
// The parser must be created for the correct language.
func Definitions(l *lang.Language, parser *sitter.Parser, source []byte) []string {
	if len(source) == 0 || l == nil || !l.HasGrammar() {
		return nil
	}

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil
	}
	defer tree.Close()

	var names []string
	seen := make(map[string]struct{})

	walk(tree.RootNode(), func(node *sitter.Node) {
		field, ok := l.Definitions[node.Type()]
		if !ok {
			return
		}
		nameNode := node.ChildByFieldName(field)
		if nameNode == nil {
			return
		}
		name := lang.NodeText(nameNode, source)
		if l.Container != nil {
			if container := l.Container(node, source); container != "" {
				name = container + "." + name
			}
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		names = append(names, name)
	})

	return names
}

func walk(node *sitter.Node, visit func(*sitter.Node)) {
	visit(node)
	for i := 0; i < int(node.NamedChildCount()); i++ {
		walk(node.NamedChild(i), visit)
	}
}

// Symbolizer holds one parser per language.
// Each goroutine must use its own Symbolizer (parsers are not thread-safe).
type Symbolizer struct {
	parsers map[string]*sitter.Parser
}

// NewSymbolizer returns an empty Symbolizer.
func NewSymbolizer() *Symbolizer {
	return &Symbolizer{parsers: make(map[string]*sitter.Parser)}
}

// Symbols returns the definitions in code for the named language, or nil
// when the language has no grammar.
func (s *Symbolizer) Symbols(language, code string) []string {
	l := lang.ForName(language)
	if l == nil || !l.HasGrammar() || code == "" {
		return nil
	}
	p, ok := s.parsers[language]
	if !ok {
		p = l.NewParser()
		s.parsers[language] = p
	}
	return Definitions(l, p, []byte(code))
}
