package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"
)

func init() {
	Languages["ruby"] = &Language{
		Name:          "ruby",
		Extensions:    []string{".rb", ".rake"},
		CommentPrefix: "#",
		lang:          ruby.GetLanguage(),
		Definitions: map[string]string{
			"method":           "name",
			"singleton_method": "name",
			"class":            "name",
			"module":           "name",
		},
		Container: rubyFindMethodClass,
	}
}

// rubyFindMethodClass returns the name of the class or module whose body
// directly contains a method definition.
func rubyFindMethodClass(node *sitter.Node, source []byte) string {
	if node.Type() != "method" && node.Type() != "singleton_method" {
		return ""
	}
	current := node.Parent()
	for current != nil {
		switch current.Type() {
		case "class", "module":
			if name := current.ChildByFieldName("name"); name != nil {
				return NodeText(name, source)
			}
			return ""
		case "method", "singleton_method":
			return ""
		}
		current = current.Parent()
	}
	return ""
}
