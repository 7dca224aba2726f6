package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

func init() {
	Languages["go"] = &Language{
		Name:          "go",
		Extensions:    []string{".go"},
		CommentPrefix: "//",
		lang:          golang.GetLanguage(),
		Definitions: map[string]string{
			"function_declaration": "name",
			"method_declaration":   "name",
			"type_spec":            "name",
		},
		Container: goFindReceiverType,
	}
}

// goFindReceiverType extracts the receiver type name from a method_declaration node.
// Navigates: method_declaration → receiver parameter_list → parameter_declaration → type.
func goFindReceiverType(node *sitter.Node, source []byte) string {
	if node.Type() != "method_declaration" {
		return ""
	}
	receiver := node.ChildByFieldName("receiver")
	if receiver == nil {
		return ""
	}
	param := childOfType(receiver, "parameter_declaration")
	if param == nil {
		return ""
	}
	return goExtractTypeName(param, source)
}

// goExtractTypeName extracts the type name from a parameter_declaration,
// unwrapping pointer_type if present.
func goExtractTypeName(param *sitter.Node, source []byte) string {
	for i := 0; i < int(param.ChildCount()); i++ {
		child := param.Child(i)
		switch child.Type() {
		case "type_identifier":
			return NodeText(child, source)
		case "pointer_type":
			if inner := childOfType(child, "type_identifier"); inner != nil {
				return NodeText(inner, source)
			}
		}
	}
	return ""
}
