package lang

import (
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Brace languages with a grammar. Method containers are not qualified:
// a region usually holds the method alone, without its class.
func init() {
	Languages["javascript"] = &Language{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs", ".cjs", ".jsx"},
		CommentPrefix: "//",
		lang:          javascript.GetLanguage(),
		Definitions: map[string]string{
			"function_declaration": "name",
			"class_declaration":    "name",
			"method_definition":    "name",
		},
	}
	Languages["typescript"] = &Language{
		Name:          "typescript",
		Extensions:    []string{".ts", ".tsx", ".mts"},
		CommentPrefix: "//",
		lang:          typescript.GetLanguage(),
		Definitions: map[string]string{
			"function_declaration":   "name",
			"class_declaration":      "name",
			"method_definition":      "name",
			"interface_declaration":  "name",
			"type_alias_declaration": "name",
		},
	}
	Languages["rust"] = &Language{
		Name:          "rust",
		Extensions:    []string{".rs"},
		CommentPrefix: "//",
		lang:          rust.GetLanguage(),
		Definitions: map[string]string{
			"function_item": "name",
			"struct_item":   "name",
			"enum_item":     "name",
			"trait_item":    "name",
		},
	}
	Languages["java"] = &Language{
		Name:          "java",
		Extensions:    []string{".java"},
		CommentPrefix: "//",
		lang:          java.GetLanguage(),
		Definitions: map[string]string{
			"class_declaration":     "name",
			"interface_declaration": "name",
			"method_declaration":    "name",
		},
	}
}
