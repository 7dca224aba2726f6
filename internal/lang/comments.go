package lang

// Languages known only by their line-comment prefix.
func init() {
	for _, l := range []*Language{
		{Name: "c", Extensions: []string{".c", ".h"}, CommentPrefix: "//"},
		{Name: "cpp", Extensions: []string{".cc", ".cpp", ".cxx", ".hpp"}, CommentPrefix: "//"},
		{Name: "csharp", Extensions: []string{".cs"}, CommentPrefix: "//"},
		{Name: "kotlin", Extensions: []string{".kt", ".kts"}, CommentPrefix: "//"},
		{Name: "swift", Extensions: []string{".swift"}, CommentPrefix: "//"},
		{Name: "scala", Extensions: []string{".scala"}, CommentPrefix: "//"},
		{Name: "php", Extensions: []string{".php"}, CommentPrefix: "//"},
		{Name: "lua", Extensions: []string{".lua"}, CommentPrefix: "--"},
		{Name: "sql", Extensions: []string{".sql"}, CommentPrefix: "--"},
		{Name: "haskell", Extensions: []string{".hs"}, CommentPrefix: "--"},
		{Name: "shell", Extensions: []string{".sh", ".bash", ".zsh"}, CommentPrefix: "#"},
		{Name: "yaml", Extensions: []string{".yml", ".yaml"}, CommentPrefix: "#"},
		{Name: "toml", Extensions: []string{".toml"}, CommentPrefix: "#"},
		{Name: "perl", Extensions: []string{".pl", ".pm"}, CommentPrefix: "#"},
		{Name: "r", Extensions: []string{".r"}, CommentPrefix: "#"},
		{Name: "elixir", Extensions: []string{".ex", ".exs"}, CommentPrefix: "#"},
		{Name: "lisp", Extensions: []string{".lisp", ".el", ".clj"}, CommentPrefix: ";"},
		{Name: "erlang", Extensions: []string{".erl"}, CommentPrefix: "%"},
	} {
		Languages[l.Name] = l
	}
}
