package lang

import (
	"testing"
)

func TestTableLookup(t *testing.T) {
	t.Parallel()

	table := DefaultTable()
	tests := []struct {
		ext        string
		wantLang   string
		wantPrefix string
		wantOK     bool
	}{
		{".py", "python", "#", true},
		{".go", "go", "//", true},
		{".js", "javascript", "//", true},
		{".ts", "typescript", "//", true},
		{".lua", "lua", "--", true},
		{".PY", "python", "#", true},
		{"py", "python", "#", true},
		{".md", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			m, ok := table.Lookup(tt.ext)
			if ok != tt.wantOK {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.ext, ok, tt.wantOK)
			}
			if m.Language != tt.wantLang || m.Prefix != tt.wantPrefix {
				t.Errorf("Lookup(%q) = %+v, want {%s %s}", tt.ext, m, tt.wantLang, tt.wantPrefix)
			}
		})
	}
}

func TestTableWith(t *testing.T) {
	t.Parallel()

	base := DefaultTable()
	ext := base.With(map[string]string{
		".tf":  "#",
		"py":   ";;",
		".vue": "//",
	})

	if m, ok := ext.Lookup(".tf"); !ok || m.Prefix != "#" || m.Language != "tf" {
		t.Errorf(".tf = %+v, %v", m, ok)
	}
	if m, ok := ext.Lookup(".py"); !ok || m.Prefix != ";;" || m.Language != "python" {
		t.Errorf(".py override = %+v, %v", m, ok)
	}

	// The base table is untouched.
	if _, ok := base.Lookup(".tf"); ok {
		t.Error("With mutated the receiver")
	}
	if m, _ := base.Lookup(".py"); m.Prefix != "#" {
		t.Errorf("base .py prefix = %q", m.Prefix)
	}
}

func TestDefaultTableIsCopy(t *testing.T) {
	t.Parallel()

	a := DefaultTable()
	a[".zz"] = Marker{Language: "zz", Prefix: "#"}
	b := DefaultTable()
	if _, ok := b.Lookup(".zz"); ok {
		t.Error("DefaultTable shares state between callers")
	}
}

func TestEmptyPrefixIsUnmapped(t *testing.T) {
	t.Parallel()

	table := Table{".x": {Language: "x"}}
	if _, ok := table.Lookup(".x"); ok {
		t.Error("empty prefix should not count as a mapping")
	}
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"python", "go", "ruby", "javascript", "typescript", "rust", "java"} {
		l := ForName(name)
		if l == nil {
			t.Fatalf("%s language not registered", name)
		}
		if !l.HasGrammar() {
			t.Errorf("%s: no grammar", name)
		}
		if len(l.Definitions) == 0 {
			t.Errorf("%s: no definition node types", name)
		}
	}

	if l := ForName("lua"); l == nil || l.HasGrammar() {
		t.Errorf("lua should be registered without a grammar: %+v", l)
	}
}

func TestNewParser(t *testing.T) {
	t.Parallel()

	py := Languages["python"]
	p := py.NewParser()
	if p == nil {
		t.Fatal("NewParser returned nil")
	}
}
