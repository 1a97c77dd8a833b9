package parser

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
	"github.com/ezraerb/CfunctionIndexer/pkg/util"
)

type foundFunct struct {
	Lexeme string
	Type   token.Type
	Scope  token.Scope
	Line   int
}

func parseSource(t *testing.T, source string) ([]foundFunct, string) {
	t.Helper()
	var buf bytes.Buffer
	old := util.Output
	util.Output = &buf
	t.Cleanup(func() { util.Output = old })

	path := filepath.Join(t.TempDir(), "test.i")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	p := New(config.NewConfig())
	if err := p.Start(path); err != nil {
		t.Fatal(err)
	}
	var out []foundFunct
	for !p.EOF() {
		tok := p.NextFunction()
		out = append(out, foundFunct{tok.Lexeme, tok.Type, tok.Scope, tok.Pos.LineNo})
	}
	return out, buf.String()
}

func TestPrototypeDeclarationAndCall(t *testing.T) {
	got, warnings := parseSource(t,
		"int f(void);\n"+
			"int f(void){ }\n"+
			"int g(){ return f(); }\n")
	want := []foundFunct{
		{"f", token.FuncDecl, token.GlobalScope, 2},
		{"g", token.FuncDecl, token.GlobalScope, 3},
		{"f", token.FuncCall, token.GlobalScope, 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
	if warnings != "" {
		t.Errorf("unexpected warnings: %q", warnings)
	}
}

func TestStaticDeclarationScope(t *testing.T) {
	got, _ := parseSource(t, "static int h(void){ }\n")
	want := []foundFunct{{"h", token.FuncDecl, token.FileScope, 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
}

func TestUndeclaredCallDeferred(t *testing.T) {
	got, warnings := parseSource(t, "int g(){ return f(); }\n")
	want := []foundFunct{
		{"g", token.FuncDecl, token.GlobalScope, 1},
		{"f", token.FuncCall, token.NoScope, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(warnings, "Function call f found line 1 of file") ||
		!strings.Contains(warnings, "has no prototype") {
		t.Errorf("missing no-prototype warning, got %q", warnings)
	}
}

func TestNestedFunctionWarning(t *testing.T) {
	got, warnings := parseSource(t, "int f(){\nint g(){ }\n}\n")
	want := []foundFunct{
		{"f", token.FuncDecl, token.GlobalScope, 1},
		{"g", token.FuncDecl, token.GlobalScope, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(warnings, "Declaration of function g found line 2 of file") ||
		!strings.Contains(warnings, "occurs within another function") {
		t.Errorf("missing nested-function warning, got %q", warnings)
	}
}

func TestIncompleteCallWarning(t *testing.T) {
	_, warnings := parseSource(t, "int f(){ g(x; }\n")
	if !strings.Contains(warnings, "Call of function g") ||
		!strings.Contains(warnings, "is incomplete") {
		t.Errorf("missing incomplete-call warning, got %q", warnings)
	}
}

func TestFunctionReference(t *testing.T) {
	got, _ := parseSource(t, "int f(void){ }\nint g(void){ x = &f(); }\n")
	want := []foundFunct{
		{"f", token.FuncDecl, token.GlobalScope, 1},
		{"g", token.FuncDecl, token.GlobalScope, 2},
		{"f", token.FuncCall, token.GlobalScope, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
}

func TestControlStatements(t *testing.T) {
	got, warnings := parseSource(t,
		"int f(void){ }\n"+
			"int g(int n){\n"+
			"for (i = 0; i < n; i++) {\n"+
			"if (i) f();\n"+
			"}\n"+
			"}\n")
	want := []foundFunct{
		{"f", token.FuncDecl, token.GlobalScope, 1},
		{"g", token.FuncDecl, token.GlobalScope, 2},
		{"f", token.FuncCall, token.GlobalScope, 4},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
	if warnings != "" {
		t.Errorf("unexpected warnings: %q", warnings)
	}
}

func TestCompoundTypeBurned(t *testing.T) {
	got, warnings := parseSource(t,
		"struct point { int x; int y; };\n"+
			"int f(void){ }\n")
	want := []foundFunct{{"f", token.FuncDecl, token.GlobalScope, 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
	if warnings != "" {
		t.Errorf("unexpected warnings: %q", warnings)
	}
}

func TestStructTagCollidesWithFunction(t *testing.T) {
	_, warnings := parseSource(t,
		"int s(void){ }\n"+
			"struct s { int a; };\n")
	if !strings.Contains(warnings, "uses name previously used as a function") {
		t.Errorf("missing tag collision warning, got %q", warnings)
	}
}

func TestFunctionTypedef(t *testing.T) {
	got, warnings := parseSource(t, "typedef int handler(void);\nhandler on_tick;\n")
	if len(got) != 0 {
		t.Errorf("typedef produced function tokens: %v", got)
	}
	_ = warnings
}

func TestParenthesizedCall(t *testing.T) {
	got, _ := parseSource(t, "int f(void){ }\nint g(){ return (f)(); }\n")
	want := []foundFunct{
		{"f", token.FuncDecl, token.GlobalScope, 1},
		{"g", token.FuncDecl, token.GlobalScope, 2},
		{"f", token.FuncCall, token.GlobalScope, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("function stream mismatch (-want +got):\n%s", diff)
	}
}

func TestStartMissingFile(t *testing.T) {
	p := New(config.NewConfig())
	if err := p.Start(filepath.Join(t.TempDir(), "nope.i")); err == nil {
		t.Error("expected error for missing file")
	}
}
