package finder

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

type foundRecord struct {
	Name        string
	Declaration bool
	Caller      string
	Reference   bool
	FileScope   bool
	Line        int
}

func runFinder(t *testing.T, source string) ([]foundRecord, string) {
	t.Helper()
	var buf bytes.Buffer
	old := util.Output
	util.Output = &buf
	t.Cleanup(func() { util.Output = old })

	path := filepath.Join(t.TempDir(), "test.i")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	ff := New(config.NewConfig())
	if err := ff.Start(path); err != nil {
		t.Fatal(err)
	}
	var out []foundRecord
	for !ff.EOF() {
		rec, err := ff.NextFunction()
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, foundRecord{
			rec.Name, rec.Declaration, rec.Caller, rec.Reference, rec.FileScope, rec.Location.LineNo,
		})
	}
	return out, buf.String()
}

func TestDeclarationsAndCall(t *testing.T) {
	got, warnings := runFinder(t,
		"int f(void);\n"+
			"int f(void){ }\n"+
			"int g(){ return f(); }\n")
	want := []foundRecord{
		{"f", true, "f", false, false, 2},
		{"g", true, "g", false, false, 3},
		{"f", false, "g", false, false, 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if warnings != "" {
		t.Errorf("unexpected warnings: %q", warnings)
	}
}

// A static prototype never matched by a declaration: calls against it are
// held to end of file, then flushed with global scope, and the prototype is
// diagnosed exactly once.
func TestStaticPrototypeWithoutDeclaration(t *testing.T) {
	got, warnings := runFinder(t,
		"static int h(void);\n"+
			"int main(){ return h(); }\n")
	want := []foundRecord{
		{"main", true, "main", false, false, 2},
		{"h", false, "main", false, false, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	warning := "Static prototype of h found line 1 of file"
	if got := strings.Count(warnings, warning); got != 1 {
		t.Errorf("static prototype diagnosed %d times, want 1; output %q", got, warnings)
	}
}

// The held call resolves to the declaration's scope once it arrives.
func TestHeldCallResolvesToFileScope(t *testing.T) {
	got, warnings := runFinder(t,
		"static int h(void);\n"+
			"int main(){ return h(); }\n"+
			"static int h(void){ }\n")
	want := []foundRecord{
		{"main", true, "main", false, false, 2},
		{"h", true, "h", false, true, 3},
		{"h", false, "main", false, true, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if warnings != "" {
		t.Errorf("unexpected warnings: %q", warnings)
	}
}

func TestVariableThenFunctionName(t *testing.T) {
	got, warnings := runFinder(t, "int x;\nint x(void);\n")
	if len(got) != 0 {
		t.Errorf("prototypes should emit no records, got %v", got)
	}
	if !strings.Contains(warnings, "Variable x found line 1 of file") ||
		!strings.Contains(warnings, "uses name previously used as a function") {
		t.Errorf("missing collision warning, got %q", warnings)
	}
}

func TestLocalVariableCalledAsFunction(t *testing.T) {
	got, warnings := runFinder(t, "void f(){ int g; g(); }\n")
	want := []foundRecord{
		{"f", true, "f", false, false, 1},
		{"g", false, "f", false, false, 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(warnings, "has no prototype") {
		t.Errorf("missing no-prototype warning, got %q", warnings)
	}
	if !strings.Contains(warnings, "uses name previously used as a local variable") {
		t.Errorf("missing local misuse warning, got %q", warnings)
	}
}

func TestFunctionPointerTypedefVariable(t *testing.T) {
	got, warnings := runFinder(t, "typedef int (*fp)(void);\nfp q;\nq();\n")
	want := []foundRecord{
		{"q", false, "NONE", false, false, 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(warnings, "Function call q found line 3 of file") ||
		!strings.Contains(warnings, "has no prototype") {
		t.Errorf("missing no-prototype warning, got %q", warnings)
	}
}

func TestFunctionReferenceRecord(t *testing.T) {
	got, _ := runFinder(t, "int f(void){ }\nint g(void){ x = &f(); }\n")
	want := []foundRecord{
		{"f", true, "f", false, false, 1},
		{"g", true, "g", false, false, 2},
		{"f", false, "g", true, false, 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

// Reprocessing identical input yields identical records, including the order
// of the end-of-file hold flush.
func TestStableReprocessing(t *testing.T) {
	source := "int main(){ zebra(); apple(); apple(); mango(); }\n"
	first, _ := runFinder(t, source)
	second, _ := runFinder(t, source)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("records differ across runs (-first +second):\n%s", diff)
	}
}

func TestDoubleReleaseFails(t *testing.T) {
	var hold FunctHold
	hold.Reset()
	call := token.Token{Lexeme: "f", Type: token.FuncCall, Scope: token.NoScope}
	if held, err := hold.HoldIfNeeded(call, "g"); !held || err != nil {
		t.Fatalf("HoldIfNeeded = (%v, %v), want held", held, err)
	}
	decl := token.Token{Lexeme: "f", Type: token.FuncDecl, Scope: token.GlobalScope}
	hold.ReleaseHold(decl)
	if !hold.DoingRelease() {
		t.Fatal("release buffer should be pending")
	}
	if _, err := hold.HoldIfNeeded(call, "g"); err != ErrDoubleRelease {
		t.Errorf("err = %v, want ErrDoubleRelease", err)
	}
}

func TestRecordOrdering(t *testing.T) {
	pos := func(file string, line int) token.FilePosition {
		return token.FilePosition{FileName: file, LineNo: line}
	}
	records := []FunctionRecord{
		{Name: "b", Location: pos("a.i", 1), Declaration: true},
		{Name: "a", Location: pos("z.i", 9)},
		{Name: "a", Location: pos("a.i", 3), Declaration: true},
		{Name: "a", Location: pos("b.i", 1), FileScope: true},
		{Name: "a", Location: pos("a.i", 2), FileScope: true},
	}
	// file scope before global, files ordered, declarations before calls,
	// then location; names dominate everything.
	wantOrder := []int{4, 3, 2, 1, 0}
	for i := 0; i < len(wantOrder)-1; i++ {
		lo, hi := records[wantOrder[i]], records[wantOrder[i+1]]
		if !lo.Less(hi) {
			t.Errorf("record %d should sort before record %d", wantOrder[i], wantOrder[i+1])
		}
		if hi.Less(lo) {
			t.Errorf("ordering not antisymmetric for %d/%d", wantOrder[i], wantOrder[i+1])
		}
	}
}

func TestTableRow(t *testing.T) {
	pad := func(s string, width int) string {
		return s + strings.Repeat(" ", width-len(s))
	}

	decl := FunctionRecord{
		Name:        "f",
		Location:    token.FilePosition{FileName: "t.i", LineNo: 3},
		Declaration: true,
		Caller:      "f",
	}
	want := pad("f", 20) + "  " + "global " + pad("declared", 33) + "  " + pad("t.i", 14) + "  3\n"
	if got := decl.TableRow(); got != want {
		t.Errorf("declaration row:\n got %q\nwant %q", got, want)
	}

	call := FunctionRecord{
		Name:      "f",
		Location:  token.FilePosition{FileName: "t.i", LineNo: 8},
		Caller:    "main",
		FileScope: true,
	}
	want = pad("f", 20) + "  " + "file   " + "called from  " + pad("main", 20) + "  " + pad("t.i", 14) + "  8\n"
	if got := call.TableRow(); got != want {
		t.Errorf("call row:\n got %q\nwant %q", got, want)
	}

	ref := FunctionRecord{
		Name:      "f",
		Location:  token.FilePosition{FileName: "t.i", LineNo: 9},
		Caller:    "main",
		Reference: true,
	}
	want = pad("f", 20) + "  " + "global " + "refrenced in " + pad("main", 20) + "  " + pad("t.i", 14) + "  9\n"
	if got := ref.TableRow(); got != want {
		t.Errorf("reference row:\n got %q\nwant %q", got, want)
	}
}
