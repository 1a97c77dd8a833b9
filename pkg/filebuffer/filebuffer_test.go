package filebuffer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
	"github.com/ezraerb/CfunctionIndexer/pkg/util"
)

func captureWarnings(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := util.Output
	util.Output = &buf
	t.Cleanup(func() { util.Output = old })
	return &buf
}

func openBuffer(t *testing.T, content string) (*FileBuffer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.i")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	fb := New(config.NewConfig())
	if err := fb.Open(path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(fb.Close)
	return fb, path
}

func TestCommentCollapsed(t *testing.T) {
	fb, _ := openBuffer(t, "int a; /* note */ int b;\n")
	if got, want := fb.Next(), "int a;   int b;"; got != want {
		t.Errorf("processed line = %q, want %q", got, want)
	}
	if !fb.EOF() {
		t.Error("expected EOF after single line")
	}
}

func TestMultiLineComment(t *testing.T) {
	fb, _ := openBuffer(t, "int a; /* spans\nlines */ int b;\n")
	if got, want := fb.Next(), "int a;  "; got != want {
		t.Errorf("first line = %q, want %q", got, want)
	}
	if got, want := fb.Next(), "  int b;"; got != want {
		t.Errorf("second line = %q, want %q", got, want)
	}
}

func TestLineDirectiveRebasesPosition(t *testing.T) {
	fb, _ := openBuffer(t, "# 5 \"orig.c\"\nint x;\n")
	if got, want := fb.Next(), "int x;"; got != want {
		t.Errorf("processed line = %q, want %q", got, want)
	}
	want := token.FilePosition{FileName: "orig.c", LineNo: 5}
	if got := fb.Position(); got != want {
		t.Errorf("position = %v, want %v", got, want)
	}
}

func TestUnhandledDirectiveWarns(t *testing.T) {
	buf := captureWarnings(t)
	fb, _ := openBuffer(t, "#define FOO 1\nint z;\n")
	if got, want := fb.Next(), "int z;"; got != want {
		t.Errorf("processed line = %q, want %q", got, want)
	}
	if !strings.Contains(buf.String(), "Preprocessor directive #define FOO 1 ignored") {
		t.Errorf("missing directive warning, got %q", buf.String())
	}
}

func TestUnterminatedStringWarnsAndAppendsEscape(t *testing.T) {
	buf := captureWarnings(t)
	fb, _ := openBuffer(t, "x = \"abc\n")
	if got, want := fb.Next(), "x = \"abc\\"; got != want {
		t.Errorf("processed line = %q, want %q", got, want)
	}
	if !strings.Contains(buf.String(), "Unterminated string literal found at line 1") {
		t.Errorf("missing literal warning, got %q", buf.String())
	}
}

func TestUnterminatedCommentToEOF(t *testing.T) {
	fb, _ := openBuffer(t, "/* hello\nworld\n")
	if !fb.EOF() {
		t.Error("unterminated comment should yield no processed lines")
	}
	if got := fb.Next(); got != "" {
		t.Errorf("Next() past EOF = %q, want empty", got)
	}
}

func TestWhitespaceOnlyLinesSkipped(t *testing.T) {
	fb, _ := openBuffer(t, "\n   \t\nint a;\n")
	if got, want := fb.Next(), "int a;"; got != want {
		t.Errorf("processed line = %q, want %q", got, want)
	}
}

func TestEscNewline(t *testing.T) {
	tests := []struct {
		buffer         string
		multiLineQuote bool
		want           int
	}{
		{`abc\`, false, 3},
		{`abc\   `, false, 3}, // trailing spaces burned first
		{`abc`, false, -1},
		{``, false, -1},
		{`abc\\`, true, -1}, // even run: literal backslashes
		{`abc\\\`, true, 5}, // odd run escapes the newline
		{`abc\\`, false, 4}, // outside quotes any trailing backslash counts
		{`\\\`, true, 2},    // whole string is backslashes, odd
		{`\\`, true, -1},
	}
	for _, tt := range tests {
		if got := EscNewline(tt.buffer, tt.multiLineQuote); got != tt.want {
			t.Errorf("EscNewline(%q, %v) = %d, want %d", tt.buffer, tt.multiLineQuote, got, tt.want)
		}
	}
}

func TestNextCloseQuote(t *testing.T) {
	if got := NextCloseQuote(`abc" def`, 0); got != 3 {
		t.Errorf("NextCloseQuote = %d, want 3", got)
	}
	if got := NextCloseQuote(`ab\" c" d`, 0); got != 6 {
		t.Errorf("NextCloseQuote past escaped quote = %d, want 6", got)
	}
	if got := NextCloseQuote(`no quote`, 0); got != -1 {
		t.Errorf("NextCloseQuote = %d, want -1", got)
	}
}

func TestOpenMissingFile(t *testing.T) {
	fb := New(config.NewConfig())
	err := fb.Open(filepath.Join(t.TempDir(), "absent.i"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, ok := err.(*NoSuchFileError); !ok {
		t.Errorf("error type = %T, want *NoSuchFileError", err)
	}
}
