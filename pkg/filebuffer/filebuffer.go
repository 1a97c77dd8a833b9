// Package filebuffer does the lowest level of text processing. It reads
// lines from a preprocessed C file, eliminates comments, and consumes the
// line directives the preprocessor left behind. Most of the program cares
// where something appears in the original source file, which is not the same
// as its position in the preprocessor output, so both are tracked.
package filebuffer

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
	"github.com/ezraerb/CfunctionIndexer/pkg/util"
)

// NoSuchFileError reports an input file that could not be opened. It is
// fatal to that file only; the driver moves on to the next one.
type NoSuchFileError struct {
	Name string
}

func (e *NoSuchFileError) Error() string { return "could not open file " + e.Name }

type textState int

const (
	stateOther textState = iota
	stateComment
	stateQuote
	statePreproc
)

// FileBuffer yields one processed line at a time: comments collapsed to a
// single space, string literals preserved verbatim, line directives consumed
// to rebase the source coordinate.
//
// To report EOF properly it reads one line ahead: Next returns the buffered
// line and prefetches the following one. A FileBuffer owns its file handle
// and must not be copied.
type FileBuffer struct {
	file    *os.File
	scanner *bufio.Scanner
	srcEOF  bool

	sourcePos token.FilePosition // position of the last returned line in the original source
	bufferPos token.FilePosition // position represented by the current buffer contents
	inputPos  token.FilePosition // position in the preprocessor output

	buffer   string
	state    textState
	haveWrap bool // state continued from the previous physical line

	cfg *config.Config
}

func New(cfg *config.Config) *FileBuffer {
	return &FileBuffer{cfg: cfg}
}

// Open starts the buffer on the named file and loads the first processed
// line. An earlier file, if any, is closed first.
func (b *FileBuffer) Open(fileName string) error {
	b.Close()
	f, err := os.Open(fileName)
	if err != nil {
		return &NoSuchFileError{Name: fileName}
	}
	b.file = f
	b.scanner = bufio.NewScanner(f)
	// A single physical line can legally run to 64K characters and beyond
	// once the preprocessor has inlined headers.
	b.scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	b.sourcePos = token.FilePosition{FileName: fileName}
	b.bufferPos = b.sourcePos
	b.inputPos = b.sourcePos
	b.buffer = ""
	b.fetchNextLine()
	return nil
}

func (b *FileBuffer) Close() {
	if b.file != nil {
		b.file.Close()
		b.file = nil
		b.scanner = nil
	}
	b.sourcePos = token.FilePosition{}
	b.bufferPos = token.FilePosition{}
	b.inputPos = token.FilePosition{}
	b.buffer = ""
	b.srcEOF = false
	b.state = stateOther
	b.haveWrap = false
}

// EOF reports whether the file is exhausted: the last line has been read
// from disk and the buffered line has been returned.
func (b *FileBuffer) EOF() bool {
	return b.srcEOF && b.buffer == ""
}

// Next returns the current processed line and prefetches the following one.
// The position data is cached alongside the buffer so it matches the
// returned line, not the prefetched one.
func (b *FileBuffer) Next() string {
	result := b.buffer
	b.sourcePos = b.bufferPos
	b.fetchNextLine()
	return result
}

// Position returns the source position of the most recently returned line.
func (b *FileBuffer) Position() token.FilePosition {
	return b.sourcePos
}

func (b *FileBuffer) readLine() (string, bool) {
	if b.scanner == nil || !b.scanner.Scan() {
		b.srcEOF = true
		return "", false
	}
	return b.scanner.Text(), true
}

/* For this routine the file consists of four things: comments, quoted
   strings, preprocessor commands, and other text. A given character falls in
   only one category, so the obvious design is a state machine. Each category
   except other text is signaled by a pair of strings, one opening it and one
   closing it, and a category may cover multiple lines, a condition called
   wrap. Wrap has special handling per category. */
func (b *FileBuffer) fetchNextLine() {
	nextState := stateOther

	b.buffer = ""
	for b.buffer == "" && !b.srcEOF {
		line, ok := b.readLine()
		if !ok {
			break
		}
		b.bufferPos.IncrLine()
		b.inputPos.IncrLine()
		start, end := 0, 0

		// A preprocessor line is signaled by the first non-space being a
		// hash, and only begins when no other construct is live.
		if b.state == stateOther {
			if first := BurnSpaces(line, 0); first != -1 && line[first] == '#' {
				b.state = statePreproc
				b.haveWrap = false
			}
		}

		for end != -1 {
			start = end
			switch b.state {
			case stateComment:
				// If the comment did not wrap, skip over the opening "/*".
				if !b.haveWrap {
					end += 2
				}
				end = indexFrom(line, "*/", end)
				b.haveWrap = end == -1
				if !b.haveWrap {
					end += 2
					nextState = stateOther
				}
				// C compilers convert the whole comment into a single
				// space, so this code does as well.
				b.buffer += " "

			case stateQuote:
				// If the quoted string did not wrap, skip the open quote.
				if !b.haveWrap {
					end++
				}
				end = NextCloseQuote(line, end)
				b.haveWrap = end == -1
				if b.haveWrap {
					b.buffer += line[start:]
					/* Without an escaped return at the end of the string,
					   either the close quote or the escape was left out.
					   GCC assumes the latter, so this code does too. */
					if EscNewline(b.buffer, true) == -1 {
						util.Warnf(b.cfg, config.WarnUntermString,
							"Unterminated string literal found at %s", b.bufferPos)
						b.buffer += "\\"
					}
				} else {
					end++ // search returns the quote itself, need one beyond
					b.buffer += line[start:end]
					nextState = stateOther
				}

			case statePreproc:
				// Directives never reach the output; if the line did not
				// wrap the next state is the default.
				b.handlePreproc(line)
				if !b.haveWrap {
					nextState = stateOther
				}
				end = -1

			case stateOther:
				// The section ends at the earlier of the next comment and
				// the next quoted string.
				b.haveWrap = false
				nextQuote := nextOpenQuote(line, start)
				nextComment := indexFrom(line, "/*", start)
				if nextQuote == -1 && nextComment == -1 {
					end = -1
					b.haveWrap = true
				} else if nextQuote == -1 || (nextComment != -1 && nextComment < nextQuote) {
					end = nextComment
					nextState = stateComment
				} else {
					end = nextQuote
					nextState = stateQuote
				}
				if b.haveWrap {
					b.buffer += line[start:]
				} else if start < end {
					b.buffer += line[start:end]
				}
			}

			if !b.haveWrap {
				b.state = nextState
			}
			if end >= len(line) {
				end = -1
			}
		}

		/* A result of nothing but whitespace is skipped. So is one holding
		   only spaces and the escaped newline of a live multi-line construct
		   that is not a quoted string; a quoted string of all whitespace
		   must contain at least a quote or a backslash. */
		testChar := BurnSpaces(b.buffer, 0)
		if testChar == -1 ||
			(testChar == EscNewline(b.buffer, false) &&
				(!b.haveWrap || b.state != stateQuote)) {
			b.buffer = ""
		}
	}
}

/* Thanks to the preprocessor, the location of text in the input file rarely
   matches the source file, but reported locations should refer to source.
   The preprocessor inserts source locations into its output as a hash, a
   line number, and a file name in quotes. Hunt for those here and update the
   source coordinate. Anything else starting with a hash is an actual
   directive; the input should have been preprocessed already, so finding one
   warrants a warning, and the line is dropped either way. */
func (b *FileBuffer) handlePreproc(line string) {
	haveLocation := false
	lineNo := 0
	wasWrapped := b.haveWrap
	b.haveWrap = EscNewline(line, false) != -1 // wraps to the next line

	// Locations never wrap.
	if !wasWrapped && !b.haveWrap {
		start := strings.IndexByte(line, '#')
		start = BurnSpaces(line, start+1) // actual text of the command
		if start != -1 && isDigit(line[start]) {
			end := firstNotOf(line, "0123456789", start)
			if end != -1 { // something after the digits
				lineNo, _ = strconv.Atoi(line[start:end])
				/* The directive gives the location of the next source line.
				   Reading that line will increment the counter, so
				   decrement here to compensate. */
				lineNo--
				start = BurnSpaces(line, end)
				if start != -1 && line[start] == '"' {
					start++
					end = indexByteFrom(line, '"', start)
					// A filename with no characters is illegal.
					if end != -1 && end > start {
						fileName := line[start:end]
						end++
						if end != len(line) {
							// Anything but whitespace after the quoted
							// filename means this is not a location.
							haveLocation = BurnSpaces(line, end) == -1
						} else {
							haveLocation = true
						}
						if haveLocation {
							b.bufferPos = token.FilePosition{FileName: fileName, LineNo: lineNo}
						}
					}
				}
			}
		}
	}

	if !haveLocation && !wasWrapped {
		util.Warnf(b.cfg, config.WarnPreprocDirective,
			"Preprocessor directive %s ignored on %s. Run source files through the preprocessor first",
			line, b.inputPos)
	}
}

// nextOpenQuote returns the start of the next quoted string at or after
// startPos, or -1. A quote wrapped in single quotes is the character
// literal '"' and does not open a string.
func nextOpenQuote(buffer string, startPos int) int {
	pos := startPos
	for pos != -1 {
		pos = indexByteFrom(buffer, '"', pos)
		if pos != -1 {
			if (pos == 0 || buffer[pos-1] != '\'') &&
				(pos == len(buffer)-1 || buffer[pos+1] != '\'') {
				return pos
			}
			pos++ // move off the char for the next search
		}
	}
	return -1
}

// NextCloseQuote returns the position of the quote closing the current
// string literal at or after startPos, or -1. Backslash-escaped quotes do
// not close the literal.
func NextCloseQuote(buffer string, startPos int) int {
	pos := startPos
	for pos != -1 {
		pos = indexByteFrom(buffer, '"', pos)
		if pos != -1 {
			if pos == 0 || buffer[pos-1] != '\\' {
				return pos
			}
			pos++
		}
	}
	return -1
}

// EscNewline returns the position of the backslash escaping this line's
// newline, or -1. A common mistake is trailing spaces after the backslash,
// so those are burned first; an escaped space is not a legal symbol. Inside
// a multi-line quoted string a backslash may itself be escaped, so only an
// odd-length run of trailing backslashes escapes the newline there.
func EscNewline(buffer string, multiLineQuote bool) int {
	index := lastNotOf(buffer, " \t")
	if index == -1 || buffer[index] != '\\' {
		return -1
	}
	if !multiLineQuote {
		return index
	}
	testPos := lastNotOfByte(buffer, '\\', index)
	var escaped bool
	if testPos == -1 { // the entire string is backslashes
		escaped = (index+1)%2 == 1
	} else {
		escaped = (index-testPos)%2 == 1
	}
	if escaped {
		return index
	}
	return -1
}

// BurnSpaces returns the first position at or after startPos that holds
// something other than a space or tab, or -1.
func BurnSpaces(buffer string, startPos int) int {
	return firstNotOf(buffer, " \t", startPos)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func indexFrom(s, sub string, from int) int {
	if from < 0 || from > len(s) {
		return -1
	}
	i := strings.Index(s[from:], sub)
	if i == -1 {
		return -1
	}
	return from + i
}

func indexByteFrom(s string, c byte, from int) int {
	if from < 0 || from > len(s) {
		return -1
	}
	i := strings.IndexByte(s[from:], c)
	if i == -1 {
		return -1
	}
	return from + i
}

func firstNotOf(s, set string, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(s); i++ {
		if strings.IndexByte(set, s[i]) == -1 {
			return i
		}
	}
	return -1
}

func lastNotOf(s, set string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if strings.IndexByte(set, s[i]) == -1 {
			return i
		}
	}
	return -1
}

func lastNotOfByte(s string, c byte, from int) int {
	if from >= len(s) {
		from = len(s) - 1
	}
	for i := from; i >= 0; i-- {
		if s[i] != c {
			return i
		}
	}
	return -1
}
