// Package lexer turns processed lines into tokens.
//
//	File input            Resulting token
//	&                     Ampersand
//	-> .                  FieldAccess
//	; { } ( )             Semicolon, braces, parens
//	quoted string         Literal
//	digits                Literal
//	alpha then alnum      Identifier
//	* [ ] ,               DeclSym
//	anything else         OtherSym
package lexer

import (
	"strings"

	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/filebuffer"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
)

const (
	digits     = "1234567890"
	alpha      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_"
	declChars  = "*[], \t" // symbols allowed in declaration statements
	otherChars = "`!@#$%^+=|\\<>?/"
)

// Tokenizer lexes one file. A token's text may wrap between physical lines,
// requiring a file read before the token finishes; its position should
// reflect where it starts, so the position is cached here and only refreshed
// between tokens. A Tokenizer owns a file cursor and must not be copied.
type Tokenizer struct {
	file    *filebuffer.FileBuffer
	buffer  string
	charPtr int

	location     token.FilePosition // position of the data for the current token
	loadLineData bool               // position must be refreshed after this token
	newLinePos   int                // start of the latest file line within buffer
}

func NewTokenizer(cfg *config.Config) *Tokenizer {
	return &Tokenizer{file: filebuffer.New(cfg)}
}

// Start begins tokenizing the named file.
func (t *Tokenizer) Start(fileName string) error {
	t.buffer = ""
	t.location = token.FilePosition{}
	t.charPtr = 0
	t.loadLineData = false
	t.newLinePos = 0
	if err := t.file.Open(fileName); err != nil {
		return err
	}
	t.reloadBuffer(false)
	t.location = t.file.Position()
	return nil
}

// EOF reports whether the entire file has been tokenized.
func (t *Tokenizer) EOF() bool {
	return t.file.EOF() && t.charPtr >= len(t.buffer)
}

// isLineWrap reports whether the indexed char is the escape of a wrapped
// line, meaning more data must be loaded to finish the current token.
func (t *Tokenizer) isLineWrap(pos int, multiLineQuote bool) bool {
	if t.file.EOF() {
		return false // on the last line of input, by definition can't wrap
	}
	if pos >= len(t.buffer) {
		return false
	}
	if t.buffer[pos] != '\\' {
		return false
	}
	return filebuffer.EscNewline(t.buffer, multiLineQuote) == pos
}

// reloadBuffer appends the next processed line, keeping any unconsumed text
// except a trailing escaped newline.
func (t *Tokenizer) reloadBuffer(multiLineQuote bool) {
	var numKeep int
	if t.charPtr >= len(t.buffer) {
		numKeep = 0
	} else {
		firstIgnore := filebuffer.EscNewline(t.buffer, multiLineQuote)
		if firstIgnore == -1 {
			firstIgnore = len(t.buffer)
		}
		if firstIgnore <= t.charPtr {
			numKeep = 0
		} else {
			numKeep = firstIgnore - t.charPtr
		}
	}

	if numKeep > 0 {
		t.buffer = t.buffer[t.charPtr : t.charPtr+numKeep]
	} else {
		t.buffer = ""
	}
	t.newLinePos = numKeep // new text starts after the retained text
	if !t.file.EOF() {
		t.buffer += t.file.Next()
		t.loadLineData = true
	}
	t.charPtr = 0
}

// handleOtherChars consolidates runs of operator characters into one token.
// The characters split into those allowed in declaration statements and
// those that are not; declaration chars merge into a run of other chars when
// the latter are found first.
func (t *Tokenizer) handleOtherChars() token.Token {
	var wantType token.Type
	var end int
	if strings.IndexByte(declChars, t.buffer[t.charPtr]) != -1 {
		wantType = token.DeclSym
		end = firstNotOf(t.buffer, declChars, t.charPtr+1)
	} else {
		wantType = token.OtherSym
		end = firstNotOf(t.buffer, declChars+otherChars, t.charPtr+1)
	}
	if end == -1 {
		end = len(t.buffer) - 1
	} else {
		end-- // ends one beyond the wanted char
	}
	lexeme := t.buffer[t.charPtr : end+1]
	t.charPtr = end
	return token.New(lexeme, t.location, wantType)
}

func (t *Tokenizer) getNumeric() token.Token {
	end := t.charPtr
	haveLexeme := false
	seenE := false

	for !haveLexeme {
		if end > len(t.buffer)-1 {
			end = -1
		} else {
			end = firstNotOf(t.buffer, digits+".", end)
		}
		if end == -1 {
			end = len(t.buffer)
			haveLexeme = true
		} else if t.isLineWrap(end, false) {
			t.reloadBuffer(false)
			end = t.newLinePos // resume from the chars that were added
		} else if t.buffer[end] == 'E' && !seenE {
			end++ // exponential notation, skip the E and keep going
			seenE = true
		} else {
			haveLexeme = true
		}
	}
	end-- // ends one beyond what is wanted
	lexeme := t.buffer[t.charPtr : end+1]
	t.charPtr = end
	return token.New(lexeme, t.location, token.Literal)
}

func (t *Tokenizer) getQuotedString() token.Token {
	haveValue := false
	end := t.charPtr + 1

	for !haveValue {
		end = filebuffer.NextCloseQuote(t.buffer, end)
		if !t.file.EOF() && end == -1 {
			// Literal wraps to the next line.
			t.reloadBuffer(true)
			end = t.newLinePos
		} else {
			haveValue = true
		}
	}
	if end == -1 {
		end = len(t.buffer)
	}
	stop := end + 1
	if stop > len(t.buffer) {
		stop = len(t.buffer)
	}
	lexeme := t.buffer[t.charPtr:stop]
	t.charPtr = end
	return token.New(lexeme, t.location, token.Literal)
}

func (t *Tokenizer) getIdentifier() token.Token {
	// The first char has different rules from the rest.
	lexeme := t.buffer[t.charPtr : t.charPtr+1]
	t.charPtr++
	end := t.charPtr
	haveLexeme := false

	for !haveLexeme {
		if end > len(t.buffer)-1 {
			end = -1
		} else {
			end = firstNotOf(t.buffer, alpha+digits, end)
		}
		if end == -1 {
			haveLexeme = true
		} else if t.isLineWrap(end, false) {
			t.reloadBuffer(false)
			end = t.newLinePos
		} else {
			haveLexeme = true
		}
	}
	if end == -1 {
		end = len(t.buffer) - 1
	} else {
		end--
	}
	if end >= t.charPtr {
		lexeme += t.buffer[t.charPtr : end+1]
	}
	t.charPtr = end
	return token.New(lexeme, t.location, token.Identifier)
}

// handleMinus checks for ->, the field operator.
func (t *Tokenizer) handleMinus() token.Token {
	if t.charPtr == len(t.buffer)-1 {
		return token.New(t.buffer[t.charPtr:t.charPtr+1], t.location, token.OtherSym)
	}
	if t.isLineWrap(t.charPtr+1, false) {
		t.reloadBuffer(false)
		if t.charPtr+1 >= len(t.buffer) {
			return token.New(t.buffer[t.charPtr:t.charPtr+1], t.location, token.OtherSym)
		}
	}
	if t.buffer[t.charPtr+1] == '>' {
		lexeme := t.buffer[t.charPtr : t.charPtr+2]
		t.charPtr++
		return token.New(lexeme, t.location, token.FieldAccess)
	}
	return t.handleOtherChars()
}

// handleAmpersand checks for &&, the boolean AND operator, which is not a
// potential reference operator. (Splitting the bitwise AND operator from a
// reference operator is the parser's job.)
func (t *Tokenizer) handleAmpersand() token.Token {
	if t.charPtr == len(t.buffer)-1 {
		return token.New(t.buffer[t.charPtr:t.charPtr+1], t.location, token.Ampersand)
	}
	if t.isLineWrap(t.charPtr+1, false) {
		t.reloadBuffer(false)
		if t.charPtr+1 >= len(t.buffer) {
			return token.New(t.buffer[t.charPtr:t.charPtr+1], t.location, token.Ampersand)
		}
	}
	if t.buffer[t.charPtr+1] == '&' {
		lexeme := t.buffer[t.charPtr : t.charPtr+2]
		t.charPtr++
		return token.New(lexeme, t.location, token.OtherSym)
	}
	return token.New(t.buffer[t.charPtr:t.charPtr+1], t.location, token.Ampersand)
}

/* handleSinQuote expects one of:
   1. quote char quote
   2. quote escape char quote
   3. quote escape digit digit digit quote
   4. quote escape x digit digit quote
   implemented as a state machine over the lexeme length. Anything else
   falls through to handleOtherChars. */
func (t *Tokenizer) handleSinQuote() token.Token {
	haveError := false
	haveValue := false
	haveEscape := false
	haveHex := false
	haveOct := false
	haveZero := false
	length := 1

	for !haveValue && !haveError {
		length++
		if t.charPtr+length-1 >= len(t.buffer) {
			haveError = true
		} else if t.isLineWrap(t.charPtr+length-1, true) {
			t.reloadBuffer(true)
			length-- // burned the escape newline, shrink to compensate
		} else {
			testChar := t.buffer[t.charPtr+length-1]
			switch length {
			case 2:
				if testChar == '\'' {
					haveError = true
				} else if testChar == '\\' {
					haveEscape = true
				}

			case 3:
				if !haveEscape {
					if testChar == '\'' {
						haveValue = true
					} else {
						haveError = true
					}
				} else if testChar == '0' {
					/* A zero here is either the start of an octal number or
					   the NUL escape; the next char tells which. */
					haveZero = true
				} else if isDigit(testChar) {
					haveOct = true
				} else if testChar == 'x' {
					haveHex = true
				} else if strings.IndexByte("abfnrtv\\?\"'", testChar) == -1 {
					haveError = true
				}

			case 4:
				if haveZero && isDigit(testChar) {
					haveOct = true // the zero was the first octal digit
				}
				if haveOct {
					haveError = !isDigit(testChar)
				} else if haveHex {
					haveError = !isHexDigit(testChar)
				} else if haveEscape && testChar == '\'' {
					haveValue = true
				} else {
					haveError = true
				}

			case 5:
				if haveOct {
					haveError = !isDigit(testChar)
				} else if haveHex {
					haveError = !isHexDigit(testChar)
				} else {
					haveError = true
				}

			case 6:
				if (haveHex || haveOct) && testChar == '\'' {
					haveValue = true
				} else {
					haveError = true
				}

			default:
				haveError = true
			}
		}
	}
	if haveValue {
		lexeme := t.buffer[t.charPtr : t.charPtr+length]
		t.charPtr += length - 1
		return token.New(lexeme, t.location, token.Literal)
	}
	return t.handleOtherChars()
}

// Next lexes and returns the next token. Past EOF it returns a synthetic
// EOF token positioned one line beyond the last seen line.
func (t *Tokenizer) Next() token.Token {
	if t.EOF() {
		pos := t.location // should point to the last line of the file
		pos.IncrLine()
		return token.New("", pos, token.EOF)
	}

	var returnToken token.Token
	c := t.buffer[t.charPtr]
	switch {
	case isAlpha(c) || c == '_' || c == '~':
		returnToken = t.getIdentifier()
	case isDigit(c):
		returnToken = t.getNumeric()
	default:
		switch c {
		case '"':
			returnToken = t.getQuotedString()
		case '-':
			returnToken = t.handleMinus()
		case '\'':
			returnToken = t.handleSinQuote()
		case '&':
			returnToken = t.handleAmpersand()
		case '.':
			// Check for the leading decimal point of a numeric.
			if t.charPtr == len(t.buffer)-1 || !isDigit(t.buffer[t.charPtr+1]) {
				returnToken = token.New(".", t.location, token.FieldAccess)
			} else {
				returnToken = t.getNumeric()
			}
		case ';':
			returnToken = token.New(";", t.location, token.Semicolon)
		case '{':
			returnToken = token.New("{", t.location, token.OpenBrace)
		case '}':
			returnToken = token.New("}", t.location, token.CloseBrace)
		case '(':
			returnToken = token.New("(", t.location, token.OpenParen)
		case ')':
			returnToken = token.New(")", t.location, token.CloseParen)
		default:
			returnToken = t.handleOtherChars()
		}
	}

	// Advance to the next char to process.
	t.charPtr++ // move off the previous char
	haveChar := false
	for !haveChar && (!t.file.EOF() || t.charPtr < len(t.buffer)) {
		if t.charPtr < len(t.buffer) {
			t.charPtr = filebuffer.BurnSpaces(t.buffer, t.charPtr)
		}
		if t.charPtr == -1 {
			t.charPtr = len(t.buffer)
		} else if t.isLineWrap(t.charPtr, false) {
			t.charPtr = len(t.buffer) // burn the escaped newline
		}
		if t.charPtr >= len(t.buffer) {
			t.reloadBuffer(false)
		} else {
			haveChar = true
		}
	}
	// Refresh position information once the cursor passes into the text of
	// a newer physical line.
	if t.loadLineData && t.charPtr >= t.newLinePos {
		t.location = t.file.Position()
		t.loadLineData = false
	}
	return returnToken
}

func isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'A' && c <= 'F')
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
