package lexer

import (
	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
)

// LookaheadList wraps a Tokenizer with unbounded lookahead. Tokens drawn
// from the Tokenizer but not yet consumed sit in a FIFO hold list; a cursor
// walks forward through the hold list, pulling more tokens as needed.
// Consuming a token invalidates the cursor.
type LookaheadList struct {
	tz   *Tokenizer
	hold []token.Token
	look int // index of the last accessed lookahead element, -1 when none
}

func NewLookaheadList(cfg *config.Config) *LookaheadList {
	return &LookaheadList{tz: NewTokenizer(cfg), look: -1}
}

// Start opens the list on the given file.
func (l *LookaheadList) Start(fileName string) error {
	l.hold = l.hold[:0]
	l.look = -1
	return l.tz.Start(fileName)
}

// Next returns the next token to process, from the hold list when one is
// waiting there.
func (l *LookaheadList) Next() token.Token {
	var t token.Token
	if len(l.hold) == 0 {
		t = l.tz.Next()
	} else {
		t = l.hold[0]
		l.hold = l.hold[1:]
	}
	l.ResetLookahead() // just read a token, so the old lookahead is invalid
	return t
}

// Lookahead advances the cursor one token forward and returns that token.
func (l *LookaheadList) Lookahead() token.Token {
	l.look++
	if l.look >= len(l.hold) {
		l.hold = append(l.hold, l.tz.Next())
	}
	return l.hold[l.look]
}

// LastLookahead returns the token the cursor currently points at, or a
// no-token when no lookahead is active.
func (l *LookaheadList) LastLookahead() token.Token {
	if l.look < 0 || l.look >= len(l.hold) {
		return token.Token{}
	}
	return l.hold[l.look]
}

// ResetLookahead rewinds the cursor so held tokens can be reprocessed.
func (l *LookaheadList) ResetLookahead() { l.look = -1 }

// EOF is true once the source is fully tokenized and either the hold list
// is empty or its front signals end of file.
func (l *LookaheadList) EOF() bool {
	return l.tz.EOF() &&
		(len(l.hold) == 0 || l.hold[0].Type == token.EOF)
}
