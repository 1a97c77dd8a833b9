// Package finder assembles the parser's function tokens into complete
// records, holding calls whose scope is unknown until the matching
// declaration is seen or the file ends.
package finder

import (
	"errors"
	"sort"

	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/parser"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
)

// ErrDoubleRelease is a logic error: a hold was attempted while released
// records were waiting. Holding can only happen while processing tokens; if
// records are waiting, the caller should be draining them instead.
var ErrDoubleRelease = errors.New("internal error, double release of held function tokens")

type heldCall struct {
	tok    token.Token
	caller string
}

// FunctHold keeps function calls with unknown scope. They release when the
// scope becomes known, which is set per function, so held calls live in a
// map keyed by lexeme. Released calls become records and wait in a cache
// that callers drain one at a time; end of input releases everything left.
type FunctHold struct {
	holds   map[string][]heldCall
	release []FunctionRecord
}

func (h *FunctHold) Reset() {
	h.holds = make(map[string][]heldCall)
	h.release = nil
}

// DoingRelease reports whether released records are waiting to be drained.
func (h *FunctHold) DoingRelease() bool { return len(h.release) > 0 }

// Empty reports whether every held call has been released and drained.
func (h *FunctHold) Empty() bool {
	return len(h.holds) == 0 && !h.DoingRelease()
}

// NextRelease pops the most recently released record.
func (h *FunctHold) NextRelease() FunctionRecord {
	r := h.release[len(h.release)-1]
	h.release = h.release[:len(h.release)-1]
	return r
}

// HoldIfNeeded holds the token when it is a function call with unresolved
// scope, reporting whether it did.
func (h *FunctHold) HoldIfNeeded(testToken token.Token, callFunct string) (bool, error) {
	if testToken.Type != token.FuncCall || testToken.Scope != token.NoScope {
		return false, nil
	}
	if h.DoingRelease() {
		return false, ErrDoubleRelease
	}
	h.holds[testToken.Lexeme] = append(h.holds[testToken.Lexeme], heldCall{testToken, callFunct})
	return true, nil
}

// ReleaseHold moves every held call matching a function declaration to the
// release cache, stamped with the declaration's scope.
func (h *FunctHold) ReleaseHold(declToken token.Token) {
	if declToken.Type != token.FuncDecl {
		return
	}
	h.moveHoldToCache(declToken.Lexeme, declToken.Scope)
}

func (h *FunctHold) moveHoldToCache(lexeme string, wantScope token.Scope) {
	calls := h.holds[lexeme]
	if len(calls) == 0 {
		return
	}
	for _, hc := range calls {
		hc.tok.Scope = wantScope
		h.release = append(h.release, NewFunctionRecord(hc.tok, hc.caller))
	}
	delete(h.holds, lexeme)
}

// ProcEOF releases every remaining held call with global scope: a call still
// held here has no declaration in this file, so the function must be
// declared in another translation unit. Returns the next release, or a
// sentinel record when nothing is left.
func (h *FunctHold) ProcEOF() FunctionRecord {
	if len(h.holds) > 0 {
		// Flush in name order so reprocessing the same input gives the
		// same record sequence.
		names := make([]string, 0, len(h.holds))
		for name := range h.holds {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			h.moveHoldToCache(name, token.GlobalScope)
		}
	}
	if h.Empty() {
		return FunctionRecord{Caller: noFunction}
	}
	return h.NextRelease()
}

// noFunction is the caller recorded for calls outside any function body.
const noFunction = "NONE"

// FunctFinder is the pull driver of the whole pipeline: it alternates
// parser output with hold releases and yields one record per call. It is
// bound to one input file and must not be copied.
type FunctFinder struct {
	functBuffer  *parser.Parser
	currFunction string
	hold         FunctHold
}

func New(cfg *config.Config) *FunctFinder {
	f := &FunctFinder{functBuffer: parser.New(cfg)}
	f.reset()
	return f
}

func (f *FunctFinder) reset() {
	f.currFunction = noFunction
	f.hold.Reset()
}

// Start begins processing the named file.
func (f *FunctFinder) Start(fileName string) error {
	f.reset()
	return f.functBuffer.Start(fileName)
}

// EOF reports whether every function record has been produced.
func (f *FunctFinder) EOF() bool {
	return f.functBuffer.EOF() && f.hold.Empty()
}

// NextFunction returns the next function record in the input.
func (f *FunctFinder) NextFunction() (FunctionRecord, error) {
	if f.hold.DoingRelease() {
		return f.hold.NextRelease(), nil
	}

	haveFunct := false
	var functToken token.Token
	for !haveFunct && !f.functBuffer.EOF() {
		functToken = f.functBuffer.NextFunction()
		if functToken.Type == token.FuncDecl {
			// A declaration; now processing a new function.
			f.hold.ReleaseHold(functToken)
			f.currFunction = functToken.Lexeme
			haveFunct = true
		} else {
			held, err := f.hold.HoldIfNeeded(functToken, f.currFunction)
			if err != nil {
				return FunctionRecord{}, err
			}
			if !held {
				haveFunct = true
			}
		}
	}
	if haveFunct {
		return NewFunctionRecord(functToken, f.currFunction), nil
	}
	return f.hold.ProcEOF(), nil
}
