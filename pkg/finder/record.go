package finder

import (
	"fmt"

	"github.com/ezraerb/CfunctionIndexer/pkg/token"
)

// FunctionRecord describes one function declaration or call found in the
// input. Records flow by value from the finder to the driver.
type FunctionRecord struct {
	Name        string
	Location    token.FilePosition
	Declaration bool   // the statement was a function declaration
	Caller      string // function the call occurred in
	Reference   bool   // the function's address was taken instead of calling it
	FileScope   bool   // scope is restricted to one file
}

// NewFunctionRecord builds a record from a classified function token. A
// declaration is its own caller.
func NewFunctionRecord(tok token.Token, caller string) FunctionRecord {
	r := FunctionRecord{
		Name:        tok.Lexeme,
		Location:    tok.Pos,
		Declaration: tok.Type == token.FuncDecl,
		FileScope:   tok.Scope == token.FileScope,
	}
	if r.Declaration {
		r.Caller = r.Name
	} else {
		r.Caller = caller
		r.Reference = tok.Mod == token.FuncRef
	}
	return r
}

// None reports whether the record is the sentinel produced when a drained
// hold has nothing left to release.
func (r FunctionRecord) None() bool { return r.Name == "" }

// Less orders records for the final report: by name, then file scope before
// global, then (for file scope) by owning file, then declarations before
// calls, then by location.
func (r FunctionRecord) Less(other FunctionRecord) bool {
	if r.Name != other.Name {
		return r.Name < other.Name
	}
	if r.FileScope != other.FileScope {
		return r.FileScope
	}
	if r.FileScope && r.Location.FileName != other.Location.FileName {
		return r.Location.FileName < other.Location.FileName
	}
	if r.Declaration != other.Declaration {
		return r.Declaration
	}
	return r.Location.Less(other.Location)
}

// TableHeader is the column header of the final report.
const TableHeader = "Function name         scope               caller                source          line"

// TableRow renders the record as one fixed-width report row.
func (r FunctionRecord) TableRow() string {
	scope := "global "
	if r.FileScope {
		scope = "file   "
	}
	var kind string
	if r.Declaration {
		kind = fmt.Sprintf("%-33s", "declared")
	} else if r.Reference {
		kind = fmt.Sprintf("refrenced in %-20s", r.Caller)
	} else {
		kind = fmt.Sprintf("called from  %-20s", r.Caller)
	}
	return fmt.Sprintf("%-20s  %s%s  %-14s  %d\n",
		r.Name, scope, kind, r.Location.FileName, r.Location.LineNo)
}
