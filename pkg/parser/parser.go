// Package parser implements a very simplified C parser designed to find
// function declarations and calls. It processes a C program as a series of
// statements of four varieties: declarations, typedefs, control, and
// expressions. Control statements are detected by control keywords;
// declarations and typedefs by a type declarer as the first token of the
// statement, with typedefs detected within those by a typedef token.
// Everything else is an expression.
//
// Within these statements the program detects functions: an unknown
// identifier with an open parenthesis after it is considered a function. If
// it is the first identifier in a declaration statement it is a function
// declaration or prototype, otherwise a function call.
//
// Handling errors in the input is notoriously hard in bottom-up parsers
// (which this is), so warnings are produced whenever an assumption can
// affect the results. The assumptions are biased toward parsing something as
// a function call, under the theory that reporting extra calls beats
// suppressing genuine ones:
//
//  1. Open braces (except inside compound type declarations), semicolons
//     (except inside control statements and compound type declarations), and
//     control tokens always start a new statement.
//  2. In a declaration, a second identifier indicates the start of the
//     initial value; the remainder of the statement is an expression.
//  3. In expression statements, type symbols are assumed to be casts.
//  4. In compound types (struct, etc.) types, operators, parentheses,
//     identifiers, and semicolons are assumed part of the declaration until
//     the matching close brace. Any other symbol ends the type at the
//     preceding separator.
//  5. Function argument lists are parsed by counting parentheses. A token
//     other than a type, identifier, or operator terminates the list with a
//     warning. If the token after an argument list is not an open brace, the
//     declaration is assumed to be a prototype.
//  6. Function call arguments are parsed by counting values; a statement
//     ending before the argument list does produces a warning.
//  7. Control statements are parsed like expressions, except the statement
//     is not complete until the correct number of semicolons is found.
//
// All new names enter the symbol table, which handles collisions.
package parser

import (
	"github.com/ezraerb/CfunctionIndexer/pkg/config"
	"github.com/ezraerb/CfunctionIndexer/pkg/lexer"
	"github.com/ezraerb/CfunctionIndexer/pkg/namespace"
	"github.com/ezraerb/CfunctionIndexer/pkg/token"
	"github.com/ezraerb/CfunctionIndexer/pkg/util"
)

type tokenStack []token.Token

func (s *tokenStack) push(t token.Token) { *s = append(*s, t) }

func (s *tokenStack) pop() token.Token {
	var t token.Token
	if len(*s) > 0 {
		t = (*s)[len(*s)-1]
		*s = (*s)[:len(*s)-1]
	}
	return t
}

// popTillType pops until a token of the wanted type is popped, returning it,
// or a no-token if the stack empties first.
func (s *tokenStack) popTillType(want token.Type) token.Token {
	for len(*s) > 0 && (*s)[len(*s)-1].Type != want {
		*s = (*s)[:len(*s)-1]
	}
	return s.pop()
}

func (s tokenStack) hasType(want token.Type) bool {
	for _, t := range s {
		if t.Type == want {
			return true
		}
	}
	return false
}

func (s tokenStack) empty() bool { return len(s) == 0 }

func (s tokenStack) back() token.Token {
	if len(s) == 0 {
		return token.Token{}
	}
	return s[len(s)-1]
}

func (s tokenStack) front() token.Token {
	if len(s) == 0 {
		return token.Token{}
	}
	return s[0]
}

type statementType int

const (
	stmtUndet statementType = iota
	stmtDeclaration
	stmtExpression
	stmtControl
)

// Parser drives the statement state machine over the token stream and
// produces function tokens one at a time. It owns the symbol tables for the
// file being parsed and must not be copied.
type Parser struct {
	buffer  *lexer.LookaheadList
	symbols *namespace.NameSpace

	parseStack tokenStack
	readNext   bool // input must be reloaded before parsing
	currToken  token.Token
	functToken token.Token // last found function token
	stmtType   statementType
	braceCount int // count of unmatched open braces

	globalsCleared bool
	cfg            *config.Config
}

func New(cfg *config.Config) *Parser {
	return &Parser{buffer: lexer.NewLookaheadList(cfg), cfg: cfg}
}

// Start begins parsing the named file and prefetches the first function
// token.
func (p *Parser) Start(fileName string) error {
	p.readNext = true
	p.currToken.Reset()
	p.functToken.Reset()
	p.stmtType = stmtUndet
	p.braceCount = 0
	p.globalsCleared = false
	p.symbols = namespace.New(p.cfg)
	p.parseStack = p.parseStack[:0]
	if err := p.buffer.Start(fileName); err != nil {
		return err
	}
	p.findNextFunction()
	return nil
}

// NextFunction returns the next function token in the file. Like the file
// buffer, it works one token ahead so EOF is reported exactly.
func (p *Parser) NextFunction() token.Token {
	result := p.functToken
	p.findNextFunction()
	return result
}

// EOF reports whether every function token has been returned.
func (p *Parser) EOF() bool {
	return p.buffer.EOF() && p.functToken.Type == token.None
}

// newStatement completes processing of a statement. Any function call still
// on the stack never saw the end of its argument list.
func (p *Parser) newStatement() {
	for !p.parseStack.empty() {
		temp := p.parseStack.popTillType(token.FuncCall)
		if temp.Type != token.None {
			util.TokenWarn(p.cfg, config.WarnIncompleteCall, temp,
				"Call of function ", " is incomplete")
		}
	}
	p.stmtType = stmtUndet
}

// procCombType handles a compound keyword (struct, union, enum): either the
// declaration of a compound type, whose body is burned wholesale, or the use
// of one as a type.
func (p *Parser) procCombType() {
	next := p.buffer.Lookahead()
	next2 := p.buffer.Lookahead()

	/* The compound is a declaration only in the identifier+brace or brace
	   shapes, and never while a control or expression statement is open. */
	if (next.Type != token.Identifier && next.Type != token.OpenBrace) ||
		(next.Type == token.Identifier && next2.Type != token.OpenBrace) ||
		p.stmtType == stmtExpression || p.stmtType == stmtControl {
		// Used as a type. If no tag, assume the programmer forgot it.
		if next.Type == token.Identifier {
			p.buffer.Next() // burn the tag
		}
		p.currToken.Type = token.TypeTok
		return
	}

	/* Have a declaration. Burn it as long as the tokens inside are legal;
	   on an illegal token, assume the statement started at the most recent
	   separator (this matters for functions, which need the preceding type
	   tokens). Compounds nest, so brace pairs are counted. */
	readNext := false
	if next.Type == token.Identifier {
		// Record the tag as a type so later uses of the name classify and
		// collisions with function names surface.
		tag := next
		tag.Type = token.TypeTok
		if p.braceCount > 0 {
			tag.Scope = token.LocalScope
		} else {
			tag.Scope = token.FileScope
		}
		p.symbols.Update(tag)
		next = next2 // skip over the tag
		readNext = true
	}

	braceCount := 1
	parenCount := 0 // consecutive open parens
	for p.currToken.Type == token.Compound {
		for next.Type != token.CloseBrace && next.Type != token.Semicolon &&
			next.Type != token.FuncCall && next.Type != token.Control &&
			next.Type != token.Reserved && next.Type != token.EOF {
			if readNext {
				next = p.buffer.Lookahead()
			} else {
				next = p.buffer.LastLookahead()
			}
			readNext = true

			if next.Type == token.Identifier {
				p.symbols.Classify(&next)
			}

			if next.Type == token.Compound {
				next2 = p.buffer.Lookahead()
				if next2.Type == token.Identifier {
					next2 = p.buffer.Lookahead()
				}
				if next2.Type == token.OpenBrace {
					// An inner compound declaration.
					next = next2
					braceCount++
				} else {
					next.Type = token.TypeTok
					readNext = false // token not part of the declaration
				}
			} else if next.Type == token.Identifier {
				/* An identifier followed (after burning matched parens) by
				   an open paren is a function call. */
				for p.buffer.Lookahead().Type == token.CloseParen && parenCount > 0 {
					parenCount--
				}
				if p.buffer.LastLookahead().Type == token.OpenParen {
					next.Type = token.FuncCall
				}
				readNext = false
			}

			// Track stacks of consecutive parentheses. Must run after the
			// identifier processing, which needs the count.
			if next.Type == token.OpenParen {
				parenCount++
			} else {
				parenCount = 0
			}
		}
		if next.Type == token.CloseBrace || next.Type == token.Semicolon {
			// The declaration is valid so far; burn the actual tokens.
			p.buffer.Next() // burn the previous separator
			for p.buffer.Lookahead().Type != token.Semicolon &&
				p.buffer.LastLookahead().Type != token.CloseBrace {
				p.buffer.Next()
			}
			if next.Type == token.CloseBrace {
				braceCount--
				if braceCount <= 0 {
					// Found the end of the declaration.
					p.buffer.Next() // burn the closing brace
					p.currToken.Type = token.TypeTok
				}
			}
			next.Reset() // the burn invalidated the lookahead
		} else {
			// Early termination: read the separator so the statement drops.
			p.currToken = p.buffer.Next()
			/* A close brace separator would throw off the brace count that
			   determines scope, so convert it to a semicolon. (In reality
			   this is a complete inner struct declaration that should be
			   reprocessed; the case never appears in practice.) */
			if p.currToken.Type == token.CloseBrace {
				p.currToken.Type = token.Semicolon
			}
		}
	}
}

// procDeclaration processes the rest of a declaration statement, starting
// from its first identifier (held in currToken).
func (p *Parser) procDeclaration() {
	declToken := p.currToken
	var varNames tokenStack
	var haveFunction, insideParams bool
	parenCount := 0

	if p.buffer.LastLookahead().Type == token.OpenParen {
		haveFunction = true
		insideParams = true
		parenCount = 1
		// Burn the paren, so it is not confused with argument declarations.
		p.buffer.Next()
	}

	consParenCount := 0
	for p.stmtType == stmtDeclaration {
		p.currToken = p.buffer.Next()
		if p.currToken.Type == token.Identifier {
			p.symbols.Classify(&p.currToken)
		}
		if p.currToken.Type == token.Compound {
			p.procCombType()
		}
		switch p.currToken.Type {
		case token.Identifier:
			// Burn parentheses around the identifier.
			for p.buffer.Lookahead().Type == token.CloseParen && consParenCount > 0 {
				p.buffer.Next()
				consParenCount--
			}
			if p.buffer.LastLookahead().Type == token.OpenParen {
				/* A function call terminates a function declaration, and
				   marks the start of the initial value of a variable
				   declaration. */
				p.stmtType = stmtExpression
			} else {
				/* A variable name: a parameter name for functions; for
				   variable declarations, assume multiple vars declared in
				   one statement. K&R-style parameter declarations need not
				   be within the parentheses. */
				p.currToken.Type = token.VarName
				if haveFunction || p.braceCount > 0 {
					p.currToken.Scope = token.LocalScope
				} else {
					p.currToken.Scope = token.FileScope
				}
				varNames.push(p.currToken)
				// K&R parameter declarations carry a trailing semicolon,
				// which must be burned too.
				if haveFunction && !insideParams &&
					p.buffer.LastLookahead().Type == token.Semicolon {
					p.buffer.Next()
				}
			}

		case token.OpenParen:
			parenCount++

		case token.CloseParen:
			parenCount--
			if insideParams && parenCount <= 0 {
				insideParams = false
			}

		case token.TypedefTok, token.StaticTok:
			if !insideParams { // modifier on the entire declaration
				p.parseStack.push(p.currToken)
			}

		case token.Ampersand, token.OtherSym:
			// The initializer list for variables; an error for functions.
			if haveFunction {
				p.stmtType = stmtUndet
			} else {
				p.stmtType = stmtExpression
			}

		case token.TypeTok, token.DeclSym:
			// Ignore it.

		case token.FieldAccess:
			/* A dot inside params is assumed to be part of the varargs
			   symbol; it is not common enough for its own token. */
			if !insideParams || p.currToken.Lexeme != "." {
				p.stmtType = stmtUndet
			}

		default:
			// Token is not allowed in declarations.
			p.stmtType = stmtUndet
		}
		if p.currToken.Type == token.OpenParen {
			consParenCount++
		} else {
			consParenCount = 0
		}
	}

	if haveFunction {
		p.procFunctDeclaration(&declToken, p.currToken, insideParams)
	} else { // variable or type declaration
		if p.parseStack.hasType(token.TypedefTok) {
			declToken.Type = token.TypeTok
		} else {
			declToken.Type = token.VarName
		}
		if p.braceCount > 0 {
			declToken.Scope = token.LocalScope
		} else {
			declToken.Scope = token.FileScope
		}
		p.symbols.Update(declToken)
	}

	/* Add the new variables to the namespace. The vars of a function
	   declaration are ignored unless it was followed by an open brace; a
	   prototype's parameter names have no scope. */
	if declToken.Type == token.VarName || declToken.Type == token.FuncDecl {
		for !varNames.empty() {
			p.symbols.Update(varNames.pop())
		}
	}
	p.readNext = false // the token that ended the declaration needs processing
}

// procFunctDeclaration decides whether a completed function-form declaration
// is a typedef, a prototype, or an actual declaration, then records it.
func (p *Parser) procFunctDeclaration(declToken *token.Token, nextToken token.Token, insideParams bool) {
	/* Typedefs of functions are legal but never used in practice. Treat the
	   declaration as one only when it is completely legal to do so. */
	if p.parseStack.hasType(token.TypedefTok) &&
		!p.symbols.IsKeyword(*declToken) && p.braceCount == 0 {
		declToken.Type = token.FuncTypedef
	} else if nextToken.Type == token.OpenBrace {
		declToken.Type = token.FuncDecl
	} else {
		declToken.Type = token.FuncProto
	}

	// Warn when the declaration is not complete.
	if insideParams ||
		(declToken.Type != token.FuncDecl && nextToken.Type != token.Semicolon) {
		switch declToken.Type {
		case token.FuncTypedef:
			util.TokenWarn(p.cfg, config.WarnIncompleteDecl, *declToken,
				"Function type definition ", " is incomplete")
		case token.FuncDecl:
			util.TokenWarn(p.cfg, config.WarnIncompleteDecl, *declToken,
				"Declaration of function ", " is incomplete")
		default:
			util.TokenWarn(p.cfg, config.WarnIncompleteDecl, *declToken,
				"Prototype of function ", " is incomplete")
		}
	}

	if p.parseStack.hasType(token.StaticTok) {
		declToken.Scope = token.FileScope
	} else {
		declToken.Scope = token.GlobalScope
	}

	// Warn when the declaration occurs inside another function. Typedefs
	// never get that far: the role is refused above when braceCount > 0.
	if p.braceCount > 0 {
		if declToken.Type == token.FuncDecl {
			util.TokenWarn(p.cfg, config.WarnNestedFunction, *declToken,
				"Declaration of function ", " occurs within another function")
		} else {
			util.TokenWarn(p.cfg, config.WarnNestedFunction, *declToken,
				"Prototype of function ", " occurs within another function")
		}
	}

	p.symbols.Update(*declToken)

	if declToken.Type == token.FuncDecl {
		p.functToken = *declToken
	}
	p.parseStack = p.parseStack[:0]
}

// findNextFunction advances the parser until the next function token is
// found or the input runs out.
func (p *Parser) findNextFunction() {
	conParenCount := 0 // consecutive open parens seen
	var tempToken token.Token

	p.functToken.Reset()
	for p.functToken.Type == token.None && !p.buffer.EOF() {
		if p.readNext {
			p.currToken = p.buffer.Next()
		} else {
			p.readNext = true
			p.buffer.ResetLookahead()
		}

		if p.currToken.Type == token.Identifier {
			p.symbols.Classify(&p.currToken)
		}
		if p.currToken.Type == token.Compound {
			p.procCombType()
		}

		switch p.currToken.Type {
		case token.Ampersand:
			if p.parseStack.empty() || p.parseStack.back().Type == token.OpenParen {
				// Reference operator.
				p.parseStack.push(p.currToken)
			}
			// else bitwise AND, or an error; ignore it

		case token.FieldAccess:
			if p.stmtType == stmtExpression {
				if !p.parseStack.empty() && p.parseStack.back().Type == token.Ampersand {
					// Assume the struct name was left out.
					p.parseStack.pop()
				}
				p.parseStack.push(p.currToken)
			}
			// else the symbol is in error; ignore it

		case token.Semicolon:
			// Either a new statement, or one part of a multi-part control
			// statement just finished.
			if p.stmtType == stmtControl {
				// The stack is cleared before a control is added, so it is
				// at the bottom.
				tempToken = p.parseStack.front()
			} else {
				tempToken.Reset()
			}
			p.newStatement()
			if tempToken.Type == token.Control && tempToken.Mod != token.OneArg {
				p.stmtType = stmtControl
				// Drop the argument count by one and push it back.
				if tempToken.Mod == token.TwoArg {
					tempToken.Mod = token.OneArg
				} else {
					tempToken.Mod = token.TwoArg
				}
				p.parseStack.push(tempToken)
				/* Replace the paren that was popped above. Assumes the open
				   paren and the semicolon are on the same line, which is
				   good enough in practice. */
				p.parseStack.push(token.New("(", tempToken.Pos, token.OpenParen))
			}

		case token.OpenBrace:
			p.braceCount++
			p.newStatement()

		case token.CloseBrace:
			if p.braceCount == 1 { // about to pass from local to global scope
				p.symbols.ClearLocalNames()
			}
			if p.braceCount > 0 {
				p.braceCount--
			}
			p.newStatement()

		case token.OpenParen:
			// Only expressions can open with a parenthesis.
			if p.stmtType == stmtUndet && p.parseStack.empty() {
				p.stmtType = stmtExpression
			}
			// Declarations care only about paren counts, not positions.
			if p.stmtType != stmtDeclaration {
				p.parseStack.push(p.currToken)
			}
			conParenCount++

		case token.CloseParen:
			if p.stmtType != stmtDeclaration {
				p.parseStack.popTillType(token.OpenParen)
				// A funcCall on top means its arglist just finished.
				if !p.parseStack.empty() && p.parseStack.back().Type == token.FuncCall {
					p.parseStack.pop()
				}
				// A control token on top means the control just finished.
				if !p.parseStack.empty() && p.parseStack.back().Type == token.Control {
					p.stmtType = stmtUndet
					p.parseStack.pop()
				}
				// Pop a trailing operator.
				if !p.parseStack.empty() &&
					(p.parseStack.back().Type == token.Ampersand ||
						p.parseStack.back().Type == token.FuncCall) {
					p.parseStack.pop()
				}
			}

		case token.DeclSym, token.OtherSym:
			// Ignore it. In a declaration, assume an othersymbol was
			// inserted accidentally.

		case token.Literal:
			if p.stmtType == stmtUndet {
				p.stmtType = stmtExpression
			}

		case token.Identifier:
			// Burn parentheses around the identifier.
			for p.buffer.Lookahead().Type == token.CloseParen && conParenCount > 0 {
				p.buffer.Next()
				conParenCount--
				if p.stmtType != stmtDeclaration {
					p.parseStack.pop()
				}
			}
			if p.stmtType == stmtDeclaration {
				p.procDeclaration()
			} else { // use of a variable or function
				if p.buffer.LastLookahead().Type == token.OpenParen {
					p.currToken.Type = token.FuncCall
					// Scope was set when it was looked up in the table.

					// A reference taken rather than an actual call?
					if !p.parseStack.empty() && p.parseStack.back().Type == token.Ampersand {
						p.currToken.Mod = token.FuncRef
					}
					if !p.parseStack.empty() && p.parseStack.back().Type == token.FieldAccess {
						util.TokenWarn(p.cfg, config.WarnStructFieldCall, p.currToken,
							"Function call ", " is an element of a structured type")
					}
				} else {
					p.currToken.Type = token.VarName
					if p.braceCount > 0 {
						p.currToken.Scope = token.LocalScope
					} else {
						p.currToken.Scope = token.FileScope
					}
				}

				p.symbols.Update(p.currToken)

				if !p.parseStack.empty() &&
					(p.parseStack.back().Type == token.FieldAccess ||
						p.parseStack.back().Type == token.Ampersand) {
					p.parseStack.pop()
				}
				if p.stmtType == stmtUndet {
					p.stmtType = stmtExpression
				}

				if p.currToken.Type == token.FuncCall {
					// Push it so its arguments get parsed, along with the
					// following paren so it stays out of the consecutive
					// paren count.
					p.parseStack.push(p.currToken)
					p.parseStack.push(p.buffer.Next())
					p.functToken = p.currToken
				}
			}

		case token.TypedefTok, token.StaticTok:
			if p.stmtType == stmtUndet {
				p.stmtType = stmtDeclaration
			}
			if p.stmtType == stmtDeclaration {
				p.parseStack.push(p.currToken)
			}

		case token.TypeTok:
			if p.stmtType == stmtUndet {
				p.stmtType = stmtDeclaration
			}

		case token.FuncTypedef:
			/* A function declared through a previously defined type. Never
			   seen in practice but allowed by the language. The next token,
			   ignoring parens, must be an identifier with a closing paren
			   for each opening one. */
			conParenCount = 0 // cleared at the bottom anyway, so usable here
			for p.buffer.Lookahead().Type == token.OpenParen {
				conParenCount++
			}
			tempToken = p.buffer.LastLookahead()
			if tempToken.Type == token.Identifier {
				p.symbols.Classify(&tempToken)
			}
			if tempToken.Type == token.Identifier {
				for p.buffer.Lookahead().Type == token.CloseParen && conParenCount > 0 {
					conParenCount--
				}
				if conParenCount <= 0 {
					// An actual declaration. Burn the parens and process it.
					conParenCount = 0
					p.currToken = p.buffer.Next()
					for p.currToken.Type == token.OpenParen {
						conParenCount++
						p.currToken = p.buffer.Next()
					}
					for conParenCount > 0 {
						p.buffer.Next()
						conParenCount--
					}
					p.procFunctDeclaration(&p.currToken, p.buffer.Lookahead(), false)
				}
			}

		case token.Control:
			p.newStatement()
			p.stmtType = stmtControl
			p.parseStack.push(p.currToken)
			// If the next token is not an open paren, assume it was left out.
			if p.buffer.Lookahead().Type != token.OpenParen {
				p.parseStack.push(token.New("(", p.currToken.Pos, token.OpenParen))
			}

		case token.Reserved:
			p.newStatement()

		default:
			// Ignore anything else.
		}

		if p.buffer.EOF() { // read the last token while finding this function
			p.newStatement()
		}
		if p.currToken.Type != token.OpenParen {
			conParenCount = 0
		}
	}

	/* End of file ends the translation unit: any static prototype still
	   unmatched by a declaration gets diagnosed here. */
	if p.buffer.EOF() && !p.globalsCleared {
		p.globalsCleared = true
		p.symbols.ClearGlobalNames()
	}
}
